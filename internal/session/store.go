package session

import (
	"context"
	"time"

	"github.com/lifeforge/docchat/internal/ragclient"
)

// Turn is one completed question/answer exchange. Turns are immutable once
// created and only exist for sessions that completed with a non-empty
// answer.
type Turn struct {
	ID        string
	Question  string
	Answer    string
	Metadata  *ragclient.Metadata
	CreatedAt time.Time
}

// Store persists completed turns across runs. Implementations must treat
// Clear as the only removal operation; failed or aborted sessions never
// touch the store.
type Store interface {
	Append(ctx context.Context, turn *Turn) error
	List(ctx context.Context, limit int) ([]Turn, error)
	Clear(ctx context.Context) error
	Close() error
}

// StoreConfig bounds how much history is retained.
type StoreConfig struct {
	MaxCount   int
	MaxAgeDays int
}
