package session

import "context"

// NoopStore is used when history persistence is disabled. It discards
// writes and returns empty results.
type NoopStore struct{}

func (s *NoopStore) Append(ctx context.Context, turn *Turn) error {
	if turn.ID == "" {
		turn.ID = NewID()
	}
	return nil
}

func (s *NoopStore) List(ctx context.Context, limit int) ([]Turn, error) {
	return nil, nil
}

func (s *NoopStore) Clear(ctx context.Context) error {
	return nil
}

func (s *NoopStore) Close() error {
	return nil
}
