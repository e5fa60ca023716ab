package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lifeforge/docchat/internal/ragclient"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	cfg StoreConfig
}

// Schema for the history database.
const schema = `
CREATE TABLE IF NOT EXISTS turns (
    id TEXT PRIMARY KEY,
    question TEXT NOT NULL,
    answer TEXT NOT NULL,
    metadata TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_turns_created_at ON turns(created_at DESC);
`

// DefaultDBPath returns where the history database lives.
func DefaultDBPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get config dir: %w", err)
	}
	return filepath.Join(configDir, "docchat", "history.db"), nil
}

// NewSQLiteStore opens (or creates) the history database at the default
// location.
func NewSQLiteStore(cfg StoreConfig) (*SQLiteStore, error) {
	path, err := DefaultDBPath()
	if err != nil {
		return nil, err
	}
	return OpenSQLiteStore(path, cfg)
}

// OpenSQLiteStore opens (or creates) a history database at path.
func OpenSQLiteStore(path string, cfg StoreConfig) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	store := &SQLiteStore{db: db, cfg: cfg}
	if err := store.cleanup(); err != nil {
		// Retention is best-effort; a failed sweep should not block startup.
		fmt.Fprintf(os.Stderr, "warning: history cleanup failed: %v\n", err)
	}
	return store, nil
}

// cleanup enforces retention limits from the configuration.
func (s *SQLiteStore) cleanup() error {
	ctx := context.Background()

	if s.cfg.MaxAgeDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -s.cfg.MaxAgeDays)
		if _, err := s.db.ExecContext(ctx,
			"DELETE FROM turns WHERE created_at < ?", cutoff); err != nil {
			return fmt.Errorf("delete old turns: %w", err)
		}
	}

	if s.cfg.MaxCount > 0 {
		_, err := s.db.ExecContext(ctx, `
			DELETE FROM turns WHERE id IN (
				SELECT id FROM turns
				ORDER BY created_at DESC
				LIMIT -1 OFFSET ?
			)`, s.cfg.MaxCount)
		if err != nil {
			return fmt.Errorf("enforce max count: %w", err)
		}
	}
	return nil
}

// Append inserts a completed turn.
func (s *SQLiteStore) Append(ctx context.Context, turn *Turn) error {
	if turn.ID == "" {
		turn.ID = NewID()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}

	var metaJSON sql.NullString
	if turn.Metadata != nil {
		raw, err := json.Marshal(turn.Metadata)
		if err != nil {
			return fmt.Errorf("serialize metadata: %w", err)
		}
		metaJSON = sql.NullString{String: string(raw), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO turns (id, question, answer, metadata, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		turn.ID, turn.Question, turn.Answer, metaJSON, turn.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}
	return nil
}

// List returns stored turns, newest first.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, question, answer, metadata, created_at
		FROM turns
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var turn Turn
		var metaJSON sql.NullString
		if err := rows.Scan(&turn.ID, &turn.Question, &turn.Answer, &metaJSON, &turn.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		if metaJSON.Valid {
			var meta ragclient.Metadata
			if err := json.Unmarshal([]byte(metaJSON.String), &meta); err == nil {
				turn.Metadata = &meta
			}
		}
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}

// Clear removes all stored turns.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM turns"); err != nil {
		return fmt.Errorf("clear turns: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
