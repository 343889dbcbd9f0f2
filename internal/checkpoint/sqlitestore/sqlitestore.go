// Package sqlitestore persists checkpoints in a local SQLite file.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store implements checkpoint.Store on SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and migrates it.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; concurrent partition flushes queue on the pool.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS checkpoints (
			consumer_group TEXT    NOT NULL,
			partition_id   INTEGER NOT NULL,
			position       INTEGER NOT NULL,
			updated_at     TEXT    NOT NULL,
			PRIMARY KEY (consumer_group, partition_id)
		)`)
	if err != nil {
		return fmt.Errorf("migrate checkpoints: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get implements checkpoint.Store.
func (s *Store) Get(ctx context.Context, group string, partition int) (int64, bool, error) {
	var pos int64
	err := s.db.QueryRowContext(ctx,
		`SELECT position FROM checkpoints WHERE consumer_group = ? AND partition_id = ?`,
		group, partition,
	).Scan(&pos)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("select checkpoint: %w", err)
	}
	return pos, true, nil
}

// Put implements checkpoint.Store. A position lower than the stored one is
// ignored.
func (s *Store) Put(ctx context.Context, group string, partition int, position int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (consumer_group, partition_id, position, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (consumer_group, partition_id) DO UPDATE
		SET position = excluded.position, updated_at = excluded.updated_at
		WHERE excluded.position > checkpoints.position
	`, group, partition, position, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("upsert checkpoint: %w", err)
	}
	return nil
}
