// Package pgstore persists checkpoints in PostgreSQL.
package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const schema = `
CREATE TABLE IF NOT EXISTS stream_checkpoints (
	consumer_group TEXT        NOT NULL,
	partition_id   INTEGER     NOT NULL,
	position       BIGINT      NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (consumer_group, partition_id)
)`

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements checkpoint.Store on a stream_checkpoints table.
type Store struct {
	db DB
}

// New creates a Store. Call EnsureSchema once before use on a fresh database.
func New(db DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the checkpoint table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create stream_checkpoints: %w", err)
	}
	return nil
}

// Get implements checkpoint.Store.
func (s *Store) Get(ctx context.Context, group string, partition int) (int64, bool, error) {
	var pos int64
	err := s.db.QueryRow(ctx, `
		SELECT position FROM stream_checkpoints
		WHERE consumer_group = $1 AND partition_id = $2
	`, group, partition).Scan(&pos)
	if errors.Is(err, pgx.ErrNoRows) {
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
	_, err := s.db.Exec(ctx, `
		INSERT INTO stream_checkpoints (consumer_group, partition_id, position, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (consumer_group, partition_id) DO UPDATE
		SET position = EXCLUDED.position, updated_at = EXCLUDED.updated_at
		WHERE stream_checkpoints.position < EXCLUDED.position
	`, group, partition, position)
	if err != nil {
		return fmt.Errorf("upsert checkpoint: %w", err)
	}
	return nil
}
