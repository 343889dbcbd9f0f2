// Package redisstore persists checkpoints in Redis hashes, one hash per
// consumer group with a field per partition.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces checkpoint hashes.
const DefaultKeyPrefix = "trade-events:checkpoints:"

// Store implements checkpoint.Store on Redis.
type Store struct {
	client redis.Cmdable
	prefix string
}

// New creates a Store. An empty prefix uses DefaultKeyPrefix.
func New(client redis.Cmdable, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) key(group string) string {
	return s.prefix + group
}

// Get implements checkpoint.Store.
func (s *Store) Get(ctx context.Context, group string, partition int) (int64, bool, error) {
	raw, err := s.client.HGet(ctx, s.key(group), strconv.Itoa(partition)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("hget checkpoint: %w", err)
	}
	pos, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse checkpoint %q: %w", raw, err)
	}
	return pos, true, nil
}

// Put implements checkpoint.Store.
func (s *Store) Put(ctx context.Context, group string, partition int, position int64) error {
	if err := s.client.HSet(ctx, s.key(group), strconv.Itoa(partition), position).Err(); err != nil {
		return fmt.Errorf("hset checkpoint: %w", err)
	}
	return nil
}
