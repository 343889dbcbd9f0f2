package checkpoint

import (
	"context"
	"fmt"
	"sync"
)

// Store persists the last processed position per (group, partition).
type Store interface {
	// Get returns the checkpoint for (group, partition); found is false when
	// none has been stored yet.
	Get(ctx context.Context, group string, partition int) (position int64, found bool, err error)

	// Put records position as the last processed offset.
	Put(ctx context.Context, group string, partition int, position int64) error
}

// Key renders a stable string key for stores without composite keys.
func Key(group string, partition int) string {
	return fmt.Sprintf("%s/%d", group, partition)
}

// Memory is a process-local Store. It is safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	data map[string]int64
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]int64)}
}

// Get implements Store.
func (m *Memory) Get(ctx context.Context, group string, partition int) (int64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pos, ok := m.data[Key(group, partition)]
	return pos, ok, nil
}

// Put implements Store.
func (m *Memory) Put(ctx context.Context, group string, partition int, position int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[Key(group, partition)] = position
	return nil
}
