// Package badgerstore persists checkpoints in an embedded Badger database.
package badgerstore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/rickgao/trade-events/internal/checkpoint"
)

const keyPrefix = "checkpoint/"

// Store implements checkpoint.Store on Badger.
type Store struct {
	db *badger.DB
}

// Open opens the database directory at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("badger path is required")
	}
	db, err := badger.Open(badger.DefaultOptions(path).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens a non-persistent database.
func OpenInMemory() (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func key(group string, partition int) []byte {
	return []byte(keyPrefix + checkpoint.Key(group, partition))
}

func readPosition(txn *badger.Txn, k []byte) (int64, bool, error) {
	item, err := txn.Get(k)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	var pos int64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("corrupt checkpoint value of %d bytes", len(val))
		}
		pos = int64(binary.BigEndian.Uint64(val))
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return pos, true, nil
}

// Get implements checkpoint.Store.
func (s *Store) Get(ctx context.Context, group string, partition int) (int64, bool, error) {
	var (
		pos   int64
		found bool
	)
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		pos, found, err = readPosition(txn, key(group, partition))
		return err
	})
	if err != nil {
		return 0, false, fmt.Errorf("read checkpoint: %w", err)
	}
	return pos, found, nil
}

// Put implements checkpoint.Store. A position lower than the stored one is
// ignored.
func (s *Store) Put(ctx context.Context, group string, partition int, position int64) error {
	k := key(group, partition)
	err := s.db.Update(func(txn *badger.Txn) error {
		current, found, err := readPosition(txn, k)
		if err != nil {
			return err
		}
		if found && current >= position {
			return nil
		}
		val := make([]byte, 8)
		binary.BigEndian.PutUint64(val, uint64(position))
		return txn.Set(k, val)
	})
	if err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}
