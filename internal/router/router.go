package router

import (
	"errors"
	"hash/fnv"
)

var (
	ErrEmptyKey          = errors.New("partition key is empty")
	ErrInvalidPartitions = errors.New("partition count must be >= 1")
)

// PartitionFor returns the partition in [0, partitions) that owns key.
// It panics if partitions < 1; use Route for checked input.
func PartitionFor(key string, partitions int) int {
	if partitions < 1 {
		panic(ErrInvalidPartitions)
	}
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(partitions))
}

// Route is PartitionFor with checked input.
func Route(key string, partitions int) (int, error) {
	if key == "" {
		return 0, ErrEmptyKey
	}
	if partitions < 1 {
		return 0, ErrInvalidPartitions
	}
	return PartitionFor(key, partitions), nil
}
