package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Stream-level errors.
var (
	ErrOwnershipLost       = errors.New("partition ownership lost")
	ErrClosed              = errors.New("stream closed")
	ErrPartitionOutOfRange = errors.New("partition out of range")
)

// Record is one event as stored in a partition.
type Record struct {
	Partition  int
	Offset     int64
	Data       []byte
	EnqueuedAt time.Time
}

// Publisher appends batches to the stream.
type Publisher interface {
	// Partitions returns the stream's partition count.
	Partitions() int

	// MaxBatchBytes returns the largest batch payload the broker accepts.
	MaxBatchBytes() int

	// Send appends every event in b to b.Partition() and returns once the
	// broker has acknowledged all of them. Either all events are stored or
	// an error is returned.
	Send(ctx context.Context, b *Batch) error
}

// Subscriber opens partition readers for a consumer group.
type Subscriber interface {
	// Claim returns the partitions this member owns within group.
	Claim(ctx context.Context, group string) ([]int, error)

	// Open returns a reader positioned at start. The reader is only valid
	// while this member owns the partition; afterwards Read returns
	// ErrOwnershipLost.
	Open(ctx context.Context, group string, partition int, start StartPosition) (Reader, error)
}

// Reader yields one partition's records in offset order.
type Reader interface {
	// Read blocks until the next record is available or ctx is done.
	Read(ctx context.Context) (Record, error)
	Close() error
}

// StartKind selects where a reader begins.
type StartKind int

const (
	StartEarliest StartKind = iota // first retained record
	StartLatest                    // only records appended after Open
	StartAfter                     // the record following Offset
)

// StartPosition is where a reader begins.
type StartPosition struct {
	Kind   StartKind
	Offset int64 // used with StartAfter
}

// Earliest starts at the first retained record.
func Earliest() StartPosition { return StartPosition{Kind: StartEarliest} }

// Latest starts after the current end of the partition.
func Latest() StartPosition { return StartPosition{Kind: StartLatest} }

// After starts at the record following offset.
func After(offset int64) StartPosition { return StartPosition{Kind: StartAfter, Offset: offset} }

func (p StartPosition) String() string {
	switch p.Kind {
	case StartEarliest:
		return "earliest"
	case StartLatest:
		return "latest"
	default:
		return fmt.Sprintf("after:%d", p.Offset)
	}
}

// ParseColdStart parses the configured position used when a partition has
// no checkpoint yet.
func ParseColdStart(s string) (StartPosition, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "earliest":
		return Earliest(), nil
	case "latest":
		return Latest(), nil
	default:
		return StartPosition{}, fmt.Errorf("unknown start position %q (want earliest or latest)", s)
	}
}
