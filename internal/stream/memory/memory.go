// Package memory implements an in-process partitioned stream.
//
// It keeps every record for the lifetime of the Stream, which makes it a
// faithful double for a durable log in tests: readers can be reopened at any
// offset, ownership can be revoked and transport faults can be injected.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rickgao/trade-events/internal/stream"
)

// DefaultMaxBatchBytes mirrors the 1 MiB batch ceiling of common brokers.
const DefaultMaxBatchBytes = 1 << 20

// Config configures a Stream.
type Config struct {
	Partitions    int
	MaxBatchBytes int
}

// Stats counts traffic through the stream.
type Stats struct {
	Batches   int64
	Events    int64
	BytesSent int64
}

// Stream is an in-memory partitioned log implementing stream.Publisher and
// stream.Subscriber.
type Stream struct {
	cfg   Config
	parts []*partitionLog
	now   func() time.Time

	mu       sync.Mutex
	closed   bool
	sendErr  error
	revoked  map[string]bool // group/partition -> ownership revoked
	readErrs map[int][]error // queued Read errors per partition
	stats    Stats
}

type partitionLog struct {
	mu      sync.Mutex
	records []stream.Record
	notify  chan struct{} // closed on append
}

// New creates a Stream. Partitions defaults to 1.
func New(cfg Config) *Stream {
	if cfg.Partitions < 1 {
		cfg.Partitions = 1
	}
	if cfg.MaxBatchBytes == 0 {
		cfg.MaxBatchBytes = DefaultMaxBatchBytes
	}
	parts := make([]*partitionLog, cfg.Partitions)
	for i := range parts {
		parts[i] = &partitionLog{notify: make(chan struct{})}
	}
	return &Stream{
		cfg:      cfg,
		parts:    parts,
		now:      time.Now,
		revoked:  make(map[string]bool),
		readErrs: make(map[int][]error),
	}
}

// Partitions implements stream.Publisher.
func (s *Stream) Partitions() int { return s.cfg.Partitions }

// MaxBatchBytes implements stream.Publisher.
func (s *Stream) MaxBatchBytes() int { return s.cfg.MaxBatchBytes }

// Send implements stream.Publisher. The whole batch is appended atomically.
func (s *Stream) Send(ctx context.Context, b *stream.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return stream.ErrClosed
	}
	if s.sendErr != nil {
		err := s.sendErr
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	if b.Partition() < 0 || b.Partition() >= len(s.parts) {
		return fmt.Errorf("%w: %d", stream.ErrPartitionOutOfRange, b.Partition())
	}
	if s.cfg.MaxBatchBytes > 0 && b.Size() > s.cfg.MaxBatchBytes {
		return fmt.Errorf("batch of %d bytes exceeds limit %d", b.Size(), s.cfg.MaxBatchBytes)
	}

	s.parts[b.Partition()].append(b.Partition(), b.Events(), s.now())

	s.mu.Lock()
	s.stats.Batches++
	s.stats.Events += int64(b.Len())
	s.stats.BytesSent += int64(b.Size())
	s.mu.Unlock()
	return nil
}

// AppendRaw writes data to partition without going through a publisher and
// returns its offset. Tests use it to plant malformed records.
func (s *Stream) AppendRaw(partition int, data []byte) int64 {
	return s.parts[partition].append(partition, [][]byte{data}, s.now())
}

// Records returns a copy of partition's records.
func (s *Stream) Records(partition int) []stream.Record {
	p := s.parts[partition]
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]stream.Record, len(p.records))
	copy(out, p.records)
	return out
}

// Stats returns traffic counters.
func (s *Stream) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// FailSends makes every Send return err until called again with nil.
func (s *Stream) FailSends(err error) {
	s.mu.Lock()
	s.sendErr = err
	s.mu.Unlock()
}

// InjectReadError queues err to be returned by the next Read on partition.
func (s *Stream) InjectReadError(partition int, err error) {
	s.mu.Lock()
	s.readErrs[partition] = append(s.readErrs[partition], err)
	s.mu.Unlock()
	s.parts[partition].wake()
}

// Revoke simulates another group member taking over partition.
func (s *Stream) Revoke(group string, partition int) {
	s.mu.Lock()
	s.revoked[ownerKey(group, partition)] = true
	s.mu.Unlock()
	s.parts[partition].wake()
}

// Close stops the stream. Pending reads return stream.ErrClosed.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	for _, p := range s.parts {
		p.wake()
	}
	return nil
}

// Claim implements stream.Subscriber. A single in-process member owns every
// partition that has not been revoked for group.
func (s *Stream) Claim(ctx context.Context, group string) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, stream.ErrClosed
	}
	owned := make([]int, 0, len(s.parts))
	for i := range s.parts {
		if !s.revoked[ownerKey(group, i)] {
			owned = append(owned, i)
		}
	}
	return owned, nil
}

// Open implements stream.Subscriber.
func (s *Stream) Open(ctx context.Context, group string, partition int, start stream.StartPosition) (stream.Reader, error) {
	if partition < 0 || partition >= len(s.parts) {
		return nil, fmt.Errorf("%w: %d", stream.ErrPartitionOutOfRange, partition)
	}
	s.mu.Lock()
	closed := s.closed
	lost := s.revoked[ownerKey(group, partition)]
	s.mu.Unlock()
	if closed {
		return nil, stream.ErrClosed
	}
	if lost {
		return nil, stream.ErrOwnershipLost
	}

	p := s.parts[partition]
	var next int64
	switch start.Kind {
	case stream.StartEarliest:
		next = 0
	case stream.StartLatest:
		p.mu.Lock()
		next = int64(len(p.records))
		p.mu.Unlock()
	case stream.StartAfter:
		next = start.Offset + 1
	}

	return &reader{s: s, group: group, partition: partition, next: next}, nil
}

func (s *Stream) takeReadErr(partition int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return stream.ErrClosed
	}
	queue := s.readErrs[partition]
	if len(queue) == 0 {
		return nil
	}
	s.readErrs[partition] = queue[1:]
	return queue[0]
}

func (s *Stream) ownershipLost(group string, partition int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revoked[ownerKey(group, partition)]
}

func (p *partitionLog) append(partition int, events [][]byte, at time.Time) int64 {
	p.mu.Lock()
	var last int64
	for _, data := range events {
		last = int64(len(p.records))
		p.records = append(p.records, stream.Record{
			Partition:  partition,
			Offset:     last,
			Data:       append([]byte(nil), data...),
			EnqueuedAt: at,
		})
	}
	ch := p.notify
	p.notify = make(chan struct{})
	p.mu.Unlock()
	close(ch)
	return last
}

func (p *partitionLog) wake() {
	p.mu.Lock()
	ch := p.notify
	p.notify = make(chan struct{})
	p.mu.Unlock()
	close(ch)
}

// reader walks one partition log.
type reader struct {
	s         *Stream
	group     string
	partition int
	next      int64

	mu     sync.Mutex
	closed bool
}

func (r *reader) Read(ctx context.Context) (stream.Record, error) {
	p := r.s.parts[r.partition]
	for {
		r.mu.Lock()
		closed := r.closed
		r.mu.Unlock()
		if closed {
			return stream.Record{}, stream.ErrClosed
		}
		if err := r.s.takeReadErr(r.partition); err != nil {
			return stream.Record{}, err
		}
		if r.s.ownershipLost(r.group, r.partition) {
			return stream.Record{}, stream.ErrOwnershipLost
		}

		p.mu.Lock()
		if r.next < int64(len(p.records)) {
			rec := p.records[r.next]
			p.mu.Unlock()
			r.next++
			return rec, nil
		}
		wait := p.notify
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			return stream.Record{}, ctx.Err()
		case <-wait:
		}
	}
}

func (r *reader) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.s.parts[r.partition].wake()
	return nil
}

func ownerKey(group string, partition int) string {
	return fmt.Sprintf("%s/%d", group, partition)
}
