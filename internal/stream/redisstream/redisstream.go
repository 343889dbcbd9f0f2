// Package redisstream implements the stream transport on Redis Streams.
//
// Each partition is one Redis stream named "<name>:<partition>". Entry IDs
// ("<ms>-<seq>") map to int64 offsets as ms<<20 | seq, which preserves their
// order. Partition ownership within a consumer group is a lease key set with
// NX and a TTL. The reader renews it while reading and retakes it if it
// expired unclaimed, for example while a handler was blocked on one event. It
// reports stream.ErrOwnershipLost only once another member holds the lease.
package redisstream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rickgao/trade-events/internal/stream"
)

const (
	seqBits   = 20
	seqMask   = 1<<seqBits - 1
	dataField = "data"
)

// Defaults for optional Config fields.
const (
	DefaultLeaseTTL     = 15 * time.Second
	DefaultBlockTimeout = 2 * time.Second
	DefaultReadCount    = 100
)

var (
	// renewScript returns 1 when the lease was extended, 2 when it had
	// expired and was taken again, and 0 when another member holds it.
	renewScript = redis.NewScript(`
local holder = redis.call("GET", KEYS[1])
if holder == ARGV[1] then
	redis.call("PEXPIRE", KEYS[1], ARGV[2])
	return 1
end
if not holder then
	redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
	return 2
end
return 0`)

	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

// Config configures a Stream.
type Config struct {
	Name          string
	Partitions    int
	MaxBatchBytes int
	MemberID      string // identifies this process in lease keys
	LeaseTTL      time.Duration
	BlockTimeout  time.Duration // XREAD BLOCK per poll
	ReadCount     int64
}

// Stream implements stream.Publisher and stream.Subscriber.
type Stream struct {
	client redis.UniversalClient
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	leases map[string]struct{} // lease keys held by this member
}

// New creates a Stream over client. The caller owns client.
func New(client redis.UniversalClient, cfg Config, logger *slog.Logger) *Stream {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Partitions < 1 {
		cfg.Partitions = 1
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = DefaultLeaseTTL
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = DefaultBlockTimeout
	}
	if cfg.ReadCount <= 0 {
		cfg.ReadCount = DefaultReadCount
	}
	return &Stream{
		client: client,
		cfg:    cfg,
		logger: logger,
		leases: make(map[string]struct{}),
	}
}

// OffsetFromID converts a stream entry ID to an offset.
func OffsetFromID(id string) (int64, error) {
	msStr, seqStr, ok := strings.Cut(id, "-")
	if !ok {
		return 0, fmt.Errorf("malformed stream id %q", id)
	}
	ms, err := strconv.ParseInt(msStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed stream id %q: %w", id, err)
	}
	seq, err := strconv.ParseInt(seqStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed stream id %q: %w", id, err)
	}
	if seq > seqMask {
		return 0, fmt.Errorf("stream id %q sequence exceeds %d", id, seqMask)
	}
	return ms<<seqBits | seq, nil
}

// IDFromOffset converts an offset back to its stream entry ID.
func IDFromOffset(offset int64) string {
	return fmt.Sprintf("%d-%d", offset>>seqBits, offset&seqMask)
}

func (s *Stream) partitionKey(partition int) string {
	return fmt.Sprintf("%s:%d", s.cfg.Name, partition)
}

func (s *Stream) leaseKey(group string, partition int) string {
	return fmt.Sprintf("%s:lease:%s:%d", s.cfg.Name, group, partition)
}

func (s *Stream) checkPartition(partition int) error {
	if partition < 0 || partition >= s.cfg.Partitions {
		return fmt.Errorf("%w: %d", stream.ErrPartitionOutOfRange, partition)
	}
	return nil
}

func (s *Stream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Partitions implements stream.Publisher.
func (s *Stream) Partitions() int { return s.cfg.Partitions }

// MaxBatchBytes implements stream.Publisher.
func (s *Stream) MaxBatchBytes() int { return s.cfg.MaxBatchBytes }

// Send implements stream.Publisher. The batch is appended in one MULTI/EXEC
// so either every entry is stored or none is.
func (s *Stream) Send(ctx context.Context, b *stream.Batch) error {
	if s.isClosed() {
		return stream.ErrClosed
	}
	if err := s.checkPartition(b.Partition()); err != nil {
		return err
	}
	key := s.partitionKey(b.Partition())
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, data := range b.Events() {
			pipe.XAdd(ctx, &redis.XAddArgs{
				Stream: key,
				Values: []any{dataField, data},
			})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("xadd %s: %w", key, err)
	}
	return nil
}

// Claim implements stream.Subscriber. It takes every partition lease that
// is free or already held by this member.
func (s *Stream) Claim(ctx context.Context, group string) ([]int, error) {
	if s.isClosed() {
		return nil, stream.ErrClosed
	}
	var owned []int
	for p := 0; p < s.cfg.Partitions; p++ {
		ok, err := s.acquire(ctx, s.leaseKey(group, p))
		if err != nil {
			return nil, fmt.Errorf("claim partition %d: %w", p, err)
		}
		if ok {
			owned = append(owned, p)
		}
	}
	s.logger.Info("claimed partitions",
		"group", group,
		"member", s.cfg.MemberID,
		"owned", len(owned),
		"partitions", s.cfg.Partitions,
	)
	return owned, nil
}

func (s *Stream) acquire(ctx context.Context, key string) (bool, error) {
	ok, err := s.client.SetNX(ctx, key, s.cfg.MemberID, s.cfg.LeaseTTL).Result()
	if err != nil {
		return false, err
	}
	if !ok {
		holder, err := s.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		ok = holder == s.cfg.MemberID
	}
	if ok {
		s.mu.Lock()
		s.leases[key] = struct{}{}
		s.mu.Unlock()
	}
	return ok, nil
}

// Open implements stream.Subscriber.
func (s *Stream) Open(ctx context.Context, group string, partition int, start stream.StartPosition) (stream.Reader, error) {
	if s.isClosed() {
		return nil, stream.ErrClosed
	}
	if err := s.checkPartition(partition); err != nil {
		return nil, err
	}

	lease := s.leaseKey(group, partition)
	if err := s.renew(ctx, lease); err != nil {
		return nil, err
	}

	key := s.partitionKey(partition)
	var last string
	switch start.Kind {
	case stream.StartEarliest:
		last = "0-0"
	case stream.StartAfter:
		last = IDFromOffset(start.Offset)
	case stream.StartLatest:
		msgs, err := s.client.XRevRangeN(ctx, key, "+", "-", 1).Result()
		if err != nil {
			return nil, fmt.Errorf("xrevrange %s: %w", key, err)
		}
		last = "0-0"
		if len(msgs) > 0 {
			last = msgs[0].ID
		}
	}

	return &reader{
		s:         s,
		partition: partition,
		key:       key,
		lease:     lease,
		last:      last,
		renewed:   time.Now(),
	}, nil
}

// renew extends this member's lease, retaking it if it expired unclaimed.
// It reports stream.ErrOwnershipLost only when another member holds it.
func (s *Stream) renew(ctx context.Context, lease string) error {
	n, err := renewScript.Run(ctx, s.client, []string{lease}, s.cfg.MemberID, s.cfg.LeaseTTL.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("renew lease %s: %w", lease, err)
	}
	switch n {
	case 0:
		s.mu.Lock()
		delete(s.leases, lease)
		s.mu.Unlock()
		return stream.ErrOwnershipLost
	case 2:
		s.mu.Lock()
		s.leases[lease] = struct{}{}
		s.mu.Unlock()
		s.logger.Warn("lease expired and was retaken", "lease", lease, "member", s.cfg.MemberID)
	}
	return nil
}

// Close releases every lease this member holds so other members can claim
// the partitions without waiting for expiry. It does not close the client.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	leases := make([]string, 0, len(s.leases))
	for k := range s.leases {
		leases = append(leases, k)
	}
	s.leases = make(map[string]struct{})
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	for _, k := range leases {
		if err := releaseScript.Run(ctx, s.client, []string{k}, s.cfg.MemberID).Err(); err != nil {
			errs = append(errs, fmt.Errorf("release %s: %w", k, err))
		}
	}
	return errors.Join(errs...)
}

type reader struct {
	s         *Stream
	partition int
	key       string
	lease     string
	last      string // ID of the last entry handed out
	buf       []redis.XMessage
	renewed   time.Time

	mu     sync.Mutex
	closed bool
}

func (r *reader) Read(ctx context.Context) (stream.Record, error) {
	for {
		r.mu.Lock()
		closed := r.closed
		r.mu.Unlock()
		if closed || r.s.isClosed() {
			return stream.Record{}, stream.ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return stream.Record{}, err
		}

		if time.Since(r.renewed) >= r.s.cfg.LeaseTTL/3 {
			if err := r.s.renew(ctx, r.lease); err != nil {
				return stream.Record{}, err
			}
			r.renewed = time.Now()
		}

		if len(r.buf) > 0 {
			rec, err := r.record(r.buf[0])
			if err != nil {
				// Leave the entry queued; it is not skipped.
				return stream.Record{}, fmt.Errorf("entry %s: %w", r.buf[0].ID, err)
			}
			r.last = r.buf[0].ID
			r.buf = r.buf[1:]
			return rec, nil
		}

		res, err := r.s.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{r.key, r.last},
			Count:   r.s.cfg.ReadCount,
			Block:   r.s.cfg.BlockTimeout,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return stream.Record{}, ctx.Err()
			}
			return stream.Record{}, fmt.Errorf("xread %s: %w", r.key, err)
		}
		for _, st := range res {
			if st.Stream == r.key {
				r.buf = append(r.buf, st.Messages...)
			}
		}
	}
}

func (r *reader) record(msg redis.XMessage) (stream.Record, error) {
	offset, err := OffsetFromID(msg.ID)
	if err != nil {
		return stream.Record{}, err
	}
	rec := stream.Record{
		Partition:  r.partition,
		Offset:     offset,
		EnqueuedAt: time.UnixMilli(offset >> seqBits).UTC(),
	}
	switch v := msg.Values[dataField].(type) {
	case string:
		rec.Data = []byte(v)
	case []byte:
		rec.Data = v
	}
	return rec, nil
}

func (r *reader) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}
