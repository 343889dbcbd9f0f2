// Package rabbitstream implements the stream transport on RabbitMQ stream
// queues.
//
// Each partition is a durable queue of type "stream" named
// "<name>.<partition>". Publishing waits for the broker's publisher confirm.
// Readers consume with the x-stream-offset argument and take each record's
// offset from the x-stream-offset delivery header, so positions are the
// broker's own offsets. Stream queues have no ownership model over AMQP;
// every member owns every partition, so run one member per consumer group.
// A second member in the same group handles every event again and races the
// first on checkpoint writes.
package rabbitstream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/rickgao/trade-events/internal/stream"
)

const offsetHeader = "x-stream-offset"

// Defaults for optional Config fields.
const (
	DefaultPrefetch       = 100
	DefaultMaxLengthBytes = 2 << 30
)

var errNacked = errors.New("publish nacked by broker")

// Config configures a Stream.
type Config struct {
	URL            string
	Name           string
	Partitions     int
	MaxBatchBytes  int
	Prefetch       int
	MaxLengthBytes int64
}

// Stream implements stream.Publisher and stream.Subscriber.
type Stream struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	conn   *amqp.Connection
	pubCh  *amqp.Channel
	closed bool

	pubMu sync.Mutex // keeps a batch's messages contiguous on the publish channel
}

// Dial connects to the broker and declares one stream queue per partition.
func Dial(cfg Config, logger *slog.Logger) (*Stream, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Partitions < 1 {
		cfg.Partitions = 1
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = DefaultPrefetch
	}
	if cfg.MaxLengthBytes <= 0 {
		cfg.MaxLengthBytes = DefaultMaxLengthBytes
	}

	s := &Stream{cfg: cfg, logger: logger}
	conn, err := s.connection()
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	for p := 0; p < cfg.Partitions; p++ {
		_, err := ch.QueueDeclare(
			QueueName(cfg.Name, p),
			true,  // durable
			false, // auto-deleted
			false, // exclusive
			false, // no-wait
			amqp.Table{
				"x-queue-type":       "stream",
				"x-max-length-bytes": cfg.MaxLengthBytes,
			},
		)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("declare stream queue %s: %w", QueueName(cfg.Name, p), err)
		}
	}

	logger.Info("rabbitmq stream ready", "name", cfg.Name, "partitions", cfg.Partitions)
	return s, nil
}

// QueueName returns the stream queue backing partition.
func QueueName(name string, partition int) string {
	return fmt.Sprintf("%s.%d", name, partition)
}

// connection returns the live connection, redialing if it dropped.
func (s *Stream) connection() (*amqp.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, stream.ErrClosed
	}
	if s.conn != nil && !s.conn.IsClosed() {
		return s.conn, nil
	}
	conn, err := amqp.Dial(s.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	s.conn = conn
	s.pubCh = nil
	return conn, nil
}

// publishChannel returns the confirm-mode channel used by Send.
func (s *Stream) publishChannel() (*amqp.Channel, error) {
	conn, err := s.connection()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pubCh != nil && !s.pubCh.IsClosed() {
		return s.pubCh, nil
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open publish channel: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("enable confirms: %w", err)
	}
	s.pubCh = ch
	return ch, nil
}

func (s *Stream) checkPartition(partition int) error {
	if partition < 0 || partition >= s.cfg.Partitions {
		return fmt.Errorf("%w: %d", stream.ErrPartitionOutOfRange, partition)
	}
	return nil
}

// Partitions implements stream.Publisher.
func (s *Stream) Partitions() int { return s.cfg.Partitions }

// MaxBatchBytes implements stream.Publisher.
func (s *Stream) MaxBatchBytes() int { return s.cfg.MaxBatchBytes }

// Send implements stream.Publisher. It returns after the broker confirms
// every message in the batch.
func (s *Stream) Send(ctx context.Context, b *stream.Batch) error {
	if err := s.checkPartition(b.Partition()); err != nil {
		return err
	}
	ch, err := s.publishChannel()
	if err != nil {
		return err
	}
	queue := QueueName(s.cfg.Name, b.Partition())

	s.pubMu.Lock()
	confirms := make([]*amqp.DeferredConfirmation, 0, b.Len())
	for _, data := range b.Events() {
		dc, err := ch.PublishWithDeferredConfirmWithContext(ctx,
			"",    // default exchange
			queue, // routing key
			false, // mandatory
			false, // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				Headers:      amqp.Table{"partition-key": b.Key()},
				Timestamp:    time.Now(),
				Body:         data,
			},
		)
		if err != nil {
			s.pubMu.Unlock()
			return fmt.Errorf("publish to %s: %w", queue, err)
		}
		confirms = append(confirms, dc)
	}
	s.pubMu.Unlock()

	for _, dc := range confirms {
		ok, err := dc.WaitContext(ctx)
		if err != nil {
			return fmt.Errorf("await confirm from %s: %w", queue, err)
		}
		if !ok {
			return fmt.Errorf("%s: %w", queue, errNacked)
		}
	}
	return nil
}

// Claim implements stream.Subscriber. Every partition is owned.
func (s *Stream) Claim(ctx context.Context, group string) ([]int, error) {
	if _, err := s.connection(); err != nil {
		return nil, err
	}
	s.logger.Warn("rabbitmq stream queues have no partition ownership; run a single member per group",
		"group", group,
		"partitions", s.cfg.Partitions,
	)
	return allPartitions(s.cfg.Partitions), nil
}

func allPartitions(n int) []int {
	owned := make([]int, n)
	for i := range owned {
		owned[i] = i
	}
	return owned
}

// Open implements stream.Subscriber.
func (s *Stream) Open(ctx context.Context, group string, partition int, start stream.StartPosition) (stream.Reader, error) {
	if err := s.checkPartition(partition); err != nil {
		return nil, err
	}
	r := &reader{
		s:         s,
		group:     group,
		partition: partition,
		queue:     QueueName(s.cfg.Name, partition),
		start:     start,
	}
	if err := r.subscribe(); err != nil {
		return nil, err
	}
	return r, nil
}

// Close closes the broker connection.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.conn == nil || s.conn.IsClosed() {
		return nil
	}
	return s.conn.Close()
}

// ConsumeOffset renders start as an x-stream-offset consumer argument.
func ConsumeOffset(start stream.StartPosition) any {
	switch start.Kind {
	case stream.StartLatest:
		return "next"
	case stream.StartAfter:
		return start.Offset + 1
	default:
		return "first"
	}
}

// OffsetFromHeaders extracts the broker offset of a stream delivery.
func OffsetFromHeaders(h amqp.Table) (int64, error) {
	switch v := h[offsetHeader].(type) {
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case int:
		return int64(v), nil
	case nil:
		return 0, fmt.Errorf("delivery has no %s header", offsetHeader)
	default:
		return 0, fmt.Errorf("unexpected %s header type %T", offsetHeader, v)
	}
}

type reader struct {
	s         *Stream
	group     string
	partition int
	queue     string
	start     stream.StartPosition // moves forward as records are read

	ch         *amqp.Channel
	deliveries <-chan amqp.Delivery

	mu     sync.Mutex
	closed bool
}

// subscribe opens a channel and starts consuming at r.start.
func (r *reader) subscribe() error {
	conn, err := r.s.connection()
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open consume channel: %w", err)
	}
	if err := ch.Qos(r.s.cfg.Prefetch, 0, false); err != nil {
		ch.Close()
		return fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := ch.Consume(
		r.queue,
		fmt.Sprintf("%s-%d", r.group, r.partition), // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		amqp.Table{offsetHeader: ConsumeOffset(r.start)},
	)
	if err != nil {
		ch.Close()
		return fmt.Errorf("consume %s: %w", r.queue, err)
	}
	r.ch = ch
	r.deliveries = deliveries
	return nil
}

func (r *reader) Read(ctx context.Context) (stream.Record, error) {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return stream.Record{}, stream.ErrClosed
	}

	if r.deliveries == nil {
		if err := r.subscribe(); err != nil {
			return stream.Record{}, err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return stream.Record{}, ctx.Err()
		case d, ok := <-r.deliveries:
			if !ok {
				r.deliveries = nil
				if r.ch != nil {
					r.ch.Close()
					r.ch = nil
				}
				return stream.Record{}, fmt.Errorf("consume %s: delivery channel closed", r.queue)
			}

			offset, err := OffsetFromHeaders(d.Headers)
			if err != nil {
				d.Nack(false, false)
				return stream.Record{}, err
			}
			// Stream queues need acks for prefetch credit only.
			if err := d.Ack(false); err != nil {
				r.s.logger.Warn("ack stream delivery", "queue", r.queue, "error", err)
			}
			// A resubscribe after a dropped channel may redeliver.
			if r.start.Kind == stream.StartAfter && offset <= r.start.Offset {
				continue
			}
			r.start = stream.After(offset)
			return stream.Record{
				Partition:  r.partition,
				Offset:     offset,
				Data:       d.Body,
				EnqueuedAt: d.Timestamp,
			}, nil
		}
	}
}

func (r *reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if r.ch != nil {
		return r.ch.Close()
	}
	return nil
}
