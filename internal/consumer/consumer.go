package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/trade-events/internal/checkpoint"
	"github.com/rickgao/trade-events/internal/event"
	"github.com/rickgao/trade-events/internal/stream"
)

// Stats is a snapshot of consumer counters.
type Stats struct {
	Received           int64
	Handled            int64
	Poison             int64
	HandlerFailures    int64
	StreamErrors       int64
	CheckpointFlushes  int64
	CheckpointFailures int64
	Partitions         map[int]PartitionStats
}

// Consumer processes a partitioned stream for one consumer group. It is
// inert until Start.
type Consumer struct {
	cfg    Config
	sub    stream.Subscriber
	store  checkpoint.Store
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	handler  Handler
	trackers map[int]*tracker
	done     chan struct{}

	// runCtx derives from the Start context and is handed to handlers;
	// cancelling it aborts without a final flush. readCtx is a child that
	// Stop cancels to end reading.
	runCtx     context.Context
	runCancel  context.CancelFunc
	readCtx    context.Context
	readCancel context.CancelFunc

	statsMu sync.Mutex
	stats   Stats
}

// New creates a Consumer. Zero Config fields take DefaultConfig values.
func New(cfg Config, sub stream.Subscriber, store checkpoint.Store, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()
	return &Consumer{
		cfg:    cfg,
		sub:    sub,
		store:  store,
		logger: logger,
	}
}

// Start claims partitions and begins consuming. Cancelling ctx aborts the
// consumer without flushing checkpoints; use Stop for a graceful shutdown.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	c.mu.Lock()
	if c.state != StateStopped {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.state = StateStarting
	c.mu.Unlock()

	owned, err := c.sub.Claim(ctx, c.cfg.Group)
	if err != nil {
		c.setState(StateStopped)
		return fmt.Errorf("claim partitions: %w", err)
	}
	sort.Ints(owned)

	c.mu.Lock()
	c.handler = h
	c.runCtx, c.runCancel = context.WithCancel(ctx)
	c.readCtx, c.readCancel = context.WithCancel(c.runCtx)
	c.trackers = make(map[int]*tracker, len(owned))
	for _, p := range owned {
		c.trackers[p] = newTracker(p)
	}
	c.done = make(chan struct{})
	c.state = StateRunning
	trackers := c.trackers
	done := c.done
	runCancel := c.runCancel
	c.mu.Unlock()

	g := new(errgroup.Group)
	for _, p := range owned {
		t := trackers[p]
		g.Go(func() error {
			c.runPartition(t)
			return nil
		})
	}

	flushStop := make(chan struct{})
	flushDone := make(chan struct{})
	go func() {
		defer close(flushDone)
		c.flushLoop(trackers, flushStop)
	}()

	go func() {
		g.Wait()
		close(flushStop)
		<-flushDone
		runCancel()
		c.setState(StateStopped)
		close(done)
	}()

	c.logger.Info("consumer started",
		"group", c.cfg.Group,
		"partitions", owned,
		"poison_policy", c.cfg.PoisonPolicy,
		"checkpoint_interval", c.cfg.CheckpointInterval,
		"checkpoint_batch_size", c.cfg.CheckpointBatchSize,
	)
	return nil
}

// Stop drains the consumer: no new reads are issued, in-flight handler calls
// finish, and every partition flushes its checkpoint within FlushTimeout.
// Stop returns ctx.Err() if ctx ends first; draining continues in the
// background.
func (c *Consumer) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateStopped || c.done == nil {
		c.mu.Unlock()
		return nil
	}
	if c.state != StateDraining {
		c.state = StateDraining
		c.logger.Info("stopping consumer", "group", c.cfg.Group)
	}
	c.readCancel()
	done := c.done
	c.mu.Unlock()

	select {
	case <-done:
		c.logger.Info("consumer stopped", "group", c.cfg.Group)
		return nil
	case <-ctx.Done():
		c.logger.Warn("consumer stop timed out", "group", c.cfg.Group)
		return ctx.Err()
	}
}

// Done is closed once every partition loop has exited after the most recent
// Start.
func (c *Consumer) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return c.done
}

// State returns the lifecycle state.
func (c *Consumer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Consumer) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Stats returns current counters and per-partition progress.
func (c *Consumer) Stats() Stats {
	c.statsMu.Lock()
	s := c.stats
	c.statsMu.Unlock()

	c.mu.Lock()
	trackers := c.trackers
	c.mu.Unlock()

	s.Partitions = make(map[int]PartitionStats, len(trackers))
	for p, t := range trackers {
		s.Partitions[p] = t.stats()
	}
	return s
}

func (c *Consumer) count(f func(*Stats)) {
	c.statsMu.Lock()
	f(&c.stats)
	c.statsMu.Unlock()
}

// report forwards err to the handler unless the consumer was aborted.
func (c *Consumer) report(err error) {
	if c.runCtx.Err() != nil {
		return
	}
	c.handler.OnError(c.runCtx, err)
}

// runPartition loads the checkpoint, then reads and processes one partition
// until Stop, abort or ownership loss.
func (c *Consumer) runPartition(t *tracker) {
	p := t.partition
	t.setActive(true)
	defer t.setActive(false)

	start, ok := c.startPosition(t)
	if !ok {
		return
	}

	r, ok := c.open(p, start)
	if !ok {
		c.finalFlush(t)
		return
	}
	defer r.Close()

	c.logger.Info("partition started", "group", c.cfg.Group, "partition", p, "start", start)

	for {
		rec, err := r.Read(c.readCtx)
		if err != nil {
			if c.readCtx.Err() != nil {
				break
			}
			if errors.Is(err, stream.ErrOwnershipLost) || errors.Is(err, stream.ErrClosed) {
				c.count(func(s *Stats) { s.StreamErrors++ })
				c.logger.Warn("partition unavailable", "group", c.cfg.Group, "partition", p, "error", err)
				c.report(&StreamError{Partition: p, Err: err})
				break
			}
			c.count(func(s *Stats) { s.StreamErrors++ })
			c.logger.Warn("stream read failed", "partition", p, "error", err)
			c.report(&StreamError{Partition: p, Err: err})
			if !sleep(c.readCtx, c.cfg.ReadErrorBackoff) {
				break
			}
			continue
		}

		c.count(func(s *Stats) { s.Received++ })
		if !c.process(rec) {
			break
		}

		if t.markProcessed(rec.Offset) >= int64(c.cfg.CheckpointBatchSize) {
			ctx, cancel := context.WithTimeout(c.runCtx, c.cfg.FlushTimeout)
			c.flush(ctx, t)
			cancel()
		}
	}

	c.finalFlush(t)
	c.logger.Info("partition stopped", "group", c.cfg.Group, "partition", p)
}

// startPosition loads the partition's checkpoint, retrying store failures.
func (c *Consumer) startPosition(t *tracker) (stream.StartPosition, bool) {
	for {
		pos, found, err := c.store.Get(c.readCtx, c.cfg.Group, t.partition)
		if err == nil {
			if !found {
				return c.cfg.ColdStart, true
			}
			t.restore(pos)
			return stream.After(pos), true
		}
		if c.readCtx.Err() != nil {
			return stream.StartPosition{}, false
		}
		c.count(func(s *Stats) { s.CheckpointFailures++ })
		c.logger.Warn("checkpoint read failed", "partition", t.partition, "error", err)
		c.report(&CheckpointStoreError{Op: "get", Group: c.cfg.Group, Partition: t.partition, Err: err})
		if !sleep(c.readCtx, c.cfg.ReadErrorBackoff) {
			return stream.StartPosition{}, false
		}
	}
}

// open opens the partition reader, retrying transport failures.
func (c *Consumer) open(p int, start stream.StartPosition) (stream.Reader, bool) {
	for {
		r, err := c.sub.Open(c.readCtx, c.cfg.Group, p, start)
		if err == nil {
			return r, true
		}
		if c.readCtx.Err() != nil {
			return nil, false
		}
		if errors.Is(err, stream.ErrOwnershipLost) || errors.Is(err, stream.ErrClosed) {
			c.count(func(s *Stats) { s.StreamErrors++ })
			c.logger.Warn("partition unavailable", "group", c.cfg.Group, "partition", p, "error", err)
			c.report(&StreamError{Partition: p, Err: fmt.Errorf("open reader: %w", err)})
			return nil, false
		}
		c.count(func(s *Stats) { s.StreamErrors++ })
		c.report(&StreamError{Partition: p, Err: fmt.Errorf("open reader: %w", err)})
		if !sleep(c.readCtx, c.cfg.ReadErrorBackoff) {
			return nil, false
		}
	}
}

// process decodes and handles one record. It returns false when the record
// was not processed because the consumer is stopping.
func (c *Consumer) process(rec stream.Record) bool {
	for {
		ev, err := event.Decode(rec.Data)
		if err == nil {
			return c.handle(rec, ev)
		}

		perr := &PoisonEventError{Partition: rec.Partition, Offset: rec.Offset, Err: err}
		c.count(func(s *Stats) { s.Poison++ })
		c.logger.Warn("poison event",
			"partition", rec.Partition,
			"offset", rec.Offset,
			"policy", c.cfg.PoisonPolicy,
			"error", err,
		)
		c.report(perr)

		if c.cfg.PoisonPolicy == PoisonSkip {
			return true
		}
		if !sleep(c.readCtx, c.cfg.HandlerRetryBackoff) {
			return false
		}
	}
}

func (c *Consumer) handle(rec stream.Record, ev event.TradeEvent) bool {
	d := Delivery{
		Event:      ev,
		Partition:  rec.Partition,
		Offset:     rec.Offset,
		EnqueuedAt: rec.EnqueuedAt,
	}
	for attempt := 1; ; attempt++ {
		err := c.handler.OnEvent(c.runCtx, d)
		if err == nil {
			c.count(func(s *Stats) { s.Handled++ })
			return true
		}
		if c.runCtx.Err() != nil {
			return false
		}

		c.count(func(s *Stats) { s.HandlerFailures++ })
		c.logger.Warn("handler failed",
			"partition", rec.Partition,
			"offset", rec.Offset,
			"event_id", ev.EventID,
			"attempt", attempt,
			"error", err,
		)
		c.report(&HandlerError{
			Partition: rec.Partition,
			Offset:    rec.Offset,
			EventID:   ev.EventID,
			Attempt:   attempt,
			Err:       err,
		})
		if !sleep(c.readCtx, c.cfg.HandlerRetryBackoff) {
			return false
		}
	}
}

// flushLoop flushes every partition on the checkpoint interval until Stop
// or until every partition loop has ended.
func (c *Consumer) flushLoop(trackers map[int]*tracker, stop <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.CheckpointInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.readCtx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			for _, t := range trackers {
				ctx, cancel := context.WithTimeout(c.runCtx, c.cfg.FlushTimeout)
				c.flush(ctx, t)
				cancel()
			}
		}
	}
}

// finalFlush persists the partition's progress on the way out, unless the
// consumer was aborted.
func (c *Consumer) finalFlush(t *tracker) {
	if c.runCtx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.runCtx, c.cfg.FlushTimeout)
	defer cancel()
	c.flush(ctx, t)
}

// flush writes the partition's processed position if it moved. A failure
// leaves the in-memory position untouched so the next trigger retries it.
func (c *Consumer) flush(ctx context.Context, t *tracker) {
	t.flushMu.Lock()
	defer t.flushMu.Unlock()

	pos, seq, ok := t.pending()
	if !ok || ctx.Err() != nil {
		return
	}

	if err := c.store.Put(ctx, c.cfg.Group, t.partition, pos); err != nil {
		if c.runCtx.Err() != nil {
			return
		}
		c.count(func(s *Stats) { s.CheckpointFailures++ })
		c.logger.Warn("checkpoint write failed",
			"partition", t.partition,
			"position", pos,
			"error", err,
		)
		c.report(&CheckpointStoreError{
			Op:        "put",
			Group:     c.cfg.Group,
			Partition: t.partition,
			Position:  pos,
			Err:       err,
		})
		return
	}

	t.markFlushed(pos, seq)
	c.count(func(s *Stats) { s.CheckpointFlushes++ })
	c.logger.Debug("checkpoint flushed", "partition", t.partition, "position", pos)
}

// sleep waits d or until ctx is done, reporting whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
