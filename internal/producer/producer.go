package producer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rickgao/trade-events/internal/event"
	"github.com/rickgao/trade-events/internal/router"
	"github.com/rickgao/trade-events/internal/stream"
)

// Config holds producer settings.
type Config struct {
	// PublishTimeout bounds each send. Zero leaves the caller's context alone.
	PublishTimeout time.Duration
}

// Trade is an executed trade as recorded by the caller.
type Trade struct {
	ID       uuid.UUID
	Ticker   string
	Price    decimal.Decimal
	Shares   decimal.Decimal
	Time     time.Time
	BrokerID string
}

// Ack confirms that the broker stored an event.
type Ack struct {
	EventID   uuid.UUID
	TradeID   uuid.UUID
	Partition int
	Size      int // encoded bytes
}

// Stats counts publish outcomes.
type Stats struct {
	Published      int64
	BytesPublished int64
	Rejected       int64 // failed validation
	TooLarge       int64
	Failed         int64 // transport errors
}

// Producer publishes trade events.
type Producer struct {
	cfg    Config
	pub    stream.Publisher
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	stats Stats
}

// New creates a Producer sending through pub.
func New(cfg Config, pub stream.Publisher, logger *slog.Logger) *Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Producer{
		cfg:    cfg,
		pub:    pub,
		logger: logger,
		now:    time.Now,
	}
}

// CreateAndPublish records a trade executed now with a fresh trade id and
// publishes its event.
func (p *Producer) CreateAndPublish(
	ctx context.Context,
	ticker string,
	price, shares decimal.Decimal,
	brokerID, correlationID string,
) (Ack, error) {
	return p.PublishTrade(ctx, Trade{
		ID:       uuid.New(),
		Ticker:   ticker,
		Price:    price,
		Shares:   shares,
		Time:     p.now().UTC(),
		BrokerID: brokerID,
	}, correlationID)
}

// PublishTrade publishes the event for an already recorded trade. It blocks
// until the broker acknowledges the event or the send fails.
func (p *Producer) PublishTrade(ctx context.Context, t Trade, correlationID string) (Ack, error) {
	if err := validate(t); err != nil {
		p.count(func(s *Stats) { s.Rejected++ })
		return Ack{}, err
	}

	ev := event.NewTradeEvent(event.TradeDetails{
		TradeID:   t.ID,
		Ticker:    t.Ticker,
		Price:     t.Price,
		Shares:    t.Shares,
		TradeTime: t.Time,
		BrokerID:  t.BrokerID,
	}, correlationID, p.now())

	data, err := event.Encode(ev)
	if err != nil {
		return Ack{}, fmt.Errorf("encode event: %w", err)
	}

	key := ev.Metadata.PartitionKey
	partition, err := router.Route(key, p.pub.Partitions())
	if err != nil {
		p.count(func(s *Stats) { s.Failed++ })
		return Ack{}, &PublishError{EventID: ev.EventID, Partition: -1, Err: fmt.Errorf("route event: %w", err)}
	}

	batch := stream.NewBatch(partition, key, p.pub.MaxBatchBytes())
	if !batch.TryAdd(data) {
		p.count(func(s *Stats) { s.TooLarge++ })
		p.logger.Warn("event too large",
			"ticker", t.Ticker,
			"size", len(data),
			"limit", p.pub.MaxBatchBytes(),
		)
		return Ack{}, &EventTooLargeError{Size: len(data), Limit: p.pub.MaxBatchBytes()}
	}

	sendCtx := ctx
	if p.cfg.PublishTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, p.cfg.PublishTimeout)
		defer cancel()
	}

	if err := p.pub.Send(sendCtx, batch); err != nil {
		p.count(func(s *Stats) { s.Failed++ })
		p.logger.Error("publish failed",
			"event_id", ev.EventID,
			"partition", partition,
			"error", err,
		)
		return Ack{}, &PublishError{EventID: ev.EventID, Partition: partition, Err: err}
	}

	p.count(func(s *Stats) {
		s.Published++
		s.BytesPublished += int64(len(data))
	})
	p.logger.Debug("published trade event",
		"event_id", ev.EventID,
		"trade_id", t.ID,
		"ticker", t.Ticker,
		"partition", partition,
		"correlation_id", correlationID,
	)

	return Ack{
		EventID:   ev.EventID,
		TradeID:   t.ID,
		Partition: partition,
		Size:      len(data),
	}, nil
}

// Stats returns publish counters.
func (p *Producer) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func (p *Producer) count(f func(*Stats)) {
	p.mu.Lock()
	f(&p.stats)
	p.mu.Unlock()
}

func validate(t Trade) error {
	switch {
	case strings.TrimSpace(t.Ticker) == "":
		return &ValidationError{Field: "ticker", Reason: "is required"}
	case strings.TrimSpace(t.BrokerID) == "":
		return &ValidationError{Field: "broker_id", Reason: "is required"}
	case t.Price.Sign() <= 0:
		return &ValidationError{Field: "price", Reason: "must be positive"}
	case t.Shares.Sign() <= 0:
		return &ValidationError{Field: "shares", Reason: "must be positive"}
	case t.ID == uuid.Nil:
		return &ValidationError{Field: "trade_id", Reason: "is required"}
	case t.Time.IsZero():
		return &ValidationError{Field: "trade_time", Reason: "is required"}
	}
	return nil
}
