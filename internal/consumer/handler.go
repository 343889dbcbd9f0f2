package consumer

import (
	"context"
	"time"

	"github.com/rickgao/trade-events/internal/event"
)

// Delivery is one decoded event together with its stream position.
type Delivery struct {
	Event      event.TradeEvent
	Partition  int
	Offset     int64
	EnqueuedAt time.Time
}

// Handler reacts to events and to errors the consumer reports.
type Handler interface {
	// OnEvent processes one event. Returning an error retries the same
	// event after a backoff; the partition does not advance meanwhile.
	OnEvent(ctx context.Context, d Delivery) error

	// OnError receives every error the consumer reports. It must not block
	// for long; it runs on the partition's goroutine.
	OnError(ctx context.Context, err error)
}

// HandlerFuncs adapts plain functions to Handler. Nil fields are no-ops.
type HandlerFuncs struct {
	Event func(ctx context.Context, d Delivery) error
	Error func(ctx context.Context, err error)
}

func (h HandlerFuncs) OnEvent(ctx context.Context, d Delivery) error {
	if h.Event == nil {
		return nil
	}
	return h.Event(ctx, d)
}

func (h HandlerFuncs) OnError(ctx context.Context, err error) {
	if h.Error != nil {
		h.Error(ctx, err)
	}
}

// Chain calls each handler's OnEvent in order, stopping at the first error,
// and forwards errors to all of them.
type Chain []Handler

func (c Chain) OnEvent(ctx context.Context, d Delivery) error {
	for _, h := range c {
		if err := h.OnEvent(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

func (c Chain) OnError(ctx context.Context, err error) {
	for _, h := range c {
		h.OnError(ctx, err)
	}
}
