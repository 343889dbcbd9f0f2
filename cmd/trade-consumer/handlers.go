package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/rickgao/trade-events/internal/consumer"
)

// tradeLogger logs one line per trade and every consumer error.
type tradeLogger struct {
	logger *slog.Logger
}

func newTradeLogger(logger *slog.Logger) *tradeLogger {
	return &tradeLogger{logger: logger.With("component", "trades")}
}

func (h *tradeLogger) OnEvent(_ context.Context, d consumer.Delivery) error {
	det := d.Event.Details
	h.logger.Info("New trade for "+det.Ticker+" at "+det.Price.String(),
		"event_id", d.Event.EventID,
		"trade_id", det.TradeID,
		"shares", det.Shares.String(),
		"broker_id", det.BrokerID,
		"correlation_id", d.Event.Metadata.CorrelationID,
		"partition", d.Partition,
		"offset", d.Offset,
	)
	return nil
}

func (h *tradeLogger) OnError(_ context.Context, err error) {
	attrs := []any{"error", err}

	var poison *consumer.PoisonEventError
	var handlerErr *consumer.HandlerError
	var storeErr *consumer.CheckpointStoreError
	var streamErr *consumer.StreamError
	switch {
	case errors.As(err, &poison):
		attrs = append(attrs, "kind", "poison", "partition", poison.Partition, "offset", poison.Offset)
	case errors.As(err, &handlerErr):
		attrs = append(attrs, "kind", "handler", "partition", handlerErr.Partition, "offset", handlerErr.Offset, "attempt", handlerErr.Attempt)
	case errors.As(err, &storeErr):
		attrs = append(attrs, "kind", "checkpoint", "op", storeErr.Op, "partition", storeErr.Partition)
	case errors.As(err, &streamErr):
		attrs = append(attrs, "kind", "stream", "partition", streamErr.Partition)
	}
	h.logger.Error("consumer error", attrs...)
}
