// Command trade-publisher publishes trade-executed events.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"

	"github.com/rickgao/trade-events/internal/bootstrap"
	"github.com/rickgao/trade-events/internal/config"
	"github.com/rickgao/trade-events/internal/logging"
	"github.com/rickgao/trade-events/internal/producer"
	"github.com/rickgao/trade-events/internal/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "trade-publisher:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "configs/trade-events.local.yaml", "path to config file")
	ticker := flag.String("ticker", "", "ticker symbol")
	priceStr := flag.String("price", "", "execution price")
	sharesStr := flag.String("shares", "1", "number of shares, fractional allowed")
	broker := flag.String("broker", "", "broker id")
	correlation := flag.String("correlation", "", "correlation id")
	count := flag.Int("count", 1, "number of events to publish")
	flag.Parse()

	price, err := parseDecimal("price", *priceStr)
	if err != nil {
		return err
	}
	shares, err := parseDecimal("shares", *sharesStr)
	if err != nil {
		return err
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Close()

	logger.Info("starting trade publisher",
		"version", version.Version,
		"instance_id", cfg.Instance.ID,
		"transport", cfg.Stream.Transport,
		"stream", cfg.Stream.Name,
	)
	if cfg.Stream.Transport == config.TransportMemory {
		logger.Warn("memory transport is process-local; published events are not visible to other processes")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	transport, closers, err := bootstrap.OpenTransport(ctx, cfg.Stream, cfg.Instance.ID, logger.Logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closers.Close(); err != nil {
			logger.Error("failed to close transport", "error", err)
		}
	}()

	p := producer.New(bootstrap.ProducerConfig(cfg.Producer), transport, logger.Logger)

	for i := 0; i < *count; i++ {
		ack, err := p.CreateAndPublish(ctx, *ticker, price, shares, *broker, *correlation)
		if err != nil {
			return fmt.Errorf("publish %d of %d: %w", i+1, *count, err)
		}
		logger.Info("trade published",
			"event_id", ack.EventID,
			"trade_id", ack.TradeID,
			"ticker", *ticker,
			"partition", ack.Partition,
			"size", ack.Size,
		)
	}

	stats := p.Stats()
	logger.Info("trade publisher finished",
		"published", stats.Published,
		"bytes", stats.BytesPublished,
	)
	return nil
}

func parseDecimal(name, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid -%s %q: %w", name, s, err)
	}
	return d, nil
}
