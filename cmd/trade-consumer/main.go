// Command trade-consumer consumes trade-executed events for a consumer
// group, logs each trade, and optionally streams them to WebSocket clients.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/trade-events/internal/bootstrap"
	"github.com/rickgao/trade-events/internal/config"
	"github.com/rickgao/trade-events/internal/consumer"
	"github.com/rickgao/trade-events/internal/fanout"
	"github.com/rickgao/trade-events/internal/logging"
	"github.com/rickgao/trade-events/internal/version"
)

const (
	stopTimeout     = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "trade-consumer:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "configs/trade-events.local.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Close()

	logger.Info("starting trade consumer",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
		"instance_id", cfg.Instance.ID,
		"group", cfg.Consumer.Group,
		"transport", cfg.Stream.Transport,
		"checkpoint_store", cfg.Checkpoint.Store,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumerCfg, err := bootstrap.ConsumerConfig(cfg.Consumer)
	if err != nil {
		return err
	}

	transport, transportClosers, err := bootstrap.OpenTransport(ctx, cfg.Stream, cfg.Instance.ID, logger.Logger)
	if err != nil {
		return err
	}
	defer closeAll(logger, "transport", transportClosers)

	store, storeClosers, err := bootstrap.OpenStore(ctx, cfg.Checkpoint, logger.Logger)
	if err != nil {
		return err
	}
	defer closeAll(logger, "checkpoint store", storeClosers)

	handlers := consumer.Chain{newTradeLogger(logger.Logger)}

	var hub *fanout.Hub
	if cfg.Fanout.Enabled {
		hub = fanout.NewHub(bootstrap.FanoutConfig(cfg.Fanout), logger.Logger)
		handlers = append(handlers, hub)
	}

	c := consumer.New(consumerCfg, transport, store, logger.Logger)

	mux := http.NewServeMux()
	mux.Handle("/health", newHealthHandler(c, hub))
	if hub != nil {
		mux.Handle(cfg.Fanout.Path, hub)
	}
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Health.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("starting http server", "port", cfg.Health.Port, "fanout", cfg.Fanout.Enabled)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// The consumer outlives the signal context so Stop can drain it.
	runCtx, abort := context.WithCancel(context.Background())
	defer abort()

	if err := c.Start(runCtx, handlers); err != nil {
		shutdownServer(logger, server)
		return fmt.Errorf("start consumer: %w", err)
	}

	logger.Info("trade consumer running",
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Health.Port),
	)

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case <-c.Done():
		logger.Warn("consumer exited; all partition loops ended")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := c.Stop(stopCtx); err != nil {
		logger.Error("graceful stop failed; aborting", "error", err)
		abort()
	}

	if hub != nil {
		hub.Close()
	}
	shutdownServer(logger, server)

	stats := c.Stats()
	logger.Info("trade consumer stopped",
		"received", stats.Received,
		"handled", stats.Handled,
		"poison", stats.Poison,
		"checkpoint_flushes", stats.CheckpointFlushes,
	)
	return nil
}

func shutdownServer(logger *logging.Logger, server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("http server shutdown", "error", err)
	}
}

func closeAll(logger *logging.Logger, what string, closers bootstrap.Closers) {
	if err := closers.Close(); err != nil {
		logger.Error("failed to close "+what, "error", err)
	}
}
