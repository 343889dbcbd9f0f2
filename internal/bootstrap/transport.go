package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/rickgao/trade-events/internal/config"
	"github.com/rickgao/trade-events/internal/stream"
	"github.com/rickgao/trade-events/internal/stream/memory"
	"github.com/rickgao/trade-events/internal/stream/rabbitstream"
	"github.com/rickgao/trade-events/internal/stream/redisstream"
)

// Transport is a stream that can both publish and subscribe.
type Transport interface {
	stream.Publisher
	stream.Subscriber
}

// OpenTransport connects the configured stream transport. memberID names
// this process in partition leases.
func OpenTransport(ctx context.Context, cfg config.StreamConfig, memberID string, logger *slog.Logger) (Transport, Closers, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var closers Closers
	switch cfg.Transport {
	case config.TransportMemory:
		s := memory.New(memory.Config{
			Partitions:    cfg.Partitions,
			MaxBatchBytes: cfg.MaxBatchBytes,
		})
		closers.add(s)
		return s, closers, nil

	case config.TransportRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers.add(client)
		if err := client.Ping(ctx).Err(); err != nil {
			closers.Close()
			return nil, nil, fmt.Errorf("ping redis %s: %w", cfg.Redis.Addr, err)
		}
		s := redisstream.New(client, redisstream.Config{
			Name:          cfg.Name,
			Partitions:    cfg.Partitions,
			MaxBatchBytes: cfg.MaxBatchBytes,
			MemberID:      memberID,
			LeaseTTL:      cfg.Redis.LeaseTTL,
			BlockTimeout:  cfg.Redis.BlockTimeout,
		}, logger)
		closers.add(s)
		return s, closers, nil

	case config.TransportRabbitMQ:
		s, err := rabbitstream.Dial(rabbitstream.Config{
			URL:            cfg.RabbitMQ.URL,
			Name:           cfg.Name,
			Partitions:     cfg.Partitions,
			MaxBatchBytes:  cfg.MaxBatchBytes,
			Prefetch:       cfg.RabbitMQ.Prefetch,
			MaxLengthBytes: cfg.RabbitMQ.MaxLengthBytes,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("dial rabbitmq: %w", err)
		}
		closers.add(s)
		return s, closers, nil

	default:
		return nil, nil, fmt.Errorf("unknown stream transport %q", cfg.Transport)
	}
}
