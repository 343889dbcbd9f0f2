package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/rickgao/trade-events/internal/checkpoint"
	"github.com/rickgao/trade-events/internal/checkpoint/badgerstore"
	"github.com/rickgao/trade-events/internal/checkpoint/pgstore"
	"github.com/rickgao/trade-events/internal/checkpoint/redisstore"
	"github.com/rickgao/trade-events/internal/checkpoint/sqlitestore"
	"github.com/rickgao/trade-events/internal/config"
	"github.com/rickgao/trade-events/internal/database"
)

// OpenStore opens the configured checkpoint store, creating its schema
// where the backend needs one.
func OpenStore(ctx context.Context, cfg config.CheckpointConfig, logger *slog.Logger) (checkpoint.Store, Closers, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var closers Closers
	switch cfg.Store {
	case config.StoreMemory:
		logger.Warn("using in-memory checkpoint store; progress is lost on restart")
		return checkpoint.NewMemory(), closers, nil

	case config.StorePostgres:
		pool, err := database.Connect(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		closers.addFunc(pool.Close)
		store := pgstore.New(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			closers.Close()
			return nil, nil, err
		}
		logger.Info("checkpoint store ready",
			"store", cfg.Store,
			"host", cfg.Postgres.Host,
			"database", cfg.Postgres.Name,
		)
		return store, closers, nil

	case config.StoreSQLite:
		store, err := sqlitestore.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		closers.add(store)
		logger.Info("checkpoint store ready", "store", cfg.Store, "path", cfg.SQLite.Path)
		return store, closers, nil

	case config.StoreBadger:
		store, err := badgerstore.Open(cfg.Badger.Path)
		if err != nil {
			return nil, nil, err
		}
		closers.add(store)
		logger.Info("checkpoint store ready", "store", cfg.Store, "path", cfg.Badger.Path)
		return store, closers, nil

	case config.StoreRedis:
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
		logger.Info("checkpoint store ready", "store", cfg.Store, "addr", cfg.Redis.Addr)
		return redisstore.New(client, cfg.Redis.KeyPrefix), closers, nil

	default:
		return nil, nil, fmt.Errorf("unknown checkpoint store %q", cfg.Store)
	}
}
