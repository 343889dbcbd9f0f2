package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if err := c.Stream.validate(); err != nil {
		return err
	}
	if err := c.Consumer.validate(); err != nil {
		return err
	}
	if err := c.Checkpoint.validate(); err != nil {
		return err
	}

	if c.Producer.PublishTimeout < 0 {
		return errors.New("producer.publish_timeout must be >= 0")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	if c.Health.Port < 1 || c.Health.Port > 65535 {
		return fmt.Errorf("health.port must be between 1 and 65535, got %d", c.Health.Port)
	}

	if c.Fanout.Enabled {
		if !strings.HasPrefix(c.Fanout.Path, "/") {
			return fmt.Errorf("fanout.path must start with /, got %q", c.Fanout.Path)
		}
		if c.Fanout.ClientBuffer < 1 {
			return errors.New("fanout.client_buffer must be >= 1")
		}
	}

	return nil
}

func (s *StreamConfig) validate() error {
	switch s.Transport {
	case TransportMemory:
	case TransportRedis:
		if s.Redis.Addr == "" {
			return errors.New("stream.redis.addr is required")
		}
	case TransportRabbitMQ:
		if s.RabbitMQ.URL == "" {
			return errors.New("stream.rabbitmq.url is required")
		}
		if s.RabbitMQ.Prefetch < 1 {
			return errors.New("stream.rabbitmq.prefetch must be >= 1")
		}
	default:
		return fmt.Errorf("stream.transport must be memory, redis or rabbitmq, got %q", s.Transport)
	}
	if s.Name == "" {
		return errors.New("stream.name is required")
	}
	if s.Partitions < 1 {
		return errors.New("stream.partitions must be >= 1")
	}
	if s.MaxBatchBytes < 1 {
		return errors.New("stream.max_batch_bytes must be >= 1")
	}
	return nil
}

func (c *ConsumerConfig) validate() error {
	if c.Group == "" {
		return errors.New("consumer.group is required")
	}
	switch strings.ToLower(c.StartPosition) {
	case "earliest", "latest":
	default:
		return fmt.Errorf("consumer.start_position must be earliest or latest, got %q", c.StartPosition)
	}
	switch strings.ToLower(c.PoisonPolicy) {
	case "skip", "block":
	default:
		return fmt.Errorf("consumer.poison_policy must be skip or block, got %q", c.PoisonPolicy)
	}
	if c.CheckpointBatchSize < 1 {
		return errors.New("consumer.checkpoint_batch_size must be >= 1")
	}
	if c.CheckpointInterval <= 0 {
		return errors.New("consumer.checkpoint_interval must be > 0")
	}
	if c.FlushTimeout <= 0 {
		return errors.New("consumer.flush_timeout must be > 0")
	}
	if c.HandlerRetryBackoff < 0 || c.ReadErrorBackoff < 0 {
		return errors.New("consumer backoffs must be >= 0")
	}
	return nil
}

func (c *CheckpointConfig) validate() error {
	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		return c.Postgres.validate("checkpoint.postgres")
	case StoreSQLite:
		if c.SQLite.Path == "" {
			return errors.New("checkpoint.sqlite.path is required")
		}
	case StoreBadger:
		if c.Badger.Path == "" {
			return errors.New("checkpoint.badger.path is required")
		}
	case StoreRedis:
		if c.Redis.Addr == "" {
			return errors.New("checkpoint.redis.addr is required")
		}
	default:
		return fmt.Errorf("checkpoint.store must be memory, postgres, sqlite, badger or redis, got %q", c.Store)
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
