package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultTransport           = TransportMemory
	DefaultStreamName          = "trade-events"
	DefaultPartitions          = 4
	DefaultMaxBatchBytes       = 1 << 20
	DefaultRedisLeaseTTL       = 15 * time.Second
	DefaultRedisBlockTimeout   = 2 * time.Second
	DefaultRabbitPrefetch      = 100
	DefaultRabbitMaxLength     = 2 << 30
	DefaultConsumerGroup       = "$Default"
	DefaultStartPosition       = "earliest"
	DefaultPoisonPolicy        = "skip"
	DefaultCheckpointInterval  = 5 * time.Second
	DefaultCheckpointBatchSize = 100
	DefaultFlushTimeout        = 5 * time.Second
	DefaultHandlerRetryBackoff = 1 * time.Second
	DefaultReadErrorBackoff    = 1 * time.Second
	DefaultStore               = StoreMemory
	DefaultDBPort              = 5432
	DefaultDBSSLMode           = "prefer"
	DefaultMaxConns            = 4
	DefaultMinConns            = 1
	DefaultSQLitePath          = "data/checkpoints.db"
	DefaultBadgerPath          = "data/checkpoints"
	DefaultRedisKeyPrefix      = "trade-events:checkpoints:"
	DefaultLogLevel            = "info"
	DefaultLogFormat           = "text"
	DefaultLogMaxSizeMB        = 100
	DefaultLogMaxBackups       = 5
	DefaultLogMaxAgeDays       = 28
	DefaultHealthPort          = 8080
	DefaultFanoutPath          = "/trades"
	DefaultFanoutWriteTimeout  = 10 * time.Second
	DefaultFanoutPingInterval  = 30 * time.Second
	DefaultFanoutClientBuffer  = 256
)

func (c *Config) applyDefaults() {
	// Stream defaults
	if c.Stream.Transport == "" {
		c.Stream.Transport = DefaultTransport
	}
	if c.Stream.Name == "" {
		c.Stream.Name = DefaultStreamName
	}
	if c.Stream.Partitions == 0 {
		c.Stream.Partitions = DefaultPartitions
	}
	if c.Stream.MaxBatchBytes == 0 {
		c.Stream.MaxBatchBytes = DefaultMaxBatchBytes
	}
	if c.Stream.Redis.LeaseTTL == 0 {
		c.Stream.Redis.LeaseTTL = DefaultRedisLeaseTTL
	}
	if c.Stream.Redis.BlockTimeout == 0 {
		c.Stream.Redis.BlockTimeout = DefaultRedisBlockTimeout
	}
	if c.Stream.RabbitMQ.Prefetch == 0 {
		c.Stream.RabbitMQ.Prefetch = DefaultRabbitPrefetch
	}
	if c.Stream.RabbitMQ.MaxLengthBytes == 0 {
		c.Stream.RabbitMQ.MaxLengthBytes = DefaultRabbitMaxLength
	}

	// Consumer defaults
	if c.Consumer.Group == "" {
		c.Consumer.Group = DefaultConsumerGroup
	}
	if c.Consumer.StartPosition == "" {
		c.Consumer.StartPosition = DefaultStartPosition
	}
	if c.Consumer.PoisonPolicy == "" {
		c.Consumer.PoisonPolicy = DefaultPoisonPolicy
	}
	if c.Consumer.CheckpointInterval == 0 {
		c.Consumer.CheckpointInterval = DefaultCheckpointInterval
	}
	if c.Consumer.CheckpointBatchSize == 0 {
		c.Consumer.CheckpointBatchSize = DefaultCheckpointBatchSize
	}
	if c.Consumer.FlushTimeout == 0 {
		c.Consumer.FlushTimeout = DefaultFlushTimeout
	}
	if c.Consumer.HandlerRetryBackoff == 0 {
		c.Consumer.HandlerRetryBackoff = DefaultHandlerRetryBackoff
	}
	if c.Consumer.ReadErrorBackoff == 0 {
		c.Consumer.ReadErrorBackoff = DefaultReadErrorBackoff
	}

	// Checkpoint defaults
	if c.Checkpoint.Store == "" {
		c.Checkpoint.Store = DefaultStore
	}
	applyDBDefaults(&c.Checkpoint.Postgres)
	if c.Checkpoint.SQLite.Path == "" {
		c.Checkpoint.SQLite.Path = DefaultSQLitePath
	}
	if c.Checkpoint.Badger.Path == "" {
		c.Checkpoint.Badger.Path = DefaultBadgerPath
	}
	if c.Checkpoint.Redis.KeyPrefix == "" {
		c.Checkpoint.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = DefaultLogMaxBackups
	}
	if c.Logging.MaxAgeDays == 0 {
		c.Logging.MaxAgeDays = DefaultLogMaxAgeDays
	}

	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
	}

	// Fanout defaults
	if c.Fanout.Path == "" {
		c.Fanout.Path = DefaultFanoutPath
	}
	if c.Fanout.WriteTimeout == 0 {
		c.Fanout.WriteTimeout = DefaultFanoutWriteTimeout
	}
	if c.Fanout.PingInterval == 0 {
		c.Fanout.PingInterval = DefaultFanoutPingInterval
	}
	if c.Fanout.ClientBuffer == 0 {
		c.Fanout.ClientBuffer = DefaultFanoutClientBuffer
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
