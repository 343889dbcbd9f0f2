package config

import "time"

// Config is the root configuration shared by the publisher and consumer commands.
type Config struct {
	Instance   InstanceConfig   `yaml:"instance"`
	Stream     StreamConfig     `yaml:"stream"`
	Producer   ProducerConfig   `yaml:"producer"`
	Consumer   ConsumerConfig   `yaml:"consumer"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Logging    LoggingConfig    `yaml:"logging"`
	Health     HealthConfig     `yaml:"health"`
	Fanout     FanoutConfig     `yaml:"fanout"`
}

// InstanceConfig identifies this process within a consumer group.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// Stream transports.
const (
	TransportMemory   = "memory"
	TransportRedis    = "redis"
	TransportRabbitMQ = "rabbitmq"
)

// StreamConfig selects and configures the stream transport.
type StreamConfig struct {
	Transport     string         `yaml:"transport"` // memory, redis or rabbitmq
	Name          string         `yaml:"name"`
	Partitions    int            `yaml:"partitions"`
	MaxBatchBytes int            `yaml:"max_batch_bytes"`
	Redis         RedisConfig    `yaml:"redis"`
	RabbitMQ      RabbitMQConfig `yaml:"rabbitmq"`
}

// RedisConfig holds a Redis connection. LeaseTTL and BlockTimeout only apply
// to the stream transport.
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	LeaseTTL     time.Duration `yaml:"lease_ttl"`
	BlockTimeout time.Duration `yaml:"block_timeout"`
}

// RabbitMQConfig holds the stream-queue broker connection.
type RabbitMQConfig struct {
	URL            string `yaml:"url"`
	Prefetch       int    `yaml:"prefetch"`
	MaxLengthBytes int64  `yaml:"max_length_bytes"`
}

// ProducerConfig holds publisher settings.
type ProducerConfig struct {
	PublishTimeout time.Duration `yaml:"publish_timeout"` // 0 waits for the caller's context
}

// ConsumerConfig holds consumer group settings.
type ConsumerConfig struct {
	Group               string        `yaml:"group"`
	StartPosition       string        `yaml:"start_position"` // earliest or latest
	PoisonPolicy        string        `yaml:"poison_policy"`  // skip or block
	CheckpointInterval  time.Duration `yaml:"checkpoint_interval"`
	CheckpointBatchSize int           `yaml:"checkpoint_batch_size"`
	FlushTimeout        time.Duration `yaml:"flush_timeout"`
	HandlerRetryBackoff time.Duration `yaml:"handler_retry_backoff"`
	ReadErrorBackoff    time.Duration `yaml:"read_error_backoff"`
}

// Checkpoint stores.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreBadger   = "badger"
	StoreRedis    = "redis"
)

// CheckpointConfig selects and configures the checkpoint store.
type CheckpointConfig struct {
	Store    string           `yaml:"store"`
	Postgres DBConfig         `yaml:"postgres"`
	SQLite   PathConfig       `yaml:"sqlite"`
	Badger   PathConfig       `yaml:"badger"`
	Redis    RedisStoreConfig `yaml:"redis"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"ssl_mode"`
	ApplicationName string        `yaml:"application_name"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	MaxConns        int           `yaml:"max_conns"`
	MinConns        int           `yaml:"min_conns"`
}

// PathConfig locates an embedded database on disk.
type PathConfig struct {
	Path string `yaml:"path"`
}

// RedisStoreConfig holds the Redis checkpoint store connection.
type RedisStoreConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// LoggingConfig controls log level, format and optional rotated file output.
type LoggingConfig struct {
	Level      string `yaml:"level"`  // debug, info, warn, error
	Format     string `yaml:"format"` // text or json
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// HealthConfig holds the health endpoint settings.
type HealthConfig struct {
	Port int `yaml:"port"`
}

// FanoutConfig holds the WebSocket trade feed settings.
type FanoutConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Path         string        `yaml:"path"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	PingInterval time.Duration `yaml:"ping_interval"`
	ClientBuffer int           `yaml:"client_buffer"`
}
