package bootstrap

import (
	"github.com/rickgao/trade-events/internal/config"
	"github.com/rickgao/trade-events/internal/consumer"
	"github.com/rickgao/trade-events/internal/fanout"
	"github.com/rickgao/trade-events/internal/producer"
	"github.com/rickgao/trade-events/internal/stream"
)

// ProducerConfig maps the producer section.
func ProducerConfig(cfg config.ProducerConfig) producer.Config {
	return producer.Config{PublishTimeout: cfg.PublishTimeout}
}

// ConsumerConfig maps the consumer section, parsing its enum fields.
func ConsumerConfig(cfg config.ConsumerConfig) (consumer.Config, error) {
	start, err := stream.ParseColdStart(cfg.StartPosition)
	if err != nil {
		return consumer.Config{}, err
	}
	policy, err := consumer.ParsePoisonPolicy(cfg.PoisonPolicy)
	if err != nil {
		return consumer.Config{}, err
	}
	return consumer.Config{
		Group:               cfg.Group,
		ColdStart:           start,
		PoisonPolicy:        policy,
		CheckpointInterval:  cfg.CheckpointInterval,
		CheckpointBatchSize: cfg.CheckpointBatchSize,
		FlushTimeout:        cfg.FlushTimeout,
		HandlerRetryBackoff: cfg.HandlerRetryBackoff,
		ReadErrorBackoff:    cfg.ReadErrorBackoff,
	}, nil
}

// FanoutConfig maps the fanout section.
func FanoutConfig(cfg config.FanoutConfig) fanout.Config {
	return fanout.Config{
		WriteTimeout: cfg.WriteTimeout,
		PingInterval: cfg.PingInterval,
		ClientBuffer: cfg.ClientBuffer,
	}
}
