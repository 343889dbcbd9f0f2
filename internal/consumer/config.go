package consumer

import (
	"fmt"
	"strings"
	"time"

	"github.com/rickgao/trade-events/internal/stream"
)

// PoisonPolicy decides what happens to a record that fails to decode.
type PoisonPolicy int

const (
	// PoisonSkip reports the record and moves past it.
	PoisonSkip PoisonPolicy = iota
	// PoisonBlock reports the record and keeps the partition on it.
	PoisonBlock
)

func (p PoisonPolicy) String() string {
	if p == PoisonBlock {
		return "block"
	}
	return "skip"
}

// ParsePoisonPolicy parses "skip" or "block".
func ParsePoisonPolicy(s string) (PoisonPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "skip":
		return PoisonSkip, nil
	case "block":
		return PoisonBlock, nil
	default:
		return 0, fmt.Errorf("unknown poison policy %q (want skip or block)", s)
	}
}

// Config holds consumer configuration.
type Config struct {
	Group               string
	ColdStart           stream.StartPosition // where a partition without a checkpoint begins
	PoisonPolicy        PoisonPolicy
	CheckpointInterval  time.Duration // flush cadence for all partitions
	CheckpointBatchSize int           // flush a partition after this many processed events
	FlushTimeout        time.Duration // bound on each partition's final flush
	HandlerRetryBackoff time.Duration
	ReadErrorBackoff    time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Group:               "$Default",
		ColdStart:           stream.Earliest(),
		PoisonPolicy:        PoisonSkip,
		CheckpointInterval:  5 * time.Second,
		CheckpointBatchSize: 100,
		FlushTimeout:        5 * time.Second,
		HandlerRetryBackoff: time.Second,
		ReadErrorBackoff:    time.Second,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Group == "" {
		c.Group = d.Group
	}
	if c.CheckpointInterval <= 0 {
		c.CheckpointInterval = d.CheckpointInterval
	}
	if c.CheckpointBatchSize < 1 {
		c.CheckpointBatchSize = d.CheckpointBatchSize
	}
	if c.FlushTimeout <= 0 {
		c.FlushTimeout = d.FlushTimeout
	}
	if c.HandlerRetryBackoff < 0 {
		c.HandlerRetryBackoff = 0
	}
	if c.ReadErrorBackoff < 0 {
		c.ReadErrorBackoff = 0
	}
}
