package bootstrap

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/trade-events/internal/checkpoint"
	"github.com/rickgao/trade-events/internal/checkpoint/badgerstore"
	"github.com/rickgao/trade-events/internal/checkpoint/sqlitestore"
	"github.com/rickgao/trade-events/internal/config"
	"github.com/rickgao/trade-events/internal/consumer"
	"github.com/rickgao/trade-events/internal/stream"
	"github.com/rickgao/trade-events/internal/stream/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenTransport_Memory(t *testing.T) {
	tr, closers, err := OpenTransport(context.Background(), config.StreamConfig{
		Transport:     config.TransportMemory,
		Partitions:    3,
		MaxBatchBytes: 4096,
	}, "member-1", testLogger())
	require.NoError(t, err)
	defer closers.Close()

	require.IsType(t, &memory.Stream{}, tr)
	assert.Equal(t, 3, tr.Partitions())
	assert.Equal(t, 4096, tr.MaxBatchBytes())

	parts, err := tr.Claim(context.Background(), "g")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, parts)
}

func TestOpenTransport_Unknown(t *testing.T) {
	_, _, err := OpenTransport(context.Background(), config.StreamConfig{Transport: "kafka"}, "m", testLogger())
	assert.ErrorContains(t, err, `unknown stream transport "kafka"`)
}

func TestOpenStore_Memory(t *testing.T) {
	store, closers, err := OpenStore(context.Background(), config.CheckpointConfig{Store: config.StoreMemory}, testLogger())
	require.NoError(t, err)
	defer closers.Close()
	assert.IsType(t, &checkpoint.Memory{}, store)
}

func TestOpenStore_SQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "checkpoints.db")

	store, closers, err := OpenStore(ctx, config.CheckpointConfig{
		Store:  config.StoreSQLite,
		SQLite: config.PathConfig{Path: path},
	}, testLogger())
	require.NoError(t, err)
	require.IsType(t, &sqlitestore.Store{}, store)

	require.NoError(t, store.Put(ctx, "g", 0, 42))
	require.NoError(t, closers.Close())

	// Reopen and read back.
	store, closers, err = OpenStore(ctx, config.CheckpointConfig{
		Store:  config.StoreSQLite,
		SQLite: config.PathConfig{Path: path},
	}, testLogger())
	require.NoError(t, err)
	defer closers.Close()

	pos, ok, err := store.Get(ctx, "g", 0)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(42), pos)
}

func TestOpenStore_Badger(t *testing.T) {
	ctx := context.Background()
	store, closers, err := OpenStore(ctx, config.CheckpointConfig{
		Store:  config.StoreBadger,
		Badger: config.PathConfig{Path: filepath.Join(t.TempDir(), "badger")},
	}, testLogger())
	require.NoError(t, err)
	defer closers.Close()
	require.IsType(t, &badgerstore.Store{}, store)

	require.NoError(t, store.Put(ctx, "g", 1, 7))
	pos, ok, err := store.Get(ctx, "g", 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(7), pos)
}

func TestOpenStore_Unknown(t *testing.T) {
	_, _, err := OpenStore(context.Background(), config.CheckpointConfig{Store: "etcd"}, testLogger())
	assert.ErrorContains(t, err, `unknown checkpoint store "etcd"`)
}

func TestClosers_ReverseOrderAndJoin(t *testing.T) {
	var order []int
	errA := errors.New("a")
	errC := errors.New("c")

	var c Closers
	c.add(closerFunc(func() error { order = append(order, 1); return errA }))
	c.addFunc(func() { order = append(order, 2) })
	c.add(closerFunc(func() error { order = append(order, 3); return errC }))

	err := c.Close()
	assert.Equal(t, []int{3, 2, 1}, order)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errC)

	assert.NoError(t, Closers(nil).Close())
}

func TestConsumerConfig(t *testing.T) {
	cfg, err := ConsumerConfig(config.ConsumerConfig{
		Group:               "$Default",
		StartPosition:       "latest",
		PoisonPolicy:        "block",
		CheckpointInterval:  2 * time.Second,
		CheckpointBatchSize: 10,
		FlushTimeout:        3 * time.Second,
		HandlerRetryBackoff: time.Millisecond,
		ReadErrorBackoff:    5 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.Equal(t, "$Default", cfg.Group)
	assert.Equal(t, stream.Latest(), cfg.ColdStart)
	assert.Equal(t, consumer.PoisonBlock, cfg.PoisonPolicy)
	assert.Equal(t, 2*time.Second, cfg.CheckpointInterval)
	assert.Equal(t, 10, cfg.CheckpointBatchSize)
	assert.Equal(t, 3*time.Second, cfg.FlushTimeout)
	assert.Equal(t, time.Millisecond, cfg.HandlerRetryBackoff)
	assert.Equal(t, 5*time.Millisecond, cfg.ReadErrorBackoff)

	_, err = ConsumerConfig(config.ConsumerConfig{StartPosition: "middle"})
	assert.Error(t, err)

	_, err = ConsumerConfig(config.ConsumerConfig{PoisonPolicy: "explode"})
	assert.Error(t, err)
}

func TestProducerAndFanoutConfig(t *testing.T) {
	assert.Equal(t, 3*time.Second, ProducerConfig(config.ProducerConfig{PublishTimeout: 3 * time.Second}).PublishTimeout)

	f := FanoutConfig(config.FanoutConfig{
		WriteTimeout: time.Second,
		PingInterval: 2 * time.Second,
		ClientBuffer: 8,
	})
	assert.Equal(t, time.Second, f.WriteTimeout)
	assert.Equal(t, 2*time.Second, f.PingInterval)
	assert.Equal(t, 8, f.ClientBuffer)
}
