package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/trade-events/internal/stream"
)

func send(t *testing.T, s *Stream, partition int, payloads ...string) {
	t.Helper()
	b := stream.NewBatch(partition, "k", s.MaxBatchBytes())
	for _, p := range payloads {
		require.True(t, b.TryAdd([]byte(p)))
	}
	require.NoError(t, s.Send(context.Background(), b))
}

func readN(t *testing.T, r stream.Reader, n int) []stream.Record {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	out := make([]stream.Record, 0, n)
	for i := 0; i < n; i++ {
		rec, err := r.Read(ctx)
		require.NoError(t, err)
		out = append(out, rec)
	}
	return out
}

func TestStream_SendAndReadInOrder(t *testing.T) {
	s := New(Config{Partitions: 2})
	send(t, s, 1, "a", "b")
	send(t, s, 1, "c")

	r, err := s.Open(context.Background(), "g", 1, stream.Earliest())
	require.NoError(t, err)
	defer r.Close()

	recs := readN(t, r, 3)
	for i, want := range []string{"a", "b", "c"} {
		assert.Equal(t, want, string(recs[i].Data))
		assert.Equal(t, int64(i), recs[i].Offset)
		assert.Equal(t, 1, recs[i].Partition)
	}
	assert.Empty(t, s.Records(0))

	stats := s.Stats()
	assert.Equal(t, int64(2), stats.Batches)
	assert.Equal(t, int64(3), stats.Events)
	assert.Equal(t, int64(3), stats.BytesSent)
}

func TestStream_OpenPositions(t *testing.T) {
	s := New(Config{Partitions: 1})
	send(t, s, 0, "a", "b", "c")

	after, err := s.Open(context.Background(), "g", 0, stream.After(0))
	require.NoError(t, err)
	assert.Equal(t, "b", string(readN(t, after, 1)[0].Data))

	latest, err := s.Open(context.Background(), "g", 0, stream.Latest())
	require.NoError(t, err)
	send(t, s, 0, "d")
	assert.Equal(t, "d", string(readN(t, latest, 1)[0].Data))
}

func TestStream_ReadBlocksUntilAppend(t *testing.T) {
	s := New(Config{Partitions: 1})
	r, err := s.Open(context.Background(), "g", 0, stream.Earliest())
	require.NoError(t, err)

	got := make(chan stream.Record, 1)
	go func() {
		rec, err := r.Read(context.Background())
		if err == nil {
			got <- rec
		}
	}()

	time.Sleep(20 * time.Millisecond)
	s.AppendRaw(0, []byte("late"))

	select {
	case rec := <-got:
		assert.Equal(t, "late", string(rec.Data))
	case <-time.After(time.Second):
		t.Fatal("read did not unblock")
	}
}

func TestStream_ReadHonoursContext(t *testing.T) {
	s := New(Config{Partitions: 1})
	r, err := s.Open(context.Background(), "g", 0, stream.Earliest())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = r.Read(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStream_FaultInjection(t *testing.T) {
	s := New(Config{Partitions: 1})
	boom := errors.New("broker unavailable")

	s.FailSends(boom)
	b := stream.NewBatch(0, "k", 0)
	b.TryAdd([]byte("x"))
	assert.ErrorIs(t, s.Send(context.Background(), b), boom)
	assert.Equal(t, int64(0), s.Stats().BytesSent)
	s.FailSends(nil)
	require.NoError(t, s.Send(context.Background(), b))

	r, err := s.Open(context.Background(), "g", 0, stream.Earliest())
	require.NoError(t, err)
	s.InjectReadError(0, boom)
	_, err = r.Read(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "x", string(readN(t, r, 1)[0].Data), "reads resume after a transient error")
}

func TestStream_Revoke(t *testing.T) {
	s := New(Config{Partitions: 3})
	r, err := s.Open(context.Background(), "g", 1, stream.Earliest())
	require.NoError(t, err)

	s.Revoke("g", 1)

	_, err = r.Read(context.Background())
	assert.ErrorIs(t, err, stream.ErrOwnershipLost)

	owned, err := s.Claim(context.Background(), "g")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, owned)

	other, err := s.Claim(context.Background(), "other")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, other)
}

func TestStream_PartitionOutOfRange(t *testing.T) {
	s := New(Config{Partitions: 1})
	b := stream.NewBatch(5, "k", 0)
	b.TryAdd([]byte("x"))
	assert.ErrorIs(t, s.Send(context.Background(), b), stream.ErrPartitionOutOfRange)

	_, err := s.Open(context.Background(), "g", 5, stream.Earliest())
	assert.ErrorIs(t, err, stream.ErrPartitionOutOfRange)
}

func TestStream_Close(t *testing.T) {
	s := New(Config{Partitions: 1})
	r, err := s.Open(context.Background(), "g", 0, stream.Earliest())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := r.Read(context.Background())
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, s.Close())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, stream.ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("read did not unblock on close")
	}
}
