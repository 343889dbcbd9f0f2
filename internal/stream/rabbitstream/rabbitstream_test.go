package rabbitstream

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/trade-events/internal/stream"
)

func TestQueueName(t *testing.T) {
	assert.Equal(t, "trade-events.0", QueueName("trade-events", 0))
	assert.Equal(t, "trade-events.11", QueueName("trade-events", 11))
}

func TestAllPartitions(t *testing.T) {
	assert.Equal(t, []int{0, 1, 2}, allPartitions(3))
	assert.Empty(t, allPartitions(0))
}

func TestConsumeOffset(t *testing.T) {
	tests := []struct {
		name  string
		start stream.StartPosition
		want  any
	}{
		{"earliest", stream.Earliest(), "first"},
		{"latest", stream.Latest(), "next"},
		{"after", stream.After(41), int64(42)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ConsumeOffset(tt.start))
		})
	}
}

func TestOffsetFromHeaders(t *testing.T) {
	tests := []struct {
		name    string
		headers amqp.Table
		want    int64
		wantErr bool
	}{
		{"int64", amqp.Table{"x-stream-offset": int64(7)}, 7, false},
		{"int32", amqp.Table{"x-stream-offset": int32(8)}, 8, false},
		{"missing", amqp.Table{}, 0, true},
		{"wrong type", amqp.Table{"x-stream-offset": "9"}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := OffsetFromHeaders(tt.headers)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestStream_RabbitMQ runs against a real broker when
// TRADE_EVENTS_TEST_RABBITMQ_URL is set.
func TestStream_RabbitMQ(t *testing.T) {
	url := os.Getenv("TRADE_EVENTS_TEST_RABBITMQ_URL")
	if url == "" {
		t.Skip("TRADE_EVENTS_TEST_RABBITMQ_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	s, err := Dial(Config{
		URL:           url,
		Name:          "test-" + uuid.NewString(),
		Partitions:    2,
		MaxBatchBytes: 1 << 20,
	}, nil)
	require.NoError(t, err)
	defer s.Close()

	b := stream.NewBatch(0, "AAPL", s.MaxBatchBytes())
	require.True(t, b.TryAdd([]byte(`{"n":1}`)))
	require.True(t, b.TryAdd([]byte(`{"n":2}`)))
	require.NoError(t, s.Send(ctx, b))

	owned, err := s.Claim(ctx, "g")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, owned)

	r, err := s.Open(ctx, "g", 0, stream.Earliest())
	require.NoError(t, err)
	first, err := r.Read(ctx)
	require.NoError(t, err)
	second, err := r.Read(ctx)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	assert.Equal(t, `{"n":1}`, string(first.Data))
	assert.Equal(t, `{"n":2}`, string(second.Data))
	assert.Greater(t, second.Offset, first.Offset)

	resumed, err := s.Open(ctx, "g", 0, stream.After(first.Offset))
	require.NoError(t, err)
	defer resumed.Close()
	rec, err := resumed.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.Offset, rec.Offset)
}
