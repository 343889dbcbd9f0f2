package fanout

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_PushPopBatch(t *testing.T) {
	q := newQueue[int](10, 100)

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Push(i))
	}
	assert.Equal(t, 5, q.Len())

	items, ok := q.PopBatch(3)
	require.True(t, ok)
	assert.Equal(t, []int{0, 1, 2}, items)

	items, ok = q.PopBatch(0)
	require.True(t, ok)
	assert.Equal(t, []int{3, 4}, items)
	assert.Equal(t, 0, q.Len())
}

func TestQueue_GrowAt70Percent(t *testing.T) {
	q := newQueue[int](10, 100)

	for i := 0; i < 6; i++ {
		require.NoError(t, q.Push(i))
	}
	assert.Equal(t, 10, q.Stats().Capacity)

	// 7th item reaches the 70% threshold
	require.NoError(t, q.Push(6))
	stats := q.Stats()
	assert.Equal(t, 20, stats.Capacity)
	assert.Equal(t, 1, stats.Resizes)

	items, ok := q.PopBatch(0)
	require.True(t, ok)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6}, items)
}

func TestQueue_FullAtMaxCapacity(t *testing.T) {
	q := newQueue[int](2, 4)

	for i := 0; i < 4; i++ {
		require.NoError(t, q.Push(i))
	}
	assert.ErrorIs(t, q.Push(4), ErrQueueFull)
	assert.Equal(t, 4, q.Stats().Capacity)

	items, ok := q.PopBatch(1)
	require.True(t, ok)
	assert.Equal(t, []int{0}, items)
	assert.NoError(t, q.Push(4))
}

func TestQueue_WrapAroundGrow(t *testing.T) {
	q := newQueue[int](4, 16)

	require.NoError(t, q.Push(1))
	require.NoError(t, q.Push(2))
	_, _ = q.PopBatch(2)

	// head and tail now sit mid-buffer; growing must preserve order
	for i := 10; i < 16; i++ {
		require.NoError(t, q.Push(i))
	}
	items, ok := q.PopBatch(0)
	require.True(t, ok)
	assert.Equal(t, []int{10, 11, 12, 13, 14, 15}, items)
}

func TestQueue_PopBlocksUntilPush(t *testing.T) {
	q := newQueue[string](4, 4)

	got := make(chan []string, 1)
	go func() {
		items, _ := q.PopBatch(0)
		got <- items
	}()

	select {
	case <-got:
		t.Fatal("PopBatch returned before any push")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, q.Push("a"))
	select {
	case items := <-got:
		assert.Equal(t, []string{"a"}, items)
	case <-time.After(time.Second):
		t.Fatal("PopBatch did not wake up")
	}
}

func TestQueue_CloseDrainsThenStops(t *testing.T) {
	q := newQueue[int](4, 4)
	require.NoError(t, q.Push(1))
	q.Close()

	assert.ErrorIs(t, q.Push(2), ErrQueueClosed)

	items, ok := q.PopBatch(0)
	require.True(t, ok)
	assert.Equal(t, []int{1}, items)

	_, ok = q.PopBatch(0)
	assert.False(t, ok)
}

func TestQueue_CloseUnblocksPop(t *testing.T) {
	q := newQueue[int](4, 4)

	done := make(chan bool, 1)
	go func() {
		_, ok := q.PopBatch(0)
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Close did not unblock PopBatch")
	}
}

func TestQueue_ConcurrentPushPop(t *testing.T) {
	const n = 1000
	q := newQueue[int](8, n)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			require.NoError(t, q.Push(i))
		}
		q.Close()
	}()

	var got []int
	for {
		items, ok := q.PopBatch(16)
		if !ok {
			break
		}
		got = append(got, items...)
	}
	wg.Wait()

	require.Len(t, got, n)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
	stats := q.Stats()
	assert.Equal(t, int64(n), stats.Pushed)
	assert.Equal(t, int64(n), stats.Popped)
}

func TestNewQueue_MinCapacity(t *testing.T) {
	q := newQueue[int](0, 0)
	assert.Equal(t, 1, q.Stats().Capacity)
	require.NoError(t, q.Push(1))
	assert.ErrorIs(t, q.Push(2), ErrQueueFull)
}
