package checkpoint

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_GetPut(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	_, found, err := s.Get(ctx, "g", 0)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Put(ctx, "g", 0, 7))
	pos, found, err := s.Get(ctx, "g", 0)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(7), pos)

	_, found, _ = s.Get(ctx, "other", 0)
	assert.False(t, found, "groups are isolated")
}

func TestMemory_ConcurrentWritersOnDistinctKeys(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := int64(0); i < 200; i++ {
				_ = s.Put(ctx, "g", p, i)
			}
		}(p)
	}
	wg.Wait()

	for p := 0; p < 8; p++ {
		pos, found, err := s.Get(ctx, "g", p)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, int64(199), pos)
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "$Default/3", Key("$Default", 3))
}
