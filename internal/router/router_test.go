package router

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartitionFor_Deterministic(t *testing.T) {
	tickers := []string{"VOD.L", "BARC.L", "LLOY.L", "AAPL", "MSFT", "A"}

	for _, ticker := range tickers {
		first := PartitionFor(ticker, 8)
		for i := 0; i < 100; i++ {
			assert.Equal(t, first, PartitionFor(ticker, 8), "ticker %s moved partitions", ticker)
		}
	}
}

func TestPartitionFor_InRange(t *testing.T) {
	for _, n := range []int{1, 2, 3, 4, 16, 32} {
		for i := 0; i < 1000; i++ {
			p := PartitionFor(fmt.Sprintf("TICK%d", i), n)
			assert.GreaterOrEqual(t, p, 0)
			assert.Less(t, p, n)
		}
	}
}

func TestPartitionFor_SinglePartition(t *testing.T) {
	assert.Equal(t, 0, PartitionFor("anything", 1))
}

func TestPartitionFor_Spreads(t *testing.T) {
	const n = 4
	counts := make([]int, n)
	for i := 0; i < 4000; i++ {
		counts[PartitionFor(fmt.Sprintf("TICK%d", i), n)]++
	}
	for p, c := range counts {
		assert.Greater(t, c, 500, "partition %d underused: %v", p, counts)
	}
}

func TestPartitionFor_PanicsOnZeroPartitions(t *testing.T) {
	assert.Panics(t, func() { PartitionFor("X", 0) })
}

func TestRoute(t *testing.T) {
	_, err := Route("VOD.L", 0)
	assert.ErrorIs(t, err, ErrInvalidPartitions)

	_, err = Route("", 4)
	assert.ErrorIs(t, err, ErrEmptyKey)

	p, err := Route("VOD.L", 4)
	require.NoError(t, err)
	assert.Equal(t, PartitionFor("VOD.L", 4), p)
}
