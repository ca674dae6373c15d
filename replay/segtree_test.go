package replay

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func add(a, b float64) float64 { return a + b }

func TestSegmentTreeSum(t *testing.T) {
	s := newSegmentTree(6, add, 0)

	// Capacity pads to the next power of two; unwritten leaves stay 0
	require.Equal(t, 8, s.size)
	assert.Equal(t, 0.0, s.reduce(0, 6))

	values := []float64{3, 1, 4, 1, 5, 9}
	for i, v := range values {
		s.set(i, v)
	}

	assert.Equal(t, 23.0, s.reduce(0, 6))
	assert.Equal(t, 6.0, s.reduce(1, 4))
	assert.Equal(t, 4.0, s.reduce(2, 3))
	assert.Equal(t, 0.0, s.reduce(3, 3))
	for i, v := range values {
		assert.Equal(t, v, s.get(i))
	}
}

func TestSegmentTreeMin(t *testing.T) {
	s := newSegmentTree(4, math.Min, math.Inf(1))

	s.set(0, 3)
	s.set(1, 1)
	s.set(2, 4)
	s.set(3, 2)

	assert.Equal(t, 1.0, s.reduce(0, 4))
	assert.Equal(t, 2.0, s.reduce(2, 4))
	assert.Equal(t, 4.0, s.reduce(2, 3))

	// Overwriting the minimum refreshes the aggregates on the path to
	// the root
	s.set(1, 10)
	assert.Equal(t, 2.0, s.reduce(0, 4))
}

func TestPrefixIndex(t *testing.T) {
	s := newSegmentTree(4, add, 0)
	s.set(0, 1)
	s.set(1, 2)
	s.set(2, 3)
	s.set(3, 4)

	// Cumulative sums are 1, 3, 6, 10
	assert.Equal(t, 0, s.prefixIndex(0.0))
	assert.Equal(t, 0, s.prefixIndex(0.9))
	assert.Equal(t, 1, s.prefixIndex(1.0))
	assert.Equal(t, 1, s.prefixIndex(2.5))
	assert.Equal(t, 2, s.prefixIndex(3.0))
	assert.Equal(t, 3, s.prefixIndex(6.0))
	assert.Equal(t, 3, s.prefixIndex(9.9))
}

func TestPrefixIndexSkipsZeroLeaves(t *testing.T) {
	s := newSegmentTree(8, add, 0)
	s.set(2, 5)
	s.set(6, 5)

	// Mass below 5 lands on leaf 2, at or above on leaf 6
	assert.Equal(t, 2, s.prefixIndex(0.0))
	assert.Equal(t, 2, s.prefixIndex(4.99))
	assert.Equal(t, 6, s.prefixIndex(5.0))
	assert.Equal(t, 6, s.prefixIndex(9.99))
}
