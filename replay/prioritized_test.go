package replay

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFilled(t *testing.T, capacity, count int, alpha float64,
	seed uint64) *Prioritized {
	t.Helper()
	p, err := NewPrioritized(capacity, 1, alpha, seed)
	require.NoError(t, err)
	for i := 0; i < count; i++ {
		p.Add(obs(float64(i)), i, float64(i), obs(float64(i)), false)
	}
	return p
}

func TestPrioritizedSampleEmpty(t *testing.T) {
	p, err := NewPrioritized(8, 1, 0.6, 1)
	require.NoError(t, err)

	_, err = p.Sample(4, 0.4)
	require.Error(t, err)
	assert.True(t, IsInsufficientData(err))
}

func TestUpdatePrioritiesValidation(t *testing.T) {
	p := newFilled(t, 8, 4, 0.6, 1)

	err := p.UpdatePriorities([]int{0}, []float64{0.0})
	require.Error(t, err)
	assert.True(t, IsInvalidPriority(err))

	err = p.UpdatePriorities([]int{0}, []float64{-1.0})
	require.Error(t, err)
	assert.True(t, IsInvalidPriority(err))

	err = p.UpdatePriorities([]int{4}, []float64{1.0})
	require.Error(t, err)
	assert.True(t, IsInvalidIndex(err))

	err = p.UpdatePriorities([]int{-1}, []float64{1.0})
	require.Error(t, err)
	assert.True(t, IsInvalidIndex(err))

	err = p.UpdatePriorities([]int{0, 1}, []float64{1.0})
	assert.Error(t, err)
}

func TestNewTransitionsGetMaxPriority(t *testing.T) {
	const alpha = 0.6
	p := newFilled(t, 8, 2, alpha, 1)

	require.NoError(t, p.UpdatePriorities([]int{0}, []float64{50.0}))

	index := p.Add(obs(9), 0, 0, obs(9), false)
	assert.InDelta(t, math.Pow(50.0, alpha), p.sums.get(index), 1e-9)
	assert.InDelta(t, math.Pow(50.0, alpha), p.mins.get(index), 1e-9)
}

func TestSamplingProportionalToPriority(t *testing.T) {
	// With alpha 1 the sampling mass is directly proportional to the
	// raw priorities
	p := newFilled(t, 4, 2, 1.0, 42)
	require.NoError(t, p.UpdatePriorities([]int{0, 1},
		[]float64{1.0, 100.0}))

	counts := make([]int, 2)
	const draws = 1000
	const batchSize = 10
	for i := 0; i < draws; i++ {
		batch, err := p.Sample(batchSize, 0.0)
		require.NoError(t, err)
		for _, index := range batch.Indices {
			counts[index]++
		}
	}

	total := draws * batchSize
	assert.Equal(t, total, counts[0]+counts[1])

	// Expected frequency of the low-priority slot is 1/101
	expected := float64(total) / 101.0
	assert.Greater(t, float64(counts[0]), 0.5*expected)
	assert.Less(t, float64(counts[0]), 2.0*expected)
}

func TestImportanceWeights(t *testing.T) {
	p := newFilled(t, 4, 2, 1.0, 7)
	require.NoError(t, p.UpdatePriorities([]int{0, 1},
		[]float64{1.0, 3.0}))

	// Slot 0 holds the first quarter of the total mass, so a batch of
	// 16 stratified draws always includes it
	batch, err := p.Sample(16, 1.0)
	require.NoError(t, err)

	sawMin := false
	for i, index := range batch.Indices {
		w := batch.Weights[i]
		assert.LessOrEqual(t, w, 1.0)
		assert.Greater(t, w, 0.0)
		if index == 0 {
			sawMin = true
			// The minimum-priority transition defines the
			// normalization, so its weight is exactly 1
			assert.InDelta(t, 1.0, w, 1e-12)
		}
	}
	assert.True(t, sawMin)
}

func TestSampleIndicesAreWrittenSlots(t *testing.T) {
	// Only 3 of 8 slots are written; no sample may come from an
	// unwritten slot
	p := newFilled(t, 8, 3, 0.6, 3)

	for i := 0; i < 100; i++ {
		batch, err := p.Sample(4, 0.4)
		require.NoError(t, err)
		for _, index := range batch.Indices {
			assert.GreaterOrEqual(t, index, 0)
			assert.Less(t, index, 3)
		}
	}
}

func TestPrioritizedOverwriteKeepsTreesInSync(t *testing.T) {
	const capacity = 4
	p := newFilled(t, capacity, capacity, 1.0, 5)
	require.NoError(t, p.UpdatePriorities([]int{0, 1, 2, 3},
		[]float64{1, 2, 3, 4}))

	// Wrapping the cursor overwrites slot 0 with the running max
	// priority
	index := p.Add(obs(99), 0, 0, obs(99), false)
	require.Equal(t, 0, index)
	assert.InDelta(t, 4.0, p.sums.get(0), 1e-12)
	assert.InDelta(t, 13.0, p.sums.reduce(0, capacity), 1e-12)
}
