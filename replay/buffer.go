// Package replay implements replay buffers for off-policy
// reinforcement learning. A replay buffer is a fixed-capacity store of
// environment transitions that is sampled in batches during learning
// steps. The package provides a uniform-sampling Buffer and a
// Prioritized variant that samples transitions in proportion to their
// past temporal-difference errors.
package replay

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// Batch holds a batch of transitions drawn from a replay buffer. The
// observation fields are flattened row-major with a leading batch
// dimension, so that row i occupies Obs[i*ObsSize : (i+1)*ObsSize].
type Batch struct {
	Obs     []float64
	Actions []int
	Rewards []float64
	NextObs []float64
	Dones   []float64

	// Weights holds the importance-sampling weight of each transition
	// and Indices the buffer slot each transition was drawn from. Both
	// are nil for uniformly sampled batches.
	Weights []float64
	Indices []int

	BatchSize int
	ObsSize   int
}

// Buffer is a fixed-capacity circular store of transitions with
// uniform random sampling. Insertion overwrites the oldest transition
// once the buffer is full; insertion order determines overwrite order
// only, not sampling order.
//
// The buffer stores observations in flat caches, one row per slot.
// Pixel observations should be flattened before adding.
type Buffer struct {
	obs     []float64
	actions []int
	rewards []float64
	nextObs []float64
	dones   []float64

	capacity int
	obsSize  int
	cursor   int // next slot to write
	size     int

	rng *rand.Rand
}

// New returns a Buffer holding at most capacity transitions whose
// observations have obsSize features.
func New(capacity, obsSize int, seed uint64) (*Buffer, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("new: capacity must be >= 1, got %d", capacity)
	}
	if obsSize < 1 {
		return nil, fmt.Errorf("new: obsSize must be >= 1, got %d", obsSize)
	}

	return &Buffer{
		obs:      make([]float64, capacity*obsSize),
		actions:  make([]int, capacity),
		rewards:  make([]float64, capacity),
		nextObs:  make([]float64, capacity*obsSize),
		dones:    make([]float64, capacity),
		capacity: capacity,
		obsSize:  obsSize,
		rng:      rand.New(rand.NewSource(seed)),
	}, nil
}

// Len returns the number of transitions currently stored.
func (b *Buffer) Len() int { return b.size }

// Cap returns the maximum number of transitions the buffer can hold.
func (b *Buffer) Cap() int { return b.capacity }

// ObsSize returns the number of features in a stored observation.
func (b *Buffer) ObsSize() int { return b.obsSize }

// Add stores a transition at the current write cursor, overwriting the
// oldest transition once the buffer is full. It returns the slot index
// the transition was written to.
func (b *Buffer) Add(obs mat.Vector, action int, reward float64,
	nextObs mat.Vector, done bool) int {
	if obs.Len() != b.obsSize || nextObs.Len() != b.obsSize {
		panic(fmt.Sprintf("add: invalid observation size \n\twant(%v)"+
			"\n\thave(%v, %v)", b.obsSize, obs.Len(), nextObs.Len()))
	}

	index := b.cursor
	start := index * b.obsSize
	for i := 0; i < b.obsSize; i++ {
		b.obs[start+i] = obs.AtVec(i)
		b.nextObs[start+i] = nextObs.AtVec(i)
	}
	b.actions[index] = action
	b.rewards[index] = reward
	if done {
		b.dones[index] = 1.0
	} else {
		b.dones[index] = 0.0
	}

	b.cursor = (b.cursor + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
	return index
}

// Sample draws batchSize transitions independently and uniformly at
// random, with replacement, from the stored transitions.
func (b *Buffer) Sample(batchSize int) (*Batch, error) {
	if b.size == 0 {
		return nil, &Error{Op: "sample", Err: errInsufficientData}
	}

	indices := make([]int, batchSize)
	for i := range indices {
		indices[i] = b.rng.Intn(b.size)
	}
	return b.gather(indices), nil
}

// gather copies the transitions at the given slot indices into a new
// batch, stacked along a leading batch dimension.
func (b *Buffer) gather(indices []int) *Batch {
	batch := &Batch{
		Obs:       make([]float64, len(indices)*b.obsSize),
		Actions:   make([]int, len(indices)),
		Rewards:   make([]float64, len(indices)),
		NextObs:   make([]float64, len(indices)*b.obsSize),
		Dones:     make([]float64, len(indices)),
		BatchSize: len(indices),
		ObsSize:   b.obsSize,
	}

	for i, index := range indices {
		batchStart := i * b.obsSize
		slotStart := index * b.obsSize
		copy(batch.Obs[batchStart:batchStart+b.obsSize],
			b.obs[slotStart:slotStart+b.obsSize])
		copy(batch.NextObs[batchStart:batchStart+b.obsSize],
			b.nextObs[slotStart:slotStart+b.obsSize])

		batch.Actions[i] = b.actions[index]
		batch.Rewards[i] = b.rewards[index]
		batch.Dones[i] = b.dones[index]
	}
	return batch
}
