package replay

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/deepqgo/deepq/utils/floatutils"
)

// Prioritized is a replay buffer that samples transitions in
// proportion to a per-slot priority, typically the magnitude of the
// temporal-difference error the transition last produced. Priorities
// are held in a sum tree for proportional sampling and a min tree for
// normalizing importance-sampling weights, both updated in O(log n).
//
// New transitions are stored with the maximum priority seen so far, so
// every transition is sampled at least once before its error is known.
type Prioritized struct {
	*Buffer

	alpha       float64
	sums        *segmentTree
	mins        *segmentTree
	maxPriority float64
}

// NewPrioritized returns a Prioritized buffer holding at most capacity
// transitions. The alpha parameter controls how strongly sampling
// concentrates on high-priority transitions: stored priorities are
// raised to the alpha power, with alpha 0 recovering uniform sampling.
func NewPrioritized(capacity, obsSize int, alpha float64,
	seed uint64) (*Prioritized, error) {
	if alpha < 0 {
		return nil, fmt.Errorf("newprioritized: alpha must be >= 0, got %v",
			alpha)
	}

	buffer, err := New(capacity, obsSize, seed)
	if err != nil {
		return nil, fmt.Errorf("newprioritized: %v", err)
	}

	add := func(a, b float64) float64 { return a + b }
	return &Prioritized{
		Buffer:      buffer,
		alpha:       alpha,
		sums:        newSegmentTree(capacity, add, 0),
		mins:        newSegmentTree(capacity, math.Min, math.Inf(1)),
		maxPriority: 1.0,
	}, nil
}

// Add stores a transition with the maximum priority seen so far and
// returns the slot index the transition was written to.
func (p *Prioritized) Add(obs mat.Vector, action int, reward float64,
	nextObs mat.Vector, done bool) int {
	index := p.Buffer.Add(obs, action, reward, nextObs, done)

	priority := math.Pow(p.maxPriority, p.alpha)
	p.sums.set(index, priority)
	p.mins.set(index, priority)
	return index
}

// Sample draws batchSize transitions in proportion to their
// priorities. The cumulative priority mass is partitioned into
// batchSize equal-width segments with one inverse-CDF draw per
// segment, stratifying the batch across the priority distribution.
//
// Each sampled transition carries an importance-sampling weight
// (N * P(i))^-beta normalized by the weight of the global
// minimum-priority transition, so that all weights are <= 1.
func (p *Prioritized) Sample(batchSize int, beta float64) (*Batch, error) {
	n := p.Len()
	if n == 0 {
		return nil, &Error{Op: "sample", Err: errInsufficientData}
	}

	total := p.sums.reduce(0, n)
	segment := total / float64(batchSize)

	indices := make([]int, batchSize)
	for i := range indices {
		mass := (float64(i) + p.rng.Float64()) * segment
		index := p.sums.prefixIndex(mass)
		if index >= n {
			// Floating point drift at the top of the mass range can
			// walk past the last written leaf.
			index = n - 1
		}
		indices[i] = index
	}

	batch := p.gather(indices)
	batch.Indices = indices

	minProb := p.mins.reduce(0, n) / total
	maxWeight := math.Pow(float64(n)*minProb, -beta)

	weights := make([]float64, batchSize)
	for i, index := range indices {
		prob := p.sums.get(index) / total
		weights[i] = math.Pow(float64(n)*prob, -beta) / maxWeight
	}
	batch.Weights = weights

	return batch, nil
}

// UpdatePriorities sets the priority of each listed slot, refreshing
// both trees and the running maximum priority. Every index must refer
// to a stored transition and every priority must be strictly positive.
func (p *Prioritized) UpdatePriorities(indices []int,
	priorities []float64) error {
	if len(indices) != len(priorities) {
		return fmt.Errorf("updatepriorities: have %d indices but %d "+
			"priorities", len(indices), len(priorities))
	}

	for i, index := range indices {
		priority := priorities[i]
		if priority <= 0 {
			return &Error{Op: "updatepriorities", Err: errInvalidPriority}
		}
		if index < 0 || index >= p.Len() {
			return &Error{Op: "updatepriorities", Err: errInvalidIndex}
		}

		scaled := math.Pow(priority, p.alpha)
		p.sums.set(index, scaled)
		p.mins.set(index, scaled)
		p.maxPriority = floatutils.Max(p.maxPriority, priority)
	}
	return nil
}
