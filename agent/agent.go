// Package agent defines the interfaces a training loop consumes. The
// function approximator behind a Model is opaque to the loop: any
// technology that can select actions, take a weighted gradient step,
// and hard-copy its parameters into a target set can be trained.
package agent

import (
	"encoding/gob"

	"github.com/deepqgo/deepq/replay"
)

// Model is a trainable action-value function approximator with a
// separate target parameter set used to compute stable learning
// targets.
type Model interface {
	// Step selects one action per observation. The obs argument holds
	// batch observations flattened row-major, whether they come from a
	// single environment (batch 1) or a vectorized batch. With
	// probability eps each action is drawn uniformly at random,
	// otherwise greedily from the predicted action values.
	Step(obs []float64, batch int, eps float64) ([]int, error)

	// Train performs one gradient step on the importance-weighted
	// Bellman residual of a batch and returns the per-sample
	// temporal-difference errors, used by prioritized replay to
	// refresh priorities.
	Train(batch *replay.Batch) ([]float64, error)

	// UpdateTarget hard-copies the online parameters into the target
	// parameter set. Targets are never interpolated.
	UpdateTarget()
}

// ParamNoiser is implemented by models that explore through
// parameter-space noise rather than epsilon-greedy action selection.
type ParamNoiser interface {
	// AdaptNoise adapts the perturbation scale toward the given KL
	// threshold. The reset flag is true on the first step after an
	// environment reset, at which point the perturbation is redrawn.
	AdaptNoise(threshold float64, reset bool)
}

// Serializable is an object whose state can be saved and restored by
// a checkpoint manager.
type Serializable interface {
	gob.GobEncoder
	gob.GobDecoder
}
