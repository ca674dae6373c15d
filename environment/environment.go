// Package environment defines the contract between a training loop
// and the simulated environments it interacts with.
package environment

import "gonum.org/v1/gonum/mat"

// Space describes the shape and bounds of the observations an
// environment produces or the size of its discrete action set.
type Space struct {
	// Dims is the number of features in an observation. It is 0 for
	// action spaces.
	Dims int

	// N is the number of discrete actions. It is 0 for observation
	// spaces.
	N int

	// Elementwise bounds on observations. Either may be nil when the
	// corresponding bound is unconstrained.
	Low  mat.Vector
	High mat.Vector
}

// Environment is a single simulated environment. Episodes are started
// with Reset and advanced with Step until Step reports termination.
type Environment interface {
	// Reset starts a new episode and returns its first observation.
	Reset() (mat.Vector, error)

	// Step applies a discrete action and returns the next
	// observation, the reward, and whether the episode terminated on
	// this step.
	Step(action int) (mat.Vector, float64, bool, error)

	ObservationSpace() Space
	ActionSpace() Space
}

// VecEnvironment is a batch of environments stepped in lockstep
// behind a synchronous interface. A training loop detects the
// capability with a single type assertion at startup and then uses the
// batched operations exclusively.
type VecEnvironment interface {
	Environment

	// NumEnvs returns the number of environments in the batch.
	NumEnvs() int

	// ResetAll starts a new episode in every environment and returns
	// a matrix whose rows are the per-environment first observations.
	ResetAll() (*mat.Dense, error)

	// StepAll applies one action per environment. Environments whose
	// episodes terminate are reset automatically; the returned row for
	// such an environment is the first observation of its next episode
	// and the corresponding done flag is true.
	StepAll(actions []int) (*mat.Dense, []float64, []bool, error)
}
