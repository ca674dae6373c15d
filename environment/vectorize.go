package environment

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// vecEnv steps a fixed set of environments synchronously, presenting
// the batched VecEnvironment interface.
type vecEnv struct {
	envs []Environment
	dims int
}

// Vectorize wraps a set of environments into a VecEnvironment that
// steps them in lockstep. All environments must share the same
// observation and action spaces.
func Vectorize(envs ...Environment) (VecEnvironment, error) {
	if len(envs) == 0 {
		return nil, fmt.Errorf("vectorize: need at least one environment")
	}

	obs := envs[0].ObservationSpace()
	actions := envs[0].ActionSpace()
	for i, env := range envs[1:] {
		if env.ObservationSpace().Dims != obs.Dims ||
			env.ActionSpace().N != actions.N {
			return nil, fmt.Errorf("vectorize: environment %d has a "+
				"mismatched space", i+1)
		}
	}

	return &vecEnv{envs: envs, dims: obs.Dims}, nil
}

// NumEnvs implements the VecEnvironment interface
func (v *vecEnv) NumEnvs() int { return len(v.envs) }

// ObservationSpace implements the Environment interface
func (v *vecEnv) ObservationSpace() Space {
	return v.envs[0].ObservationSpace()
}

// ActionSpace implements the Environment interface
func (v *vecEnv) ActionSpace() Space {
	return v.envs[0].ActionSpace()
}

// ResetAll starts a new episode in every environment.
func (v *vecEnv) ResetAll() (*mat.Dense, error) {
	batch := mat.NewDense(len(v.envs), v.dims, nil)
	for i, env := range v.envs {
		obs, err := env.Reset()
		if err != nil {
			return nil, fmt.Errorf("resetall: environment %d: %v", i, err)
		}
		setRow(batch, i, obs)
	}
	return batch, nil
}

// StepAll applies one action per environment, resetting any
// environment whose episode terminated.
func (v *vecEnv) StepAll(actions []int) (*mat.Dense, []float64, []bool,
	error) {
	if len(actions) != len(v.envs) {
		return nil, nil, nil, fmt.Errorf("stepall: have %d actions for %d "+
			"environments", len(actions), len(v.envs))
	}

	batch := mat.NewDense(len(v.envs), v.dims, nil)
	rewards := make([]float64, len(v.envs))
	dones := make([]bool, len(v.envs))

	for i, env := range v.envs {
		obs, reward, done, err := env.Step(actions[i])
		if err != nil {
			return nil, nil, nil, fmt.Errorf("stepall: environment %d: %v",
				i, err)
		}
		if done {
			obs, err = env.Reset()
			if err != nil {
				return nil, nil, nil, fmt.Errorf("stepall: environment %d: "+
					"%v", i, err)
			}
		}
		setRow(batch, i, obs)
		rewards[i] = reward
		dones[i] = done
	}
	return batch, rewards, dones, nil
}

// Reset implements the Environment interface on the first environment
// in the batch.
func (v *vecEnv) Reset() (mat.Vector, error) {
	return v.envs[0].Reset()
}

// Step implements the Environment interface on the first environment
// in the batch.
func (v *vecEnv) Step(action int) (mat.Vector, float64, bool, error) {
	return v.envs[0].Step(action)
}

// setRow copies a vector into row i of a matrix
func setRow(m *mat.Dense, i int, v mat.Vector) {
	for j := 0; j < v.Len(); j++ {
		m.Set(i, j, v.AtVec(j))
	}
}
