package deepq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepqgo/deepq/replay"
)

func testModelConfig() ModelConfig {
	c := DefaultModelConfig()
	c.HiddenSizes = []int{8}
	c.BatchSize = 4
	c.Gamma = 0.9
	return c
}

func newTestDQN(t *testing.T, c ModelConfig, seed uint64) *DQN {
	t.Helper()
	d, err := NewDQN(newMockEnv(10), c, seed)
	require.NoError(t, err)
	return d
}

func TestModelConfigValidate(t *testing.T) {
	c := testModelConfig()
	c.LearningRate = 0
	assert.Error(t, c.Validate())

	c = testModelConfig()
	c.Gamma = 1.5
	assert.Error(t, c.Validate())

	c = testModelConfig()
	c.BatchSize = 0
	assert.Error(t, c.Validate())

	c = testModelConfig()
	c.HiddenSizes = []int{8, 0}
	assert.Error(t, c.Validate())

	assert.NoError(t, testModelConfig().Validate())
}

func TestStepActionRange(t *testing.T) {
	d := newTestDQN(t, testModelConfig(), 14)
	env := newMockEnv(10)
	obs, err := env.Reset()
	require.NoError(t, err)

	flat := make([]float64, obs.Len())
	for i := range flat {
		flat[i] = obs.AtVec(i)
	}

	for _, eps := range []float64{0.0, 0.5, 1.0} {
		for i := 0; i < 20; i++ {
			actions, err := d.Step(flat, 1, eps)
			require.NoError(t, err)
			require.Len(t, actions, 1)
			assert.GreaterOrEqual(t, actions[0], 0)
			assert.Less(t, actions[0], 2)
		}
	}
}

func TestStepValidation(t *testing.T) {
	d := newTestDQN(t, testModelConfig(), 14)

	_, err := d.Step([]float64{1, 2, 3}, 2, 0.0)
	assert.Error(t, err)

	_, err = d.Step([]float64{1, 2}, 1, 0.0)
	assert.Error(t, err)
}

func trainBatch(batchSize, obsSize int) *replay.Batch {
	b := &replay.Batch{
		Obs:       make([]float64, batchSize*obsSize),
		Actions:   make([]int, batchSize),
		Rewards:   make([]float64, batchSize),
		NextObs:   make([]float64, batchSize*obsSize),
		Dones:     make([]float64, batchSize),
		Weights:   make([]float64, batchSize),
		BatchSize: batchSize,
		ObsSize:   obsSize,
	}
	for i := 0; i < batchSize; i++ {
		b.Actions[i] = i % 2
		b.Rewards[i] = 1.0
		b.Weights[i] = 1.0
		for j := 0; j < obsSize; j++ {
			b.Obs[i*obsSize+j] = float64(i + j)
			b.NextObs[i*obsSize+j] = float64(i + j + 1)
		}
	}
	b.Dones[batchSize-1] = 1.0
	return b
}

func TestTrainReturnsPerSampleErrors(t *testing.T) {
	c := testModelConfig()
	d := newTestDQN(t, c, 14)

	tdErrors, err := d.Train(trainBatch(c.BatchSize, 3))
	require.NoError(t, err)
	assert.Len(t, tdErrors, c.BatchSize)
}

func TestTrainValidation(t *testing.T) {
	c := testModelConfig()
	d := newTestDQN(t, c, 14)

	_, err := d.Train(trainBatch(c.BatchSize+1, 3))
	assert.Error(t, err)

	_, err = d.Train(trainBatch(c.BatchSize, 2))
	assert.Error(t, err)
}

func TestCheckpointRoundTripReproducesActions(t *testing.T) {
	c := testModelConfig()
	obs := []float64{0.1, -0.2, 0.3}

	trained := newTestDQN(t, c, 14)
	// A few gradient steps so the snapshot differs from a fresh
	// initialization
	for i := 0; i < 3; i++ {
		_, err := trained.Train(trainBatch(c.BatchSize, 3))
		require.NoError(t, err)
	}

	data, err := trained.GobEncode()
	require.NoError(t, err)

	restored := newTestDQN(t, c, 14)
	require.NoError(t, restored.GobDecode(data))

	// With no exploration and identical weights and selection seeds,
	// the two models act identically
	for i := 0; i < 10; i++ {
		want, err := trained.Step(obs, 1, 0.0)
		require.NoError(t, err)
		got, err := restored.Step(obs, 1, 0.0)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestAdaptNoiseScale(t *testing.T) {
	c := testModelConfig()
	c.ParamNoise = true
	d := newTestDQN(t, c, 14)
	initial := d.NoiseScale()

	// A reset adaptation only redraws the perturbation
	d.AdaptNoise(0.05, true)
	assert.Equal(t, initial, d.NoiseScale())

	// After acting, the scale moves by the adaptation coefficient in
	// one direction or the other
	_, err := d.Step([]float64{0.1, 0.2, 0.3}, 1, 0.0)
	require.NoError(t, err)
	d.AdaptNoise(0.05, false)
	scale := d.NoiseScale()
	moved := scale == initial*noiseAdaptCoeff ||
		scale == initial/noiseAdaptCoeff
	assert.True(t, moved)
}

func TestAdaptNoiseDisabled(t *testing.T) {
	d := newTestDQN(t, testModelConfig(), 14)
	initial := d.NoiseScale()

	d.AdaptNoise(0.05, false)
	assert.Equal(t, initial, d.NoiseScale())
}

func TestUpdateTargetHardCopy(t *testing.T) {
	c := testModelConfig()
	d := newTestDQN(t, c, 14)

	// With online and target in sync, the TD errors of a zero-reward,
	// zero-discount batch depend only on the online predictions; the
	// sync must leave training usable
	for i := 0; i < 5; i++ {
		_, err := d.Train(trainBatch(c.BatchSize, 3))
		require.NoError(t, err)
	}
	d.UpdateTarget()

	tdErrors, err := d.Train(trainBatch(c.BatchSize, 3))
	require.NoError(t, err)
	assert.Len(t, tdErrors, c.BatchSize)
}
