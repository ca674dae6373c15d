package cartpole

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpaces(t *testing.T) {
	c := New(1)

	obs := c.ObservationSpace()
	assert.Equal(t, NumFeatures, obs.Dims)
	assert.Equal(t, -PositionThreshold, obs.Low.AtVec(0))
	assert.Equal(t, PositionThreshold, obs.High.AtVec(0))

	actions := c.ActionSpace()
	assert.Equal(t, NumActions, actions.N)
}

func TestResetWithinStartBounds(t *testing.T) {
	c := New(42)

	for i := 0; i < 10; i++ {
		obs, err := c.Reset()
		require.NoError(t, err)
		require.Equal(t, NumFeatures, obs.Len())
		for j := 0; j < obs.Len(); j++ {
			assert.LessOrEqual(t, math.Abs(obs.AtVec(j)), StartBound)
		}
	}
}

func TestStepBeforeReset(t *testing.T) {
	c := New(1)

	_, _, _, err := c.Step(0)
	assert.Error(t, err)
}

func TestInvalidAction(t *testing.T) {
	c := New(1)
	_, err := c.Reset()
	require.NoError(t, err)

	_, _, _, err = c.Step(-1)
	assert.Error(t, err)
	_, _, _, err = c.Step(NumActions)
	assert.Error(t, err)
}

func TestConstantForceFailsEpisode(t *testing.T) {
	c := New(7)
	_, err := c.Reset()
	require.NoError(t, err)

	// Always pushing left topples the pole well before the step limit
	total := 0.0
	steps := 0
	done := false
	for !done {
		var reward float64
		var err error
		_, reward, done, err = c.Step(0)
		require.NoError(t, err)
		assert.Equal(t, 1.0, reward)
		total += reward
		steps++
		require.LessOrEqual(t, steps, MaxEpisodeSteps)
	}
	assert.Less(t, steps, MaxEpisodeSteps)
	assert.Equal(t, float64(steps), total)
}

func TestEpisodeStepLimit(t *testing.T) {
	c := New(3)
	_, err := c.Reset()
	require.NoError(t, err)

	// Alternating pushes keep the pole up long enough only if the
	// dynamics allow; in either case the episode must end within the
	// step limit
	done := false
	steps := 0
	for !done && steps < MaxEpisodeSteps {
		_, _, d, err := c.Step(steps % NumActions)
		require.NoError(t, err)
		done = d
		steps++
	}
	assert.True(t, done)
}
