package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLinearEndpoints(t *testing.T) {
	s := NewLinear(100, 1.0, 0.02)

	assert.Equal(t, 1.0, s.Value(0))
	assert.InDelta(t, 0.02, s.Value(100), 1e-12)
	assert.InDelta(t, 0.02, s.Value(101), 1e-12)
	assert.InDelta(t, 0.02, s.Value(1000000), 1e-12)
}

func TestLinearInterpolation(t *testing.T) {
	s := NewLinear(100, 1.0, 0.0)

	assert.InDelta(t, 0.5, s.Value(50), 1e-12)
	assert.InDelta(t, 0.75, s.Value(25), 1e-12)

	// Monotonic toward the final value
	prev := s.Value(0)
	for step := 1; step <= 100; step++ {
		v := s.Value(step)
		assert.LessOrEqual(t, v, prev, "step %d", step)
		prev = v
	}
}

func TestLinearIncreasing(t *testing.T) {
	s := NewLinear(10, 0.4, 1.0)

	assert.InDelta(t, 0.4, s.Value(0), 1e-12)
	assert.InDelta(t, 0.7, s.Value(5), 1e-12)
	assert.InDelta(t, 1.0, s.Value(10), 1e-12)
}

func TestLinearZeroDuration(t *testing.T) {
	s := NewLinear(0, 1.0, 0.02)

	// No division by zero: the schedule is already at its final value
	assert.InDelta(t, 0.02, s.Value(0), 1e-12)
	assert.InDelta(t, 0.02, s.Value(1), 1e-12)
}

func TestConstant(t *testing.T) {
	s := Constant(0.25)

	assert.Equal(t, 0.25, s.Value(0))
	assert.Equal(t, 0.25, s.Value(123456))
}
