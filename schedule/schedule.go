// Package schedule implements annealing schedules for training
// parameters such as exploration rates and importance-sampling
// exponents. Schedules are pure functions of a step counter and hold
// no mutable state.
package schedule

import "math"

// Schedule maps a training step to a scalar parameter value.
type Schedule interface {
	Value(t int) float64
}

// Linear interpolates between an initial and a final value over a
// fixed number of steps, clamping at the final value afterwards.
type Linear struct {
	duration int
	initial  float64
	final    float64
}

// NewLinear returns a Linear schedule that anneals from initial to
// final over duration steps.
func NewLinear(duration int, initial, final float64) Linear {
	return Linear{
		duration: duration,
		initial:  initial,
		final:    final,
	}
}

// Value returns the schedule's value at step t. A schedule with
// duration <= 0 is treated as fully annealed at every step.
func (l Linear) Value(t int) float64 {
	if l.duration <= 0 {
		return l.final
	}
	fraction := math.Min(float64(t)/float64(l.duration), 1.0)
	return l.initial + fraction*(l.final-l.initial)
}

// Constant is a schedule that returns the same value at every step.
type Constant float64

// Value implements the Schedule interface
func (c Constant) Value(int) float64 { return float64(c) }
