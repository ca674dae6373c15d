// Package cartpole implements the cart-pole classic control
// environment. A pole is attached to a cart that moves along a
// frictionless track, and the agent must keep the pole upright by
// accelerating the cart left or right.
//
// The state features are continuous and consist of the cart's x
// position and velocity, and the pole's angle from vertical and
// angular velocity. Episodes end when the cart leaves the track
// bounds, the pole falls past the failure angle, or the step limit is
// reached.
//
// Actions are discrete:
//
//	Action	Meaning
//	  0		Accelerate left
//	  1		Accelerate right
package cartpole

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	env "github.com/deepqgo/deepq/environment"
)

const (
	// Physical constants
	Gravity        float64 = 9.8
	CartMass       float64 = 1.0
	PoleMass       float64 = 0.1
	TotalMass      float64 = CartMass + PoleMass
	HalfPoleLength float64 = 0.5
	ForceMag       float64 = 10.0 // Magnitude of force applied
	Dt             float64 = 0.02 // Seconds between state updates

	// Episode failure thresholds
	PositionThreshold float64 = 2.4
	AngleThreshold    float64 = 12.0 * math.Pi / 180.0

	// Bound (+/-) on the starting value of each state feature
	StartBound float64 = 0.05

	MaxEpisodeSteps int = 500
	NumActions      int = 2
	NumFeatures     int = 4
)

// Cartpole implements the cart-pole environment
type Cartpole struct {
	x        float64
	xDot     float64
	theta    float64
	thetaDot float64

	steps   int
	started bool
	starter distuv.Uniform
}

// New returns a new Cartpole environment seeded with the given random
// seed for its starting-state distribution.
func New(seed uint64) *Cartpole {
	src := rand.NewSource(seed)
	starter := distuv.Uniform{Min: -StartBound, Max: StartBound, Src: src}

	return &Cartpole{starter: starter}
}

// Reset starts a new episode from a uniformly random state near the
// balance point and returns its first observation.
func (c *Cartpole) Reset() (mat.Vector, error) {
	c.x = c.starter.Rand()
	c.xDot = c.starter.Rand()
	c.theta = c.starter.Rand()
	c.thetaDot = c.starter.Rand()
	c.steps = 0
	c.started = true

	return c.observation(), nil
}

// Step applies a discrete action to the cart and integrates the
// dynamics for one timestep. The reward is 1.0 on every step.
func (c *Cartpole) Step(action int) (mat.Vector, float64, bool, error) {
	if !c.started {
		return nil, 0, false, fmt.Errorf("step: environment not reset")
	}
	if action < 0 || action >= NumActions {
		return nil, 0, false, fmt.Errorf("step: invalid action %d", action)
	}

	force := ForceMag
	if action == 0 {
		force = -ForceMag
	}

	cosTheta := math.Cos(c.theta)
	sinTheta := math.Sin(c.theta)
	poleMassLength := PoleMass * HalfPoleLength

	temp := (force + poleMassLength*c.thetaDot*c.thetaDot*sinTheta) /
		TotalMass
	thetaAcc := (Gravity*sinTheta - cosTheta*temp) /
		(HalfPoleLength * (4.0/3.0 - PoleMass*cosTheta*cosTheta/TotalMass))
	xAcc := temp - poleMassLength*thetaAcc*cosTheta/TotalMass

	c.x += Dt * c.xDot
	c.xDot += Dt * xAcc
	c.theta += Dt * c.thetaDot
	c.thetaDot += Dt * thetaAcc
	c.steps++

	done := c.x < -PositionThreshold || c.x > PositionThreshold ||
		c.theta < -AngleThreshold || c.theta > AngleThreshold ||
		c.steps >= MaxEpisodeSteps

	return c.observation(), 1.0, done, nil
}

// ObservationSpace implements the environment.Environment interface
func (c *Cartpole) ObservationSpace() env.Space {
	low := mat.NewVecDense(NumFeatures, []float64{
		-PositionThreshold, math.Inf(-1), -AngleThreshold, math.Inf(-1),
	})
	high := mat.NewVecDense(NumFeatures, []float64{
		PositionThreshold, math.Inf(1), AngleThreshold, math.Inf(1),
	})

	return env.Space{Dims: NumFeatures, Low: low, High: high}
}

// ActionSpace implements the environment.Environment interface
func (c *Cartpole) ActionSpace() env.Space {
	return env.Space{N: NumActions}
}

func (c *Cartpole) observation() mat.Vector {
	return mat.NewVecDense(NumFeatures, []float64{
		c.x, c.xDot, c.theta, c.thetaDot,
	})
}
