// Package solver creates Gorgonia solvers by name, so that gradient
// descent algorithms can be selected from configuration files and
// command line flags.
package solver

import (
	"fmt"
	"strings"

	G "gorgonia.org/gorgonia"
)

// Available solvers
const (
	Adam    = "adam"
	Vanilla = "vanilla"
	RMSProp = "rmsprop"
)

// New returns the named solver with the given learning rate.
func New(name string, learningRate float64) (G.Solver, error) {
	if learningRate <= 0 {
		return nil, fmt.Errorf("new: learning rate must be positive, "+
			"got %v", learningRate)
	}

	switch strings.ToLower(name) {
	case Adam:
		return G.NewAdamSolver(G.WithLearnRate(learningRate)), nil
	case Vanilla:
		return G.NewVanillaSolver(G.WithLearnRate(learningRate)), nil
	case RMSProp:
		return G.NewRMSPropSolver(G.WithLearnRate(learningRate)), nil
	}
	return nil, fmt.Errorf("new: unknown solver %q", name)
}
