package deepq

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/deepqgo/deepq/agent"
)

// Status is a snapshot of the training loop state handed to a
// Callback on every step.
type Status struct {
	// Step is the current timestep, starting at 1.
	Step int

	// Episodes is the number of completed episodes so far.
	Episodes int

	// EpisodeRewards holds the cumulative reward of every episode,
	// the last entry being the running total of the current episode.
	EpisodeRewards []float64

	// Exploration is the annealed exploration rate at this step.
	Exploration float64

	// Model is the model being trained.
	Model agent.Model
}

// Callback is invoked once per training step. Returning true stops
// training early; the partially trained model is still returned.
type Callback func(*Status) bool

// Config configures a training run.
type Config struct {
	// Seed of the replay buffer sampling streams.
	Seed uint64

	// TotalTimesteps is the number of environment steps to train for.
	TotalTimesteps int

	// TotalEpisodes caps the number of completed episodes. Training
	// stops once the completed count exceeds it. A value <= 0 means
	// no episode cap.
	TotalEpisodes int

	// BufferSize is the replay buffer capacity.
	BufferSize int

	// ExplorationFraction is the fraction of TotalTimesteps over
	// which the exploration rate is annealed from 1 down to
	// ExplorationFinalEps.
	ExplorationFraction float64
	ExplorationFinalEps float64

	// TrainFreq is the number of environment steps between gradient
	// updates.
	TrainFreq int

	// BatchSize of the batches sampled for each gradient update.
	BatchSize int

	// PrintFreq is the number of completed episodes between progress
	// records. A value <= 0 disables progress output.
	PrintFreq int

	// LogPath names a text file receiving one "<step>: <mean>" line
	// per progress record. Empty disables the text log.
	LogPath string

	// SaveFreq is the number of completed episodes between
	// checkpoints. A value <= 0 disables periodic checkpointing.
	SaveFreq int

	// ModelDir is the checkpoint directory. When it already holds a
	// checkpoint marker, the latest checkpoint is restored before
	// training starts. Empty disables checkpointing.
	ModelDir string

	// LearningStarts is the number of steps to collect transitions
	// for before any gradient update or target sync.
	LearningStarts int

	// TargetUpdateFreq is the number of environment steps between
	// hard copies of the online parameters into the target network.
	TargetUpdateFreq int

	// PrioritizedReplay selects proportional prioritized sampling
	// over uniform sampling.
	PrioritizedReplay          bool
	PrioritizedReplayAlpha     float64
	PrioritizedReplayBeta0     float64
	PrioritizedReplayBetaIters int // <= 0 means anneal over TotalTimesteps
	PrioritizedReplayEps       float64

	// ParamNoise selects parameter-space exploration. The model must
	// implement agent.ParamNoiser.
	ParamNoise bool

	// Callback, if non-nil, is invoked every step and may stop
	// training early.
	Callback Callback

	// Logger receives structured progress records. Nil disables
	// structured output.
	Logger *zerolog.Logger
}

// DefaultConfig returns the default training configuration.
func DefaultConfig() Config {
	return Config{
		TotalTimesteps:         100000,
		BufferSize:             50000,
		ExplorationFraction:    0.1,
		ExplorationFinalEps:    0.02,
		TrainFreq:              1,
		BatchSize:              32,
		PrintFreq:              100,
		SaveFreq:               100,
		LearningStarts:         1000,
		TargetUpdateFreq:       500,
		PrioritizedReplayAlpha: 0.6,
		PrioritizedReplayBeta0: 0.4,
		PrioritizedReplayEps:   1e-6,
	}
}

// Validate returns an error describing an invalid configuration
func (c Config) Validate() error {
	if c.TotalTimesteps < 1 {
		return fmt.Errorf("validate: total timesteps must be positive, "+
			"got %v", c.TotalTimesteps)
	}
	if c.BufferSize < 1 {
		return fmt.Errorf("validate: buffer size must be positive, got %v",
			c.BufferSize)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("validate: batch size must be positive, got %v",
			c.BatchSize)
	}
	if c.TrainFreq < 1 {
		return fmt.Errorf("validate: train frequency must be positive, "+
			"got %v", c.TrainFreq)
	}
	if c.TargetUpdateFreq < 1 {
		return fmt.Errorf("validate: target update frequency must be "+
			"positive, got %v", c.TargetUpdateFreq)
	}
	if c.LearningStarts < 0 {
		return fmt.Errorf("validate: learning starts must be >= 0, got %v",
			c.LearningStarts)
	}
	if c.ExplorationFraction < 0 || c.ExplorationFraction > 1 {
		return fmt.Errorf("validate: exploration fraction must be in "+
			"[0, 1], got %v", c.ExplorationFraction)
	}
	if c.ExplorationFinalEps < 0 || c.ExplorationFinalEps > 1 {
		return fmt.Errorf("validate: final exploration rate must be in "+
			"[0, 1], got %v", c.ExplorationFinalEps)
	}
	if c.PrioritizedReplay {
		if c.PrioritizedReplayAlpha < 0 {
			return fmt.Errorf("validate: prioritization exponent must be "+
				">= 0, got %v", c.PrioritizedReplayAlpha)
		}
		if c.PrioritizedReplayBeta0 < 0 || c.PrioritizedReplayBeta0 > 1 {
			return fmt.Errorf("validate: initial importance-sampling "+
				"exponent must be in [0, 1], got %v",
				c.PrioritizedReplayBeta0)
		}
		if c.PrioritizedReplayEps <= 0 {
			return fmt.Errorf("validate: priority epsilon must be "+
				"positive, got %v", c.PrioritizedReplayEps)
		}
	}
	return nil
}
