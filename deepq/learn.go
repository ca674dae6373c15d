// Package deepq implements deep Q-learning: an epsilon-greedy agent
// whose transitions are stored in a replay buffer, sampled in batches
// to minimize the Bellman residual against a periodically hard-synced
// target network. Prioritized experience replay and parameter-space
// exploration noise are optional.
package deepq

import (
	"fmt"
	"math"
	"os"

	"github.com/gammazero/deque"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/deepqgo/deepq/agent"
	"github.com/deepqgo/deepq/checkpoint"
	"github.com/deepqgo/deepq/environment"
	"github.com/deepqgo/deepq/replay"
	"github.com/deepqgo/deepq/schedule"
)

// Learn trains model on env for c.TotalTimesteps environment steps
// and returns the trained model. The model is returned in all exit
// paths, including callback stops and errors after training began.
//
// When env is a vectorized batch of environments, actions are
// selected for every batch element but only the first element's
// transition is stored per step.
func Learn(env environment.Environment, model agent.Model,
	c Config) (agent.Model, error) {
	if err := c.Validate(); err != nil {
		return model, fmt.Errorf("learn: %v", err)
	}

	vecEnv, vectorized := env.(environment.VecEnvironment)
	numEnvs := 1
	if vectorized {
		numEnvs = vecEnv.NumEnvs()
	}
	obsSize := env.ObservationSpace().Dims
	numActions := env.ActionSpace().N

	var noiser agent.ParamNoiser
	if c.ParamNoise {
		var ok bool
		if noiser, ok = model.(agent.ParamNoiser); !ok {
			return model, fmt.Errorf("learn: parameter noise requested " +
				"but model cannot adapt noise")
		}
	}

	var uniformBuf *replay.Buffer
	var prioritizedBuf *replay.Prioritized
	var err error
	if c.PrioritizedReplay {
		prioritizedBuf, err = replay.NewPrioritized(c.BufferSize, obsSize,
			c.PrioritizedReplayAlpha, c.Seed)
	} else {
		uniformBuf, err = replay.New(c.BufferSize, obsSize, c.Seed)
	}
	if err != nil {
		return model, fmt.Errorf("learn: could not create replay "+
			"buffer: %v", err)
	}

	exploration := schedule.NewLinear(
		int(c.ExplorationFraction*float64(c.TotalTimesteps)),
		1.0,
		c.ExplorationFinalEps,
	)
	betaIters := c.PrioritizedReplayBetaIters
	if betaIters <= 0 {
		betaIters = c.TotalTimesteps
	}
	beta := schedule.NewLinear(betaIters, c.PrioritizedReplayBeta0, 1.0)

	logger := zerolog.Nop()
	if c.Logger != nil {
		logger = c.Logger.With().Str("run_id", uuid.NewString()).Logger()
	}

	var ckpts *checkpoint.Manager
	if c.ModelDir != "" {
		serial, ok := model.(agent.Serializable)
		if !ok {
			return model, fmt.Errorf("learn: checkpointing requested " +
				"but model cannot be serialized")
		}
		ckpts, err = checkpoint.NewManager(c.ModelDir,
			checkpoint.DefaultRetain)
		if err != nil {
			return model, fmt.Errorf("learn: could not open checkpoint "+
				"directory: %v", err)
		}
		if ckpts.HasCheckpoint() {
			// A corrupt or missing checkpoint is fatal; training would
			// otherwise silently restart from scratch.
			if err := ckpts.Restore(serial); err != nil {
				return model, fmt.Errorf("learn: could not restore "+
					"checkpoint: %v", err)
			}
			logger.Info().Str("checkpoint", ckpts.Latest()).
				Msg("restored model")
		}
	}

	var trainLog *os.File
	if c.LogPath != "" {
		trainLog, err = os.Create(c.LogPath)
		if err != nil {
			return model, fmt.Errorf("learn: could not create log "+
				"file: %v", err)
		}
		defer trainLog.Close()
	}

	var obs []float64
	if vectorized {
		dense, err := vecEnv.ResetAll()
		if err != nil {
			return model, fmt.Errorf("learn: could not reset "+
				"environments: %v", err)
		}
		obs = flatten(dense)
	} else {
		vec, err := env.Reset()
		if err != nil {
			return model, fmt.Errorf("learn: could not reset "+
				"environment: %v", err)
		}
		obs = vecToSlice(vec)
	}

	episodeRewards := []float64{0.0}
	numEpisodes := 0
	window := deque.New[float64]()
	reset := true

	for t := 1; t <= c.TotalTimesteps; t++ {
		eps := exploration.Value(t)

		if c.Callback != nil {
			stop := c.Callback(&Status{
				Step:           t,
				Episodes:       numEpisodes,
				EpisodeRewards: episodeRewards,
				Exploration:    eps,
				Model:          model,
			})
			if stop {
				return model, nil
			}
		}

		updateEps := eps
		if c.ParamNoise {
			// Exploration comes from the perturbed parameters instead
			// of random actions; the annealed rate drives the KL
			// threshold the noise scale is adapted against.
			updateEps = 0.0
			threshold := -math.Log(1 - eps + eps/float64(numActions))
			noiser.AdaptNoise(threshold, reset)
		}
		reset = false

		actions, err := model.Step(obs, numEnvs, updateEps)
		if err != nil {
			return model, fmt.Errorf("learn: could not select action "+
				"at step %d: %v", t, err)
		}

		var nextObs []float64
		var reward float64
		var done bool
		if vectorized {
			dense, rewards, dones, err := vecEnv.StepAll(actions)
			if err != nil {
				return model, fmt.Errorf("learn: could not step "+
					"environments at step %d: %v", t, err)
			}
			nextObs = flatten(dense)
			reward, done = rewards[0], dones[0]
		} else {
			vec, r, dn, err := env.Step(actions[0])
			if err != nil {
				return model, fmt.Errorf("learn: could not step "+
					"environment at step %d: %v", t, err)
			}
			nextObs = vecToSlice(vec)
			reward, done = r, dn
		}

		// One transition per tick: only the first element of a
		// vectorized batch is stored.
		storeObs := mat.NewVecDense(obsSize, copyOf(obs[:obsSize]))
		storeNext := mat.NewVecDense(obsSize, copyOf(nextObs[:obsSize]))
		if c.PrioritizedReplay {
			prioritizedBuf.Add(storeObs, actions[0], reward, storeNext,
				done)
		} else {
			uniformBuf.Add(storeObs, actions[0], reward, storeNext, done)
		}
		obs = nextObs

		episodeRewards[len(episodeRewards)-1] += reward

		if t > c.LearningStarts && t%c.TrainFreq == 0 {
			if err := learnStep(model, uniformBuf, prioritizedBuf, c,
				beta.Value(t)); err != nil {
				return model, fmt.Errorf("learn: step %d: %v", t, err)
			}
		}

		if t > c.LearningStarts && t%c.TargetUpdateFreq == 0 {
			model.UpdateTarget()
		}

		if done {
			numEpisodes++
			if c.PrintFreq > 0 {
				window.PushBack(episodeRewards[len(episodeRewards)-1])
				if window.Len() > c.PrintFreq {
					window.PopFront()
				}
			}

			if ckpts != nil && c.SaveFreq > 0 &&
				numEpisodes%c.SaveFreq == 0 {
				// Fire and forget: a failed save does not stop training
				err := ckpts.Save(model.(agent.Serializable))
				if err != nil {
					logger.Warn().Err(err).Int("episodes", numEpisodes).
						Msg("could not save checkpoint")
				}
			}

			if c.PrintFreq > 0 && numEpisodes%c.PrintFreq == 0 {
				meanReward := windowMean(window)
				if trainLog != nil {
					fmt.Fprintf(trainLog, "%d: %.1f\n", t, meanReward)
					trainLog.Sync()
				}
				logger.Info().
					Int("steps", t).
					Int("episodes", numEpisodes).
					Float64(fmt.Sprintf("mean %d episode reward",
						c.PrintFreq), meanReward).
					Int("% time spent exploring", int(100*eps)).
					Msg("progress")
			}

			if c.TotalEpisodes > 0 && numEpisodes > c.TotalEpisodes {
				return model, nil
			}

			// Vectorized sub-environments reset themselves on
			// completion
			if !vectorized {
				vec, err := env.Reset()
				if err != nil {
					return model, fmt.Errorf("learn: could not reset "+
						"environment after episode %d: %v", numEpisodes,
						err)
				}
				obs = vecToSlice(vec)
			}
			episodeRewards = append(episodeRewards, 0.0)
			reset = true
		}
	}
	return model, nil
}

// learnStep samples one batch and performs one gradient update,
// refreshing priorities from the returned TD errors when sampling is
// prioritized.
func learnStep(model agent.Model, uniformBuf *replay.Buffer,
	prioritizedBuf *replay.Prioritized, c Config, beta float64) error {
	if prioritizedBuf != nil {
		batch, err := prioritizedBuf.Sample(c.BatchSize, beta)
		if err != nil {
			return fmt.Errorf("could not sample batch: %v", err)
		}
		tdErrors, err := model.Train(batch)
		if err != nil {
			return fmt.Errorf("could not train model: %v", err)
		}
		priorities := make([]float64, len(tdErrors))
		for i, td := range tdErrors {
			// The epsilon keeps a zero-error transition from becoming
			// unsampleable
			priorities[i] = math.Abs(td) + c.PrioritizedReplayEps
		}
		err = prioritizedBuf.UpdatePriorities(batch.Indices, priorities)
		if err != nil {
			return fmt.Errorf("could not update priorities: %v", err)
		}
		return nil
	}

	batch, err := uniformBuf.Sample(c.BatchSize)
	if err != nil {
		return fmt.Errorf("could not sample batch: %v", err)
	}
	batch.Weights = make([]float64, batch.BatchSize)
	for i := range batch.Weights {
		batch.Weights[i] = 1.0
	}
	if _, err := model.Train(batch); err != nil {
		return fmt.Errorf("could not train model: %v", err)
	}
	return nil
}

// windowMean returns the mean of a recent-episode-reward window.
func windowMean(w *deque.Deque[float64]) float64 {
	if w.Len() == 0 {
		return 0.0
	}
	rewards := make([]float64, w.Len())
	for i := range rewards {
		rewards[i] = w.At(i)
	}
	return stat.Mean(rewards, nil)
}

// flatten returns the rows of m concatenated into one slice.
func flatten(m *mat.Dense) []float64 {
	rows, cols := m.Dims()
	out := make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		out = append(out, m.RawRowView(i)...)
	}
	return out
}

// vecToSlice copies a vector into a new slice.
func vecToSlice(v mat.Vector) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}

func copyOf(x []float64) []float64 {
	return append([]float64(nil), x...)
}
