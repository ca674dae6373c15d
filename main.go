package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/deepqgo/deepq/deepq"
	"github.com/deepqgo/deepq/environment"
	"github.com/deepqgo/deepq/environment/cartpole"
	"github.com/deepqgo/deepq/initwfn"
	"github.com/deepqgo/deepq/solver"
)

var (
	cfg        deepq.Config
	modelCfg   deepq.ModelConfig
	numEnvs    int
	logLevel   string
	initName   string
	initGain   float64
	solverName string
)

var rootCmd = &cobra.Command{
	Use:   "deepq",
	Short: "Train a deep Q-learning agent on cart-pole",
	Long: `Trains a Q-network on the cart-pole balancing task with
experience replay, epsilon-greedy exploration, and a periodically
synchronized target network. Prioritized replay and parameter-space
exploration noise are optional.`,
	RunE: runTrain,
}

func init() {
	cfg = deepq.DefaultConfig()
	modelCfg = deepq.DefaultModelConfig()

	flags := rootCmd.Flags()

	// Loop settings
	flags.IntVar(&cfg.TotalTimesteps, "timesteps", cfg.TotalTimesteps,
		"Total environment steps to train for")
	flags.IntVar(&cfg.TotalEpisodes, "episodes", cfg.TotalEpisodes,
		"Episode cap (0 for unlimited)")
	flags.IntVar(&cfg.BufferSize, "buffer-size", cfg.BufferSize,
		"Replay buffer capacity")
	flags.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize,
		"Training batch size")
	flags.IntVar(&cfg.TrainFreq, "train-freq", cfg.TrainFreq,
		"Steps between gradient updates")
	flags.IntVar(&cfg.LearningStarts, "learning-starts",
		cfg.LearningStarts, "Steps before learning begins")
	flags.IntVar(&cfg.TargetUpdateFreq, "target-update-freq",
		cfg.TargetUpdateFreq, "Steps between target network syncs")
	flags.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "Random seed")
	flags.IntVar(&numEnvs, "num-envs", 1,
		"Number of vectorized cart-pole environments")

	// Exploration settings
	flags.Float64Var(&cfg.ExplorationFraction, "exploration-fraction",
		cfg.ExplorationFraction,
		"Fraction of training over which exploration is annealed")
	flags.Float64Var(&cfg.ExplorationFinalEps, "exploration-final-eps",
		cfg.ExplorationFinalEps, "Final exploration rate")
	flags.BoolVar(&cfg.ParamNoise, "param-noise", false,
		"Explore with parameter-space noise instead of random actions")

	// Prioritized replay settings
	flags.BoolVar(&cfg.PrioritizedReplay, "prioritized", false,
		"Sample transitions proportionally to their TD error")
	flags.Float64Var(&cfg.PrioritizedReplayAlpha, "prioritized-alpha",
		cfg.PrioritizedReplayAlpha, "Prioritization exponent")
	flags.Float64Var(&cfg.PrioritizedReplayBeta0, "prioritized-beta0",
		cfg.PrioritizedReplayBeta0,
		"Initial importance-sampling exponent")

	// Model settings
	flags.Float64Var(&modelCfg.LearningRate, "lr", modelCfg.LearningRate,
		"Adam learning rate")
	flags.Float64Var(&modelCfg.Gamma, "gamma", modelCfg.Gamma,
		"Discount factor")
	flags.IntSliceVar(&modelCfg.HiddenSizes, "hidden",
		modelCfg.HiddenSizes, "Hidden layer sizes of the Q-network")
	flags.StringVar(&initName, "init", initwfn.GlorotU,
		"Weight initialization (glorotu, glorotn, heu, hen, zeroes, ones)")
	flags.Float64Var(&initGain, "init-gain", 1.0,
		"Gain of the weight initialization")
	flags.StringVar(&solverName, "solver", solver.Adam,
		"Gradient descent solver (adam, vanilla, rmsprop)")

	// Output settings
	flags.IntVar(&cfg.PrintFreq, "print-freq", cfg.PrintFreq,
		"Episodes between progress records")
	flags.StringVar(&cfg.LogPath, "log-path", "",
		"Text log file (empty to disable)")
	flags.IntVar(&cfg.SaveFreq, "save-freq", cfg.SaveFreq,
		"Episodes between checkpoints")
	flags.StringVar(&cfg.ModelDir, "model-dir", "",
		"Checkpoint directory (empty to disable)")
	flags.StringVar(&logLevel, "log-level", "info",
		"Log level (debug, info, warn, error)")

	// Bind flags to viper for environment variable support
	viper.BindPFlags(flags)
	viper.SetEnvPrefix("DEEPQ")
	viper.AutomaticEnv()
}

func runTrain(cmd *cobra.Command, args []string) error {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %v", logLevel, err)
	}
	logger := zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}).Level(level).With().Timestamp().Logger()

	var env environment.Environment = cartpole.New(cfg.Seed)
	if numEnvs > 1 {
		envs := make([]environment.Environment, numEnvs)
		for i := range envs {
			envs[i] = cartpole.New(cfg.Seed + uint64(i))
		}
		env, err = environment.Vectorize(envs...)
		if err != nil {
			return fmt.Errorf("could not vectorize environments: %v", err)
		}
	}

	modelCfg.BatchSize = cfg.BatchSize
	modelCfg.ParamNoise = cfg.ParamNoise
	if modelCfg.InitWFn, err = initwfn.New(initName, initGain); err != nil {
		return err
	}
	modelCfg.Solver, err = solver.New(solverName, modelCfg.LearningRate)
	if err != nil {
		return err
	}
	model, err := deepq.NewDQN(env, modelCfg, cfg.Seed)
	if err != nil {
		return fmt.Errorf("could not create model: %v", err)
	}

	logger.Info().
		Int("timesteps", cfg.TotalTimesteps).
		Int("num_envs", numEnvs).
		Bool("prioritized", cfg.PrioritizedReplay).
		Bool("param_noise", cfg.ParamNoise).
		Msg("starting training")

	cfg.Logger = &logger
	if _, err := deepq.Learn(env, model, cfg); err != nil {
		return fmt.Errorf("training failed: %v", err)
	}

	logger.Info().Msg("training complete")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
