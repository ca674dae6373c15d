package deepq

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/deepqgo/deepq/environment"
	"github.com/deepqgo/deepq/network"
	"github.com/deepqgo/deepq/replay"
	"github.com/deepqgo/deepq/utils/floatutils"
)

// noiseAdaptCoeff is the multiplicative step used to adapt the
// parameter-noise scale toward its KL threshold.
const noiseAdaptCoeff = 1.01

// ModelConfig configures a DQN model.
type ModelConfig struct {
	// HiddenSizes holds the width of each hidden layer of the
	// Q-network.
	HiddenSizes []int

	// LearningRate of the Adam solver, ignored when Solver is set.
	LearningRate float64

	// Gamma is the discount applied to bootstrapped next-state values.
	Gamma float64

	// BatchSize of the batches passed to Train.
	BatchSize int

	// ParamNoise selects parameter-space-noise exploration: actions
	// are chosen by a perturbed copy of the online network and the
	// perturbation scale is adapted through AdaptNoise.
	ParamNoise bool

	// InitialNoiseScale is the starting standard deviation of the
	// parameter noise.
	InitialNoiseScale float64

	// InitWFn determines the weight initialization scheme. Defaults
	// to Glorot uniform.
	InitWFn G.InitWFn

	// Solver adapts the online network weights. Defaults to Adam with
	// LearningRate.
	Solver G.Solver
}

// DefaultModelConfig returns the default DQN model configuration.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		HiddenSizes:       []int{64, 64},
		LearningRate:      5e-4,
		Gamma:             1.0,
		BatchSize:         32,
		InitialNoiseScale: 0.1,
	}
}

// Validate returns an error describing an invalid configuration
func (c ModelConfig) Validate() error {
	if c.LearningRate <= 0 {
		return fmt.Errorf("validate: learning rate must be positive, "+
			"got %v", c.LearningRate)
	}
	if c.Gamma < 0 || c.Gamma > 1 {
		return fmt.Errorf("validate: gamma must be in [0, 1], got %v",
			c.Gamma)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("validate: batch size must be >= 1, got %v",
			c.BatchSize)
	}
	for _, size := range c.HiddenSizes {
		if size < 1 {
			return fmt.Errorf("validate: hidden sizes must be positive, "+
				"got %v", c.HiddenSizes)
		}
	}
	if c.ParamNoise && c.InitialNoiseScale <= 0 {
		return fmt.Errorf("validate: initial noise scale must be positive, "+
			"got %v", c.InitialNoiseScale)
	}
	return nil
}

// DQN is a deep Q-learning model. It holds an online network for
// action selection, a training network whose weights are adapted by
// gradient descent on the weighted Bellman residual, and a target
// network that provides the bootstrapped update target:
//
//	r + γ * max[Q(s', a')]
//
// The target network is synchronized by hard copy only.
type DQN struct {
	onlineNet *network.QNet // Action selection
	onlineVM  G.VM

	// Perturbed copy of the online network used for action selection
	// under parameter-space noise
	perturbedNet *network.QNet
	perturbedVM  G.VM

	trainNet *network.QNet // Weights adapted by the solver
	trainVM  G.VM
	solver   G.Solver

	targetNet *network.QNet // Provides the update target
	targetVM  G.VM

	// Input nodes of the training graph
	nextQ     *G.Node // Action values of the next states from targetNet
	rewards   *G.Node
	discounts *G.Node // γ * (1 - done) per sample
	selected  *G.Node // One-hot actions taken at the sampled states
	weights   *G.Node // Importance-sampling weights

	tdVal G.Value // Per-sample TD errors after a training run

	gamma      float64
	features   int
	numActions int
	batchSize  int
	stepBatch  int

	paramNoise bool
	noiseScale float64
	lastObs    []float64

	rng *rand.Rand
}

// NewDQN creates and returns a new DQN model acting in the given
// environment. When env is a vectorized batch of environments, Step
// selects one action per batch element.
func NewDQN(env environment.Environment, c ModelConfig,
	seed uint64) (*DQN, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("newdqn: %v", err)
	}
	if env.ActionSpace().N < 1 {
		return nil, fmt.Errorf("newdqn: environment does not have " +
			"discrete actions")
	}

	features := env.ObservationSpace().Dims
	numActions := env.ActionSpace().N

	stepBatch := 1
	if vec, ok := env.(environment.VecEnvironment); ok {
		stepBatch = vec.NumEnvs()
	}

	init := c.InitWFn
	if init == nil {
		init = G.GlorotU(1.0)
	}

	// Training network holds the canonical online weights; the acting
	// and target networks are synchronized from it by hard copy.
	trainNet, err := network.NewQNet(features, numActions, c.BatchSize,
		c.HiddenSizes, init)
	if err != nil {
		return nil, fmt.Errorf("newdqn: could not create training "+
			"network: %v", err)
	}
	onlineNet, err := trainNet.CloneWithBatch(stepBatch)
	if err != nil {
		return nil, fmt.Errorf("newdqn: could not create online "+
			"network: %v", err)
	}
	perturbedNet, err := trainNet.CloneWithBatch(stepBatch)
	if err != nil {
		return nil, fmt.Errorf("newdqn: could not create perturbed "+
			"network: %v", err)
	}
	targetNet, err := trainNet.CloneWithBatch(c.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("newdqn: could not create target "+
			"network: %v", err)
	}

	solver := c.Solver
	if solver == nil {
		solver = G.NewAdamSolver(G.WithLearnRate(c.LearningRate))
	}

	d := &DQN{
		onlineNet:    onlineNet,
		onlineVM:     G.NewTapeMachine(onlineNet.Graph()),
		perturbedNet: perturbedNet,
		perturbedVM:  G.NewTapeMachine(perturbedNet.Graph()),
		trainNet:     trainNet,
		solver:       solver,
		targetNet:    targetNet,
		targetVM:     G.NewTapeMachine(targetNet.Graph()),
		gamma:        c.Gamma,
		features:     features,
		numActions:   numActions,
		batchSize:    c.BatchSize,
		stepBatch:    stepBatch,
		paramNoise:   c.ParamNoise,
		noiseScale:   c.InitialNoiseScale,
		rng:          rand.New(rand.NewSource(seed)),
	}

	// Nodes to compute the update target r + γ * max[Q(s', a')] and
	// the weighted mean squared TD error on the training graph
	gTrain := trainNet.Graph()
	d.nextQ = G.NewMatrix(gTrain, tensor.Float64,
		G.WithShape(c.BatchSize, numActions),
		G.WithName("targetActionValues"))
	d.rewards = G.NewVector(gTrain, tensor.Float64,
		G.WithShape(c.BatchSize), G.WithName("rewards"))
	d.discounts = G.NewVector(gTrain, tensor.Float64,
		G.WithShape(c.BatchSize), G.WithName("discounts"))
	d.weights = G.NewVector(gTrain, tensor.Float64,
		G.WithShape(c.BatchSize), G.WithName("importanceWeights"))
	d.selected = G.NewMatrix(gTrain, tensor.Float64,
		G.WithShape(c.BatchSize, numActions),
		G.WithName("selectedActions"))

	updateTarget := G.Must(G.Max(d.nextQ, 1))
	updateTarget = G.Must(G.HadamardProd(updateTarget, d.discounts))
	updateTarget = G.Must(G.Add(updateTarget, d.rewards))

	// The network outputs one value per action, so the value of the
	// selected action is picked out with a one-hot product
	selectedValue := G.Must(G.HadamardProd(trainNet.Prediction(),
		d.selected))
	selectedValue = G.Must(G.Sum(selectedValue, 1))

	tdErrors := G.Must(G.Sub(updateTarget, selectedValue))
	G.Read(tdErrors, &d.tdVal)

	losses := G.Must(G.Square(tdErrors))
	losses = G.Must(G.HadamardProd(losses, d.weights))
	cost := G.Must(G.Mean(losses))

	if _, err := G.Grad(cost, trainNet.Learnables()...); err != nil {
		return nil, fmt.Errorf("newdqn: could not compute gradient: %v", err)
	}
	d.trainVM = G.NewTapeMachine(gTrain,
		G.BindDualValues(trainNet.Learnables()...))

	if c.ParamNoise {
		if err := perturbedNet.PerturbFrom(trainNet, d.noiseScale,
			d.rng); err != nil {
			return nil, fmt.Errorf("newdqn: could not perturb network: %v",
				err)
		}
	}
	return d, nil
}

// Step selects one action per observation in a flattened batch-first
// observation matrix. With probability eps each action is uniformly
// random, otherwise the action with the highest predicted value is
// chosen, ties broken at random.
func (d *DQN) Step(obs []float64, batch int, eps float64) ([]int, error) {
	if batch != d.stepBatch {
		return nil, fmt.Errorf("step: invalid batch size \n\twant(%v)"+
			"\n\thave(%v)", d.stepBatch, batch)
	}
	if len(obs) != batch*d.features {
		return nil, fmt.Errorf("step: invalid observation size "+
			"\n\twant(%v)\n\thave(%v)", batch*d.features, len(obs))
	}

	d.lastObs = append(d.lastObs[:0], obs...)

	net, vm := d.onlineNet, d.onlineVM
	if d.paramNoise {
		net, vm = d.perturbedNet, d.perturbedVM
	}
	values, err := d.predict(net, vm, obs)
	if err != nil {
		return nil, fmt.Errorf("step: %v", err)
	}

	actions := make([]int, batch)
	for i := range actions {
		if d.rng.Float64() < eps {
			actions[i] = d.rng.Intn(d.numActions)
			continue
		}
		row := values[i*d.numActions : (i+1)*d.numActions]
		_, indices := floatutils.ArgMax(row)
		actions[i] = indices[d.rng.Intn(len(indices))]
	}
	return actions, nil
}

// predict runs a network's forward pass and returns a copy of its
// predicted action values.
func (d *DQN) predict(net *network.QNet, vm G.VM,
	obs []float64) ([]float64, error) {
	if err := net.SetInput(append([]float64(nil), obs...)); err != nil {
		return nil, err
	}
	if err := vm.RunAll(); err != nil {
		return nil, fmt.Errorf("predict: could not run forward pass: %v",
			err)
	}
	values := append([]float64(nil), net.Output().Data().([]float64)...)
	vm.Reset()
	return values, nil
}

// Train performs one gradient step on the importance-weighted Bellman
// residual of a batch and returns the per-sample TD errors.
func (d *DQN) Train(b *replay.Batch) ([]float64, error) {
	if b.BatchSize != d.batchSize {
		return nil, fmt.Errorf("train: invalid batch size \n\twant(%v)"+
			"\n\thave(%v)", d.batchSize, b.BatchSize)
	}
	if b.ObsSize != d.features {
		return nil, fmt.Errorf("train: invalid observation size "+
			"\n\twant(%v)\n\thave(%v)", d.features, b.ObsSize)
	}

	// Predict the next-state action values with the target network
	if err := d.targetNet.SetInput(append([]float64(nil),
		b.NextObs...)); err != nil {
		return nil, fmt.Errorf("train: could not set target net input: %v",
			err)
	}
	if err := d.targetVM.RunAll(); err != nil {
		return nil, fmt.Errorf("train: could not run target net: %v", err)
	}
	if err := G.Let(d.nextQ, d.targetNet.Output()); err != nil {
		return nil, fmt.Errorf("train: could not set next state-action "+
			"values: %v", err)
	}
	d.targetVM.Reset()

	onehot := make([]float64, d.batchSize*d.numActions)
	discounts := make([]float64, d.batchSize)
	for i := 0; i < d.batchSize; i++ {
		onehot[i*d.numActions+b.Actions[i]] = 1.0
		discounts[i] = d.gamma * (1.0 - b.Dones[i])
	}

	weights := b.Weights
	if weights == nil {
		weights = make([]float64, d.batchSize)
		for i := range weights {
			weights[i] = 1.0
		}
	}

	if err := d.trainNet.SetInput(append([]float64(nil),
		b.Obs...)); err != nil {
		return nil, fmt.Errorf("train: could not set train net input: %v",
			err)
	}
	inputs := map[*G.Node][]float64{
		d.rewards:   b.Rewards,
		d.discounts: discounts,
		d.weights:   weights,
	}
	for node, data := range inputs {
		value := tensor.New(
			tensor.WithBacking(append([]float64(nil), data...)),
			tensor.WithShape(d.batchSize),
		)
		if err := G.Let(node, value); err != nil {
			return nil, fmt.Errorf("train: could not set %v: %v",
				node.Name(), err)
		}
	}
	selected := tensor.New(
		tensor.WithBacking(onehot),
		tensor.WithShape(d.batchSize, d.numActions),
	)
	if err := G.Let(d.selected, selected); err != nil {
		return nil, fmt.Errorf("train: could not set selected actions: %v",
			err)
	}

	if err := d.trainVM.RunAll(); err != nil {
		return nil, fmt.Errorf("train: could not run training step: %v", err)
	}
	if err := d.solver.Step(d.trainNet.Model()); err != nil {
		return nil, fmt.Errorf("train: could not step solver: %v", err)
	}
	tdErrors := append([]float64(nil), d.tdVal.Data().([]float64)...)
	d.trainVM.Reset()

	// Keep the acting network in sync with the learned weights
	if err := d.onlineNet.Set(d.trainNet); err != nil {
		return nil, fmt.Errorf("train: could not sync online network: %v",
			err)
	}
	return tdErrors, nil
}

// UpdateTarget hard-copies the online parameters into the target
// network.
func (d *DQN) UpdateTarget() {
	if err := d.targetNet.Set(d.trainNet); err != nil {
		panic(fmt.Sprintf("updatetarget: could not copy weights: %v", err))
	}
}

// AdaptNoise adapts the parameter-noise scale toward the given KL
// threshold and redraws the perturbation of the acting network. The
// scale is grown when the perturbed policy stays within the threshold
// of the clean policy and shrunk otherwise.
func (d *DQN) AdaptNoise(threshold float64, reset bool) {
	if !d.paramNoise {
		return
	}

	if !reset && d.lastObs != nil {
		if d.policyKL() < threshold {
			d.noiseScale *= noiseAdaptCoeff
		} else {
			d.noiseScale /= noiseAdaptCoeff
		}
	}

	err := d.perturbedNet.PerturbFrom(d.trainNet, d.noiseScale, d.rng)
	if err != nil {
		panic(fmt.Sprintf("adaptnoise: could not perturb network: %v", err))
	}
}

// policyKL estimates the KL divergence between the softmax policies of
// the clean and perturbed networks on the most recent observations.
func (d *DQN) policyKL() float64 {
	clean, err := d.predict(d.onlineNet, d.onlineVM, d.lastObs)
	if err != nil {
		panic(fmt.Sprintf("policykl: %v", err))
	}
	noisy, err := d.predict(d.perturbedNet, d.perturbedVM, d.lastObs)
	if err != nil {
		panic(fmt.Sprintf("policykl: %v", err))
	}

	kl := 0.0
	for i := 0; i < d.stepBatch; i++ {
		p := logSoftmax(clean[i*d.numActions : (i+1)*d.numActions])
		q := logSoftmax(noisy[i*d.numActions : (i+1)*d.numActions])
		for j := range p {
			kl += math.Exp(p[j]) * (p[j] - q[j])
		}
	}
	return kl / float64(d.stepBatch)
}

// logSoftmax returns the log of the softmax distribution over x
func logSoftmax(x []float64) []float64 {
	lse := floats.LogSumExp(x)
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = v - lse
	}
	return out
}

// NoiseScale returns the current parameter-noise standard deviation.
func (d *DQN) NoiseScale() float64 { return d.noiseScale }

// GobEncode implements the gob.GobEncoder interface, snapshotting the
// online network weights.
func (d *DQN) GobEncode() ([]byte, error) {
	return d.trainNet.GobEncode()
}

// GobDecode implements the gob.GobDecoder interface, restoring the
// online network weights and synchronizing the acting and target
// networks with them.
func (d *DQN) GobDecode(in []byte) error {
	if err := d.trainNet.GobDecode(in); err != nil {
		return fmt.Errorf("gobdecode: %v", err)
	}
	if err := d.onlineNet.Set(d.trainNet); err != nil {
		return fmt.Errorf("gobdecode: could not sync online network: %v",
			err)
	}
	if err := d.targetNet.Set(d.trainNet); err != nil {
		return fmt.Errorf("gobdecode: could not sync target network: %v",
			err)
	}
	if d.paramNoise {
		if err := d.perturbedNet.PerturbFrom(d.trainNet, d.noiseScale,
			d.rng); err != nil {
			return fmt.Errorf("gobdecode: could not perturb network: %v",
				err)
		}
	}
	return nil
}
