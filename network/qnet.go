// Package network implements the gorgonia-backed function
// approximators used for action-value prediction. A QNet is a
// multi-layered perceptron mapping a batch of observations to one
// predicted value per action.
package network

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// fcLayer implements a fully connected layer of a feed forward neural
// network
type fcLayer struct {
	weights *G.Node
	bias    *G.Node
	act     func(x *G.Node) (*G.Node, error)
}

// fwd adds the forward pass of the fcLayer to the computational graph
func (f *fcLayer) fwd(x *G.Node) (*G.Node, error) {
	x = G.Must(G.Mul(x, f.weights))

	// Broadcast the bias weights to all samples along the batch
	// dimension
	x = G.Must(G.BroadcastAdd(x, f.bias, nil, []byte{0}))

	if f.act == nil {
		return x, nil
	}
	return f.act(x)
}

// QNet is a multi-layered perceptron predicting one action value per
// action for every observation in a fixed-size input batch. Hidden
// layers use ReLU activations; the output layer is linear.
type QNet struct {
	g      *G.ExprGraph
	input  *G.Node
	layers []*fcLayer

	features    int
	actions     int
	batchSize   int
	hiddenSizes []int

	learnables G.Nodes
	model      []G.ValueGrad

	prediction *G.Node
	predVal    G.Value
}

// NewQNet returns a new QNet predicting actions action values from
// features input features, operating on input batches of batchSize
// rows. The parameter init determines the weight initialization
// scheme.
func NewQNet(features, actions, batchSize int, hiddenSizes []int,
	init G.InitWFn) (*QNet, error) {
	if features < 1 || actions < 1 {
		return nil, fmt.Errorf("newqnet: features and actions must be "+
			"positive \n\thave(%v, %v)", features, actions)
	}
	if batchSize < 1 {
		return nil, fmt.Errorf("newqnet: batch size must be positive, "+
			"got %v", batchSize)
	}

	g := G.NewGraph()
	input := G.NewMatrix(g, tensor.Float64,
		G.WithShape(batchSize, features), G.WithName("observations"),
		G.WithInit(G.Zeroes()))

	sizes := append(append([]int{}, hiddenSizes...), actions)
	layers := make([]*fcLayer, len(sizes))
	in := features
	for i, out := range sizes {
		var act func(*G.Node) (*G.Node, error)
		if i < len(sizes)-1 {
			act = G.Rectify
		}
		layers[i] = &fcLayer{
			weights: G.NewMatrix(g, tensor.Float64, G.WithShape(in, out),
				G.WithName(fmt.Sprintf("layer%dweights", i)),
				G.WithInit(init)),
			bias: G.NewMatrix(g, tensor.Float64, G.WithShape(1, out),
				G.WithName(fmt.Sprintf("layer%dbias", i)),
				G.WithInit(G.Zeroes())),
			act: act,
		}
		in = out
	}

	q := &QNet{
		g:           g,
		input:       input,
		layers:      layers,
		features:    features,
		actions:     actions,
		batchSize:   batchSize,
		hiddenSizes: hiddenSizes,
	}
	if err := q.fwd(); err != nil {
		return nil, fmt.Errorf("newqnet: %v", err)
	}
	return q, nil
}

// fwd performs the forward pass of the QNet on the input node
func (q *QNet) fwd() error {
	pred := q.input
	var err error
	for i, layer := range q.layers {
		if pred, err = layer.fwd(pred); err != nil {
			return fmt.Errorf("fwd: could not compute forward pass of "+
				"layer %v: %v", i, err)
		}
	}

	q.prediction = pred
	G.Read(q.prediction, &q.predVal)
	return nil
}

// Graph returns the computational graph of the QNet
func (q *QNet) Graph() *G.ExprGraph { return q.g }

// BatchSize returns the number of observations in an input batch
func (q *QNet) BatchSize() int { return q.batchSize }

// Features returns the number of features in a single observation
func (q *QNet) Features() int { return q.features }

// Actions returns the number of action values predicted per
// observation
func (q *QNet) Actions() int { return q.actions }

// CloneWithBatch returns a new QNet with the same architecture and
// weights as the receiver on a fresh graph, operating on input
// batches of the given size.
func (q *QNet) CloneWithBatch(batchSize int) (*QNet, error) {
	clone, err := NewQNet(q.features, q.actions, batchSize, q.hiddenSizes,
		G.Zeroes())
	if err != nil {
		return nil, fmt.Errorf("clonewithbatch: %v", err)
	}
	if err := clone.Set(q); err != nil {
		return nil, fmt.Errorf("clonewithbatch: %v", err)
	}
	return clone, nil
}

// SetInput sets the value of the input node before running the
// forward pass.
func (q *QNet) SetInput(obs []float64) error {
	if len(obs) != q.features*q.batchSize {
		return fmt.Errorf("setinput: invalid number of inputs \n\twant(%v)"+
			"\n\thave(%v)", q.features*q.batchSize, len(obs))
	}
	input := tensor.New(
		tensor.WithBacking(obs),
		tensor.WithShape(q.batchSize, q.features),
	)
	return G.Let(q.input, input)
}

// Set hard-copies the weights of another QNet into the receiver. The
// two networks must share an architecture but may have different
// batch sizes.
func (q *QNet) Set(src *QNet) error {
	srcNodes := src.Learnables()
	nodes := q.Learnables()
	if len(srcNodes) != len(nodes) {
		return fmt.Errorf("set: mismatched architectures \n\twant(%v "+
			"learnables)\n\thave(%v)", len(nodes), len(srcNodes))
	}

	for i, node := range nodes {
		value := srcNodes[i].Value().(*tensor.Dense).Clone().(*tensor.Dense)
		if err := G.Let(node, value); err != nil {
			return fmt.Errorf("set: could not copy learnable %v: %v", i, err)
		}
	}
	return nil
}

// PerturbFrom sets the receiver's weights to the weights of src plus
// independent Gaussian noise with the given standard deviation.
func (q *QNet) PerturbFrom(src *QNet, stddev float64,
	source rand.Source) error {
	if stddev <= 0 {
		return q.Set(src)
	}
	noise := distuv.Normal{Mu: 0, Sigma: stddev, Src: source}

	srcNodes := src.Learnables()
	nodes := q.Learnables()
	if len(srcNodes) != len(nodes) {
		return fmt.Errorf("perturbfrom: mismatched architectures")
	}

	for i, node := range nodes {
		clean := srcNodes[i].Value().(*tensor.Dense).Data().([]float64)
		perturbed := make([]float64, len(clean))
		for j, w := range clean {
			perturbed[j] = w + noise.Rand()
		}

		value := tensor.New(
			tensor.WithBacking(perturbed),
			tensor.WithShape(srcNodes[i].Shape()...),
		)
		if err := G.Let(node, value); err != nil {
			return fmt.Errorf("perturbfrom: could not perturb learnable "+
				"%v: %v", i, err)
		}
	}
	return nil
}

// Learnables returns the learnable nodes in a QNet
func (q *QNet) Learnables() G.Nodes {
	// Lazy instantiation
	if q.learnables == nil {
		q.learnables = make(G.Nodes, 0, 2*len(q.layers))
		for _, layer := range q.layers {
			q.learnables = append(q.learnables, layer.weights, layer.bias)
		}
	}
	return q.learnables
}

// Model returns the learnable nodes with their gradients.
func (q *QNet) Model() []G.ValueGrad {
	// Lazy instantiation
	if q.model == nil {
		q.model = make([]G.ValueGrad, 0, 2*len(q.layers))
		for _, node := range q.Learnables() {
			q.model = append(q.model, node)
		}
	}
	return q.model
}

// Prediction returns the node of the computational graph that stores
// the output of the QNet
func (q *QNet) Prediction() *G.Node { return q.prediction }

// Output returns the value of the QNet's prediction after the graph
// has been run.
func (q *QNet) Output() G.Value { return q.predVal }

// GobEncode implements the gob.GobEncoder interface
func (q *QNet) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)

	if err := enc.Encode(q.features); err != nil {
		return nil, fmt.Errorf("gobencode: could not encode features: %v",
			err)
	}
	if err := enc.Encode(q.actions); err != nil {
		return nil, fmt.Errorf("gobencode: could not encode actions: %v",
			err)
	}
	if err := enc.Encode(q.hiddenSizes); err != nil {
		return nil, fmt.Errorf("gobencode: could not encode hidden "+
			"sizes: %v", err)
	}

	for i, node := range q.Learnables() {
		data := node.Value().(*tensor.Dense).Data().([]float64)
		if err := enc.Encode(data); err != nil {
			return nil, fmt.Errorf("gobencode: could not encode learnable "+
				"%v: %v", i, err)
		}
	}
	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface. The encoded
// network must share the receiver's architecture.
func (q *QNet) GobDecode(in []byte) error {
	dec := gob.NewDecoder(bytes.NewReader(in))

	var features, actions int
	var hiddenSizes []int
	if err := dec.Decode(&features); err != nil {
		return fmt.Errorf("gobdecode: could not decode features: %v", err)
	}
	if err := dec.Decode(&actions); err != nil {
		return fmt.Errorf("gobdecode: could not decode actions: %v", err)
	}
	if err := dec.Decode(&hiddenSizes); err != nil {
		return fmt.Errorf("gobdecode: could not decode hidden sizes: %v",
			err)
	}

	if features != q.features || actions != q.actions ||
		len(hiddenSizes) != len(q.hiddenSizes) {
		return fmt.Errorf("gobdecode: encoded network does not match "+
			"\n\twant(%v -> %v -> %v)\n\thave(%v -> %v -> %v)",
			q.features, q.hiddenSizes, q.actions,
			features, hiddenSizes, actions)
	}

	for i, node := range q.Learnables() {
		var data []float64
		if err := dec.Decode(&data); err != nil {
			return fmt.Errorf("gobdecode: could not decode learnable %v: "+
				"%v", i, err)
		}

		weights := node.Value().(*tensor.Dense).Data().([]float64)
		if len(data) != len(weights) {
			return fmt.Errorf("gobdecode: learnable %v has %v weights, "+
				"expected %v", i, len(data), len(weights))
		}
		copy(weights, data)
	}
	return nil
}
