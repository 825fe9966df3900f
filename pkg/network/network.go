package network

import (
	"gonum.org/v1/gonum/mat"

	"github.com/mlsafety/cegarete/pkg/errors"
)

// LayerKind tells input, hidden and output layers apart.
type LayerKind string

// Layer kinds.
const (
	LayerInput  LayerKind = "input"
	LayerHidden LayerKind = "hidden"
	LayerOutput LayerKind = "output"
)

// Layer is a view of one network layer.
type Layer struct {
	Kind       LayerKind
	Nodes      []NeuronID
	Activation Activation
}

// Network is a fully-connected feed-forward network. For L layers there are
// L-1 weight tables (Weights[i] connects layer i to layer i+1), L bias tables
// and L activations. The input layer conventionally has zero biases and the
// identity activation.
type Network struct {
	Weights     []*Table
	Biases      []*Biases
	Activations []Activation
}

// New assembles a network and validates its structure.
func New(weights []*Table, biases []*Biases, activations []Activation) (*Network, error) {
	n := &Network{Weights: weights, Biases: biases, Activations: activations}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return n, nil
}

// LayerCount returns the number of layers, inputs and outputs included.
func (n *Network) LayerCount() int { return len(n.Weights) + 1 }

// InputIDs returns the input layer ids in table order.
func (n *Network) InputIDs() []NeuronID { return n.Weights[0].Srcs() }

// OutputIDs returns the output layer ids in table order.
func (n *Network) OutputIDs() []NeuronID { return n.Weights[len(n.Weights)-1].Dests() }

// LayerIDs returns the ids of layer i in table order.
func (n *Network) LayerIDs(i int) []NeuronID {
	if i == n.LayerCount()-1 {
		return n.OutputIDs()
	}
	return n.Weights[i].Srcs()
}

// Layers returns a per-layer view of the network.
func (n *Network) Layers() []Layer {
	layers := make([]Layer, n.LayerCount())
	for i := range layers {
		kind := LayerHidden
		if i == 0 {
			kind = LayerInput
		} else if i == n.LayerCount()-1 {
			kind = LayerOutput
		}
		layers[i] = Layer{Kind: kind, Nodes: n.LayerIDs(i), Activation: n.Activations[i]}
	}
	return layers
}

// NeuronCount returns the total number of neurons.
func (n *Network) NeuronCount() int {
	total := 0
	for i := 0; i < n.LayerCount(); i++ {
		total += len(n.LayerIDs(i))
	}
	return total
}

// Validate checks the pairwise consistency of tables: every weight table's
// destinations are the next table's sources and every layer's bias ids match
// its neuron ids.
func (n *Network) Validate() error {
	if len(n.Weights)+1 != len(n.Biases) {
		return errors.Wrapf(errors.ErrNetworkStructure,
			"%d weight tables need %d bias tables, have %d",
			len(n.Weights), len(n.Weights)+1, len(n.Biases))
	}
	if len(n.Activations) != len(n.Biases) {
		return errors.Wrapf(errors.ErrNetworkStructure,
			"have %d activations for %d layers", len(n.Activations), len(n.Biases))
	}
	for i := 0; i < len(n.Weights)-1; i++ {
		if !sameIDs(n.Weights[i].Dests(), n.Weights[i+1].Srcs()) {
			return errors.Wrapf(errors.ErrNetworkStructure,
				"weight tables %d and %d disagree on layer %d", i, i+1, i+1)
		}
	}
	for i, w := range n.Weights {
		if !sameIDs(w.Srcs(), n.Biases[i].IDs()) {
			return errors.Wrapf(errors.ErrNetworkStructure, "bias ids of layer %d do not match", i)
		}
	}
	last := len(n.Weights) - 1
	if !sameIDs(n.Weights[last].Dests(), n.Biases[last+1].IDs()) {
		return errors.Wrap(errors.ErrNetworkStructure, "bias ids of output layer do not match")
	}
	return nil
}

func sameIDs(a, b []NeuronID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the network.
func (n *Network) Clone() *Network {
	weights := make([]*Table, len(n.Weights))
	for i, w := range n.Weights {
		weights[i] = w.Clone()
	}
	biases := make([]*Biases, len(n.Biases))
	for i, b := range n.Biases {
		biases[i] = b.Clone()
	}
	return &Network{
		Weights:     weights,
		Biases:      biases,
		Activations: append([]Activation(nil), n.Activations...),
	}
}

// inputVector orders the assignment by the input layer, failing on missing
// neurons.
func (n *Network) inputVector(inputs map[NeuronID]float64) (*mat.VecDense, error) {
	ids := n.InputIDs()
	v := mat.NewVecDense(len(ids), nil)
	for i, id := range ids {
		val, ok := inputs[id]
		if !ok {
			return nil, errors.Wrapf(errors.ErrUnknownNeuron, "missing input %s", id)
		}
		v.SetVec(i, val)
	}
	return v, nil
}

func applyActivation(a Activation, v *mat.VecDense) {
	if a != ActivationRelu {
		return
	}
	for i := 0; i < v.Len(); i++ {
		v.SetVec(i, a.Apply(v.AtVec(i)))
	}
}

// forward runs the network, invoking visit with the post-activation values of
// each layer in order.
func (n *Network) forward(inputs map[NeuronID]float64, visit func(layer int, ids []NeuronID, values *mat.VecDense)) error {
	v, err := n.inputVector(inputs)
	if err != nil {
		return err
	}
	v.AddVec(v, mat.NewVecDense(v.Len(), n.Biases[0].Vector()))
	applyActivation(n.Activations[0], v)
	visit(0, n.InputIDs(), v)

	for i, w := range n.Weights {
		next := mat.NewVecDense(len(w.Dests()), nil)
		next.MulVec(w.Matrix().T(), v)
		next.AddVec(next, mat.NewVecDense(next.Len(), n.Biases[i+1].Vector()))
		applyActivation(n.Activations[i+1], next)
		visit(i+1, w.Dests(), next)
		v = next
	}
	return nil
}

// Evaluate runs the network on the given input assignment and returns the
// output values.
func (n *Network) Evaluate(inputs map[NeuronID]float64) (map[NeuronID]float64, error) {
	out := make(map[NeuronID]float64, len(n.OutputIDs()))
	last := n.LayerCount() - 1
	err := n.forward(inputs, func(layer int, ids []NeuronID, values *mat.VecDense) {
		if layer == last {
			for i, id := range ids {
				out[id] = values.AtVec(i)
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// EvaluateAll runs the network and returns the post-activation value of every
// neuron, keyed by id. Refinement strategies use this to rank neurons by
// activation under a counterexample.
func (n *Network) EvaluateAll(inputs map[NeuronID]float64) (map[NeuronID]float64, error) {
	out := make(map[NeuronID]float64, n.NeuronCount())
	err := n.forward(inputs, func(_ int, ids []NeuronID, values *mat.VecDense) {
		for i, id := range ids {
			out[id] = values.AtVec(i)
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Origins returns the concrete neurons folded into id in the given layer, or
// nil if id was never merged. Legal only for layers with an incoming bias
// table (every layer has one).
func (n *Network) Origins(layer int, id NeuronID) []NeuronID {
	return n.Biases[layer].Origins(id)
}

// Info is a compact structural summary for logging.
type Info struct {
	LayerSizes []int `json:"layer_sizes"`
	Neurons    int   `json:"neurons"`
}

// Summary returns structural info about the network.
func (n *Network) Summary() Info {
	sizes := make([]int, n.LayerCount())
	for i := range sizes {
		sizes[i] = len(n.LayerIDs(i))
	}
	return Info{LayerSizes: sizes, Neurons: n.NeuronCount()}
}
