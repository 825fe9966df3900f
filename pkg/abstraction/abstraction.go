package abstraction

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/mlsafety/cegarete/pkg/errors"
	"github.com/mlsafety/cegarete/pkg/network"
)

// Step merges a group of same-typed neurons of one hidden layer into a
// single abstract neuron.
type Step struct {
	Layer int
	NewID network.NeuronID
	Nodes []network.NeuronID
}

// NewStep builds a merge step named name over the given nodes. All nodes
// must be classified and share the same sign and scaling; the new neuron
// inherits them.
func NewStep(layer int, name string, nodes []network.NeuronID) (Step, error) {
	if len(nodes) < 2 {
		return Step{}, errors.Wrapf(errors.ErrStepTooSmall, "%d nodes", len(nodes))
	}
	for _, n := range nodes {
		if !n.Classified() {
			return Step{}, errors.Wrap(errors.ErrUnclassifiedNeuron, n.Name)
		}
		if !n.SameType(nodes[0]) {
			return Step{}, errors.Wrapf(errors.ErrMixedNeuronTypes, "%s vs %s", n, nodes[0])
		}
	}
	return Step{
		Layer: layer,
		NewID: network.TypedNID(name, nodes[0].Sign, nodes[0].Scaling),
		Nodes: network.SortIDs(nodes),
	}, nil
}

// Apply merges the step's nodes in the network and returns the result. The
// incoming weights and bias of the abstract neuron take the maximum over the
// merged nodes for increasing neurons and the minimum for decreasing ones;
// its outgoing weights take the sum. Only layers 2..LayerCount-2 can be
// abstracted.
func Apply(net *network.Network, s Step) (*network.Network, error) {
	if s.Layer < 2 || s.Layer > net.LayerCount()-2 {
		return nil, errors.Wrapf(errors.ErrLayerNotAbstractable, "layer %d of %d", s.Layer, net.LayerCount())
	}

	agg := network.AggMax
	if s.NewID.Scaling == network.ScalingDec {
		agg = network.AggMin
	}

	incoming, err := net.Weights[s.Layer-1].MergeColumns(s.NewID, s.Nodes, agg)
	if err != nil {
		return nil, err
	}
	outgoing, err := net.Weights[s.Layer].MergeRows(s.NewID, s.Nodes, network.AggSum)
	if err != nil {
		return nil, err
	}
	biases, err := net.Biases[s.Layer].Merge(s.NewID, s.Nodes, agg)
	if err != nil {
		return nil, err
	}

	weights := append([]*network.Table(nil), net.Weights...)
	allBiases := append([]*network.Biases(nil), net.Biases...)
	weights[s.Layer-1], weights[s.Layer] = incoming, outgoing
	allBiases[s.Layer] = biases
	return network.New(weights, allBiases, append([]network.Activation(nil), net.Activations...))
}

// Strategy decides which merge steps to apply to a preprocessed network.
type Strategy interface {
	Steps(net *network.Network) ([]Step, error)
}

// Abstract applies the strategy's steps in order and returns the abstracted
// network. The input network is not modified.
func Abstract(net *network.Network, strategy Strategy) (*network.Network, error) {
	steps, err := strategy.Steps(net)
	if err != nil {
		return nil, err
	}
	current := net
	for _, s := range steps {
		current, err = Apply(current, s)
		if err != nil {
			return nil, err
		}
	}
	return current, nil
}

// groupByType buckets a layer's neurons by (sign, scaling), dropping
// unclassified neurons. Group order follows the first sorted member.
func groupByType(ids []network.NeuronID) [][]network.NeuronID {
	byType := make(map[[2]string][]network.NeuronID)
	for _, id := range network.SortIDs(ids) {
		if !id.Classified() {
			continue
		}
		key := [2]string{string(id.Sign), string(id.Scaling)}
		byType[key] = append(byType[key], id)
	}
	groups := make([][]network.NeuronID, 0, len(byType))
	for _, g := range byType {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i][0].Less(groups[j][0]) })
	return groups
}

func groupName(layer int, id network.NeuronID) string {
	name := fmt.Sprintf("a%d", layer)
	if id.Sign == network.SignPos {
		name += "+"
	} else {
		name += "-"
	}
	if id.Scaling == network.ScalingInc {
		name += "I"
	} else {
		name += "D"
	}
	return name
}

// completeSteps produces one step per type group per layer, visiting layers
// in the given order.
func completeSteps(net *network.Network, layers []int) ([]Step, error) {
	var steps []Step
	for _, l := range layers {
		for _, group := range groupByType(net.Biases[l].IDs()) {
			if len(group) < 2 {
				continue
			}
			s, err := NewStep(l, groupName(l, group[0]), group)
			if err != nil {
				return nil, err
			}
			steps = append(steps, s)
		}
	}
	return steps, nil
}

// CompleteLeftToRight merges every type group of every abstractable layer,
// starting at the layer closest to the inputs.
type CompleteLeftToRight struct{}

func (CompleteLeftToRight) Steps(net *network.Network) ([]Step, error) {
	return completeSteps(net, splitLayers(net))
}

// CompleteRightToLeft merges every type group of every abstractable layer,
// starting at the layer closest to the outputs.
type CompleteRightToLeft struct{}

func (CompleteRightToLeft) Steps(net *network.Network) ([]Step, error) {
	layers := splitLayers(net)
	for i, j := 0, len(layers)-1; i < j; i, j = i+1, j-1 {
		layers[i], layers[j] = layers[j], layers[i]
	}
	return completeSteps(net, layers)
}

// Random partitions every type group into random chunks of at least two
// neurons and applies the resulting steps in random order.
type Random struct {
	Seed int64
}

func (r Random) Steps(net *network.Network) ([]Step, error) {
	rng := rand.New(rand.NewSource(r.Seed))

	full, err := completeSteps(net, splitLayers(net))
	if err != nil {
		return nil, err
	}

	var steps []Step
	for _, s := range full {
		n := len(s.Nodes)
		start := 0
		for chunk := 0; start < n; chunk++ {
			end := start + 2 + rng.Intn(n-start-1)
			// a trailing single neuron cannot form a step
			if n-end < 2 {
				end = n
			}
			sub, err := NewStep(s.Layer, fmt.Sprintf("%s:%d", s.NewID.Name, chunk), s.Nodes[start:end])
			if err != nil {
				return nil, err
			}
			steps = append(steps, sub)
			start = end
		}
	}

	rng.Shuffle(len(steps), func(i, j int) { steps[i], steps[j] = steps[j], steps[i] })
	return steps, nil
}

// FromSteps replays an explicit step sequence.
type FromSteps []Step

func (f FromSteps) Steps(*network.Network) ([]Step, error) {
	return append([]Step(nil), f...), nil
}
