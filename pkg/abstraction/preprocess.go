// Package abstraction implements the over-approximating network
// transformation: preprocessing splits hidden neurons by the sign of their
// outgoing weights and by their effect on the output, and abstraction merges
// same-typed neurons so the verifier sees a smaller network whose outputs
// dominate the original's.
package abstraction

import (
	"github.com/mlsafety/cegarete/pkg/errors"
	"github.com/mlsafety/cegarete/pkg/network"
)

// part is one side of a neuron split, tied to the neuron it came from.
type part struct {
	id  network.NeuronID
	src network.NeuronID
	// keep reports whether the part's outgoing edge survives the split.
	keep func(dest network.NeuronID, w float64) bool
}

// splitLayer rebuilds a hidden layer from the given parts, dropping parts
// with no surviving outgoing edges. Incoming weights and biases are
// duplicated per part.
func splitLayer(incoming, outgoing *network.Table, biases *network.Biases, parts []part) (*network.Table, *network.Table, *network.Biases, error) {
	kept := make([]part, 0, len(parts))
	for _, p := range parts {
		for _, dest := range outgoing.Dests() {
			if w := outgoing.At(p.src, dest); w != 0 && p.keep(dest, w) {
				kept = append(kept, p)
				break
			}
		}
	}
	if len(kept) == 0 {
		return nil, nil, nil, errors.Wrap(errors.ErrNetworkStructure, "layer split leaves no neurons")
	}

	ids := make([]network.NeuronID, len(kept))
	values := make([]float64, len(kept))
	for i, p := range kept {
		ids[i] = p.id
		values[i] = biases.Value(p.src)
	}

	newIncoming, err := network.TableFromFunc(incoming.Srcs(), ids, func(src, dest network.NeuronID) float64 {
		for _, p := range kept {
			if p.id == dest {
				return incoming.At(src, p.src)
			}
		}
		return 0
	})
	if err != nil {
		return nil, nil, nil, err
	}

	newOutgoing, err := network.TableFromFunc(ids, outgoing.Dests(), func(src, dest network.NeuronID) float64 {
		for _, p := range kept {
			if p.id == src {
				if w := outgoing.At(p.src, dest); p.keep(dest, w) {
					return w
				}
				return 0
			}
		}
		return 0
	})
	if err != nil {
		return nil, nil, nil, err
	}

	newBiases, err := network.NewBiases(ids, values)
	if err != nil {
		return nil, nil, nil, err
	}
	return newIncoming, newOutgoing, newBiases, nil
}

func posNegParts(ids []network.NeuronID) []part {
	parts := make([]part, 0, 2*len(ids))
	for _, id := range ids {
		parts = append(parts, part{
			id:   network.NeuronID{Name: id.Name + "+", Sign: network.SignPos, Scaling: id.Scaling},
			src:  id,
			keep: func(_ network.NeuronID, w float64) bool { return w >= 0 },
		})
	}
	for _, id := range ids {
		parts = append(parts, part{
			id:   network.NeuronID{Name: id.Name + "-", Sign: network.SignNeg, Scaling: id.Scaling},
			src:  id,
			keep: func(_ network.NeuronID, w float64) bool { return w <= 0 },
		})
	}
	return parts
}

// An edge is increasing when a larger source value pushes the outputs up:
// from a Pos part into an Inc neuron, or from a Neg part into a Dec neuron.
func incDecParts(ids []network.NeuronID) []part {
	incEdge := func(sign network.Sign, dest network.NeuronID) bool {
		return (dest.Scaling == network.ScalingInc && sign == network.SignPos) ||
			(dest.Scaling == network.ScalingDec && sign == network.SignNeg)
	}
	parts := make([]part, 0, 2*len(ids))
	for _, id := range ids {
		sign := id.Sign
		parts = append(parts, part{
			id:   network.NeuronID{Name: id.Name + "I", Sign: id.Sign, Scaling: network.ScalingInc},
			src:  id,
			keep: func(dest network.NeuronID, _ float64) bool { return incEdge(sign, dest) },
		})
	}
	for _, id := range ids {
		sign := id.Sign
		parts = append(parts, part{
			id:   network.NeuronID{Name: id.Name + "D", Sign: id.Sign, Scaling: network.ScalingDec},
			src:  id,
			keep: func(dest network.NeuronID, _ float64) bool { return !incEdge(sign, dest) },
		})
	}
	return parts
}

func relabelOutputsInc(net *network.Network) (*network.Network, error) {
	last := len(net.Weights) - 1
	relabel := func(id network.NeuronID) network.NeuronID {
		id.Scaling = network.ScalingInc
		return id
	}

	oldOutputs := net.Weights[last].Dests()
	newOutputs := make([]network.NeuronID, len(oldOutputs))
	values := make([]float64, len(oldOutputs))
	for i, id := range oldOutputs {
		newOutputs[i] = relabel(id)
		values[i] = net.Biases[last+1].Value(id)
	}

	w, err := network.TableFromFunc(net.Weights[last].Srcs(), newOutputs, func(src, dest network.NeuronID) float64 {
		for i, id := range newOutputs {
			if id == dest {
				return net.Weights[last].At(src, oldOutputs[i])
			}
		}
		return 0
	})
	if err != nil {
		return nil, err
	}
	b, err := network.NewBiases(newOutputs, values)
	if err != nil {
		return nil, err
	}

	weights := append([]*network.Table(nil), net.Weights...)
	biases := append([]*network.Biases(nil), net.Biases...)
	weights[last] = w
	biases[last+1] = b
	return network.New(weights, biases, append([]network.Activation(nil), net.Activations...))
}

// splitLayers lists the hidden layers that preprocessing splits: everything
// from layer 2 up to (and including) the last hidden layer before the output.
func splitLayers(net *network.Network) []int {
	var layers []int
	for i := 2; i <= net.LayerCount()-2; i++ {
		layers = append(layers, i)
	}
	return layers
}

// Preprocess splits every abstractable hidden neuron into its positive and
// negative halves and then into its increasing and decreasing halves, so
// that abstraction merges only neurons whose over-approximation direction
// agrees. Output neurons are marked increasing; the first hidden layer and
// the input/output layers are left whole. Parts whose outgoing edges are all
// zero are dropped.
func Preprocess(net *network.Network) (*network.Network, error) {
	weights := append([]*network.Table(nil), net.Weights...)
	biases := append([]*network.Biases(nil), net.Biases...)
	activations := append([]network.Activation(nil), net.Activations...)

	layers := splitLayers(net)

	for i := len(layers) - 1; i >= 0; i-- {
		l := layers[i]
		in, out, b, err := splitLayer(weights[l-1], weights[l], biases[l], posNegParts(biases[l].IDs()))
		if err != nil {
			return nil, errors.Wrapf(err, "pos/neg split of layer %d", l)
		}
		weights[l-1], weights[l], biases[l] = in, out, b
	}

	split, err := network.New(weights, biases, activations)
	if err != nil {
		return nil, err
	}
	split, err = relabelOutputsInc(split)
	if err != nil {
		return nil, err
	}

	weights = append([]*network.Table(nil), split.Weights...)
	biases = append([]*network.Biases(nil), split.Biases...)

	for i := len(layers) - 1; i >= 0; i-- {
		l := layers[i]
		in, out, b, err := splitLayer(weights[l-1], weights[l], biases[l], incDecParts(biases[l].IDs()))
		if err != nil {
			return nil, errors.Wrapf(err, "inc/dec split of layer %d", l)
		}
		weights[l-1], weights[l], biases[l] = in, out, b
	}

	return network.New(weights, biases, activations)
}
