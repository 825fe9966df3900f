// Package bounds implements naive interval propagation through a network.
// It is deliberately loose (no dependency tracking between neurons) but cheap,
// and is what the property updater uses to compare output ranges of the
// original and the abstracted network.
package bounds

import (
	"math"

	"github.com/mlsafety/cegarete/pkg/errors"
	"github.com/mlsafety/cegarete/pkg/network"
)

// Inf is the magnitude used for unconstrained bounds.
const Inf = 1e38

// Interval is a closed numeric range.
type Interval struct {
	Min float64
	Max float64
}

// Unbounded returns the widest interval.
func Unbounded() Interval { return Interval{Min: -Inf, Max: Inf} }

// Set maps neurons to their intervals.
type Set map[network.NeuronID]Interval

// Propagate pushes the input intervals through every layer and returns the
// interval of every neuron in the network. Each edge contributes its source's
// min or max depending on the weight sign; ReLU layers clamp at zero.
func Propagate(net *network.Network, inputs Set) (Set, error) {
	all := make(Set, net.NeuronCount())

	current := make([]Interval, len(net.InputIDs()))
	for i, id := range net.InputIDs() {
		iv, ok := inputs[id]
		if !ok {
			return nil, errors.Wrapf(errors.ErrUnknownNeuron, "no input bounds for %s", id)
		}
		current[i] = iv
		all[id] = iv
	}

	for l, w := range net.Weights {
		dests := w.Dests()
		next := make([]Interval, len(dests))
		for j, dest := range dests {
			lo := net.Biases[l+1].Value(dest)
			hi := lo
			for i, src := range w.Srcs() {
				weight := w.At(src, dest)
				if weight >= 0 {
					lo += weight * current[i].Min
					hi += weight * current[i].Max
				} else {
					lo += weight * current[i].Max
					hi += weight * current[i].Min
				}
			}
			if net.Activations[l+1] == network.ActivationRelu {
				lo = math.Max(lo, 0)
				hi = math.Max(hi, 0)
			}
			next[j] = Interval{Min: lo, Max: hi}
			all[dest] = next[j]
		}
		current = next
	}

	return all, nil
}
