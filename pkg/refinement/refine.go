// Package refinement implements the counterexample-guided weakening of an
// abstraction: selected original neurons are pulled back out of the abstract
// neurons that swallowed them, by filtering the recorded merge steps and
// replaying the survivors against the pristine tables.
package refinement

import (
	"fmt"

	"github.com/mlsafety/cegarete/pkg/abstraction"
	"github.com/mlsafety/cegarete/pkg/errors"
	"github.com/mlsafety/cegarete/pkg/network"
	"github.com/mlsafety/cegarete/pkg/property"
)

// Step splits the original neurons in Parts out of the abstract neuron
// Target. A nil Parts refines Target completely. Groups optionally re-merges
// subsets of Parts afterwards, so a step can coarsen its result instead of
// restoring every neuron individually.
type Step struct {
	Layer  int
	Target network.NeuronID
	Parts  []network.NeuronID
	Groups [][]network.NeuronID
}

// Statistics reports what a refinement pass did.
type Statistics struct {
	DidRefine         bool
	NumSteps          int
	NumNeuronsRefined []int
	Steps             []Step
	// NeuronMappings maps each restored neuron (and the surviving abstract
	// neuron, on a partial refine) to the abstract neuron it came out of.
	NeuronMappings map[network.NeuronID]network.NeuronID
}

// Context carries the data strategies may consult when picking neurons to
// refine.
type Context struct {
	// SpuriousInputs is the input assignment of the spurious counterexample.
	SpuriousInputs map[network.NeuronID]float64
	// Activations holds every neuron value of the original network under the
	// spurious inputs.
	Activations map[network.NeuronID]float64
}

// Strategy picks the next refinement steps for a network. An empty step list
// means no further refinement is possible.
type Strategy interface {
	Steps(net *network.Network, ctx Context) ([]Step, error)
}

// filterRecords drops the discarded neurons from every merge record on the
// given axis. A record left with fewer than two nodes disappears, and the
// neuron it produced is discarded from the records after it.
func filterRecords(records []network.MergeRecord, discard map[network.NeuronID]bool, axis network.Axis) []network.MergeRecord {
	var kept []network.MergeRecord
	for _, rec := range records {
		if rec.Axis != axis {
			kept = append(kept, rec)
			continue
		}
		rest := make([]network.NeuronID, 0, len(rec.Nodes))
		for _, n := range rec.Nodes {
			if !discard[n] {
				rest = append(rest, n)
			}
		}
		if len(rest) > 1 {
			rec.Nodes = rest
			kept = append(kept, rec)
		} else {
			discard[rec.NewID] = true
		}
	}
	return kept
}

func discardSet(ids []network.NeuronID) map[network.NeuronID]bool {
	s := make(map[network.NeuronID]bool, len(ids))
	for _, id := range ids {
		s[id] = true
	}
	return s
}

// refineLayer rebuilds one layer's tables with the step's parts restored.
func refineLayer(incoming, outgoing *network.Table, biases *network.Biases, s Step) (*network.Table, *network.Table, *network.Biases, error) {
	parts := s.Parts
	if len(parts) == 0 {
		parts = outgoing.Origins(s.Target)
	}
	if len(parts) == 0 {
		return nil, nil, nil, errors.Wrap(errors.ErrNotAbstracted, s.Target.Name)
	}

	newIncoming, err := incoming.Original().Replay(filterRecords(incoming.Records(), discardSet(parts), network.Columns))
	if err != nil {
		return nil, nil, nil, err
	}
	newOutgoing, err := outgoing.Original().Replay(filterRecords(outgoing.Records(), discardSet(parts), network.Rows))
	if err != nil {
		return nil, nil, nil, err
	}
	newBiases, err := biases.Original().Replay(filterRecords(biases.Records(), discardSet(parts), network.Columns))
	if err != nil {
		return nil, nil, nil, err
	}
	return newIncoming, newOutgoing, newBiases, nil
}

// apply performs one refinement step, including any regrouping, and folds
// its bookkeeping into stats.
func apply(net *network.Network, s Step, stats *Statistics) (*network.Network, error) {
	if s.Layer < 2 || s.Layer > net.LayerCount()-2 {
		return nil, errors.Wrapf(errors.ErrLayerNotAbstractable, "layer %d of %d", s.Layer, net.LayerCount())
	}

	parts := s.Parts
	if len(parts) == 0 {
		parts = net.Weights[s.Layer].Origins(s.Target)
	}

	incoming, outgoing, biases, err := refineLayer(net.Weights[s.Layer-1], net.Weights[s.Layer], net.Biases[s.Layer], s)
	if err != nil {
		return nil, err
	}

	weights := append([]*network.Table(nil), net.Weights...)
	allBiases := append([]*network.Biases(nil), net.Biases...)
	weights[s.Layer-1], weights[s.Layer] = incoming, outgoing
	allBiases[s.Layer] = biases
	refined, err := network.New(weights, allBiases, append([]network.Activation(nil), net.Activations...))
	if err != nil {
		return nil, err
	}

	for i, group := range s.Groups {
		if len(group) < 2 {
			continue
		}
		astep, err := abstraction.NewStep(s.Layer, fmt.Sprintf("%s:%d", s.Target.Name, i), group)
		if err != nil {
			return nil, err
		}
		refined, err = abstraction.Apply(refined, astep)
		if err != nil {
			return nil, err
		}
	}

	stats.DidRefine = true
	stats.NumSteps++
	stats.Steps = append(stats.Steps, s)
	stats.NumNeuronsRefined = append(stats.NumNeuronsRefined, len(parts))
	for _, p := range parts {
		stats.NeuronMappings[p] = s.Target
	}
	if refined.Weights[s.Layer].HasSrc(s.Target) {
		// partial refine, the abstract neuron survives
		stats.NeuronMappings[s.Target] = s.Target
	}
	return refined, nil
}

func newStatistics() Statistics {
	return Statistics{NeuronMappings: make(map[network.NeuronID]network.NeuronID)}
}

// Refine applies one round of the strategy's steps and returns the refined
// network. The input network is not modified.
func Refine(net *network.Network, strategy Strategy, ctx Context) (*network.Network, Statistics, error) {
	stats := newStatistics()

	steps, err := strategy.Steps(net, ctx)
	if err != nil {
		return nil, Statistics{}, err
	}
	current := net
	for _, s := range steps {
		current, err = apply(current, s, &stats)
		if err != nil {
			return nil, Statistics{}, err
		}
	}
	return current, stats, nil
}

// PropertyUpdate recomputes the property for a refined network.
type PropertyUpdate func(net *network.Network) (property.Property, error)

// RefineUntilNotSatisfying keeps applying refinement steps until the spurious
// counterexample no longer satisfies the property on the refined network, or
// until the strategy runs out of steps. After every step the property is
// recomputed through update when one is given.
func RefineUntilNotSatisfying(
	net *network.Network,
	strategy Strategy,
	ctx Context,
	prop property.Property,
	update PropertyUpdate,
	eps float64,
) (*network.Network, Statistics, error) {
	stats := newStatistics()
	current := net

	for {
		steps, err := strategy.Steps(current, ctx)
		if err != nil {
			return nil, Statistics{}, err
		}
		if len(steps) == 0 {
			return current, stats, nil
		}

		for _, s := range steps {
			current, err = apply(current, s, &stats)
			if err != nil {
				return nil, Statistics{}, err
			}

			if update != nil {
				prop, err = update(current)
				if err != nil {
					return nil, Statistics{}, err
				}
			}

			satisfying, _, err := property.CheckAssignment(current, ctx.SpuriousInputs, prop, eps)
			if err != nil {
				return nil, Statistics{}, err
			}
			if !satisfying {
				return current, stats, nil
			}
		}
	}
}
