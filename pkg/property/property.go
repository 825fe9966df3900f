// Package property defines verification properties (box constraints over
// network inputs and outputs), richer property forms that reduce to the basic
// form by rewriting the network's output layer, and loaders for builtin,
// YAML and scripted property definitions.
package property

import (
	"fmt"

	"github.com/mlsafety/cegarete/pkg/bounds"
	"github.com/mlsafety/cegarete/pkg/errors"
	"github.com/mlsafety/cegarete/pkg/network"
)

// Kind tells lower bounds and upper bounds apart.
type Kind string

// Constraint kinds.
const (
	Lower Kind = "lower"
	Upper Kind = "upper"
)

// Constraint bounds a single neuron's value from one side.
type Constraint struct {
	ID    network.NeuronID
	Kind  Kind
	Value float64
}

// LowerBound constrains id >= v.
func LowerBound(id network.NeuronID, v float64) Constraint {
	return Constraint{ID: id, Kind: Lower, Value: v}
}

// UpperBound constrains id <= v.
func UpperBound(id network.NeuronID, v float64) Constraint {
	return Constraint{ID: id, Kind: Upper, Value: v}
}

func (c Constraint) String() string {
	if c.Kind == Lower {
		return fmt.Sprintf("%s >= %v", c.ID, c.Value)
	}
	return fmt.Sprintf("%s <= %v", c.ID, c.Value)
}

// Property is the basic property form: a conjunction of per-neuron bounds on
// the inputs and on the outputs. A verifier searches for an assignment
// satisfying all of them, so a property usually encodes the negation of the
// desired safety statement.
type Property struct {
	Inputs  []Constraint
	Outputs []Constraint
}

// Spec is any property form that can be reduced to a basic property over a
// (possibly rewritten) network.
type Spec interface {
	Prepare(net *network.Network) (*network.Network, Property, error)
}

// Prepare implements Spec; a basic property needs no network rewriting.
func (p Property) Prepare(net *network.Network) (*network.Network, Property, error) {
	return net, p, nil
}

// AfterPreprocess rewrites the output constraint ids for a preprocessed
// network, whose output neurons are all marked increasing.
func (p Property) AfterPreprocess() Property {
	outputs := make([]Constraint, len(p.Outputs))
	for i, c := range p.Outputs {
		c.ID.Scaling = network.ScalingInc
		outputs[i] = c
	}
	return Property{Inputs: p.Inputs, Outputs: outputs}
}

// InputBounds folds the input constraints into per-neuron intervals. Missing
// sides default to ±bounds.Inf so interval propagation can run on partially
// constrained inputs.
func (p Property) InputBounds(ids []network.NeuronID) bounds.Set {
	out := make(bounds.Set, len(ids))
	for _, id := range ids {
		out[id] = bounds.Unbounded()
	}
	for _, c := range p.Inputs {
		iv, ok := out[c.ID]
		if !ok {
			iv = bounds.Unbounded()
		}
		if c.Kind == Lower {
			iv.Min = c.Value
		} else {
			iv.Max = c.Value
		}
		out[c.ID] = iv
	}
	return out
}

// ParseNeuronName parses the sign/scaling qualifications that preprocessing
// appends to neuron names ("v1:2+I" is the Pos/Inc part of v1:2).
func ParseNeuronName(name string) network.NeuronID {
	id := network.NID(name)
	if len(name) >= 2 {
		switch name[len(name)-2] {
		case '+':
			id.Sign = network.SignPos
		case '-':
			id.Sign = network.SignNeg
		}
	}
	if len(name) >= 1 {
		switch name[len(name)-1] {
		case 'I':
			id.Scaling = network.ScalingInc
		case 'D':
			id.Scaling = network.ScalingDec
		}
	}
	return id
}

// Validate checks that every constrained neuron exists in the network.
func (p Property) Validate(net *network.Network) error {
	inputs := make(map[network.NeuronID]bool, len(net.InputIDs()))
	for _, id := range net.InputIDs() {
		inputs[id] = true
	}
	outputs := make(map[network.NeuronID]bool, len(net.OutputIDs()))
	for _, id := range net.OutputIDs() {
		outputs[id] = true
	}
	for _, c := range p.Inputs {
		if !inputs[c.ID] {
			return errors.Wrapf(errors.ErrUnknownNeuron, "input constraint on %s", c.ID)
		}
	}
	for _, c := range p.Outputs {
		if !outputs[c.ID] {
			return errors.Wrapf(errors.ErrUnknownNeuron, "output constraint on %s", c.ID)
		}
	}
	return nil
}
