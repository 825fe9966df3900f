package property

import (
	"math"

	"github.com/mlsafety/cegarete/pkg/bounds"
	"github.com/mlsafety/cegarete/pkg/errors"
	"github.com/mlsafety/cegarete/pkg/network"
)

// Updater tightens a property's output bounds for an abstracted network.
// Abstraction over-approximates, so the abstract network's outputs can drift
// past the original bounds; the updater propagates the input box through both
// networks and shifts each output bound by the observed drift, never past the
// original bound.
type Updater struct {
	original *network.Network
	property Property

	// output bounds of the original network under the property's input box,
	// computed once
	before bounds.Set
}

// NewUpdater prepares an updater for the given original network and property.
func NewUpdater(original *network.Network, p Property) (*Updater, error) {
	before, err := bounds.Propagate(original, p.InputBounds(original.InputIDs()))
	if err != nil {
		return nil, err
	}
	return &Updater{original: original, property: p, before: before}, nil
}

// Update returns the property adjusted for the current network. Lower bounds
// only ever move up and upper bounds only ever move down, so the updated
// property stays at least as strict as the original.
func (u *Updater) Update(current *network.Network) (Property, error) {
	after, err := bounds.Propagate(current, u.property.InputBounds(current.InputIDs()))
	if err != nil {
		return Property{}, err
	}

	outputs := make([]Constraint, len(u.property.Outputs))
	for i, c := range u.property.Outputs {
		ivBefore, ok := u.before[c.ID]
		if !ok {
			return Property{}, errors.Wrapf(errors.ErrUnknownNeuron, "no original bounds for %s", c.ID)
		}
		ivAfter, ok := after[c.ID]
		if !ok {
			return Property{}, errors.Wrapf(errors.ErrUnknownNeuron, "no current bounds for %s", c.ID)
		}

		diff := ivAfter.Min - ivBefore.Max
		switch c.Kind {
		case Lower:
			c.Value = math.Max(c.Value+diff, c.Value)
		case Upper:
			c.Value = math.Min(c.Value+diff, c.Value)
		}
		outputs[i] = c
	}
	return Property{Inputs: u.property.Inputs, Outputs: outputs}, nil
}
