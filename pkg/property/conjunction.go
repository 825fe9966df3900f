package property

import (
	"fmt"

	"github.com/mlsafety/cegarete/pkg/errors"
	"github.com/mlsafety/cegarete/pkg/network"
)

// Term is a weighted output neuron inside a linear constraint.
type Term struct {
	ID     network.NeuronID
	Factor float64
}

// Neg is shorthand for -1 * id.
func Neg(id network.NeuronID) Term { return Term{ID: id, Factor: -1} }

// Pos is shorthand for +1 * id.
func Pos(id network.NeuronID) Term { return Term{ID: id, Factor: 1} }

// LinearConstraint bounds a linear combination of output neurons
// (e.g. y0 - y1 <= 0).
type LinearConstraint struct {
	Terms []Term
	Kind  Kind
	Value float64
}

// Conjunction is a property whose output constraints range over linear
// combinations of outputs, like the official ACAS-Xu properties. It reduces
// to a basic property by appending an identity layer with one neuron per
// constraint whose incoming weights are the constraint coefficients.
type Conjunction struct {
	Inputs  []Constraint
	Outputs []LinearConstraint
}

// Prepare implements Spec.
func (c Conjunction) Prepare(net *network.Network) (*network.Network, Property, error) {
	if len(c.Outputs) == 0 {
		return nil, Property{}, errors.Wrap(errors.ErrUnsupportedProperty, "conjunction without output constraints")
	}

	coeffs := make([]map[network.NeuronID]float64, len(c.Outputs))
	newOutputs := make([]network.NeuronID, len(c.Outputs))
	basicConstraints := make([]Constraint, len(c.Outputs))
	for i, lc := range c.Outputs {
		coeffs[i] = make(map[network.NeuronID]float64, len(lc.Terms))
		for _, t := range lc.Terms {
			coeffs[i][t.ID] += t.Factor
		}
		newOutputs[i] = network.NID(fmt.Sprintf("c%d", i+1))
		basicConstraints[i] = Constraint{ID: newOutputs[i], Kind: lc.Kind, Value: lc.Value}
	}

	oldOutputs := net.OutputIDs()
	reduction, err := network.TableFromFunc(oldOutputs, newOutputs, func(src, dest network.NeuronID) float64 {
		for i, id := range newOutputs {
			if id == dest {
				return coeffs[i][src]
			}
		}
		return 0
	})
	if err != nil {
		return nil, Property{}, err
	}
	reductionBiases, err := network.ZeroBiases(newOutputs)
	if err != nil {
		return nil, Property{}, err
	}

	reduced, err := network.New(
		append(append([]*network.Table(nil), net.Weights...), reduction),
		append(append([]*network.Biases(nil), net.Biases...), reductionBiases),
		append(append([]network.Activation(nil), net.Activations...), network.ActivationID),
	)
	if err != nil {
		return nil, Property{}, err
	}

	return reduced, Property{Inputs: c.Inputs, Outputs: basicConstraints}, nil
}
