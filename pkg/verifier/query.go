package verifier

import (
	"github.com/mlsafety/cegarete/pkg/errors"
	"github.com/mlsafety/cegarete/pkg/network"
	"github.com/mlsafety/cegarete/pkg/property"
)

// VarKind distinguishes the two variables a hidden neuron turns into: B is
// the weighted sum before the activation, F the value after it.
type VarKind string

// Variable kinds.
const (
	VarB VarKind = "B"
	VarF VarKind = "F"
)

// Variable is one solver variable tied to a network neuron.
type Variable struct {
	Index  int
	Neuron network.NeuronID
	Kind   VarKind
}

// Addend is a coefficient on a variable inside a linear equation.
type Addend struct {
	Var   int
	Coeff float64
}

// Equation is a linear equality sum(addends) = Scalar.
type Equation struct {
	Addends []Addend
	Scalar  float64
}

// Relu ties a hidden neuron's F variable to relu of its B variable.
type Relu struct {
	B int
	F int
}

// Query is the solver-level encoding of a network plus a property: one F
// variable per input, B and F variables per hidden neuron, one B variable
// per output, the layer equations, the activation constraints and the
// property bounds.
type Query struct {
	Variables  []Variable
	InputVars  []int
	OutputVars []int
	Equations  []Equation
	Relus      []Relu
	// Equalities pins B = F for hidden neurons with identity activation.
	Equalities [][2]int

	LowerBounds map[int]float64
	UpperBounds map[int]float64

	vars map[varKey]int
}

type varKey struct {
	neuron network.NeuronID
	kind   VarKind
}

// NumVars returns the number of solver variables.
func (q *Query) NumVars() int { return len(q.Variables) }

// Var looks up the variable index of a neuron's B or F side. Inputs only
// have an F side, outputs only a B side.
func (q *Query) Var(neuron network.NeuronID, kind VarKind) (int, bool) {
	v, ok := q.vars[varKey{neuron: neuron, kind: kind}]
	return v, ok
}

// SetLowerBound bounds a variable from below.
func (q *Query) SetLowerBound(v int, val float64) { q.LowerBounds[v] = val }

// SetUpperBound bounds a variable from above.
func (q *Query) SetUpperBound(v int, val float64) { q.UpperBounds[v] = val }

func (q *Query) addVar(neuron network.NeuronID, kind VarKind) int {
	idx := len(q.Variables)
	q.Variables = append(q.Variables, Variable{Index: idx, Neuron: neuron, Kind: kind})
	q.vars[varKey{neuron: neuron, kind: kind}] = idx
	return idx
}

// Encode builds the solver query for a network and a basic property. The
// property's bounds must name existing input and output neurons.
func Encode(net *network.Network, prop property.Property) (*Query, error) {
	q := &Query{
		LowerBounds: make(map[int]float64),
		UpperBounds: make(map[int]float64),
		vars:        make(map[varKey]int),
	}

	// inputs come after a null activation, so they behave like F variables
	for _, id := range net.InputIDs() {
		q.InputVars = append(q.InputVars, q.addVar(id, VarF))
	}
	for l := 1; l <= net.LayerCount()-2; l++ {
		for _, id := range net.Biases[l].IDs() {
			q.addVar(id, VarB)
		}
	}
	for l := 1; l <= net.LayerCount()-2; l++ {
		for _, id := range net.Biases[l].IDs() {
			q.addVar(id, VarF)
		}
	}
	// outputs carry no activation, so they stay B variables
	for _, id := range net.OutputIDs() {
		q.OutputVars = append(q.OutputVars, q.addVar(id, VarB))
	}

	// -B(dst) + sum(w * F(src)) = -bias
	for l, w := range net.Weights {
		for _, dst := range w.Dests() {
			b, ok := q.Var(dst, VarB)
			if !ok {
				return nil, errors.Wrapf(errors.ErrVerifierQuery, "no B variable for %s", dst)
			}
			eq := Equation{Scalar: -net.Biases[l+1].Value(dst)}
			eq.Addends = append(eq.Addends, Addend{Var: b, Coeff: -1})
			for _, src := range w.Srcs() {
				f, ok := q.Var(src, VarF)
				if !ok {
					return nil, errors.Wrapf(errors.ErrVerifierQuery, "no F variable for %s", src)
				}
				eq.Addends = append(eq.Addends, Addend{Var: f, Coeff: w.At(src, dst)})
			}
			q.Equations = append(q.Equations, eq)
		}
	}

	for l := 1; l <= net.LayerCount()-2; l++ {
		for _, id := range net.Biases[l].IDs() {
			b, _ := q.Var(id, VarB)
			f, _ := q.Var(id, VarF)
			switch net.Activations[l] {
			case network.ActivationRelu:
				q.Relus = append(q.Relus, Relu{B: b, F: f})
			case network.ActivationID:
				q.Equalities = append(q.Equalities, [2]int{b, f})
			default:
				return nil, errors.Wrap(errors.ErrUnknownActivation, string(net.Activations[l]))
			}
		}
	}

	for _, c := range prop.Inputs {
		v, ok := q.Var(c.ID, VarF)
		if !ok {
			return nil, errors.Wrapf(errors.ErrVerifierQuery, "input constraint on unknown neuron %s", c.ID)
		}
		if c.Kind == property.Lower {
			q.SetLowerBound(v, c.Value)
		} else {
			q.SetUpperBound(v, c.Value)
		}
	}
	for _, c := range prop.Outputs {
		v, ok := q.Var(c.ID, VarB)
		if !ok {
			return nil, errors.Wrapf(errors.ErrVerifierQuery, "output constraint on unknown neuron %s", c.ID)
		}
		if c.Kind == property.Lower {
			q.SetLowerBound(v, c.Value)
		} else {
			q.SetUpperBound(v, c.Value)
		}
	}

	return q, nil
}
