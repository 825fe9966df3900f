package property

import (
	"sort"

	"github.com/mlsafety/cegarete/pkg/errors"
	"github.com/mlsafety/cegarete/pkg/network"
)

// The official ACAS-Xu properties, negated so that a satisfying assignment is
// a violation of the original safety statement. Inputs are the five
// normalized sensor values x0..x4, outputs the five advisories y0..y4.
var builtins = map[string]Spec{
	"acas_property_1": acasProperty1(),
	"acas_property_2": acasProperty2(),
	"acas_property_3": acasProperty3(),
	"acas_property_4": acasProperty4(),
}

// Builtin returns a named builtin property.
func Builtin(name string) (Spec, error) {
	p, ok := builtins[name]
	if !ok {
		return nil, errors.Wrap(errors.ErrUnknownProperty, name)
	}
	return p, nil
}

// BuiltinNames lists the available builtin properties, sorted.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func x(i int) network.NeuronID { return network.InputID(i) }
func y(i int) network.NeuronID { return network.OutputID(i) }

func acasProperty1() Spec {
	return Property{
		Inputs: []Constraint{
			LowerBound(x(0), 0.6), UpperBound(x(0), 0.6798577687),
			LowerBound(x(1), -0.5), UpperBound(x(1), 0.5),
			LowerBound(x(2), -0.5), UpperBound(x(2), 0.5),
			LowerBound(x(3), 0.45), UpperBound(x(3), 0.5),
			LowerBound(x(4), -0.5), UpperBound(x(4), -0.45),
		},
		Outputs: []Constraint{LowerBound(y(0), 3.9911256459)},
	}
}

func acasProperty2() Spec {
	return Conjunction{
		Inputs: []Constraint{
			LowerBound(x(0), 0.6), UpperBound(x(0), 0.6798577687),
			LowerBound(x(1), -0.5), UpperBound(x(1), 0.5),
			LowerBound(x(2), -0.5), UpperBound(x(2), 0.5),
			LowerBound(x(3), 0.45), UpperBound(x(3), 0.5),
			LowerBound(x(4), -0.5), UpperBound(x(4), -0.45),
		},
		Outputs: []LinearConstraint{
			{Terms: []Term{Pos(y(0)), Neg(y(1))}, Kind: Lower, Value: 0},
			{Terms: []Term{Pos(y(0)), Neg(y(2))}, Kind: Lower, Value: 0},
			{Terms: []Term{Pos(y(0)), Neg(y(3))}, Kind: Lower, Value: 0},
			{Terms: []Term{Pos(y(0)), Neg(y(4))}, Kind: Lower, Value: 0},
		},
	}
}

func acasProperty3() Spec {
	return Conjunction{
		Inputs: []Constraint{
			LowerBound(x(0), -0.3035311561), UpperBound(x(0), -0.2985528119),
			LowerBound(x(1), -0.0095492966), UpperBound(x(1), 0.0095492966),
			LowerBound(x(2), 0.4933803236), UpperBound(x(2), 0.5),
			LowerBound(x(3), 0.3), UpperBound(x(3), 0.5),
			LowerBound(x(4), 0.3), UpperBound(x(4), 0.5),
		},
		Outputs: []LinearConstraint{
			{Terms: []Term{Pos(y(0)), Neg(y(1))}, Kind: Upper, Value: 0},
			{Terms: []Term{Pos(y(0)), Neg(y(2))}, Kind: Upper, Value: 0},
			{Terms: []Term{Pos(y(0)), Neg(y(3))}, Kind: Upper, Value: 0},
			{Terms: []Term{Pos(y(0)), Neg(y(4))}, Kind: Upper, Value: 0},
		},
	}
}

func acasProperty4() Spec {
	return Conjunction{
		Inputs: []Constraint{
			LowerBound(x(0), -0.3035311561), UpperBound(x(0), -0.2985528119),
			LowerBound(x(1), -0.0095492966), UpperBound(x(1), 0.0095492966),
			LowerBound(x(2), 0), UpperBound(x(2), 0),
			LowerBound(x(3), 0.3181818182), UpperBound(x(3), 0.5),
			LowerBound(x(4), 0.0833333333), UpperBound(x(4), 0.1666666667),
		},
		Outputs: []LinearConstraint{
			{Terms: []Term{Pos(y(0)), Neg(y(1))}, Kind: Upper, Value: 0},
			{Terms: []Term{Pos(y(0)), Neg(y(2))}, Kind: Upper, Value: 0},
			{Terms: []Term{Pos(y(0)), Neg(y(3))}, Kind: Upper, Value: 0},
			{Terms: []Term{Pos(y(0)), Neg(y(4))}, Kind: Upper, Value: 0},
		},
	}
}
