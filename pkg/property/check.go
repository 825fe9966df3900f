package property

import (
	"fmt"

	"github.com/mlsafety/cegarete/pkg/network"
)

// DefaultEpsilon is the tolerance used when checking assignments against
// constraints: a bound only counts as violated when it is exceeded by more
// than epsilon. Keeps verifier assignments that sit numerically on a bound
// from being rejected.
const DefaultEpsilon = 1e-4

// Holds checks the constraint against an assignment, returning a
// human-readable explanation either way.
func (c Constraint) Holds(values map[network.NeuronID]float64, eps float64) (bool, string) {
	v, ok := values[c.ID]
	if !ok {
		return false, fmt.Sprintf("no value for %s", c.ID)
	}
	switch c.Kind {
	case Lower:
		if c.Value-v > eps {
			return false, fmt.Sprintf("(%v = %s) < (lowerbound = %v)", v, c.ID.Name, c.Value)
		}
		return true, fmt.Sprintf("(%v = %s) >= (lowerbound = %v)", v, c.ID.Name, c.Value)
	default:
		if v-c.Value > eps {
			return false, fmt.Sprintf("(%v = %s) > (upperbound = %v)", v, c.ID.Name, c.Value)
		}
		return true, fmt.Sprintf("(%v = %s) <= (upperbound = %v)", v, c.ID.Name, c.Value)
	}
}

func constraintsHold(constraints []Constraint, values map[network.NeuronID]float64, eps float64) bool {
	for _, c := range constraints {
		if ok, _ := c.Holds(values, eps); !ok {
			return false
		}
	}
	return true
}

// CheckAssignment evaluates the network on the candidate input assignment and
// reports whether the assignment satisfies the property. The input box is
// checked first; an input violation short-circuits with reason "inputs".
func CheckAssignment(net *network.Network, values map[network.NeuronID]float64, p Property, eps float64) (bool, []string, error) {
	if !constraintsHold(p.Inputs, values, eps) {
		return false, []string{"inputs"}, nil
	}

	out, err := net.Evaluate(values)
	if err != nil {
		return false, nil, err
	}

	satisfied := true
	reasons := make([]string, 0, len(p.Outputs))
	for _, c := range p.Outputs {
		ok, why := c.Holds(out, eps)
		satisfied = satisfied && ok
		reasons = append(reasons, why)
	}
	return satisfied, reasons, nil
}
