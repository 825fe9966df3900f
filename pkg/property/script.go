package property

import (
	"fmt"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"

	"github.com/mlsafety/cegarete/pkg/errors"
)

// ScriptContext exposes network shape to property scripts.
type ScriptContext struct {
	NumInputs  int
	NumOutputs int
}

// FromScript evaluates a Tengo property script and builds the property it
// describes. The script receives numInputs and numOutputs and must set the
// globals "inputs" and "outputs", each an array of constraint maps:
//
//	inputs = [{neuron: "x0", lower: -0.5, upper: 0.5}, ...]
//	outputs = [{neuron: "y0", lower: 3.99}, ...]
//
// A script may set "err" to a non-empty string to abort loading.
func FromScript(source []byte, ctx ScriptContext) (Property, error) {
	script := tengo.NewScript(source)
	script.SetImports(stdlib.GetModuleMap("fmt", "math", "text"))

	if err := script.Add("numInputs", ctx.NumInputs); err != nil {
		return Property{}, fmt.Errorf("failed to add numInputs to script: %w", err)
	}
	if err := script.Add("numOutputs", ctx.NumOutputs); err != nil {
		return Property{}, fmt.Errorf("failed to add numOutputs to script: %w", err)
	}

	compiled, err := script.Run()
	if err != nil {
		return Property{}, fmt.Errorf("%w: %w", errors.ErrPropertyScript, err)
	}

	if errVar := compiled.Get("err"); errVar != nil {
		if msg, ok := errVar.Value().(string); ok && msg != "" {
			return Property{}, fmt.Errorf("%w: %s", errors.ErrPropertyScript, msg)
		}
	}

	inputs, err := scriptConstraints(compiled.Get("inputs"))
	if err != nil {
		return Property{}, fmt.Errorf("input constraints: %w", err)
	}
	outputs, err := scriptConstraints(compiled.Get("outputs"))
	if err != nil {
		return Property{}, fmt.Errorf("output constraints: %w", err)
	}

	return Property{Inputs: inputs, Outputs: outputs}, nil
}

func scriptConstraints(v *tengo.Variable) ([]Constraint, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: missing constraint list", errors.ErrPropertyScript)
	}
	items, ok := v.Value().([]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: %q is not an array", errors.ErrPropertyScript, v.Name())
	}

	var constraints []Constraint
	for i, item := range items {
		entry, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: %s[%d] is not a map", errors.ErrPropertyScript, v.Name(), i)
		}
		name, ok := entry["neuron"].(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s[%d] has no neuron name", errors.ErrPropertyScript, v.Name(), i)
		}
		id := ParseNeuronName(name)

		got := false
		if lower, ok := scriptNumber(entry["lower"]); ok {
			constraints = append(constraints, LowerBound(id, lower))
			got = true
		}
		if upper, ok := scriptNumber(entry["upper"]); ok {
			constraints = append(constraints, UpperBound(id, upper))
			got = true
		}
		if !got {
			return nil, fmt.Errorf("%w: %s[%d] has neither lower nor upper", errors.ErrPropertyScript, v.Name(), i)
		}
	}
	return constraints, nil
}

func scriptNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
