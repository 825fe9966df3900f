package property

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/mlsafety/cegarete/pkg/errors"
)

type yamlTerm struct {
	Neuron string  `yaml:"neuron"`
	Factor float64 `yaml:"factor"`
}

type yamlConstraint struct {
	Neuron string     `yaml:"neuron"`
	Terms  []yamlTerm `yaml:"terms"`
	Lower  *float64   `yaml:"lower"`
	Upper  *float64   `yaml:"upper"`
}

type yamlProperty struct {
	Inputs  []yamlConstraint `yaml:"inputs"`
	Outputs []yamlConstraint `yaml:"outputs"`
}

// FromYAML parses a property definition. Input constraints are plain bounds
// on single neurons; output constraints may additionally be linear
// combinations given as a term list, in which case the whole property is
// treated as a conjunction:
//
//	inputs:
//	  - neuron: x0
//	    lower: -0.5
//	    upper: 0.5
//	outputs:
//	  - terms:
//	      - {neuron: y0, factor: 1}
//	      - {neuron: y1, factor: -1}
//	    lower: 0
func FromYAML(data []byte) (Spec, error) {
	var doc yamlProperty
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrPropertyParse, err)
	}

	inputs, err := yamlBounds("inputs", doc.Inputs)
	if err != nil {
		return nil, err
	}

	linear := false
	for _, c := range doc.Outputs {
		if len(c.Terms) > 0 {
			linear = true
			break
		}
	}

	if !linear {
		outputs, err := yamlBounds("outputs", doc.Outputs)
		if err != nil {
			return nil, err
		}
		return Property{Inputs: inputs, Outputs: outputs}, nil
	}

	var outputs []LinearConstraint
	for i, c := range doc.Outputs {
		terms, err := yamlTerms(i, c)
		if err != nil {
			return nil, err
		}
		if c.Lower != nil {
			outputs = append(outputs, LinearConstraint{Terms: terms, Kind: Lower, Value: *c.Lower})
		}
		if c.Upper != nil {
			outputs = append(outputs, LinearConstraint{Terms: terms, Kind: Upper, Value: *c.Upper})
		}
		if c.Lower == nil && c.Upper == nil {
			return nil, fmt.Errorf("%w: outputs[%d] has neither lower nor upper", errors.ErrPropertyParse, i)
		}
	}
	return Conjunction{Inputs: inputs, Outputs: outputs}, nil
}

func yamlBounds(section string, list []yamlConstraint) ([]Constraint, error) {
	var constraints []Constraint
	for i, c := range list {
		if len(c.Terms) > 0 {
			return nil, fmt.Errorf("%w: %s[%d]: term lists are only allowed on outputs", errors.ErrPropertyParse, section, i)
		}
		if c.Neuron == "" {
			return nil, fmt.Errorf("%w: %s[%d] has no neuron name", errors.ErrPropertyParse, section, i)
		}
		id := ParseNeuronName(c.Neuron)
		if c.Lower == nil && c.Upper == nil {
			return nil, fmt.Errorf("%w: %s[%d] has neither lower nor upper", errors.ErrPropertyParse, section, i)
		}
		if c.Lower != nil {
			constraints = append(constraints, LowerBound(id, *c.Lower))
		}
		if c.Upper != nil {
			constraints = append(constraints, UpperBound(id, *c.Upper))
		}
	}
	return constraints, nil
}

func yamlTerms(i int, c yamlConstraint) ([]Term, error) {
	if c.Neuron != "" {
		return nil, fmt.Errorf("%w: outputs[%d] mixes neuron and terms", errors.ErrPropertyParse, i)
	}
	var terms []Term
	for j, t := range c.Terms {
		if t.Neuron == "" {
			return nil, fmt.Errorf("%w: outputs[%d].terms[%d] has no neuron name", errors.ErrPropertyParse, i, j)
		}
		id := ParseNeuronName(t.Neuron)
		factor := t.Factor
		if factor == 0 {
			factor = 1
		}
		terms = append(terms, Term{ID: id, Factor: factor})
	}
	return terms, nil
}
