package marabou

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlsafety/cegarete/pkg/errors"
	"github.com/mlsafety/cegarete/pkg/network"
	"github.com/mlsafety/cegarete/pkg/property"
	"github.com/mlsafety/cegarete/pkg/verifier"
)

func encodedQuery(t *testing.T) *verifier.Query {
	t.Helper()

	inputs := []network.NeuronID{network.InputID(0), network.InputID(1)}
	hidden := []network.NeuronID{network.HiddenID(1, 0)}
	outputs := []network.NeuronID{network.OutputID(0)}

	w0, err := network.NewTable(inputs, hidden, []float64{1, 1})
	require.NoError(t, err)
	w1, err := network.NewTable(hidden, outputs, []float64{1})
	require.NoError(t, err)

	var biases []*network.Biases
	for _, ids := range [][]network.NeuronID{inputs, hidden, outputs} {
		b, err := network.ZeroBiases(ids)
		require.NoError(t, err)
		biases = append(biases, b)
	}

	net, err := network.New(
		[]*network.Table{w0, w1},
		biases,
		[]network.Activation{network.ActivationID, network.ActivationRelu, network.ActivationID},
	)
	require.NoError(t, err)

	q, err := verifier.Encode(net, property.Property{
		Inputs: []property.Constraint{
			property.LowerBound(network.InputID(0), 0),
			property.UpperBound(network.InputID(0), 1),
		},
		Outputs: []property.Constraint{property.LowerBound(network.OutputID(0), 1)},
	})
	require.NoError(t, err)
	return q
}

func TestParseOutputUnsat(t *testing.T) {
	res, err := ParseOutput(encodedQuery(t), "some preamble\nEngine::solve: unsat query\n")
	require.NoError(t, err)
	assert.Equal(t, verifier.StatusUnsat, res.Status)
	assert.Nil(t, res.Assignment)
}

func TestParseOutputSat(t *testing.T) {
	out := strings.Join([]string{
		"Engine::solve: sat",
		"Input assignment:",
		"\tx0 = 0.25",
		"\tx1 = -1.5",
		"",
		"Output:",
		"\ty0 = 2.0",
	}, "\n")

	res, err := ParseOutput(encodedQuery(t), out)
	require.NoError(t, err)
	assert.Equal(t, verifier.StatusSat, res.Status)
	assert.Equal(t, map[network.NeuronID]float64{
		network.InputID(0): 0.25,
		network.InputID(1): -1.5,
	}, res.InputsOnly)
	assert.Equal(t, 2.0, res.Assignment[network.OutputID(0)])
}

func TestParseOutputTimeout(t *testing.T) {
	res, err := ParseOutput(encodedQuery(t), "Engine::solve: timeout\n")
	require.NoError(t, err)
	assert.Equal(t, verifier.StatusTimeout, res.Status)
}

func TestParseOutputUnknown(t *testing.T) {
	res, err := ParseOutput(encodedQuery(t), "nothing conclusive here\n")
	require.NoError(t, err)
	assert.Equal(t, verifier.StatusUnknown, res.Status)
}

func TestParseOutputIncompleteAssignment(t *testing.T) {
	out := "Input assignment:\n\tx0 = 0.25\n"
	_, err := ParseOutput(encodedQuery(t), out)
	assert.ErrorIs(t, err, errors.ErrVerifierOutput)
}

func TestWriteQuery(t *testing.T) {
	q := encodedQuery(t)

	var sb strings.Builder
	require.NoError(t, WriteQuery(&sb, q))
	out := sb.String()

	assert.Contains(t, out, "vars 5\n")
	assert.Contains(t, out, "var 0 F x0\n")
	assert.Contains(t, out, "inputs 0 1\n")
	assert.Contains(t, out, "outputs 4\n")
	assert.Contains(t, out, "relu 2 3\n")
	assert.Contains(t, out, "lb 0 0\n")
	assert.Contains(t, out, "ub 0 1\n")
	assert.Contains(t, out, "lb 4 1\n")

	// one equation per non-input neuron
	assert.Equal(t, 2, strings.Count(out, "\neq "))
}

func TestSolveMissingBinary(t *testing.T) {
	e := New("definitely-not-a-real-engine-binary")
	_, err := e.Solve(t.Context(), encodedQuery(t))
	assert.ErrorIs(t, err, errors.ErrVerifierMissing)
}
