package cegar

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/mlsafety/cegarete/pkg/abstraction"
	"github.com/mlsafety/cegarete/pkg/errors"
	"github.com/mlsafety/cegarete/pkg/network"
	"github.com/mlsafety/cegarete/pkg/property"
	"github.com/mlsafety/cegarete/pkg/refinement"
	"github.com/mlsafety/cegarete/pkg/verifier"
	mock_verifier "github.com/mlsafety/cegarete/pkg/verifier/mocks"
)

// x0 -> v1:0 -> (v2:0, v2:1, v2:2) -> y0. Incoming weights into layer 2 are
// (1, 2, 3) and outgoing weights (1, 2, 5). At x0=1 the network outputs 20,
// while complete abstraction merges layer 2 into one neuron and outputs 24.
func pipelineNetwork(t *testing.T) *network.Network {
	t.Helper()

	inputs := []network.NeuronID{network.InputID(0)}
	l1 := []network.NeuronID{network.HiddenID(1, 0)}
	l2 := []network.NeuronID{network.HiddenID(2, 0), network.HiddenID(2, 1), network.HiddenID(2, 2)}
	outputs := []network.NeuronID{network.OutputID(0)}

	w0, err := network.NewTable(inputs, l1, []float64{1})
	require.NoError(t, err)
	w1, err := network.NewTable(l1, l2, []float64{1, 2, 3})
	require.NoError(t, err)
	w2, err := network.NewTable(l2, outputs, []float64{1, 2, 5})
	require.NoError(t, err)

	var biases []*network.Biases
	for _, ids := range [][]network.NeuronID{inputs, l1, l2, outputs} {
		b, err := network.ZeroBiases(ids)
		require.NoError(t, err)
		biases = append(biases, b)
	}

	net, err := network.New(
		[]*network.Table{w0, w1, w2},
		biases,
		[]network.Activation{network.ActivationID, network.ActivationRelu, network.ActivationRelu, network.ActivationID},
	)
	require.NoError(t, err)
	return net
}

func boxProperty(outputLower float64) property.Property {
	return property.Property{
		Inputs: []property.Constraint{
			property.LowerBound(network.InputID(0), 0),
			property.UpperBound(network.InputID(0), 1),
		},
		Outputs: []property.Constraint{
			property.LowerBound(network.OutputID(0), outputLower),
		},
	}
}

func satResult(x float64) verifier.Result {
	inputs := map[network.NeuronID]float64{network.InputID(0): x}
	return verifier.Result{Status: verifier.StatusSat, Assignment: inputs, InputsOnly: inputs}
}

// noStepsStrategy simulates a refinement strategy that has run out of moves.
type noStepsStrategy struct{}

func (noStepsStrategy) Steps(*network.Network, refinement.Context) ([]refinement.Step, error) {
	return nil, nil
}

func newDriver(t *testing.T, solver verifier.Verifier, events *[]Event) *Driver {
	t.Helper()
	hooks := Hooks{}
	if events != nil {
		hooks.OnEvent = func(e Event) { *events = append(*events, e) }
	}
	return New(solver, abstraction.CompleteRightToLeft{}, refinement.ByMaxLoss{SequenceLength: 1}, hooks)
}

func TestRunProvedOnAbstract(t *testing.T) {
	ctrl := gomock.NewController(t)
	solver := mock_verifier.NewMockVerifier(ctrl)
	solver.EXPECT().Solve(gomock.Any(), gomock.Any()).Return(verifier.Result{Status: verifier.StatusUnsat}, nil)

	var events []Event
	d := newDriver(t, solver, &events)

	// The abstract network tops out at 24, so an unsatisfiable query on it
	// settles the run without refinement.
	res, err := d.Run(t.Context(), pipelineNetwork(t), boxProperty(25), Options{})
	require.NoError(t, err)

	assert.Equal(t, VerdictUnsat, res.Verdict)
	assert.Nil(t, res.Counterexample)
	assert.Equal(t, 1, res.Stats.Queries)
	assert.Equal(t, 0, res.Stats.RefinementRounds)

	var phases []string
	for _, e := range events {
		phases = append(phases, e.Phase)
	}
	assert.Equal(t, []string{"preprocess", "abstract", "solve", "done"}, phases)
}

func TestRunRealCounterexample(t *testing.T) {
	ctrl := gomock.NewController(t)
	solver := mock_verifier.NewMockVerifier(ctrl)
	solver.EXPECT().Solve(gomock.Any(), gomock.Any()).Return(satResult(1), nil)

	d := newDriver(t, solver, nil)

	// x0=1 gives 20 on the original network, which satisfies y0 >= 19.
	res, err := d.Run(t.Context(), pipelineNetwork(t), boxProperty(19), Options{})
	require.NoError(t, err)

	assert.Equal(t, VerdictSat, res.Verdict)
	require.NotNil(t, res.Counterexample)
	assert.Equal(t, 1.0, res.Counterexample[network.InputID(0)])
	assert.Equal(t, 0, res.Stats.SpuriousCounterexamples)
}

func TestRunSpuriousThenProved(t *testing.T) {
	ctrl := gomock.NewController(t)
	solver := mock_verifier.NewMockVerifier(ctrl)
	gomock.InOrder(
		// x0=1 satisfies y0 >= 21 on the abstract network (24) but not on
		// the original (20): spurious.
		solver.EXPECT().Solve(gomock.Any(), gomock.Any()).Return(satResult(1), nil),
		solver.EXPECT().Solve(gomock.Any(), gomock.Any()).Return(verifier.Result{Status: verifier.StatusUnsat}, nil),
	)

	var events []Event
	d := newDriver(t, solver, &events)

	res, err := d.Run(t.Context(), pipelineNetwork(t), boxProperty(21), Options{})
	require.NoError(t, err)

	assert.Equal(t, VerdictUnsat, res.Verdict)
	assert.Equal(t, 2, res.Stats.Queries)
	assert.Equal(t, 1, res.Stats.RefinementRounds)
	assert.Equal(t, 1, res.Stats.SpuriousCounterexamples)
	assert.Greater(t, res.Stats.AbstractNeuronsEnd, res.Stats.AbstractNeuronsStart)

	var refined bool
	for _, e := range events {
		refined = refined || e.Phase == "refine"
	}
	assert.True(t, refined)
}

func TestRunBudgetExhausted(t *testing.T) {
	ctrl := gomock.NewController(t)
	solver := mock_verifier.NewMockVerifier(ctrl)
	solver.EXPECT().Solve(gomock.Any(), gomock.Any()).Return(satResult(1), nil).Times(2)

	d := newDriver(t, solver, nil)

	res, err := d.Run(t.Context(), pipelineNetwork(t), boxProperty(21), Options{MaxRounds: 1})
	require.NoError(t, err)

	assert.Equal(t, VerdictUnknown, res.Verdict)
	assert.Equal(t, 2, res.Stats.Queries)
	assert.Equal(t, 2, res.Stats.SpuriousCounterexamples)
}

func TestRunRefinementStuck(t *testing.T) {
	ctrl := gomock.NewController(t)
	solver := mock_verifier.NewMockVerifier(ctrl)
	solver.EXPECT().Solve(gomock.Any(), gomock.Any()).Return(satResult(1), nil)

	d := New(solver, abstraction.CompleteRightToLeft{}, noStepsStrategy{}, Hooks{})

	res, err := d.Run(t.Context(), pipelineNetwork(t), boxProperty(21), Options{})
	require.NoError(t, err)
	assert.Equal(t, VerdictUnknown, res.Verdict)
}

func TestRunSolverTimeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	solver := mock_verifier.NewMockVerifier(ctrl)
	solver.EXPECT().Solve(gomock.Any(), gomock.Any()).Return(verifier.Result{Status: verifier.StatusTimeout}, nil)

	d := newDriver(t, solver, nil)
	res, err := d.Run(t.Context(), pipelineNetwork(t), boxProperty(21), Options{})
	require.NoError(t, err)
	assert.Equal(t, VerdictTimeout, res.Verdict)
}

func TestRunRejectsBogusAssignment(t *testing.T) {
	ctrl := gomock.NewController(t)
	solver := mock_verifier.NewMockVerifier(ctrl)
	// x0=0 drives every neuron to 0, which cannot satisfy y0 >= 21 even on
	// the abstract network.
	solver.EXPECT().Solve(gomock.Any(), gomock.Any()).Return(satResult(0), nil)

	d := newDriver(t, solver, nil)
	_, err := d.Run(t.Context(), pipelineNetwork(t), boxProperty(21), Options{})
	assert.ErrorIs(t, err, errors.ErrVerifierOutput)
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	ctrl := gomock.NewController(t)
	solver := mock_verifier.NewMockVerifier(ctrl)

	d := newDriver(t, solver, nil)
	_, err := d.Run(ctx, pipelineNetwork(t), boxProperty(21), Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunWithPropertyUpdate(t *testing.T) {
	ctrl := gomock.NewController(t)
	solver := mock_verifier.NewMockVerifier(ctrl)

	// With update enabled the encoded query's output bound may sit above the
	// configured 21, since interval propagation shifts it by the abstraction
	// drift. Capture the encoded bound to make sure the updater ran.
	var bound float64
	solver.EXPECT().Solve(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, q *verifier.Query) (verifier.Result, error) {
			outVar := q.OutputVars[0]
			bound = q.LowerBounds[outVar]
			return verifier.Result{Status: verifier.StatusUnsat}, nil
		})

	d := newDriver(t, solver, nil)
	res, err := d.Run(t.Context(), pipelineNetwork(t), boxProperty(21), Options{UpdateProperty: true})
	require.NoError(t, err)

	assert.Equal(t, VerdictUnsat, res.Verdict)
	// Bounds only ever tighten: the encoded lower bound is at least 21.
	assert.GreaterOrEqual(t, bound, 21.0)
}
