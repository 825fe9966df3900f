package property

import (
	"github.com/mlsafety/cegarete/pkg/errors"
	"github.com/mlsafety/cegarete/pkg/network"
)

// adversarialOutputID is the single output neuron of a reduced adversarial
// property.
var adversarialOutputID = network.NID("c")

// Adversarial encodes an adversarial robustness query: within the input box,
// can the runner-up output overtake the winner? The output constraints carry
// the reference score of each output (their lower-bound values); the winner
// and runner-up are picked from those scores.
type Adversarial struct {
	Inputs  []Constraint
	Outputs []Constraint
	// MinimalIsWinner selects whether the winning output is the minimal
	// (ACAS advisory style) or the maximal score.
	MinimalIsWinner bool
	// Slack shrinks the margin the counterexample must overcome.
	Slack float64
}

// AdversarialAround builds the robustness query for the delta-ball around a
// concrete input point. The point is run through the network and the output
// scores become the reference scores the winner and runner-up are picked from.
func AdversarialAround(net *network.Network, point map[network.NeuronID]float64, delta, slack float64, minimalWinner bool) (Adversarial, error) {
	if delta <= 0 {
		return Adversarial{}, errors.Wrap(errors.ErrValidation, "delta must be positive")
	}
	scores, err := net.Evaluate(point)
	if err != nil {
		return Adversarial{}, err
	}
	adv := Adversarial{MinimalIsWinner: minimalWinner, Slack: slack}
	for _, id := range net.InputIDs() {
		v := point[id]
		adv.Inputs = append(adv.Inputs, LowerBound(id, v-delta), UpperBound(id, v+delta))
	}
	for _, id := range net.OutputIDs() {
		adv.Outputs = append(adv.Outputs, LowerBound(id, scores[id]))
	}
	return adv, nil
}

// winnerAndRunnerUp picks the two leading outputs by score.
func (a Adversarial) winnerAndRunnerUp() (network.NeuronID, network.NeuronID, error) {
	var winner, runnerUp *Constraint
	better := func(x, y *Constraint) bool {
		if y == nil {
			return true
		}
		if a.MinimalIsWinner {
			return x.Value < y.Value
		}
		return x.Value > y.Value
	}
	for i := range a.Outputs {
		c := &a.Outputs[i]
		if c.Kind != Lower {
			continue
		}
		switch {
		case better(c, winner):
			winner, runnerUp = c, winner
		case better(c, runnerUp):
			runnerUp = c
		}
	}
	if winner == nil || runnerUp == nil {
		return network.NeuronID{}, network.NeuronID{}, errors.Wrap(
			errors.ErrUnsupportedProperty, "adversarial property needs at least two output scores")
	}
	return winner.ID, runnerUp.ID, nil
}

// Prepare implements Spec. The last layer is replaced by the single neuron
//
//	c = sum(x * (w_winner - w_runnerup)) + (b_winner - b_runnerup) - slack
//
// so the query becomes "can c reach 0 or above", i.e. LowerBound(c, 0) is
// the satisfying condition for the attacker.
func (a Adversarial) Prepare(net *network.Network) (*network.Network, Property, error) {
	winner, runnerUp, err := a.winnerAndRunnerUp()
	if err != nil {
		return nil, Property{}, err
	}
	// The counterexample must push the losing side above the winning side:
	// for minimal-wins advisories that means the winner overtaking, for
	// maximal-wins advisories the runner-up overtaking.
	if !a.MinimalIsWinner {
		winner, runnerUp = runnerUp, winner
	}

	last := net.Weights[len(net.Weights)-1]
	lastBiases := net.Biases[len(net.Biases)-1]
	newOutputs := []network.NeuronID{adversarialOutputID}

	diff, err := network.TableFromFunc(last.Srcs(), newOutputs, func(src, _ network.NeuronID) float64 {
		return last.At(src, winner) - last.At(src, runnerUp)
	})
	if err != nil {
		return nil, Property{}, err
	}
	diffBiases, err := network.NewBiases(newOutputs, []float64{
		lastBiases.Value(winner) - lastBiases.Value(runnerUp) - a.Slack,
	})
	if err != nil {
		return nil, Property{}, err
	}

	weights := append(append([]*network.Table(nil), net.Weights[:len(net.Weights)-1]...), diff)
	biases := append(append([]*network.Biases(nil), net.Biases[:len(net.Biases)-1]...), diffBiases)
	reduced, err := network.New(weights, biases, append([]network.Activation(nil), net.Activations...))
	if err != nil {
		return nil, Property{}, err
	}

	return reduced, Property{
		Inputs:  a.Inputs,
		Outputs: []Constraint{LowerBound(adversarialOutputID, 0)},
	}, nil
}
