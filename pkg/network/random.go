package network

import "math/rand"

// Random builds a fully-connected network with integer weights and biases in
// [-5, 5), identity input/output activations and ReLU hidden activations.
// Deterministic for a given seed; used heavily by tests and examples.
func Random(numInputs int, hiddenSizes []int, numOutputs int, seed int64) *Network {
	rng := rand.New(rand.NewSource(seed))
	gen := func() float64 { return float64(rng.Intn(10) - 5) }
	return RandomCustom(numInputs, hiddenSizes, numOutputs, gen, gen)
}

// RandomCustom builds a network with caller-supplied weight and bias
// generators.
func RandomCustom(numInputs int, hiddenSizes []int, numOutputs int, weightGen, biasGen func() float64) *Network {
	layers := make([][]NeuronID, 0, len(hiddenSizes)+2)

	inputs := make([]NeuronID, numInputs)
	for i := range inputs {
		inputs[i] = InputID(i)
	}
	layers = append(layers, inputs)

	for l, size := range hiddenSizes {
		ids := make([]NeuronID, size)
		for i := range ids {
			ids[i] = HiddenID(l+1, i+1)
		}
		layers = append(layers, ids)
	}

	outputs := make([]NeuronID, numOutputs)
	for i := range outputs {
		outputs[i] = OutputID(i)
	}
	layers = append(layers, outputs)

	biases := make([]*Biases, len(layers))
	biases[0], _ = ZeroBiases(inputs)
	for l := 1; l < len(layers)-1; l++ {
		values := make([]float64, len(layers[l]))
		for i := range values {
			values[i] = biasGen()
		}
		biases[l], _ = NewBiases(layers[l], values)
	}
	biases[len(layers)-1], _ = ZeroBiases(outputs)

	weights := make([]*Table, len(layers)-1)
	for l := 0; l < len(layers)-1; l++ {
		weights[l], _ = TableFromFunc(layers[l], layers[l+1], func(NeuronID, NeuronID) float64 {
			return weightGen()
		})
	}

	activations := make([]Activation, len(layers))
	activations[0] = ActivationID
	for l := 1; l < len(layers)-1; l++ {
		activations[l] = ActivationRelu
	}
	activations[len(layers)-1] = ActivationID

	net, err := New(weights, biases, activations)
	if err != nil {
		// structure is built consistently above
		panic(err)
	}
	return net
}
