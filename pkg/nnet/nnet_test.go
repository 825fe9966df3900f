package nnet

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlsafety/cegarete/pkg/errors"
	"github.com/mlsafety/cegarete/pkg/network"
	"github.com/mlsafety/cegarete/pkg/property"
)

// 2 inputs, one hidden layer of 2 relu neurons, 1 output:
// v1:0 = relu(x0 + x1), v1:1 = relu(x0 - x1 + 1), y0 = v1:0 - 2*v1:1 + 0.5
const sampleNNet = `// test network
// generated by hand
2,2,1,2,
2,2,1,
0,
-1.0,-1.0,
1.0,1.0,
0.0,0.0,0.0,
1.0,1.0,1.0,
1.0,1.0,
1.0,-1.0,
0.0,
1.0,
1.0,-2.0,
0.5,
`

func TestParse(t *testing.T) {
	doc, err := Parse(strings.NewReader(sampleNNet))
	require.NoError(t, err)

	assert.Equal(t, []int{2, 2, 1}, doc.LayerSizes)
	assert.Equal(t, []float64{-1, -1}, doc.InputMinimums)
	assert.Equal(t, []float64{1, 1}, doc.InputMaximums)
	assert.Equal(t, []float64{0, 0, 0}, doc.Means)
	assert.Equal(t, []float64{1, 1, 1}, doc.Ranges)

	require.Len(t, doc.Weights, 2)
	assert.Equal(t, [][]float64{{1, 1}, {1, -1}}, doc.Weights[0])
	assert.Equal(t, [][]float64{{1, -2}}, doc.Weights[1])
	assert.Equal(t, []float64{0, 1}, doc.Biases[0])
	assert.Equal(t, []float64{0.5}, doc.Biases[1])
}

func TestParseErrors(t *testing.T) {
	_, err := Parse(strings.NewReader(""))
	assert.ErrorIs(t, err, errors.ErrNNetFormat)

	_, err = Parse(strings.NewReader("2,2,1,2,\n2,3,1,\n"))
	assert.ErrorIs(t, err, errors.ErrNNetFormat, "layer table contradicts header")

	truncated := strings.Join(strings.Split(sampleNNet, "\n")[:9], "\n")
	_, err = Parse(strings.NewReader(truncated))
	assert.ErrorIs(t, err, errors.ErrNNetFormat)
}

func TestNetworkConversion(t *testing.T) {
	doc, err := Parse(strings.NewReader(sampleNNet))
	require.NoError(t, err)
	net, err := doc.Network()
	require.NoError(t, err)

	assert.Equal(t, 3, net.LayerCount())
	assert.Equal(t, []network.NeuronID{network.InputID(0), network.InputID(1)}, net.InputIDs())
	assert.Equal(t, []network.NeuronID{network.OutputID(0)}, net.OutputIDs())

	// x = (1, 1): v1:0 = 2, v1:1 = 1, y0 = 2 - 2 + 0.5
	out, err := net.Evaluate(map[network.NeuronID]float64{
		network.InputID(0): 1, network.InputID(1): 1,
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, out[network.OutputID(0)], 1e-9)

	// x = (0, 1): v1:0 = 1, v1:1 = 0, y0 = 1 + 0.5
	out, err = net.Evaluate(map[network.NeuronID]float64{
		network.InputID(0): 0, network.InputID(1): 1,
	})
	require.NoError(t, err)
	assert.InDelta(t, 1.5, out[network.OutputID(0)], 1e-9)
}

func TestInputBounds(t *testing.T) {
	doc, err := Parse(strings.NewReader(sampleNNet))
	require.NoError(t, err)

	bounds := doc.InputBounds()
	assert.Equal(t, []property.Constraint{
		property.LowerBound(network.InputID(0), -1),
		property.UpperBound(network.InputID(0), 1),
		property.LowerBound(network.InputID(1), -1),
		property.UpperBound(network.InputID(1), 1),
	}, bounds)
}

func TestSaveRoundTrip(t *testing.T) {
	doc, err := Parse(strings.NewReader(sampleNNet))
	require.NoError(t, err)

	var sb strings.Builder
	require.NoError(t, Save(&sb, doc))

	again, err := Parse(strings.NewReader(sb.String()))
	require.NoError(t, err)
	assert.Equal(t, doc, again)
}

func TestFromNetworkRoundTrip(t *testing.T) {
	doc, err := Parse(strings.NewReader(sampleNNet))
	require.NoError(t, err)
	net, err := doc.Network()
	require.NoError(t, err)

	rebuilt, err := FromNetwork(net, doc.InputMinimums, doc.InputMaximums, doc.Means, doc.Ranges)
	require.NoError(t, err)
	assert.Equal(t, doc, rebuilt)

	_, err = FromNetwork(net, []float64{0}, []float64{1}, nil, nil)
	assert.ErrorIs(t, err, errors.ErrNNetFormat)
}
