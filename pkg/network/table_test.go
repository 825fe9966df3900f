package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(names ...string) []NeuronID {
	out := make([]NeuronID, len(names))
	for i, n := range names {
		out[i] = NID(n)
	}
	return out
}

func TestNewTableShapeMismatch(t *testing.T) {
	_, err := NewTable(ids("a"), ids("b", "c"), []float64{1})
	require.Error(t, err)
}

func TestTableAt(t *testing.T) {
	tab, err := NewTable(ids("a", "b"), ids("c", "d"), []float64{
		1, 2,
		3, 4,
	})
	require.NoError(t, err)

	assert.Equal(t, 1.0, tab.At(NID("a"), NID("c")))
	assert.Equal(t, 4.0, tab.At(NID("b"), NID("d")))
	assert.Panics(t, func() { tab.At(NID("zz"), NID("c")) })
}

func TestMergeColumns(t *testing.T) {
	tab, err := NewTable(ids("a", "b"), ids("p", "q", "r"), []float64{
		1, 5, 2,
		-1, 0, 3,
	})
	require.NoError(t, err)

	merged, err := tab.MergeColumns(NID("m"), ids("p", "r"), AggMax)
	require.NoError(t, err)

	// columns sorted: m, q
	assert.Equal(t, ids("m", "q"), merged.Dests())
	assert.Equal(t, 2.0, merged.At(NID("a"), NID("m")))
	assert.Equal(t, 3.0, merged.At(NID("b"), NID("m")))
	assert.Equal(t, 5.0, merged.At(NID("a"), NID("q")))

	// bookkeeping
	assert.Same(t, tab, merged.Original())
	require.Len(t, merged.Records(), 1)
	assert.Equal(t, Columns, merged.Records()[0].Axis)
	assert.ElementsMatch(t, ids("p", "r"), merged.Origins(NID("m")))
	assert.Nil(t, merged.Origins(NID("q")))
}

func TestMergeRowsSum(t *testing.T) {
	tab, err := NewTable(ids("p", "q", "r"), ids("a"), []float64{1, 2, 4})
	require.NoError(t, err)

	merged, err := tab.MergeRows(NID("m"), ids("q", "r"), AggSum)
	require.NoError(t, err)

	assert.Equal(t, ids("m", "p"), merged.Srcs())
	assert.Equal(t, 6.0, merged.At(NID("m"), NID("a")))
	assert.Equal(t, 1.0, merged.At(NID("p"), NID("a")))
}

func TestMergeUnknownNeuron(t *testing.T) {
	tab, err := NewTable(ids("a"), ids("b", "c"), []float64{1, 2})
	require.NoError(t, err)

	_, err = tab.MergeColumns(NID("m"), ids("b", "zz"), AggMin)
	require.Error(t, err)
}

func TestOriginsTransitive(t *testing.T) {
	tab, err := NewTable(ids("a"), ids("p", "q", "r"), []float64{1, 2, 3})
	require.NoError(t, err)

	m1, err := tab.MergeColumns(NID("m1"), ids("p", "q"), AggMax)
	require.NoError(t, err)
	m2, err := m1.MergeColumns(NID("m2"), []NeuronID{NID("m1"), NID("r")}, AggMax)
	require.NoError(t, err)

	assert.ElementsMatch(t, ids("p", "q", "r"), m2.Origins(NID("m2")))
	assert.Same(t, tab, m2.Original())
	assert.Len(t, m2.Records(), 2)
}

func TestReplay(t *testing.T) {
	tab, err := NewTable(ids("a", "b"), ids("p", "q", "r"), []float64{
		1, 5, 2,
		-1, 0, 3,
	})
	require.NoError(t, err)

	merged, err := tab.MergeColumns(NID("m"), ids("p", "r"), AggMin)
	require.NoError(t, err)

	replayed, err := tab.Replay(merged.Records())
	require.NoError(t, err)

	assert.Equal(t, merged.Dests(), replayed.Dests())
	assert.Equal(t, merged.At(NID("a"), NID("m")), replayed.At(NID("a"), NID("m")))
}

func TestBiasesMerge(t *testing.T) {
	b, err := NewBiases(ids("p", "q", "r"), []float64{1, -2, 5})
	require.NoError(t, err)

	merged, err := b.Merge(NID("m"), ids("p", "r"), AggMax)
	require.NoError(t, err)

	assert.Equal(t, 5.0, merged.Value(NID("m")))
	assert.Equal(t, -2.0, merged.Value(NID("q")))
	assert.ElementsMatch(t, ids("p", "r"), merged.Origins(NID("m")))
}
