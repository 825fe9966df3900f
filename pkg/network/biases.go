package network

// unitID is the single synthetic row id of a bias table.
var unitID = NeuronID{Name: "_unit"}

// Biases is a bias vector for one layer, stored as a single-row table so it
// shares the merge and replay machinery with weight tables.
type Biases struct {
	tab *Table
}

// NewBiases builds a bias table; values[i] is the bias of ids[i].
func NewBiases(ids []NeuronID, values []float64) (*Biases, error) {
	tab, err := NewTable([]NeuronID{unitID}, ids, values)
	if err != nil {
		return nil, err
	}
	return &Biases{tab: tab}, nil
}

// ZeroBiases builds an all-zero bias table, used for input and output layers
// read from formats that do not carry those biases.
func ZeroBiases(ids []NeuronID) (*Biases, error) {
	return NewBiases(ids, make([]float64, len(ids)))
}

func biasesFromTable(tab *Table) *Biases { return &Biases{tab: tab} }

// IDs returns the neuron ids in table order. The slice must not be modified.
func (b *Biases) IDs() []NeuronID { return b.tab.Dests() }

// Has reports whether the layer contains id.
func (b *Biases) Has(id NeuronID) bool { return b.tab.HasDest(id) }

// Value returns the bias of id. Panics on unknown ids, like Table.At.
func (b *Biases) Value(id NeuronID) float64 { return b.tab.At(unitID, id) }

// Vector returns the biases in table order as a fresh slice.
func (b *Biases) Vector() []float64 {
	out := make([]float64, len(b.IDs()))
	for i, id := range b.IDs() {
		out[i] = b.Value(id)
	}
	return out
}

// Merge replaces the named neurons with a single aggregated bias entry.
func (b *Biases) Merge(newID NeuronID, nodes []NeuronID, agg Aggregator) (*Biases, error) {
	tab, err := b.tab.MergeColumns(newID, nodes, agg)
	if err != nil {
		return nil, err
	}
	return biasesFromTable(tab), nil
}

// Clone returns a deep copy.
func (b *Biases) Clone() *Biases { return biasesFromTable(b.tab.Clone()) }

// Original returns the pristine bias table this one was derived from.
func (b *Biases) Original() *Biases { return biasesFromTable(b.tab.Original()) }

// Records returns the merge records applied since the original table.
func (b *Biases) Records() []MergeRecord { return b.tab.Records() }

// Origins returns the original neurons folded into id, or nil.
func (b *Biases) Origins(id NeuronID) []NeuronID { return b.tab.Origins(id) }

// Replay applies merge records to the bias table in order.
func (b *Biases) Replay(records []MergeRecord) (*Biases, error) {
	tab, err := b.tab.Replay(records)
	if err != nil {
		return nil, err
	}
	return biasesFromTable(tab), nil
}
