package network

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/mlsafety/cegarete/pkg/errors"
)

// Axis selects whether a merge was applied to the rows (sources) or columns
// (destinations) of a table.
type Axis int

// Axis values.
const (
	Rows Axis = iota
	Columns
)

// Aggregator selects how merged entries are combined.
type Aggregator int

// Aggregator values. Inc neurons aggregate incoming edges and biases with
// AggMax, Dec neurons with AggMin; outgoing edges always use AggSum.
const (
	AggMax Aggregator = iota
	AggMin
	AggSum
)

func (a Aggregator) combine(acc, v float64) float64 {
	switch a {
	case AggMax:
		return math.Max(acc, v)
	case AggMin:
		return math.Min(acc, v)
	default:
		return acc + v
	}
}

// MergeRecord describes one aggregation applied to a table: the merged ids and
// the id that replaced them.
type MergeRecord struct {
	Axis  Axis
	NewID NeuronID
	Nodes []NeuronID
	Agg   Aggregator
}

// Table is a dense weight matrix with named rows (source neurons) and named
// columns (destination neurons). Tables are immutable: every transformation
// returns a new table. A table produced by merges keeps a pointer to the
// pristine table it came from plus the ordered merge records, which is exactly
// what refinement needs to rebuild a less abstract table.
type Table struct {
	srcs    []NeuronID
	dests   []NeuronID
	srcIdx  map[NeuronID]int
	destIdx map[NeuronID]int
	data    *mat.Dense

	orig    *Table
	records []MergeRecord
	origins map[NeuronID][]NeuronID
}

// NewTable builds a table from row-major data; len(data) must equal
// len(srcs)*len(dests).
func NewTable(srcs, dests []NeuronID, data []float64) (*Table, error) {
	if len(data) != len(srcs)*len(dests) {
		return nil, errors.Wrapf(errors.ErrNetworkStructure,
			"table data has %d entries, want %d×%d", len(data), len(srcs), len(dests))
	}
	t := &Table{
		srcs:  append([]NeuronID(nil), srcs...),
		dests: append([]NeuronID(nil), dests...),
		data:  mat.NewDense(len(srcs), len(dests), append([]float64(nil), data...)),
	}
	t.reindex()
	if len(t.srcIdx) != len(srcs) || len(t.destIdx) != len(dests) {
		return nil, errors.Wrap(errors.ErrNetworkStructure, "duplicate neuron id in table")
	}
	return t, nil
}

// TableFromFunc builds a table by evaluating f for every (src, dest) pair.
func TableFromFunc(srcs, dests []NeuronID, f func(src, dest NeuronID) float64) (*Table, error) {
	data := make([]float64, len(srcs)*len(dests))
	for i, s := range srcs {
		for j, d := range dests {
			data[i*len(dests)+j] = f(s, d)
		}
	}
	return NewTable(srcs, dests, data)
}

func (t *Table) reindex() {
	t.srcIdx = make(map[NeuronID]int, len(t.srcs))
	for i, id := range t.srcs {
		t.srcIdx[id] = i
	}
	t.destIdx = make(map[NeuronID]int, len(t.dests))
	for i, id := range t.dests {
		t.destIdx[id] = i
	}
}

// Srcs returns the row ids in matrix order. The slice must not be modified.
func (t *Table) Srcs() []NeuronID { return t.srcs }

// Dests returns the column ids in matrix order. The slice must not be modified.
func (t *Table) Dests() []NeuronID { return t.dests }

// HasSrc reports whether id names a row of the table.
func (t *Table) HasSrc(id NeuronID) bool { _, ok := t.srcIdx[id]; return ok }

// HasDest reports whether id names a column of the table.
func (t *Table) HasDest(id NeuronID) bool { _, ok := t.destIdx[id]; return ok }

// At returns the weight on the src->dest edge. It panics if either id is not
// part of the table, mirroring mat.Dense.At.
func (t *Table) At(src, dest NeuronID) float64 {
	si, ok := t.srcIdx[src]
	if !ok {
		panic(fmt.Sprintf("network: unknown source neuron %s", src))
	}
	di, ok := t.destIdx[dest]
	if !ok {
		panic(fmt.Sprintf("network: unknown destination neuron %s", dest))
	}
	return t.data.At(si, di)
}

// Matrix exposes the underlying dense matrix. Callers must treat it as
// read-only.
func (t *Table) Matrix() *mat.Dense { return t.data }

// Original returns the pristine table this table was derived from by merges,
// or the table itself if no merge was applied.
func (t *Table) Original() *Table {
	if t.orig != nil {
		return t.orig
	}
	return t
}

// Records returns the merge records applied since the original table.
func (t *Table) Records() []MergeRecord { return t.records }

// Origins returns the original neurons folded into id by merges, or nil if id
// is a concrete neuron.
func (t *Table) Origins(id NeuronID) []NeuronID { return t.origins[id] }

// Clone returns a deep copy of the table. The original-table pointer is
// shared; it is never mutated.
func (t *Table) Clone() *Table {
	nt := &Table{
		srcs:    append([]NeuronID(nil), t.srcs...),
		dests:   append([]NeuronID(nil), t.dests...),
		data:    mat.DenseCopyOf(t.data),
		orig:    t.orig,
		records: append([]MergeRecord(nil), t.records...),
	}
	nt.reindex()
	if t.origins != nil {
		nt.origins = make(map[NeuronID][]NeuronID, len(t.origins))
		for k, v := range t.origins {
			nt.origins[k] = v
		}
	}
	return nt
}

// originsOf expands id to the concrete neurons behind it, falling back to the
// id itself.
func (t *Table) originsOf(id NeuronID) []NeuronID {
	if o := t.origins[id]; len(o) > 0 {
		return o
	}
	return []NeuronID{id}
}

// MergeColumns replaces the columns named in nodes with a single aggregated
// column newID and records the step. Columns stay sorted by id.
func (t *Table) MergeColumns(newID NeuronID, nodes []NeuronID, agg Aggregator) (*Table, error) {
	idxs, err := t.columnIndices(nodes)
	if err != nil {
		return nil, err
	}

	drop := make(map[NeuronID]bool, len(nodes))
	for _, n := range nodes {
		drop[n] = true
	}
	newDests := make([]NeuronID, 0, len(t.dests)-len(nodes)+1)
	for _, d := range t.dests {
		if !drop[d] {
			newDests = append(newDests, d)
		}
	}
	newDests = append(newDests, newID)
	SortIDs(newDests)

	rows := len(t.srcs)
	data := make([]float64, rows*len(newDests))
	for i := 0; i < rows; i++ {
		for j, d := range newDests {
			if d == newID {
				acc := t.data.At(i, idxs[0])
				for _, di := range idxs[1:] {
					acc = agg.combine(acc, t.data.At(i, di))
				}
				data[i*len(newDests)+j] = acc
			} else {
				data[i*len(newDests)+j] = t.data.At(i, t.destIdx[d])
			}
		}
	}

	nt, err := NewTable(t.srcs, newDests, data)
	if err != nil {
		return nil, err
	}
	t.recordMerge(nt, MergeRecord{Axis: Columns, NewID: newID, Nodes: nodes, Agg: agg})
	return nt, nil
}

// MergeRows replaces the rows named in nodes with a single aggregated row
// newID and records the step. Rows stay sorted by id.
func (t *Table) MergeRows(newID NeuronID, nodes []NeuronID, agg Aggregator) (*Table, error) {
	idxs, err := t.rowIndices(nodes)
	if err != nil {
		return nil, err
	}

	drop := make(map[NeuronID]bool, len(nodes))
	for _, n := range nodes {
		drop[n] = true
	}
	newSrcs := make([]NeuronID, 0, len(t.srcs)-len(nodes)+1)
	for _, s := range t.srcs {
		if !drop[s] {
			newSrcs = append(newSrcs, s)
		}
	}
	newSrcs = append(newSrcs, newID)
	SortIDs(newSrcs)

	cols := len(t.dests)
	data := make([]float64, len(newSrcs)*cols)
	for i, s := range newSrcs {
		for j := 0; j < cols; j++ {
			if s == newID {
				acc := t.data.At(idxs[0], j)
				for _, si := range idxs[1:] {
					acc = agg.combine(acc, t.data.At(si, j))
				}
				data[i*cols+j] = acc
			} else {
				data[i*cols+j] = t.data.At(t.srcIdx[s], j)
			}
		}
	}

	nt, err := NewTable(newSrcs, t.dests, data)
	if err != nil {
		return nil, err
	}
	t.recordMerge(nt, MergeRecord{Axis: Rows, NewID: newID, Nodes: nodes, Agg: agg})
	return nt, nil
}

func (t *Table) recordMerge(nt *Table, rec MergeRecord) {
	nt.orig = t.Original()
	nt.records = append(append([]MergeRecord(nil), t.records...), rec)

	nt.origins = make(map[NeuronID][]NeuronID, len(t.origins)+1)
	for k, v := range t.origins {
		nt.origins[k] = v
	}
	merged := make([]NeuronID, 0, len(rec.Nodes))
	for _, n := range rec.Nodes {
		merged = append(merged, t.originsOf(n)...)
		delete(nt.origins, n)
	}
	nt.origins[rec.NewID] = SortIDs(merged)
}

func (t *Table) columnIndices(ids []NeuronID) ([]int, error) {
	if len(ids) == 0 {
		return nil, errors.Wrap(errors.ErrStepTooSmall, "no columns to merge")
	}
	idxs := make([]int, len(ids))
	for i, id := range ids {
		di, ok := t.destIdx[id]
		if !ok {
			return nil, errors.Wrapf(errors.ErrUnknownNeuron, "column %s", id)
		}
		idxs[i] = di
	}
	return idxs, nil
}

func (t *Table) rowIndices(ids []NeuronID) ([]int, error) {
	if len(ids) == 0 {
		return nil, errors.Wrap(errors.ErrStepTooSmall, "no rows to merge")
	}
	idxs := make([]int, len(ids))
	for i, id := range ids {
		si, ok := t.srcIdx[id]
		if !ok {
			return nil, errors.Wrapf(errors.ErrUnknownNeuron, "row %s", id)
		}
		idxs[i] = si
	}
	return idxs, nil
}

// Replay applies the given merge records to the table in order. It is used by
// refinement: filter the recorded steps, then replay the survivors against the
// original table.
func (t *Table) Replay(records []MergeRecord) (*Table, error) {
	cur := t
	var err error
	for _, rec := range records {
		if rec.Axis == Rows {
			cur, err = cur.MergeRows(rec.NewID, rec.Nodes, rec.Agg)
		} else {
			cur, err = cur.MergeColumns(rec.NewID, rec.Nodes, rec.Agg)
		}
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}
