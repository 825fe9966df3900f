// Package nnet reads and writes networks in the ACAS-Xu .nnet interchange
// format: a comment header, the layer size table, the input normalization
// statistics and, per layer, the weight matrix rows followed by the biases.
package nnet

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mlsafety/cegarete/pkg/errors"
	"github.com/mlsafety/cegarete/pkg/network"
	"github.com/mlsafety/cegarete/pkg/property"
)

// File is a parsed .nnet document.
type File struct {
	LayerSizes []int

	InputMinimums []float64
	InputMaximums []float64
	// Means and Ranges hold one entry per input plus a final entry for the
	// outputs; they describe the normalization the network was trained with.
	Means  []float64
	Ranges []float64

	// Weights[l][d][s] is the edge from source s of layer l to destination d
	// of layer l+1, matching the row-per-destination layout of the format.
	Weights [][][]float64
	// Biases[l][d] belongs to destination d of layer l+1.
	Biases [][]float64
}

// Load reads a .nnet file from disk.
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrNNetFormat, "opening %s: %v", path, err)
	}
	defer f.Close()
	return Parse(f)
}

type lineReader struct {
	scanner *bufio.Scanner
	line    int
}

// next returns the fields of the next non-comment line.
func (r *lineReader) next() ([]string, error) {
	for r.scanner.Scan() {
		r.line++
		text := strings.TrimSpace(r.scanner.Text())
		if text == "" || strings.HasPrefix(text, "//") {
			continue
		}
		fields := strings.Split(strings.TrimSuffix(text, ","), ",")
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		return fields, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, errors.Wrapf(errors.ErrNNetFormat, "line %d: %v", r.line, err)
	}
	return nil, errors.Wrapf(errors.ErrNNetFormat, "unexpected end of file after line %d", r.line)
}

func (r *lineReader) ints(n int) ([]int, error) {
	fields, err := r.next()
	if err != nil {
		return nil, err
	}
	if n > 0 && len(fields) != n {
		return nil, errors.Wrapf(errors.ErrNNetFormat, "line %d: expected %d values, got %d", r.line, n, len(fields))
	}
	out := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrNNetFormat, "line %d: %q is not an integer", r.line, f)
		}
		out[i] = v
	}
	return out, nil
}

func (r *lineReader) floats(n int) ([]float64, error) {
	fields, err := r.next()
	if err != nil {
		return nil, err
	}
	if n > 0 && len(fields) != n {
		return nil, errors.Wrapf(errors.ErrNNetFormat, "line %d: expected %d values, got %d", r.line, n, len(fields))
	}
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrNNetFormat, "line %d: %q is not a number", r.line, f)
		}
		out[i] = v
	}
	return out, nil
}

// Parse reads a .nnet document.
func Parse(r io.Reader) (*File, error) {
	lr := &lineReader{scanner: bufio.NewScanner(r)}
	lr.scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	header, err := lr.ints(4)
	if err != nil {
		return nil, err
	}
	numLayers, inputSize, outputSize := header[0], header[1], header[2]
	if numLayers < 1 || inputSize < 1 || outputSize < 1 {
		return nil, errors.Wrap(errors.ErrNNetFormat, "non-positive layer sizes in header")
	}

	sizes, err := lr.ints(numLayers + 1)
	if err != nil {
		return nil, err
	}
	if sizes[0] != inputSize || sizes[len(sizes)-1] != outputSize {
		return nil, errors.Wrap(errors.ErrNNetFormat, "layer size table does not match header")
	}

	// unused legacy flag line
	if _, err := lr.next(); err != nil {
		return nil, err
	}

	doc := &File{LayerSizes: sizes}
	if doc.InputMinimums, err = lr.floats(inputSize); err != nil {
		return nil, err
	}
	if doc.InputMaximums, err = lr.floats(inputSize); err != nil {
		return nil, err
	}
	if doc.Means, err = lr.floats(inputSize + 1); err != nil {
		return nil, err
	}
	if doc.Ranges, err = lr.floats(inputSize + 1); err != nil {
		return nil, err
	}

	for l := 0; l < numLayers; l++ {
		rows := make([][]float64, sizes[l+1])
		for d := range rows {
			if rows[d], err = lr.floats(sizes[l]); err != nil {
				return nil, err
			}
		}
		doc.Weights = append(doc.Weights, rows)

		biases := make([]float64, sizes[l+1])
		for d := range biases {
			b, err := lr.floats(1)
			if err != nil {
				return nil, err
			}
			biases[d] = b[0]
		}
		doc.Biases = append(doc.Biases, biases)
	}

	return doc, nil
}

// Network converts the document into a network with the standard naming:
// inputs x0..xn, hidden neurons v<layer>:<i>, outputs y0..ym. Hidden layers
// are relu, input and output layers identity, input biases zero.
func (f *File) Network() (*network.Network, error) {
	n := len(f.LayerSizes)
	ids := make([][]network.NeuronID, n)
	for l, size := range f.LayerSizes {
		ids[l] = make([]network.NeuronID, size)
		for i := 0; i < size; i++ {
			switch l {
			case 0:
				ids[l][i] = network.InputID(i)
			case n - 1:
				ids[l][i] = network.OutputID(i)
			default:
				ids[l][i] = network.HiddenID(l, i)
			}
		}
	}

	weights := make([]*network.Table, 0, n-1)
	for l := 0; l < n-1; l++ {
		rows := f.Weights[l]
		tab, err := network.TableFromFunc(ids[l], ids[l+1], func(src, dest network.NeuronID) float64 {
			return rows[indexOf(ids[l+1], dest)][indexOf(ids[l], src)]
		})
		if err != nil {
			return nil, err
		}
		weights = append(weights, tab)
	}

	biases := make([]*network.Biases, 0, n)
	b0, err := network.ZeroBiases(ids[0])
	if err != nil {
		return nil, err
	}
	biases = append(biases, b0)
	for l := 1; l < n; l++ {
		b, err := network.NewBiases(ids[l], f.Biases[l-1])
		if err != nil {
			return nil, err
		}
		biases = append(biases, b)
	}

	activations := make([]network.Activation, n)
	activations[0], activations[n-1] = network.ActivationID, network.ActivationID
	for l := 1; l < n-1; l++ {
		activations[l] = network.ActivationRelu
	}

	return network.New(weights, biases, activations)
}

// InputBounds turns the document's input ranges into property constraints.
func (f *File) InputBounds() []property.Constraint {
	constraints := make([]property.Constraint, 0, 2*len(f.InputMinimums))
	for i := range f.InputMinimums {
		constraints = append(constraints,
			property.LowerBound(network.InputID(i), f.InputMinimums[i]),
			property.UpperBound(network.InputID(i), f.InputMaximums[i]),
		)
	}
	return constraints
}

func indexOf(ids []network.NeuronID, id network.NeuronID) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

// FromNetwork rebuilds a document from a network, carrying over the given
// normalization statistics. The network's layer order defines the row order.
func FromNetwork(net *network.Network, mins, maxs, means, ranges []float64) (*File, error) {
	sizes := make([]int, net.LayerCount())
	for l := range sizes {
		sizes[l] = len(net.LayerIDs(l))
	}
	if len(mins) != sizes[0] || len(maxs) != sizes[0] {
		return nil, errors.Wrap(errors.ErrNNetFormat, "normalization vectors do not match the input size")
	}

	doc := &File{
		LayerSizes:    sizes,
		InputMinimums: append([]float64(nil), mins...),
		InputMaximums: append([]float64(nil), maxs...),
		Means:         append([]float64(nil), means...),
		Ranges:        append([]float64(nil), ranges...),
	}

	for l, w := range net.Weights {
		srcs, dests := w.Srcs(), w.Dests()
		rows := make([][]float64, len(dests))
		for d, dest := range dests {
			rows[d] = make([]float64, len(srcs))
			for s, src := range srcs {
				rows[d][s] = w.At(src, dest)
			}
		}
		doc.Weights = append(doc.Weights, rows)
		doc.Biases = append(doc.Biases, net.Biases[l+1].Vector())
	}

	return doc, nil
}

// Save writes the document in .nnet format.
func Save(w io.Writer, f *File) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "// Neural network in nnet format")
	numLayers := len(f.LayerSizes) - 1
	fmt.Fprintf(bw, "%d,%d,%d,%d,\n", numLayers, f.LayerSizes[0], f.LayerSizes[len(f.LayerSizes)-1], maxSize(f.LayerSizes))
	writeInts(bw, f.LayerSizes)
	fmt.Fprintln(bw, "0,")
	writeFloats(bw, f.InputMinimums)
	writeFloats(bw, f.InputMaximums)
	writeFloats(bw, f.Means)
	writeFloats(bw, f.Ranges)

	for l := 0; l < numLayers; l++ {
		for _, row := range f.Weights[l] {
			writeFloats(bw, row)
		}
		for _, b := range f.Biases[l] {
			writeFloats(bw, []float64{b})
		}
	}

	if err := bw.Flush(); err != nil {
		return errors.Wrapf(errors.ErrNNetFormat, "writing nnet: %v", err)
	}
	return nil
}

func maxSize(sizes []int) int {
	m := 0
	for _, s := range sizes {
		if s > m {
			m = s
		}
	}
	return m
}

func writeInts(w io.Writer, vs []int) {
	for _, v := range vs {
		fmt.Fprintf(w, "%d,", v)
	}
	fmt.Fprintln(w)
}

func writeFloats(w io.Writer, vs []float64) {
	for _, v := range vs {
		fmt.Fprintf(w, "%v,", v)
	}
	fmt.Fprintln(w)
}
