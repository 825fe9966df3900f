package marabou

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/mlsafety/cegarete/pkg/errors"
	"github.com/mlsafety/cegarete/pkg/verifier"
)

// WriteQueryFile serializes the query to path in the engine's input-query
// format.
func WriteQueryFile(path string, q *verifier.Query) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(errors.ErrVerifierQuery, "writing query file: %v", err)
	}
	defer f.Close()
	return WriteQuery(f, q)
}

// WriteQuery writes the query in a line-oriented text format: the variable
// table, the layer equations, the activation constraints and the bounds.
func WriteQuery(w io.Writer, q *verifier.Query) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "vars %d\n", q.NumVars())
	for _, v := range q.Variables {
		fmt.Fprintf(bw, "var %d %s %s\n", v.Index, v.Kind, v.Neuron.Name)
	}
	fmt.Fprintf(bw, "inputs %s\n", joinInts(q.InputVars))
	fmt.Fprintf(bw, "outputs %s\n", joinInts(q.OutputVars))

	for _, eq := range q.Equations {
		fmt.Fprintf(bw, "eq %v", eq.Scalar)
		for _, a := range eq.Addends {
			fmt.Fprintf(bw, " %d:%v", a.Var, a.Coeff)
		}
		fmt.Fprintln(bw)
	}
	for _, r := range q.Relus {
		fmt.Fprintf(bw, "relu %d %d\n", r.B, r.F)
	}
	for _, e := range q.Equalities {
		fmt.Fprintf(bw, "equal %d %d\n", e[0], e[1])
	}

	for _, v := range sortedKeys(q.LowerBounds) {
		fmt.Fprintf(bw, "lb %d %v\n", v, q.LowerBounds[v])
	}
	for _, v := range sortedKeys(q.UpperBounds) {
		fmt.Fprintf(bw, "ub %d %v\n", v, q.UpperBounds[v])
	}

	if err := bw.Flush(); err != nil {
		return errors.Wrapf(errors.ErrVerifierQuery, "writing query: %v", err)
	}
	return nil
}

func joinInts(vs []int) string {
	out := ""
	for i, v := range vs {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprint(v)
	}
	return out
}

func sortedKeys(m map[int]float64) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
