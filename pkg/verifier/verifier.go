//go:generate mockgen -destination=./mocks/verifier.go . Verifier

// Package verifier defines the solver-facing query encoding and the
// interface a verification engine implements.
package verifier

import (
	"context"

	"github.com/mlsafety/cegarete/pkg/network"
)

// Status is the outcome of a solver run.
type Status string

// Solver outcomes.
const (
	StatusSat     Status = "SAT"
	StatusUnsat   Status = "UNSAT"
	StatusUnknown Status = "UNKNOWN"
	StatusTimeout Status = "TIMEOUT"
	StatusError   Status = "ERROR"
)

// Result is a solver verdict. On SAT, Assignment holds the value of every
// variable the solver reported, keyed back to network neurons, and
// InputsOnly narrows that to the input neurons (the candidate
// counterexample).
type Result struct {
	Status     Status
	Assignment map[network.NeuronID]float64
	InputsOnly map[network.NeuronID]float64
}

// Verifier solves encoded queries.
type Verifier interface {
	Solve(ctx context.Context, query *Query) (Result, error)
}
