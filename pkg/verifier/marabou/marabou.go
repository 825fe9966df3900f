// Package marabou drives an external Marabou-style solver binary: it writes
// the query to a file, runs the engine with it and parses the verdict from
// the engine's stdout.
package marabou

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/mlsafety/cegarete/internal/logger"
	"github.com/mlsafety/cegarete/pkg/errors"
	"github.com/mlsafety/cegarete/pkg/network"
	"github.com/mlsafety/cegarete/pkg/verifier"
)

const (
	unsatMarker      = "Engine::solve: unsat query"
	satMarker        = "Input assignment:"
	timeoutMarker    = "Engine::solve: timeout"
	defaultQueryName = "query.txt"
)

var assignmentLine = regexp.MustCompile(`^\s*([^\s=]+)\s*=\s*(-?[0-9.eE+-]+)\s*$`)

// Engine runs a solver binary as a subprocess.
type Engine struct {
	binary   string
	queryDir string
	args     []string
	queries  int
}

// Option configures an Engine.
type Option func(*Engine)

// WithQueryDir keeps the written query files in dir instead of a temporary
// directory, for later inspection.
func WithQueryDir(dir string) Option {
	return func(e *Engine) { e.queryDir = dir }
}

// WithArgs passes extra command line arguments to the engine.
func WithArgs(args ...string) Option {
	return func(e *Engine) { e.args = args }
}

// New returns an Engine around the given solver binary.
func New(binary string, opts ...Option) *Engine {
	e := &Engine{binary: binary}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Solve implements verifier.Verifier.
func (e *Engine) Solve(ctx context.Context, query *verifier.Query) (verifier.Result, error) {
	if _, err := exec.LookPath(e.binary); err != nil {
		return verifier.Result{}, errors.Wrap(errors.ErrVerifierMissing, e.binary)
	}

	dir := e.queryDir
	name := defaultQueryName
	if dir == "" {
		tmp, err := os.MkdirTemp("", "cegarete-query-*")
		if err != nil {
			return verifier.Result{}, errors.Wrapf(errors.ErrVerifierQuery, "creating query dir: %v", err)
		}
		defer os.RemoveAll(tmp)
		dir = tmp
	} else {
		// kept queries are numbered so refinement rounds don't overwrite
		// each other
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return verifier.Result{}, errors.Wrapf(errors.ErrVerifierQuery, "creating query dir: %v", err)
		}
		e.queries++
		name = fmt.Sprintf("query-%04d.txt", e.queries)
	}

	queryPath := filepath.Join(dir, name)
	if err := WriteQueryFile(queryPath, query); err != nil {
		return verifier.Result{}, err
	}

	args := append([]string{"--input-query", queryPath}, e.args...)
	logger.Debug("running verifier engine", logger.Fields{
		"binary": e.binary,
		"query":  queryPath,
		"vars":   query.NumVars(),
	})

	cmd := exec.CommandContext(ctx, e.binary, args...)
	out, err := cmd.Output()
	if ctx.Err() == context.DeadlineExceeded {
		return verifier.Result{Status: verifier.StatusTimeout}, nil
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			logger.Warn("verifier engine exited with an error", logger.Fields{
				"binary": e.binary,
				"stderr": strings.TrimSpace(string(exitErr.Stderr)),
			})
			return verifier.Result{Status: verifier.StatusError}, nil
		}
		return verifier.Result{}, errors.Wrapf(errors.ErrVerifierQuery, "running %s: %v", e.binary, err)
	}

	return ParseOutput(query, string(out))
}

// ParseOutput extracts the verdict from engine stdout. A satisfying run
// reports an input assignment block whose `name = value` lines are mapped
// back to the query's input and output neurons.
func ParseOutput(query *verifier.Query, out string) (verifier.Result, error) {
	switch {
	case strings.Contains(out, unsatMarker):
		return verifier.Result{Status: verifier.StatusUnsat}, nil
	case strings.Contains(out, timeoutMarker):
		return verifier.Result{Status: verifier.StatusTimeout}, nil
	case strings.Contains(out, satMarker):
		return parseSat(query, out)
	default:
		return verifier.Result{Status: verifier.StatusUnknown}, nil
	}
}

func parseSat(query *verifier.Query, out string) (verifier.Result, error) {
	inputs := make(map[string]network.NeuronID, len(query.InputVars))
	outputs := make(map[string]network.NeuronID, len(query.OutputVars))
	for _, v := range query.InputVars {
		inputs[query.Variables[v].Neuron.Name] = query.Variables[v].Neuron
	}
	for _, v := range query.OutputVars {
		outputs[query.Variables[v].Neuron.Name] = query.Variables[v].Neuron
	}

	assignment := make(map[network.NeuronID]float64)
	inputsOnly := make(map[network.NeuronID]float64)

	_, tail, _ := strings.Cut(out, satMarker)
	for _, line := range strings.Split(tail, "\n") {
		m := assignmentLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		value, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			return verifier.Result{}, errors.Wrapf(errors.ErrVerifierOutput, "bad value in %q", strings.TrimSpace(line))
		}
		if id, ok := inputs[m[1]]; ok {
			assignment[id] = value
			inputsOnly[id] = value
		} else if id, ok := outputs[m[1]]; ok {
			assignment[id] = value
		}
	}

	if len(inputsOnly) != len(query.InputVars) {
		return verifier.Result{}, errors.Wrapf(errors.ErrVerifierOutput,
			"satisfying assignment covers %d of %d inputs", len(inputsOnly), len(query.InputVars))
	}
	return verifier.Result{
		Status:     verifier.StatusSat,
		Assignment: assignment,
		InputsOnly: inputsOnly,
	}, nil
}
