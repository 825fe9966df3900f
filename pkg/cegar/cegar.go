// Package cegar ties abstraction, the external solver and refinement together
// into the counterexample-guided verification loop. The driver proves a
// property query unsatisfiable on a small abstract network when it can, and
// falls back to refining the abstraction whenever the solver's counterexample
// turns out to be an artifact of over-approximation.
package cegar

import (
	"context"
	"errors"
	"time"

	"github.com/mlsafety/cegarete/internal/logger"
	"github.com/mlsafety/cegarete/pkg/abstraction"
	pkgerrors "github.com/mlsafety/cegarete/pkg/errors"
	"github.com/mlsafety/cegarete/pkg/network"
	"github.com/mlsafety/cegarete/pkg/property"
	"github.com/mlsafety/cegarete/pkg/refinement"
	"github.com/mlsafety/cegarete/pkg/verifier"
)

// Verdict is the final answer of a verification run.
type Verdict string

// Run verdicts. The query encodes the negation of the desired safety
// statement, so UNSAT means the property was proved and SAT means a real
// counterexample exists.
const (
	VerdictUnsat   Verdict = "UNSAT"
	VerdictSat     Verdict = "SAT"
	VerdictTimeout Verdict = "TIMEOUT"
	VerdictUnknown Verdict = "UNKNOWN"
)

// Stats collects per-run counters.
type Stats struct {
	Queries                 int
	RefinementRounds        int
	SpuriousCounterexamples int
	AbstractNeuronsStart    int
	AbstractNeuronsEnd      int
	Duration                time.Duration
}

// Result is the outcome of one verification run.
type Result struct {
	Verdict Verdict
	// Counterexample holds the input assignment of a real counterexample on
	// a SAT verdict, nil otherwise.
	Counterexample map[network.NeuronID]float64
	Stats          Stats
}

// Event represents a simple progress notification.
type Event struct {
	Phase string // preprocess|abstract|solve|check|refine|done
	Round int
	Msg   string
}

// Hooks carries callbacks for progress events.
type Hooks struct {
	OnEvent func(Event)
}

// Options control a verification run.
type Options struct {
	// MaxRounds bounds the number of refinement rounds. Zero means the
	// default budget.
	MaxRounds int
	// Epsilon is the tolerance for counterexample checks.
	Epsilon float64
	// RefineToElimination keeps refining within a round until the spurious
	// counterexample stops satisfying the property on the refined network,
	// instead of applying one batch of strategy steps.
	RefineToElimination bool
	// UpdateProperty tightens the property's output bounds after each
	// refinement using interval propagation on the original network.
	UpdateProperty bool
}

// DefaultMaxRounds is the refinement budget used when Options.MaxRounds is 0.
const DefaultMaxRounds = 100

// Driver runs the verification loop with a fixed choice of solver,
// abstraction strategy and refinement strategy.
type Driver struct {
	solver     verifier.Verifier
	abstractor abstraction.Strategy
	refiner    refinement.Strategy
	hooks      Hooks
}

// New creates a Driver.
func New(solver verifier.Verifier, abstractor abstraction.Strategy, refiner refinement.Strategy, hooks Hooks) *Driver {
	return &Driver{solver: solver, abstractor: abstractor, refiner: refiner, hooks: hooks}
}

func (d *Driver) emit(e Event) {
	if d.hooks.OnEvent != nil {
		d.hooks.OnEvent(e)
	}
}

// Run verifies spec against net. The network is first preprocessed and
// abstracted; each solver verdict is then either final (UNSAT, timeout), a
// real counterexample (checked against the full network), or spurious, in
// which case the abstraction is refined and the solver asked again.
func (d *Driver) Run(ctx context.Context, net *network.Network, spec property.Spec, opts Options) (*Result, error) {
	if opts.MaxRounds <= 0 {
		opts.MaxRounds = DefaultMaxRounds
	}
	if opts.Epsilon <= 0 {
		opts.Epsilon = 1e-4
	}
	start := time.Now()

	prepared, prop, err := spec.Prepare(net)
	if err != nil {
		return nil, err
	}

	d.emit(Event{Phase: "preprocess", Msg: "classifying neurons"})
	original, err := abstraction.Preprocess(prepared)
	if err != nil {
		return nil, err
	}
	prop = prop.AfterPreprocess()
	if err := prop.Validate(original); err != nil {
		return nil, err
	}

	d.emit(Event{Phase: "abstract", Msg: "building abstract network"})
	current, err := abstraction.Abstract(original, d.abstractor)
	if err != nil {
		return nil, err
	}

	var updater *property.Updater
	currentProp := prop
	if opts.UpdateProperty {
		updater, err = property.NewUpdater(original, prop)
		if err != nil {
			return nil, err
		}
		currentProp, err = updater.Update(current)
		if err != nil {
			return nil, err
		}
	}

	stats := Stats{AbstractNeuronsStart: current.NeuronCount()}
	result := func(v Verdict, cex map[network.NeuronID]float64) *Result {
		stats.AbstractNeuronsEnd = current.NeuronCount()
		stats.Duration = time.Since(start)
		d.emit(Event{Phase: "done", Round: stats.RefinementRounds, Msg: string(v)})
		return &Result{Verdict: v, Counterexample: cex, Stats: stats}
	}

	for round := 0; ; round++ {
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return result(VerdictTimeout, nil), nil
			}
			return nil, err
		}

		d.emit(Event{Phase: "solve", Round: round, Msg: "querying engine"})
		query, err := verifier.Encode(current, currentProp)
		if err != nil {
			return nil, err
		}
		stats.Queries++
		res, err := d.solver.Solve(ctx, query)
		if err != nil {
			return nil, err
		}

		switch res.Status {
		case verifier.StatusUnsat:
			return result(VerdictUnsat, nil), nil
		case verifier.StatusTimeout:
			return result(VerdictTimeout, nil), nil
		case verifier.StatusUnknown, verifier.StatusError:
			return result(VerdictUnknown, nil), nil
		case verifier.StatusSat:
			// fall through to the counterexample check below
		default:
			return nil, pkgerrors.Wrapf(pkgerrors.ErrVerifierOutput, "unexpected solver status %q", res.Status)
		}

		d.emit(Event{Phase: "check", Round: round, Msg: "checking counterexample"})
		real, err := d.checkCounterexample(current, original, currentProp, prop, res.InputsOnly, opts.Epsilon)
		if err != nil {
			return nil, err
		}
		if real {
			return result(VerdictSat, res.InputsOnly), nil
		}
		stats.SpuriousCounterexamples++

		if round+1 > opts.MaxRounds {
			logger.Warn("refinement budget exhausted", logger.Fields{"rounds": round})
			return result(VerdictUnknown, nil), nil
		}

		d.emit(Event{Phase: "refine", Round: round, Msg: "refining abstraction"})
		current, currentProp, err = d.refineOnce(current, original, currentProp, res.InputsOnly, updater, opts)
		if err != nil {
			if errors.Is(err, errRefinementStuck) {
				return result(VerdictUnknown, nil), nil
			}
			return nil, err
		}
		stats.RefinementRounds++
	}
}

var errRefinementStuck = errors.New("refinement strategy produced no steps")

// checkCounterexample decides whether the solver's assignment is a real
// counterexample. An assignment that does not even satisfy the property on
// the abstract network signals a broken engine run, not a spurious
// counterexample.
func (d *Driver) checkCounterexample(current, original *network.Network, currentProp, prop property.Property, inputs map[network.NeuronID]float64, eps float64) (bool, error) {
	onAbstract, _, err := property.CheckAssignment(current, inputs, currentProp, eps)
	if err != nil {
		return false, err
	}
	if !onAbstract {
		return false, pkgerrors.Wrap(pkgerrors.ErrVerifierOutput, "solver assignment does not satisfy the query")
	}

	onOriginal, _, err := property.CheckAssignment(original, inputs, prop, eps)
	if err != nil {
		return false, err
	}
	return onOriginal, nil
}

func (d *Driver) refineOnce(current, original *network.Network, currentProp property.Property, inputs map[network.NeuronID]float64, updater *property.Updater, opts Options) (*network.Network, property.Property, error) {
	activations, err := original.EvaluateAll(inputs)
	if err != nil {
		return nil, property.Property{}, err
	}
	rctx := refinement.Context{SpuriousInputs: inputs, Activations: activations}

	var (
		refined *network.Network
		rstats  refinement.Statistics
	)
	if opts.RefineToElimination {
		var update refinement.PropertyUpdate
		if updater != nil {
			update = updater.Update
		}
		refined, rstats, err = refinement.RefineUntilNotSatisfying(current, d.refiner, rctx, currentProp, update, opts.Epsilon)
	} else {
		refined, rstats, err = refinement.Refine(current, d.refiner, rctx)
	}
	if err != nil {
		return nil, property.Property{}, err
	}
	if !rstats.DidRefine {
		return nil, property.Property{}, errRefinementStuck
	}

	logger.Debug("refined abstraction", logger.Fields{
		"steps":   rstats.NumSteps,
		"neurons": refined.NeuronCount(),
	})

	if updater != nil {
		currentProp, err = updater.Update(refined)
		if err != nil {
			return nil, property.Property{}, err
		}
	}
	return refined, currentProp, nil
}
