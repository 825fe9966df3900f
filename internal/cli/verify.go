package cli

import (
	"context"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/mlsafety/cegarete/pkg/abstraction"
	"github.com/mlsafety/cegarete/pkg/cegar"
	"github.com/mlsafety/cegarete/pkg/errors"
	"github.com/mlsafety/cegarete/pkg/network"
	"github.com/mlsafety/cegarete/pkg/nnet"
	"github.com/mlsafety/cegarete/pkg/property"
	"github.com/mlsafety/cegarete/pkg/refinement"
	"github.com/mlsafety/cegarete/pkg/verifier/marabou"
)

// NewVerifyCmd creates the verify command.
func NewVerifyCmd() *cobra.Command {
	var (
		engineFlag     string
		abstractorName string
		refinerName    string
		sequenceLength int
		maxRounds      int
		timeout        time.Duration
		epsilon        float64
		seed           int64
		toElimination  bool
		updateProp     bool
		keepQueries    bool
		adversarial    string
		delta          float64
		slack          float64
		minimalWinner  bool
	)

	cmd := &cobra.Command{
		Use:   "verify NETWORK.nnet [PROPERTY]",
		Short: "Verify a property of a network",
		Long: `Verify a property of a feed-forward network through abstraction refinement.

PROPERTY is a builtin property name (e.g. acas_property_2), a YAML property
file, or a Tengo property script. The query sent to the engine encodes the
negation of the desired safety statement: an UNSAT verdict proves the
property, a SAT verdict comes with a concrete counterexample.

Instead of a property, --adversarial POINT asks whether the network keeps its
decision within the delta-ball around the given input point.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			propertyRef := ""
			if len(args) > 1 {
				propertyRef = args[1]
			}
			return runVerify(cmd, args[0], propertyRef, verifyOptions{
				engine:         engineFlag,
				abstractorName: abstractorName,
				refinerName:    refinerName,
				sequenceLength: sequenceLength,
				maxRounds:      maxRounds,
				timeout:        timeout,
				epsilon:        epsilon,
				seed:           seed,
				toElimination:  toElimination,
				updateProp:     updateProp,
				keepQueries:    keepQueries,
				adversarial:    adversarial,
				delta:          delta,
				slack:          slack,
				minimalWinner:  minimalWinner,
			})
		},
	}

	cmd.Flags().StringVar(&engineFlag, "engine", "", "Engine name (defaults to the configured default engine)")
	cmd.Flags().StringVar(&abstractorName, "abstraction", "complete_right_to_left", "Abstraction strategy (complete_right_to_left, complete_left_to_right, random)")
	cmd.Flags().StringVar(&refinerName, "refinement", "by_max_loss", "Refinement strategy (by_max_loss, by_max_loss_clustered, by_max_activations, random)")
	cmd.Flags().IntVar(&sequenceLength, "sequence-length", 1, "Neurons refined per round")
	cmd.Flags().IntVar(&maxRounds, "max-rounds", 0, "Refinement round budget (0 = from config)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Overall run timeout (0 = from config)")
	cmd.Flags().Float64Var(&epsilon, "epsilon", 0, "Counterexample check tolerance (0 = from config)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Seed for the random strategies")
	cmd.Flags().BoolVar(&toElimination, "refine-to-elimination", false, "Keep refining until the spurious counterexample is eliminated")
	cmd.Flags().BoolVar(&updateProp, "update-property", false, "Tighten output bounds between refinements via interval propagation")
	cmd.Flags().BoolVar(&keepQueries, "keep-queries", false, "Keep the generated query files in the query cache for inspection")
	cmd.Flags().StringVar(&adversarial, "adversarial", "", "Comma-separated input point for an adversarial robustness query (replaces PROPERTY)")
	cmd.Flags().Float64Var(&delta, "delta", 0.05, "Input perturbation radius for --adversarial")
	cmd.Flags().Float64Var(&slack, "slack", 0, "Margin slack for --adversarial")
	cmd.Flags().BoolVar(&minimalWinner, "minimal-winner", false, "Treat the minimal output score as the winning decision")

	return cmd
}

type verifyOptions struct {
	engine         string
	abstractorName string
	refinerName    string
	sequenceLength int
	maxRounds      int
	timeout        time.Duration
	epsilon        float64
	seed           int64
	toElimination  bool
	updateProp     bool
	keepQueries    bool
	adversarial    string
	delta          float64
	slack          float64
	minimalWinner  bool
}

func runVerify(cmd *cobra.Command, networkPath, propertyRef string, opts verifyOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	file, err := nnet.Load(networkPath)
	if err != nil {
		return err
	}
	net, err := file.Network()
	if err != nil {
		return err
	}

	var spec property.Spec
	switch {
	case opts.adversarial != "":
		if propertyRef != "" {
			return errors.Wrap(errors.ErrValidation, "PROPERTY and --adversarial are mutually exclusive")
		}
		point, err := parseInputs(opts.adversarial, net.InputIDs())
		if err != nil {
			return err
		}
		spec, err = property.AdversarialAround(net, point, opts.delta, opts.slack, opts.minimalWinner)
		if err != nil {
			return err
		}
	case propertyRef == "":
		return errors.Wrap(errors.ErrValidation, "need a PROPERTY argument or --adversarial")
	default:
		spec, err = property.Load(propertyRef, property.ScriptContext{
			NumInputs:  len(net.InputIDs()),
			NumOutputs: len(net.OutputIDs()),
		})
		if err != nil {
			return err
		}
		// A property without input constraints inherits the input box recorded
		// in the network file.
		if p, ok := spec.(property.Property); ok && len(p.Inputs) == 0 {
			p.Inputs = file.InputBounds()
			spec = p
		}
	}

	abstractor, err := abstractionStrategy(opts.abstractorName, opts.seed)
	if err != nil {
		return err
	}
	refiner, err := refinementStrategy(opts.refinerName, opts.sequenceLength, opts.seed)
	if err != nil {
		return err
	}

	eng, err := newRegistry(cfg).Resolve(engineName(cfg, opts.engine))
	if err != nil {
		return err
	}
	var engineOpts []marabou.Option
	if opts.keepQueries {
		runDir := filepath.Join(cfg.Settings.QueryCacheDir, time.Now().Format("20060102-150405"))
		engineOpts = append(engineOpts, marabou.WithQueryDir(runDir))
		cmd.Printf("Keeping query files in %s\n", runDir)
	}
	solver := marabou.New(eng.Binary, engineOpts...)

	hooks := cegar.Hooks{OnEvent: func(e cegar.Event) {
		cmd.Printf("%s: %s (round %d)\n", e.Phase, e.Msg, e.Round)
	}}
	driver := cegar.New(solver, abstractor, refiner, hooks)

	maxRounds := opts.maxRounds
	if maxRounds <= 0 {
		maxRounds = cfg.Settings.MaxSteps
	}
	epsilon := opts.epsilon
	if epsilon <= 0 {
		epsilon = cfg.Settings.Epsilon
	}
	timeout := opts.timeout
	if timeout <= 0 {
		timeout = cfg.Settings.SolverTimeout
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	res, err := driver.Run(ctx, net, spec, cegar.Options{
		MaxRounds:           maxRounds,
		Epsilon:             epsilon,
		RefineToElimination: opts.toElimination,
		UpdateProperty:      opts.updateProp,
	})
	if err != nil {
		return err
	}

	cmd.Printf("Verdict: %s\n", res.Verdict)
	cmd.Printf("Queries: %d, refinement rounds: %d, spurious counterexamples: %d\n",
		res.Stats.Queries, res.Stats.RefinementRounds, res.Stats.SpuriousCounterexamples)
	cmd.Printf("Abstract neurons: %d -> %d, duration: %s\n",
		res.Stats.AbstractNeuronsStart, res.Stats.AbstractNeuronsEnd, res.Stats.Duration.Round(time.Millisecond))
	if res.Verdict == cegar.VerdictSat {
		cmd.Println("Counterexample inputs:")
		ids := make([]network.NeuronID, 0, len(res.Counterexample))
		for id := range res.Counterexample {
			ids = append(ids, id)
		}
		network.SortIDs(ids)
		for _, id := range ids {
			cmd.Printf("  %s = %v\n", id.Name, res.Counterexample[id])
		}
	}
	return nil
}

func abstractionStrategy(name string, seed int64) (abstraction.Strategy, error) {
	switch name {
	case "complete_right_to_left":
		return abstraction.CompleteRightToLeft{}, nil
	case "complete_left_to_right":
		return abstraction.CompleteLeftToRight{}, nil
	case "random":
		return abstraction.Random{Seed: seed}, nil
	default:
		return nil, errors.Wrapf(errors.ErrValidation, "unknown abstraction strategy %q", name)
	}
}

func refinementStrategy(name string, sequenceLength int, seed int64) (refinement.Strategy, error) {
	switch name {
	case "by_max_loss":
		return refinement.ByMaxLoss{SequenceLength: sequenceLength}, nil
	case "by_max_loss_clustered":
		return refinement.ByMaxLossClustered{SequenceLength: sequenceLength}, nil
	case "by_max_activations":
		return refinement.ByMaxActivations{MaxPerStep: sequenceLength}, nil
	case "random":
		return refinement.Random{MaxPerStep: sequenceLength, Seed: seed}, nil
	default:
		return nil, errors.Wrapf(errors.ErrValidation, "unknown refinement strategy %q", name)
	}
}
