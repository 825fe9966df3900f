package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mlsafety/cegarete/pkg/abstraction"
	"github.com/mlsafety/cegarete/pkg/errors"
	"github.com/mlsafety/cegarete/pkg/network"
	"github.com/mlsafety/cegarete/pkg/nnet"
)

// NewNetworkCmd creates the network command group.
func NewNetworkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "network",
		Short: "Inspect network files",
	}

	cmd.AddCommand(newNetworkInfoCmd(), newNetworkEvalCmd())

	return cmd
}

func newNetworkInfoCmd() *cobra.Command {
	var preprocessed bool

	cmd := &cobra.Command{
		Use:   "info NETWORK.nnet",
		Short: "Show the structure of a network file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(); err != nil {
				return err
			}
			net, err := loadNetwork(args[0])
			if err != nil {
				return err
			}
			if preprocessed {
				net, err = abstraction.Preprocess(net)
				if err != nil {
					return err
				}
			}

			info := net.Summary()
			cmd.Printf("Layers: %d\n", len(info.LayerSizes))
			for i, size := range info.LayerSizes {
				cmd.Printf("  layer %d: %d neurons\n", i, size)
			}
			cmd.Printf("Total neurons: %d\n", info.Neurons)
			return nil
		},
	}

	cmd.Flags().BoolVar(&preprocessed, "preprocessed", false, "Show the structure after neuron classification")

	return cmd
}

func newNetworkEvalCmd() *cobra.Command {
	var inputsFlag string

	cmd := &cobra.Command{
		Use:   "eval NETWORK.nnet",
		Short: "Evaluate a network on one input point",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(); err != nil {
				return err
			}
			net, err := loadNetwork(args[0])
			if err != nil {
				return err
			}

			inputs, err := parseInputs(inputsFlag, net.InputIDs())
			if err != nil {
				return err
			}

			out, err := net.Evaluate(inputs)
			if err != nil {
				return err
			}
			for _, id := range net.OutputIDs() {
				cmd.Printf("%s = %v\n", id.Name, out[id])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&inputsFlag, "inputs", "", "Comma-separated input values, one per input neuron")
	_ = cmd.MarkFlagRequired("inputs")

	return cmd
}

func loadNetwork(path string) (*network.Network, error) {
	file, err := nnet.Load(path)
	if err != nil {
		return nil, err
	}
	return file.Network()
}

func parseInputs(flag string, ids []network.NeuronID) (map[network.NeuronID]float64, error) {
	parts := strings.Split(flag, ",")
	if len(parts) != len(ids) {
		return nil, errors.Wrapf(errors.ErrValidation, "network has %d inputs, got %d values", len(ids), len(parts))
	}
	inputs := make(map[network.NeuronID]float64, len(ids))
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrValidation, "bad input value %q", part)
		}
		inputs[ids[i]] = v
	}
	return inputs, nil
}
