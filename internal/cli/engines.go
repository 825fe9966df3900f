package cli

import (
	"github.com/spf13/cobra"
)

// NewEnginesCmd creates the engines command group.
func NewEnginesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "engines",
		Short: "Inspect installed verification engines",
	}

	cmd.AddCommand(newEnginesListCmd(), newEnginesProbeCmd())

	return cmd
}

func newEnginesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List installed engines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			engines, err := newRegistry(cfg).List()
			if err != nil {
				return err
			}
			if len(engines) == 0 {
				cmd.Println("No engines installed")
				return nil
			}
			for _, eng := range engines {
				marker := " "
				if eng.Name == cfg.Settings.DefaultEngine {
					marker = "*"
				}
				cmd.Printf("%s %s\t%s\n", marker, eng.Name, eng.Dir)
			}
			return nil
		},
	}
}

func newEnginesProbeCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Run an installed engine's version probe",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			out, err := newRegistry(cfg).Probe(cmd.Context(), engineName(cfg, name))
			if err != nil {
				return err
			}
			cmd.Println(out)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Engine name (defaults to the configured default engine)")

	return cmd
}
