package cli

import (
	"github.com/spf13/cobra"
)

// NewUninstallCmd creates the uninstall command.
func NewUninstallCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Uninstall a verification engine",
		Long: `Remove an installed engine's link from the engines directory.

Uninstalling an engine that is not installed is not an error, so running the
command twice in a row is fine. The engine's own files are never deleted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUninstall(cmd, name)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Engine name (defaults to the configured default engine)")

	return cmd
}

func runUninstall(cmd *cobra.Command, name string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg := newRegistry(cfg)
	name = engineName(cfg, name)

	res, err := reg.Uninstall(name)
	if err != nil {
		return err
	}

	if !res.Removed {
		cmd.Printf("Engine %s is not installed\n", name)
		return nil
	}

	cmd.Printf("Uninstalled engine %s\n", name)
	if res.StalePath != "" {
		cmd.Printf("An engine binary still resolves at %s; a stale installation may shadow the removal\n", res.StalePath)
	}
	return nil
}
