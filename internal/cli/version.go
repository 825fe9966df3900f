package cli

import (
	"github.com/spf13/cobra"
)

// Version information, overridable at build time.
const (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("cegarete version %s\n", Version)
			cmd.Printf("Build date: %s\n", BuildDate)
			cmd.Printf("Git commit: %s\n", GitCommit)
		},
	}
}
