package cli

import (
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mlsafety/cegarete/pkg/config"
	"github.com/mlsafety/cegarete/pkg/errors"
)

// NewConfigCmd creates the config command group.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration",
	}

	cmd.AddCommand(newConfigShowCmd(), newConfigGetCmd(), newConfigSetCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return errors.Wrap(errors.ErrConfigEncode, err.Error())
			}
			cmd.Print(string(data))
			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Print one configuration value",
		Long:  "Print one configuration value. Known keys: " + strings.Join(configKeys(), ", ") + ".",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			value, err := cfg.GetValue(args[0])
			if err != nil {
				return err
			}
			cmd.Println(value)
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a configuration value and save the config file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.SetValue(args[0], args[1]); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			path := ""
			if ConfigPath != nil {
				path = *ConfigPath
			}
			if path == "" {
				path, err = config.GetDefaultConfigPath()
				if err != nil {
					return err
				}
			}
			if err := cfg.SaveConfig(path); err != nil {
				return err
			}
			cmd.Printf("Set %s = %s\n", args[0], args[1])
			return nil
		},
	}
}

// configKeys returns the known configuration keys, sorted. Used by help text
// and completion.
func configKeys() []string {
	keys := []string{
		"engines_dir", "bundle_cache_dir", "query_cache_dir", "default_engine",
		"engine_marker", "solver_timeout", "epsilon", "max_steps", "log_level",
		"log_format",
	}
	sort.Strings(keys)
	return keys
}
