// Package cli implements the cegarete command line interface.
package cli

import (
	"github.com/mlsafety/cegarete/internal/logger"
	"github.com/mlsafety/cegarete/pkg/config"
	"github.com/mlsafety/cegarete/pkg/engine"
	"github.com/mlsafety/cegarete/pkg/errors"
)

// These variables are set by the main package.
var (
	ConfigPath *string
	Verbose    *bool
)

// loadConfig loads the configuration from the --config flag or the default
// location and initializes logging from it.
func loadConfig() (*config.Config, error) {
	path := ""
	if ConfigPath != nil {
		path = *ConfigPath
	}
	if path == "" {
		defaultPath, err := config.GetDefaultConfigPath()
		if err != nil {
			return nil, errors.Wrap(err, "failed to get default config path")
		}
		path = defaultPath
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}

	if Verbose != nil && *Verbose {
		cfg.Settings.LogLevel = "debug"
	}
	logger.InitLogger(cfg.Settings.LogLevel, cfg.Settings.LogFormat == "json")

	return cfg, nil
}

// newRegistry builds the engine registry described by the configuration.
func newRegistry(cfg *config.Config) *engine.Registry {
	var opts []engine.Option
	if cfg.Settings.EngineMarker != "" {
		opts = append(opts, engine.WithMarker(cfg.Settings.EngineMarker))
	}
	return engine.New(cfg.Settings.EnginesDir, opts...)
}

// engineName returns the explicit name or the configured default.
func engineName(cfg *config.Config, name string) string {
	if name != "" {
		return name
	}
	return cfg.Settings.DefaultEngine
}
