package config

import (
	"strconv"
	"time"

	"github.com/mlsafety/cegarete/pkg/errors"
)

// SetValue sets a configuration value by key.
// Supported keys:
//   - engines_dir: string - directory of installed engine links
//   - bundle_cache_dir: string - cache for downloaded engine bundles
//   - query_cache_dir: string - cache for kept solver query files
//   - default_engine: string - engine used when none is given
//   - engine_marker: string - marker file relative to an engine root
//   - solver_timeout: duration - per-query limit for the external engine
//   - epsilon: float - tolerance for counterexample checks
//   - max_steps: int - refinement round budget
//   - log_level: string - error, warn, info, debug
//   - log_format: string - text or json
func (c *Config) SetValue(key, value string) error {
	switch key {
	case "engines_dir":
		c.Settings.EnginesDir = value
	case "bundle_cache_dir":
		c.Settings.BundleCacheDir = value
	case "query_cache_dir":
		c.Settings.QueryCacheDir = value
	case "default_engine":
		c.Settings.DefaultEngine = value
	case "engine_marker":
		c.Settings.EngineMarker = value
	case "solver_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return errors.Wrapf(errors.ErrConfigValidation, "invalid duration for %s: %s", key, value)
		}
		c.Settings.SolverTimeout = d
	case "epsilon":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return errors.Wrapf(errors.ErrConfigValidation, "invalid float for %s: %s", key, value)
		}
		c.Settings.Epsilon = f
	case "max_steps":
		n, err := strconv.Atoi(value)
		if err != nil {
			return errors.Wrapf(errors.ErrConfigValidation, "invalid integer for %s: %s", key, value)
		}
		c.Settings.MaxSteps = n
	case "log_level":
		c.Settings.LogLevel = value
	case "log_format":
		c.Settings.LogFormat = value
	default:
		return errors.Wrapf(errors.ErrConfigValidation, "unknown configuration key: %s", key)
	}
	return nil
}

// GetValue returns a configuration value by key as a string.
func (c *Config) GetValue(key string) (string, error) {
	switch key {
	case "engines_dir":
		return c.Settings.EnginesDir, nil
	case "bundle_cache_dir":
		return c.Settings.BundleCacheDir, nil
	case "query_cache_dir":
		return c.Settings.QueryCacheDir, nil
	case "default_engine":
		return c.Settings.DefaultEngine, nil
	case "engine_marker":
		return c.Settings.EngineMarker, nil
	case "solver_timeout":
		return c.Settings.SolverTimeout.String(), nil
	case "epsilon":
		return strconv.FormatFloat(c.Settings.Epsilon, 'g', -1, 64), nil
	case "max_steps":
		return strconv.Itoa(c.Settings.MaxSteps), nil
	case "log_level":
		return c.Settings.LogLevel, nil
	case "log_format":
		return c.Settings.LogFormat, nil
	default:
		return "", errors.Wrapf(errors.ErrConfigValidation, "unknown configuration key: %s", key)
	}
}
