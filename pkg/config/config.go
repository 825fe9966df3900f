// Package config provides configuration management for the verification
// framework. It handles loading, validating, and saving application settings:
// where engines live, which engine is the default, solver limits, and the
// numeric tolerance used when checking counterexamples. The package supports
// YAML configuration files and provides sensible defaults.
package config

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mlsafety/cegarete/pkg/errors"
	"github.com/mlsafety/cegarete/pkg/fsutil"
	"github.com/mlsafety/cegarete/pkg/platform"
)

// Config represents the application configuration.
type Config struct {
	Settings Settings `yaml:"settings"`
}

// Settings represents general application settings.
type Settings struct {
	// Engine settings
	EnginesDir     string `yaml:"engines_dir,omitempty"`      // directory of installed engine links
	BundleCacheDir string `yaml:"bundle_cache_dir,omitempty"` // cache for downloaded engine bundles
	QueryCacheDir  string `yaml:"query_cache_dir,omitempty"`  // cache for kept solver query files
	DefaultEngine  string `yaml:"default_engine"`             // engine name used when none is given
	EngineMarker   string `yaml:"engine_marker,omitempty"`    // marker file relative to an engine root

	// Solver settings
	SolverTimeout time.Duration `yaml:"solver_timeout"` // per-query limit for the external engine
	Epsilon       float64       `yaml:"epsilon"`        // tolerance for counterexample checks
	MaxSteps      int           `yaml:"max_steps"`      // refinement round budget of a run

	// Network settings
	HTTPTimeout time.Duration `yaml:"http_timeout"`

	// Platform settings
	Platform platform.Platform `yaml:"platform,omitempty"`

	// Output settings
	LogLevel  string `yaml:"log_level"` // error, warn, info, debug
	LogFormat string `yaml:"log_format"`
}

// Default configuration values.
const (
	// DefaultSolverTimeout bounds a single engine query.
	DefaultSolverTimeout = 10 * time.Minute

	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultEpsilon is the tolerance applied when checking whether an
	// assignment satisfies a property.
	DefaultEpsilon = 1e-4

	// DefaultMaxSteps is the refinement budget of a verification run.
	DefaultMaxSteps = 100

	// YAMLIndent is the number of spaces to use for YAML indentation.
	YAMLIndent = 2
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	enginesDir, err := fsutil.GetEnginesDir()
	if err != nil {
		enginesDir = filepath.Join(".", "engines")
	}
	bundleCacheDir, err := fsutil.GetBundleCacheDir()
	if err != nil {
		bundleCacheDir = filepath.Join(".", "bundles")
	}
	queryCacheDir, err := fsutil.GetQueryCacheDir()
	if err != nil {
		queryCacheDir = filepath.Join(".", "queries")
	}

	return &Config{
		Settings: Settings{
			EnginesDir:     enginesDir,
			BundleCacheDir: bundleCacheDir,
			QueryCacheDir:  queryCacheDir,
			DefaultEngine:  "marabou",
			SolverTimeout:  DefaultSolverTimeout,
			HTTPTimeout:    DefaultHTTPTimeout,
			Epsilon:        DefaultEpsilon,
			MaxSteps:       DefaultMaxSteps,
			Platform:       platform.CurrentPlatform(),
			LogLevel:       "info",
			LogFormat:      "text",
		},
	}
}

// LoadConfig loads configuration from a file. A missing file yields the
// default configuration.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, errors.ErrEmptyConfigPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidConfigPath, err.Error())
	}

	file, err := os.Open(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, errors.Wrapf(err, "failed to open config file %s", path)
	}
	defer func() { _ = file.Close() }()

	return LoadConfigFromReader(file)
}

// LoadConfigFromReader loads configuration from an io.Reader.
func LoadConfigFromReader(reader io.Reader) (*Config, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config data")
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.Wrap(errors.ErrConfigParse, err.Error())
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// applyDefaults fills zero-valued settings from the default configuration.
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Settings.EnginesDir == "" {
		c.Settings.EnginesDir = def.Settings.EnginesDir
	}
	if c.Settings.BundleCacheDir == "" {
		c.Settings.BundleCacheDir = def.Settings.BundleCacheDir
	}
	if c.Settings.QueryCacheDir == "" {
		c.Settings.QueryCacheDir = def.Settings.QueryCacheDir
	}
	if c.Settings.DefaultEngine == "" {
		c.Settings.DefaultEngine = def.Settings.DefaultEngine
	}
	if c.Settings.SolverTimeout == 0 {
		c.Settings.SolverTimeout = def.Settings.SolverTimeout
	}
	if c.Settings.HTTPTimeout == 0 {
		c.Settings.HTTPTimeout = def.Settings.HTTPTimeout
	}
	if c.Settings.Epsilon == 0 {
		c.Settings.Epsilon = def.Settings.Epsilon
	}
	if c.Settings.MaxSteps == 0 {
		c.Settings.MaxSteps = def.Settings.MaxSteps
	}
	if c.Settings.Platform.OS == "" {
		c.Settings.Platform.OS = def.Settings.Platform.OS
	}
	if c.Settings.Platform.Arch == "" {
		c.Settings.Platform.Arch = def.Settings.Platform.Arch
	}
	if c.Settings.LogLevel == "" {
		c.Settings.LogLevel = def.Settings.LogLevel
	}
	if c.Settings.LogFormat == "" {
		c.Settings.LogFormat = def.Settings.LogFormat
	}
}

// SaveConfig saves configuration to a file.
func (c *Config) SaveConfig(path string) error {
	if path == "" {
		return errors.ErrEmptyConfigPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(errors.ErrInvalidConfigPath, err.Error())
	}

	if err := fsutil.EnsureFileDir(absPath); err != nil {
		return errors.Wrap(errors.ErrConfigDirectory, err.Error())
	}

	tempPath := absPath + ".tmp"
	file, err := fsutil.CreateFilePerm(tempPath, fsutil.FileModeDefault)
	if err != nil {
		return errors.Wrap(err, "failed to create config file")
	}

	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(YAMLIndent)

	if err := encoder.Encode(c); err != nil {
		_ = file.Close()
		_ = os.Remove(tempPath)
		return errors.Wrap(errors.ErrConfigEncode, err.Error())
	}

	_ = encoder.Close()
	_ = file.Close()

	// Atomically replace the config file
	if err := os.Rename(tempPath, absPath); err != nil {
		_ = os.Remove(tempPath)
		return errors.Wrap(err, "failed to replace config file")
	}

	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c == nil {
		return errors.ErrConfigValidation
	}
	s := c.Settings
	if s.SolverTimeout < 0 {
		return errors.Wrap(errors.ErrConfigValidation, "solver_timeout cannot be negative")
	}
	if s.HTTPTimeout < 0 {
		return errors.Wrap(errors.ErrConfigValidation, "http_timeout cannot be negative")
	}
	if s.Epsilon < 0 {
		return errors.Wrap(errors.ErrConfigValidation, "epsilon cannot be negative")
	}
	if s.MaxSteps < 1 {
		return errors.Wrap(errors.ErrConfigValidation, "max_steps must be at least 1")
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(s.LogLevel)] {
		return errors.Wrapf(errors.ErrConfigValidation, "unknown log level %q", s.LogLevel)
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(s.LogFormat)] {
		return errors.Wrapf(errors.ErrConfigValidation, "unknown log format %q", s.LogFormat)
	}
	return nil
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to determine user config directory")
	}
	return filepath.Join(configDir, fsutil.AppName, "config.yaml"), nil
}
