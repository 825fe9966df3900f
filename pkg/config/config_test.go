package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlsafety/cegarete/pkg/errors"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "marabou", cfg.Settings.DefaultEngine)
	assert.Equal(t, DefaultEpsilon, cfg.Settings.Epsilon)
	assert.Equal(t, DefaultMaxSteps, cfg.Settings.MaxSteps)
	assert.Equal(t, DefaultSolverTimeout, cfg.Settings.SolverTimeout)
	assert.NotEmpty(t, cfg.Settings.EnginesDir)
}

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Settings.DefaultEngine, cfg.Settings.DefaultEngine)
}

func TestLoadConfigEmptyPath(t *testing.T) {
	_, err := LoadConfig("")
	assert.ErrorIs(t, err, errors.ErrEmptyConfigPath)
}

func TestLoadConfigFromReader(t *testing.T) {
	in := `
settings:
  default_engine: next
  solver_timeout: 2m
  epsilon: 0.001
  log_level: debug
`
	cfg, err := LoadConfigFromReader(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, "next", cfg.Settings.DefaultEngine)
	assert.Equal(t, 2*time.Minute, cfg.Settings.SolverTimeout)
	assert.Equal(t, 0.001, cfg.Settings.Epsilon)
	assert.Equal(t, "debug", cfg.Settings.LogLevel)

	// Unset fields get defaults.
	assert.Equal(t, DefaultMaxSteps, cfg.Settings.MaxSteps)
	assert.Equal(t, DefaultHTTPTimeout, cfg.Settings.HTTPTimeout)
}

func TestLoadConfigFromReaderInvalidYAML(t *testing.T) {
	_, err := LoadConfigFromReader(strings.NewReader("settings: ["))
	assert.ErrorIs(t, err, errors.ErrConfigParse)
}

func TestLoadConfigFromReaderInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"bad log level", "settings:\n  log_level: chatty\n"},
		{"negative epsilon", "settings:\n  epsilon: -0.5\n"},
		{"negative solver timeout", "settings:\n  solver_timeout: -1s\n"},
		{"bad log format", "settings:\n  log_format: xml\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfigFromReader(strings.NewReader(tt.in))
			assert.ErrorIs(t, err, errors.ErrConfigValidation)
		})
	}
}

func TestSaveAndReloadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Settings.DefaultEngine = "stable"
	cfg.Settings.MaxSteps = 7
	require.NoError(t, cfg.SaveConfig(path))

	_, err := os.Stat(path)
	require.NoError(t, err)

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "stable", loaded.Settings.DefaultEngine)
	assert.Equal(t, 7, loaded.Settings.MaxSteps)
}

func TestSetAndGetValue(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.SetValue("default_engine", "next"))
	require.NoError(t, cfg.SetValue("solver_timeout", "90s"))
	require.NoError(t, cfg.SetValue("epsilon", "0.01"))
	require.NoError(t, cfg.SetValue("max_steps", "12"))

	assert.Equal(t, "next", cfg.Settings.DefaultEngine)
	assert.Equal(t, 90*time.Second, cfg.Settings.SolverTimeout)
	assert.Equal(t, 0.01, cfg.Settings.Epsilon)
	assert.Equal(t, 12, cfg.Settings.MaxSteps)

	got, err := cfg.GetValue("max_steps")
	require.NoError(t, err)
	assert.Equal(t, "12", got)

	_, err = cfg.GetValue("nope")
	assert.ErrorIs(t, err, errors.ErrConfigValidation)
	assert.Error(t, cfg.SetValue("epsilon", "not-a-number"))
	assert.Error(t, cfg.SetValue("nope", "x"))
}

func TestGetDefaultConfigPath(t *testing.T) {
	path, err := GetDefaultConfigPath()
	require.NoError(t, err)
	assert.Contains(t, path, "cegarete")
	assert.Equal(t, "config.yaml", filepath.Base(path))
}
