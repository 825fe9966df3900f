//go:build integration

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_SetGetRoundTrip(t *testing.T) {
	tempDir := t.TempDir()
	cfgPath, _ := writeTestConfig(t, tempDir)

	out, err := runCLI(t, "--config", cfgPath, "config", "get", "default_engine")
	require.NoError(t, err)
	assert.Contains(t, out, "marabou")

	_, err = runCLI(t, "--config", cfgPath, "config", "set", "default_engine", "planet")
	require.NoError(t, err)

	out, err = runCLI(t, "--config", cfgPath, "config", "get", "default_engine")
	require.NoError(t, err)
	assert.Contains(t, out, "planet")

	out, err = runCLI(t, "--config", cfgPath, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "default_engine: planet")
}

func TestConfig_SetRejectsBadValue(t *testing.T) {
	tempDir := t.TempDir()
	cfgPath, _ := writeTestConfig(t, tempDir)

	_, err := runCLI(t, "--config", cfgPath, "config", "set", "solver_timeout", "soon")
	require.Error(t, err)

	_, err = runCLI(t, "--config", cfgPath, "config", "set", "log_level", "chatty")
	require.Error(t, err)

	// The file keeps its previous values.
	out, err := runCLI(t, "--config", cfgPath, "config", "get", "log_level")
	require.NoError(t, err)
	assert.Contains(t, out, "info")
}
