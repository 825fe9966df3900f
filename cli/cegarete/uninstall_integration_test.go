//go:build integration

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUninstall_RemovesLink(t *testing.T) {
	tempDir := t.TempDir()
	cfgPath, enginesDir := writeTestConfig(t, tempDir)
	engineDir := createFakeEngineDir(t, tempDir, `echo "Marabou version 2.0.0"`)

	_, err := runCLI(t, "--config", cfgPath, "install", engineDir)
	require.NoError(t, err)

	out, err := runCLI(t, "--config", cfgPath, "uninstall")
	require.NoError(t, err)
	assert.Contains(t, out, "Uninstalled engine marabou")

	_, err = os.Lstat(filepath.Join(enginesDir, "marabou"))
	assert.True(t, os.IsNotExist(err), "engine link should be gone")

	// The engine's own files stay in place.
	_, err = os.Stat(filepath.Join(engineDir, "build", "Marabou"))
	assert.NoError(t, err)
}

func TestUninstall_NotInstalledIsNotAnError(t *testing.T) {
	tempDir := t.TempDir()
	cfgPath, _ := writeTestConfig(t, tempDir)

	for i := 0; i < 2; i++ {
		out, err := runCLI(t, "--config", cfgPath, "uninstall")
		require.NoError(t, err)
		assert.Contains(t, out, "Engine marabou is not installed")
	}
}
