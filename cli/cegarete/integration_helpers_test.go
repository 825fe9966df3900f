//go:build integration

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

// sampleNNet is a 2-2-1 ReLU network:
//
//	v0 = relu(x0 + x1)
//	v1 = relu(x0 - x1 + 1)
//	y0 = v0 - 2*v1 + 0.5
const sampleNNet = `// test network
// generated by hand
2,2,1,2,
2,2,1,
0,
-1.0,-1.0,
1.0,1.0,
0.0,0.0,0.0,
1.0,1.0,1.0,
1.0,1.0,
1.0,-1.0,
0.0,
1.0,
1.0,-2.0,
0.5,
`

// runCLI executes the root command with the given arguments and returns the
// combined command output.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

// writeTestConfig writes a config file whose directories all live under root
// and returns the config path and the engines directory.
func writeTestConfig(t *testing.T, root string) (string, string) {
	t.Helper()
	cfgPath := filepath.Join(root, "config.yaml")
	enginesDir := filepath.Join(root, "engines")
	cacheDir := filepath.Join(root, "bundles")

	yamlContent := `settings:
  engines_dir: ` + enginesDir + `
  bundle_cache_dir: ` + cacheDir + `
  query_cache_dir: ` + filepath.Join(root, "queries") + `
  default_engine: marabou
  http_timeout: 5s
  solver_timeout: 30s
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(yamlContent), 0o600))
	return cfgPath, enginesDir
}

// createFakeEngineDir builds an engine directory whose build/Marabou is a
// shell script with the given body. Tests calling this run the script, so
// they are skipped on windows.
func createFakeEngineDir(t *testing.T, root, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake engine scripts need a shell")
	}
	engineDir := filepath.Join(root, "marabou-src")
	require.NoError(t, os.MkdirAll(filepath.Join(engineDir, "build"), 0o755))
	binary := filepath.Join(engineDir, "build", "Marabou")
	require.NoError(t, os.WriteFile(binary, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	return engineDir
}

// writeSampleNetwork writes the sample network file and returns its path.
func writeSampleNetwork(t *testing.T, root string) string {
	t.Helper()
	path := filepath.Join(root, "sample.nnet")
	require.NoError(t, os.WriteFile(path, []byte(sampleNNet), 0o600))
	return path
}
