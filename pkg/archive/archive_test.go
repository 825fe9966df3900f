package archive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlsafety/cegarete/pkg/fsutil"
)

func TestManagerCreateAndExtractAll(t *testing.T) {
	tempDir := t.TempDir()

	// Layout of a minimal engine bundle.
	testFiles := map[string]string{
		"build/Marabou":         "#!/bin/sh\necho Marabou 2.0\n",
		"resources/acas_1.nnet": "// sample network\n",
		"README.md":             "engine bundle",
	}

	sourceDir := filepath.Join(tempDir, "source")
	for path, content := range testFiles {
		fullPath := filepath.Join(sourceDir, path)
		require.NoError(t, os.MkdirAll(filepath.Dir(fullPath), 0o755))
		require.NoError(t, os.WriteFile(fullPath, []byte(content), 0o644))
	}
	require.NoError(t, os.Chmod(filepath.Join(sourceDir, "build", "Marabou"), fsutil.FileModeExec))

	am := NewManager()

	bundlePath := filepath.Join(tempDir, "engine.tar.gz")
	require.NoError(t, am.Create(t.Context(), sourceDir, bundlePath))
	_, err := os.Stat(bundlePath)
	require.NoError(t, err)

	extractDir := filepath.Join(tempDir, "extracted")
	require.NoError(t, am.ExtractAll(t.Context(), bundlePath, extractDir))

	for path, expectedContent := range testFiles {
		content, err := os.ReadFile(filepath.Join(extractDir, path))
		require.NoError(t, err, "file %s was not extracted", path)
		assert.Equal(t, expectedContent, string(content))
	}

	// The engine binary must stay executable after extraction.
	info, err := os.Stat(filepath.Join(extractDir, "build", "Marabou"))
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0o100)
}

func TestManagerExtractAllMissingBundle(t *testing.T) {
	am := NewManager()
	err := am.ExtractAll(t.Context(), filepath.Join(t.TempDir(), "missing.tar.gz"), t.TempDir())
	assert.Error(t, err)
}

func TestManagerCreateMissingSource(t *testing.T) {
	am := NewManager()
	err := am.Create(t.Context(), filepath.Join(t.TempDir(), "missing"), filepath.Join(t.TempDir(), "out.tar.gz"))
	assert.Error(t, err)
}
