package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDir(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(t *testing.T) string
		expectError bool
	}{
		{
			name: "creates new directory",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "newdir")
			},
		},
		{
			name: "creates nested directories",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "a", "b", "c")
			},
		},
		{
			name: "succeeds when directory already exists",
			setup: func(t *testing.T) string {
				return t.TempDir()
			},
		},
		{
			name: "fails when path is an existing file",
			setup: func(t *testing.T) string {
				file := filepath.Join(t.TempDir(), "file")
				require.NoError(t, os.WriteFile(file, []byte("x"), FileModeDefault))
				return file
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.setup(t)
			err := EnsureDir(path)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.True(t, info.IsDir())
		})
	}
}

func TestEnsureFileDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "sub", "dir", "query.txt")
	require.NoError(t, EnsureFileDir(file))

	info, err := os.Stat(filepath.Dir(file))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestCopy(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.nnet")
	dst := filepath.Join(dir, "dst.nnet")
	require.NoError(t, os.WriteFile(src, []byte("2,2,1,2,\n"), FileModeDefault))

	require.NoError(t, Copy(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "2,2,1,2,\n", string(data))
}

func TestCopyMissingSource(t *testing.T) {
	dir := t.TempDir()
	err := Copy(filepath.Join(dir, "missing"), filepath.Join(dir, "dst"))
	assert.Error(t, err)
}

func TestCreateFilePerm(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine")
	f, err := CreateFilePerm(path, FileModeExec)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(FileModeExec), info.Mode().Perm())
}

func TestAppDirs(t *testing.T) {
	enginesDir, err := GetEnginesDir()
	require.NoError(t, err)
	assert.Contains(t, enginesDir, AppName)
	assert.Equal(t, "engines", filepath.Base(enginesDir))

	bundleDir, err := GetBundleCacheDir()
	require.NoError(t, err)
	assert.Contains(t, bundleDir, AppName)
	assert.Equal(t, "bundles", filepath.Base(bundleDir))
}
