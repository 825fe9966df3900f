package engine

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlsafety/cegarete/pkg/archive"
	"github.com/mlsafety/cegarete/pkg/errors"
	"github.com/mlsafety/cegarete/pkg/fsutil"
)

// fakeEngineDir builds a directory that looks like a compiled engine: the
// marker binary is a script printing a version banner.
func fakeEngineDir(t *testing.T, banner string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake engine binary is a shell script")
	}
	dir := t.TempDir()
	binary := filepath.Join(dir, DefaultMarker)
	require.NoError(t, fsutil.EnsureFileDir(binary))
	script := "#!/bin/sh\necho \"" + banner + "\"\n"
	require.NoError(t, os.WriteFile(binary, []byte(script), fsutil.FileModeExec))
	return dir
}

func TestInstallRejectsDirWithoutMarker(t *testing.T) {
	enginesDir := filepath.Join(t.TempDir(), "engines")
	reg := New(enginesDir)

	_, err := reg.Install(t.Context(), t.TempDir(), "marabou", false)
	require.ErrorIs(t, err, errors.ErrNotEngineDir)

	// Nothing may have been linked.
	_, err = os.Lstat(filepath.Join(enginesDir, "marabou"))
	assert.True(t, os.IsNotExist(err))
}

func TestInstallCreatesLink(t *testing.T) {
	engineDir := fakeEngineDir(t, "Marabou version 2.0.0")
	enginesDir := filepath.Join(t.TempDir(), "engines")
	reg := New(enginesDir)

	res, err := reg.Install(t.Context(), engineDir, "", false)
	require.NoError(t, err)
	assert.Equal(t, DefaultName, res.Name)
	assert.NoError(t, res.ProbeErr)
	assert.Contains(t, res.ProbeOutput, "2.0.0")

	link, err := os.Readlink(filepath.Join(enginesDir, DefaultName))
	require.NoError(t, err)
	expected, err := filepath.Abs(engineDir)
	require.NoError(t, err)
	assert.Equal(t, expected, link)

	eng, err := reg.Resolve(DefaultName)
	require.NoError(t, err)
	resolved, err := filepath.EvalSymlinks(expected)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(resolved, DefaultMarker), eng.Binary)
}

func TestInstallProbeFailureIsAdvisory(t *testing.T) {
	engineDir := fakeEngineDir(t, "unused")
	// Strip the exec bit: the marker exists but cannot run, like an engine
	// that was cloned but never compiled.
	require.NoError(t, os.Chmod(filepath.Join(engineDir, DefaultMarker), 0o644))

	reg := New(filepath.Join(t.TempDir(), "engines"))
	res, err := reg.Install(t.Context(), engineDir, "marabou", false)
	require.NoError(t, err)
	assert.Error(t, res.ProbeErr)

	// The link is kept regardless of the probe outcome.
	_, err = reg.Resolve("marabou")
	assert.NoError(t, err)
}

func TestInstallTwice(t *testing.T) {
	engineDir := fakeEngineDir(t, "Marabou version 2.0.0")
	reg := New(filepath.Join(t.TempDir(), "engines"))

	_, err := reg.Install(t.Context(), engineDir, "marabou", false)
	require.NoError(t, err)

	_, err = reg.Install(t.Context(), engineDir, "marabou", false)
	assert.ErrorIs(t, err, errors.ErrEngineInstall)

	other := fakeEngineDir(t, "Marabou version 3.0.0")
	res, err := reg.Install(t.Context(), other, "marabou", true)
	require.NoError(t, err)
	expected, err := filepath.Abs(other)
	require.NoError(t, err)
	assert.Equal(t, expected, res.Target)
}

func TestUninstall(t *testing.T) {
	engineDir := fakeEngineDir(t, "Marabou version 2.0.0")
	enginesDir := filepath.Join(t.TempDir(), "engines")
	reg := New(enginesDir)

	_, err := reg.Install(t.Context(), engineDir, "marabou", false)
	require.NoError(t, err)

	res, err := reg.Uninstall("marabou")
	require.NoError(t, err)
	assert.True(t, res.Removed)

	_, err = os.Lstat(filepath.Join(enginesDir, "marabou"))
	assert.True(t, os.IsNotExist(err))
	_, err = reg.Resolve("marabou")
	assert.ErrorIs(t, err, errors.ErrEngineNotInstalled)
}

func TestUninstallNotInstalled(t *testing.T) {
	reg := New(filepath.Join(t.TempDir(), "engines"))

	// Nothing installed: not an error, nothing removed.
	res, err := reg.Uninstall("marabou")
	require.NoError(t, err)
	assert.False(t, res.Removed)

	// Running it again lands in the same place.
	res, err = reg.Uninstall("marabou")
	require.NoError(t, err)
	assert.False(t, res.Removed)
}

func TestList(t *testing.T) {
	enginesDir := filepath.Join(t.TempDir(), "engines")
	reg := New(enginesDir)

	engines, err := reg.List()
	require.NoError(t, err)
	assert.Empty(t, engines)

	_, err = reg.Install(t.Context(), fakeEngineDir(t, "Marabou version 2.0.0"), "stable", false)
	require.NoError(t, err)
	_, err = reg.Install(t.Context(), fakeEngineDir(t, "Marabou version 3.0.0-pre"), "next", false)
	require.NoError(t, err)

	engines, err = reg.List()
	require.NoError(t, err)
	require.Len(t, engines, 2)
	assert.Equal(t, "next", engines[0].Name)
	assert.Equal(t, "stable", engines[1].Name)
}

func TestListSkipsBrokenLinks(t *testing.T) {
	enginesDir := filepath.Join(t.TempDir(), "engines")
	require.NoError(t, fsutil.EnsureDir(enginesDir))
	require.NoError(t, os.Symlink(filepath.Join(t.TempDir(), "gone"), filepath.Join(enginesDir, "broken")))

	engines, err := New(enginesDir).List()
	require.NoError(t, err)
	assert.Empty(t, engines)
}

func TestVersion(t *testing.T) {
	reg := New(filepath.Join(t.TempDir(), "engines"))
	_, err := reg.Install(t.Context(), fakeEngineDir(t, "Marabou version 2.3.1"), "marabou", false)
	require.NoError(t, err)

	v, err := reg.Version(t.Context(), "marabou")
	require.NoError(t, err)
	assert.Equal(t, "2.3.1", v.String())

	require.NoError(t, reg.CheckVersion(t.Context(), "marabou", ">= 2.0, < 3.0"))
	err = reg.CheckVersion(t.Context(), "marabou", ">= 3.0")
	assert.ErrorIs(t, err, errors.ErrEngineVersion)
}

func TestParseVersionNoNumber(t *testing.T) {
	_, err := parseVersion("no banner here")
	assert.ErrorIs(t, err, errors.ErrVerifierOutput)
}

func TestInstallBundle(t *testing.T) {
	engineDir := fakeEngineDir(t, "Marabou version 2.0.0")
	bundlePath := filepath.Join(t.TempDir(), "marabou.tar.gz")
	require.NoError(t, archive.NewManager().Create(t.Context(), engineDir, bundlePath))

	enginesDir := filepath.Join(t.TempDir(), "engines")
	reg := New(enginesDir)

	res, err := reg.InstallBundle(t.Context(), bundlePath, BundleOptions{Constraint: ">= 2.0"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(enginesDir, DefaultName+".d"), res.Target)

	eng, err := reg.Resolve(DefaultName)
	require.NoError(t, err)
	assert.Contains(t, eng.Binary, DefaultMarker)
}

func TestInstallBundleVersionRejected(t *testing.T) {
	engineDir := fakeEngineDir(t, "Marabou version 1.0.0")
	bundlePath := filepath.Join(t.TempDir(), "marabou.tar.gz")
	require.NoError(t, archive.NewManager().Create(t.Context(), engineDir, bundlePath))

	reg := New(filepath.Join(t.TempDir(), "engines"))
	_, err := reg.InstallBundle(t.Context(), bundlePath, BundleOptions{Constraint: ">= 2.0"})
	require.ErrorIs(t, err, errors.ErrEngineVersion)

	// The rejected engine must not resolve.
	_, err = reg.Resolve(DefaultName)
	assert.ErrorIs(t, err, errors.ErrEngineNotInstalled)
}

func TestInstallBundleWrongPlatform(t *testing.T) {
	bundlePath := filepath.Join(t.TempDir(), "marabou_plan9_mips.tar.gz")
	reg := New(filepath.Join(t.TempDir(), "engines"))

	_, err := reg.InstallBundle(t.Context(), bundlePath, BundleOptions{})
	assert.ErrorIs(t, err, errors.ErrEngineInstall)
}
