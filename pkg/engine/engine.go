// Package engine manages the installation of external verification engines.
// An installed engine is a symlink in the engines directory pointing at the
// engine's root directory, mirroring how solver packages are hooked into an
// interpreter's library path by hand.
package engine

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mlsafety/cegarete/internal/logger"
	"github.com/mlsafety/cegarete/pkg/errors"
	"github.com/mlsafety/cegarete/pkg/fsutil"
)

const (
	// DefaultMarker is the path, relative to the engine root, of the file
	// identifying a directory as an engine installation. For Marabou this is
	// the solver binary itself.
	DefaultMarker = "build/Marabou"

	// DefaultName is the link name used when the caller does not pick one.
	DefaultName = "marabou"
)

// Engine describes one installed engine.
type Engine struct {
	Name   string // link name in the engines directory
	Dir    string // resolved engine root
	Binary string // path of the solver binary inside Dir
}

// Registry manages the engines directory.
type Registry struct {
	dir       string
	marker    string
	probeArgs []string
}

// Option configures a Registry.
type Option func(*Registry)

// WithMarker overrides the marker file path relative to the engine root.
func WithMarker(rel string) Option {
	return func(r *Registry) { r.marker = rel }
}

// WithProbeArgs overrides the arguments passed to the engine binary when
// probing an installation.
func WithProbeArgs(args ...string) Option {
	return func(r *Registry) { r.probeArgs = args }
}

// New creates a Registry rooted at enginesDir.
func New(enginesDir string, opts ...Option) *Registry {
	r := &Registry{
		dir:       enginesDir,
		marker:    DefaultMarker,
		probeArgs: []string{"--version"},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Dir returns the engines directory the registry manages.
func (r *Registry) Dir() string { return r.dir }

// InstallResult reports what Install did. ProbeErr is advisory: the link is
// kept even when the probe fails, since a missing binary usually just means
// the engine has not been compiled yet.
type InstallResult struct {
	Name        string
	LinkPath    string
	Target      string
	ProbeOutput string
	ProbeErr    error
}

// Install links engineDir into the engines directory under name. engineDir
// must contain the marker file, otherwise nothing is linked and
// errors.ErrNotEngineDir is returned. With force set, an existing link with
// the same name is replaced.
func (r *Registry) Install(ctx context.Context, engineDir, name string, force bool) (*InstallResult, error) {
	if name == "" {
		name = DefaultName
	}

	target, err := filepath.Abs(engineDir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve %s", engineDir)
	}
	if _, err := os.Stat(filepath.Join(target, r.marker)); err != nil {
		return nil, errors.Wrapf(errors.ErrNotEngineDir, "%s has no %s", target, r.marker)
	}

	if err := fsutil.EnsureDir(r.dir); err != nil {
		return nil, errors.Wrap(err, "failed to create engines directory")
	}

	linkPath := filepath.Join(r.dir, name)
	if _, err := os.Lstat(linkPath); err == nil {
		if !force {
			return nil, errors.Wrapf(errors.ErrEngineInstall, "engine %s is already installed", name)
		}
		if err := os.Remove(linkPath); err != nil {
			return nil, errors.Wrapf(err, "failed to replace engine %s", name)
		}
	}

	if err := os.Symlink(target, linkPath); err != nil {
		return nil, errors.Wrap(err, "failed to create engine link")
	}

	logger.Info("installed engine", logger.Fields{
		"name":   name,
		"target": target,
	})

	res := &InstallResult{Name: name, LinkPath: linkPath, Target: target}
	res.ProbeOutput, res.ProbeErr = r.probe(ctx, filepath.Join(target, r.marker))
	if res.ProbeErr != nil {
		logger.Warn("engine probe failed after install", logger.Fields{
			"name":  name,
			"error": res.ProbeErr.Error(),
		})
	}
	return res, nil
}

// UninstallResult reports what Uninstall did. Removed is false when there was
// nothing to remove, which is not an error. StalePath names an engine binary
// still reachable on PATH after removal, if any.
type UninstallResult struct {
	Name      string
	Removed   bool
	StalePath string
}

// Uninstall removes the engine link. A missing link, or a link that cannot be
// removed, yields Removed=false without an error: uninstalling twice in a row
// is fine.
func (r *Registry) Uninstall(name string) (*UninstallResult, error) {
	if name == "" {
		name = DefaultName
	}
	res := &UninstallResult{Name: name}

	linkPath := filepath.Join(r.dir, name)
	if err := os.Remove(linkPath); err != nil {
		logger.Debug("engine link not removed", logger.Fields{
			"name":  name,
			"error": err.Error(),
		})
		return res, nil
	}
	res.Removed = true

	// A copy of the engine elsewhere on PATH would keep resolving even
	// though the managed link is gone. Purely advisory.
	if path, err := exec.LookPath(filepath.Base(r.marker)); err == nil {
		res.StalePath = path
	}

	logger.Info("uninstalled engine", logger.Fields{"name": name})
	return res, nil
}

// Resolve looks up an installed engine by name.
func (r *Registry) Resolve(name string) (Engine, error) {
	if name == "" {
		name = DefaultName
	}
	linkPath := filepath.Join(r.dir, name)
	if _, err := os.Lstat(linkPath); err != nil {
		return Engine{}, errors.Wrapf(errors.ErrEngineNotInstalled, "engine %s", name)
	}
	dir, err := filepath.EvalSymlinks(linkPath)
	if err != nil {
		return Engine{}, errors.Wrapf(errors.ErrNotEngineDir, "engine %s points at a missing target", name)
	}
	binary := filepath.Join(dir, r.marker)
	if _, err := os.Stat(binary); err != nil {
		return Engine{}, errors.Wrapf(errors.ErrNotEngineDir, "engine %s has no %s", name, r.marker)
	}
	return Engine{Name: name, Dir: dir, Binary: binary}, nil
}

// List returns all engines installed in the engines directory, sorted by name.
// Entries whose link target has gone away are skipped.
func (r *Registry) List() ([]Engine, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to read engines directory")
	}

	var engines []Engine
	for _, entry := range entries {
		eng, err := r.Resolve(entry.Name())
		if err != nil {
			continue
		}
		engines = append(engines, eng)
	}
	sort.Slice(engines, func(i, j int) bool { return engines[i].Name < engines[j].Name })
	return engines, nil
}

// Probe runs the installed engine's binary with the probe arguments and
// returns its combined output.
func (r *Registry) Probe(ctx context.Context, name string) (string, error) {
	eng, err := r.Resolve(name)
	if err != nil {
		return "", err
	}
	return r.probe(ctx, eng.Binary)
}

func (r *Registry) probe(ctx context.Context, binary string) (string, error) {
	cmd := exec.CommandContext(ctx, binary, r.probeArgs...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), errors.Wrapf(errors.ErrVerifierMissing, "probing %s: %v", binary, err)
	}
	return strings.TrimSpace(string(out)), nil
}
