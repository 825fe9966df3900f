// Package cache manages the application's cached files: downloaded engine
// bundles and solver query files kept for inspection.
package cache

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mlsafety/cegarete/internal/logger"
	"github.com/mlsafety/cegarete/pkg/errors"
	"github.com/mlsafety/cegarete/pkg/fsutil"
)

// CleanOptions selects what Clean removes. With no flag set everything is
// cleaned.
type CleanOptions struct {
	All     bool
	Bundles bool
	Queries bool
}

// CleanResult reports the bytes freed by a Clean call.
type CleanResult struct {
	TotalFreed  int64
	BundleFreed int64
	QueryFreed  int64
}

// Info describes the current cache contents.
type Info struct {
	BundleDir   string
	QueryDir    string
	TotalSize   int64
	BundleSize  int64
	BundleFiles int
	QuerySize   int64
	QueryFiles  int
}

// Manager operates on the bundle and query cache directories.
type Manager struct {
	bundleDir string
	queryDir  string
}

// New returns a Manager over the given cache directories.
func New(bundleDir, queryDir string) *Manager {
	return &Manager{bundleDir: bundleDir, queryDir: queryDir}
}

// NewDefault returns a Manager over the user's cache directories.
func NewDefault() (*Manager, error) {
	bundleDir, err := fsutil.GetBundleCacheDir()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get bundle cache directory")
	}
	queryDir, err := fsutil.GetQueryCacheDir()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get query cache directory")
	}
	return New(bundleDir, queryDir), nil
}

// BundleDir returns the bundle cache directory.
func (m *Manager) BundleDir() string {
	return m.bundleDir
}

// QueryDir returns the kept-queries directory.
func (m *Manager) QueryDir() string {
	return m.queryDir
}

// Clean removes cached files according to the options and reports the space
// freed. Cleaned directories are recreated empty.
func (m *Manager) Clean(options CleanOptions) (*CleanResult, error) {
	if m.bundleDir == "" || m.queryDir == "" {
		return nil, errors.ErrCacheDirectory
	}
	if !options.Bundles && !options.Queries {
		options.All = true
	}

	logger.Debug("cleaning cache", logger.Fields{
		"bundle_dir": m.bundleDir,
		"query_dir":  m.queryDir,
		"all":        options.All,
		"bundles":    options.Bundles,
		"queries":    options.Queries,
	})

	result := &CleanResult{}
	if options.All || options.Bundles {
		freed, err := cleanDirectory(m.bundleDir)
		if err != nil {
			return nil, errors.Wrap(err, "failed to clean bundle cache")
		}
		result.BundleFreed = freed
		result.TotalFreed += freed
	}
	if options.All || options.Queries {
		freed, err := cleanDirectory(m.queryDir)
		if err != nil {
			return nil, errors.Wrap(err, "failed to clean query cache")
		}
		result.QueryFreed = freed
		result.TotalFreed += freed
	}
	return result, nil
}

// GetInfo sizes the cache directories.
func (m *Manager) GetInfo() (*Info, error) {
	if m.bundleDir == "" || m.queryDir == "" {
		return nil, errors.ErrCacheDirectory
	}

	info := &Info{BundleDir: m.bundleDir, QueryDir: m.queryDir}

	size, files, err := dirSizeAndFiles(m.bundleDir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to size bundle cache")
	}
	info.BundleSize, info.BundleFiles = size, files

	size, files, err = dirSizeAndFiles(m.queryDir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to size query cache")
	}
	info.QuerySize, info.QueryFiles = size, files

	info.TotalSize = info.BundleSize + info.QuerySize
	return info, nil
}

// cleanDirectory removes dir and recreates it empty, returning the bytes its
// files occupied. A missing dir frees nothing.
func cleanDirectory(dir string) (int64, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return 0, nil
	}
	size, _, err := dirSizeAndFiles(dir)
	if err != nil {
		return 0, err
	}
	if err := os.RemoveAll(dir); err != nil {
		return 0, errors.Wrapf(err, "failed to remove %s", dir)
	}
	if err := os.MkdirAll(dir, fsutil.DirModePrivate); err != nil {
		return size, errors.Wrapf(err, "failed to recreate %s", dir)
	}
	return size, nil
}

func dirSizeAndFiles(dir string) (int64, int, error) {
	var (
		size  int64
		count int
	)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return 0, 0, nil
	}
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		size += info.Size()
		count++
		return nil
	})
	if err != nil {
		return 0, 0, errors.Wrapf(err, "error walking %s", dir)
	}
	return size, count, nil
}

// FormatBytes renders a byte count for humans, used by the cache commands.
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	units := []string{"K", "M", "G", "T", "P", "E"}
	return fmt.Sprintf("%.1f %sB", float64(bytes)/float64(div), units[exp])
}
