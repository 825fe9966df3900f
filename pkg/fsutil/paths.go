package fsutil

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
)

const (
	// AppName is the name of the application used in paths.
	AppName = "cegarete"
)

// GetCacheDir returns the platform-specific cache directory for the application.
// On Linux: ~/.cache/cegarete/
// On macOS: ~/Library/Caches/cegarete/
// On Windows: %LOCALAPPDATA%\cegarete\cache\
func GetCacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, AppName), nil
}

// getAppDataDir returns the platform-specific base data directory.
func getAppDataDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			return "", errors.New("LOCALAPPDATA environment variable not set")
		}
		return localAppData, nil

	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support"), nil

	default: // Linux, BSD, etc. follow the XDG Base Directory Specification
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			return xdgDataHome, nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".local", "share"), nil
	}
}

// GetDataDir returns the platform-specific data directory for the application.
// On Linux: ~/.local/share/cegarete/
// On macOS: ~/Library/Application Support/cegarete/
// On Windows: %LOCALAPPDATA%\cegarete\
func GetDataDir() (string, error) {
	baseDir, err := getAppDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(baseDir, AppName), nil
}

// GetEnginesDir returns the directory holding installed verification engines.
// Format: <data_dir>/engines/
func GetEnginesDir() (string, error) {
	dataDir, err := GetDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "engines"), nil
}

// GetBundleCacheDir returns the directory for downloaded engine bundles.
// Format: <cache_dir>/bundles/
func GetBundleCacheDir() (string, error) {
	cacheDir, err := GetCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, "bundles"), nil
}

// GetQueryCacheDir returns the directory for kept solver query files.
// Format: <cache_dir>/queries/
func GetQueryCacheDir() (string, error) {
	cacheDir, err := GetCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, "queries"), nil
}

// EnsureDirs creates all necessary application directories if they don't exist.
func EnsureDirs() error {
	dirs := []func() (string, error){
		GetEnginesDir,
		GetBundleCacheDir,
		GetQueryCacheDir,
	}

	for _, dirFn := range dirs {
		dir, err := dirFn()
		if err != nil {
			return err
		}
		if err := EnsureDir(dir); err != nil {
			return err
		}
	}

	return nil
}
