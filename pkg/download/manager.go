// Package download fetches engine bundles over HTTP into the local bundle
// cache, with optional integrity verification.
package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/mlsafety/cegarete/internal/logger"
	pkgerrors "github.com/mlsafety/cegarete/pkg/errors"
	"github.com/mlsafety/cegarete/pkg/fsutil"
)

// Item represents one remote bundle to download.
type Item struct {
	URL      *url.URL // source URL to download
	Checksum string   // optional hex-encoded SHA-256 checksum; if provided, will be verified
	Filename string   // optional preferred filename; if empty, derived from the URL
}

// Options control the behavior of the download manager.
type Options struct {
	Dir  string        // destination directory (cache). Must be absolute.
	Auth Authenticator // optional credentials for the bundle host
}

// Manager is a simple HTTP download manager with checksum verification and
// cache reuse. A bundle already present in the cache with a matching checksum
// is not fetched again.
type Manager struct {
	client    *http.Client
	userAgent string
}

// NewManager creates a new download manager with the given timeout and user agent.
func NewManager(timeout time.Duration, userAgent string) *Manager {
	if userAgent == "" {
		userAgent = "cegarete/1.0"
	}
	return &Manager{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// Fetch downloads a single bundle and returns the path to the downloaded file.
func (m *Manager) Fetch(ctx context.Context, item Item, opts Options) (string, error) {
	if item.URL == nil {
		return "", pkgerrors.Wrap(pkgerrors.ErrDownloadFailed, "nil URL")
	}
	if opts.Dir == "" || !filepath.IsAbs(opts.Dir) {
		return "", pkgerrors.Wrapf(pkgerrors.ErrInvalidPath, "download dir must be absolute, got %q", opts.Dir)
	}
	if err := fsutil.EnsureDir(opts.Dir); err != nil {
		return "", pkgerrors.Wrap(err, "could not create download dir")
	}

	absPath := filepath.Join(opts.Dir, selectFilename(item))
	if reuse, ok := tryReuseExisting(absPath, item.Checksum); ok {
		logger.Debug("reusing cached bundle", logger.Fields{"path": reuse})
		return reuse, nil
	}

	resp, err := m.doRequest(ctx, item, opts.Auth)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	tmpPath, err := writeBodyToTemp(resp.Body, absPath)
	if err != nil {
		return "", err
	}

	if item.Checksum != "" {
		ok, err := verifySHA256(tmpPath, item.Checksum)
		if err != nil {
			return "", err
		}
		if !ok {
			_ = os.Remove(tmpPath)
			return "", pkgerrors.Wrapf(pkgerrors.ErrChecksumMismatch, "bundle %s", item.URL)
		}
	}

	if err := os.Rename(tmpPath, absPath); err != nil {
		return "", pkgerrors.Wrap(err, "could not finalize bundle")
	}

	logger.Info("downloaded bundle", logger.Fields{
		"url":  item.URL.String(),
		"path": absPath,
	})
	return absPath, nil
}

func selectFilename(item Item) string {
	if item.Filename != "" {
		return item.Filename
	}
	if base := path.Base(item.URL.Path); base != "." && base != "/" {
		return base
	}
	h := sha256.Sum256([]byte(item.URL.String()))
	return hex.EncodeToString(h[:])
}

func tryReuseExisting(absPath, checksum string) (string, bool) {
	if st, err := os.Stat(absPath); err == nil && st.Size() > 0 {
		if checksum == "" {
			return absPath, true
		}
		ok, err := verifySHA256(absPath, checksum)
		if err == nil && ok {
			return absPath, true
		}
	}
	return "", false
}

func (m *Manager) doRequest(ctx context.Context, item Item, auth Authenticator) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, item.URL.String(), http.NoBody)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to create request")
	}
	req.Header.Set("User-Agent", m.userAgent)
	if auth != nil {
		if err := auth.Apply(req); err != nil {
			return nil, pkgerrors.Wrap(err, "failed to apply credentials")
		}
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "download failed")
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, pkgerrors.Wrapf(pkgerrors.ErrDownloadFailed, "unexpected status code %d", resp.StatusCode)
	}
	return resp, nil
}

func writeBodyToTemp(body io.Reader, absPath string) (string, error) {
	tmp, err := os.CreateTemp(filepath.Dir(absPath), "dl-*.tmp")
	if err != nil {
		return "", pkgerrors.Wrap(err, "could not create temp file")
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, body); err != nil {
		_ = tmp.Close()
		return "", pkgerrors.Wrap(err, "could not write file")
	}
	if err := tmp.Close(); err != nil {
		return "", pkgerrors.Wrap(err, "could not close file")
	}
	return tmpPath, nil
}

func verifySHA256(path, wantHex string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, pkgerrors.Wrap(err, "open for checksum")
	}
	defer func() { _ = f.Close() }()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return false, pkgerrors.Wrap(err, "hashing")
	}
	got := hex.EncodeToString(h.Sum(nil))
	return got == strings.ToLower(strings.TrimSpace(wantHex)), nil
}
