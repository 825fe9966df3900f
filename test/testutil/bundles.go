// Package testutil provides helpers for integration tests that need engine
// bundles served over HTTP.
package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/mlsafety/cegarete/pkg/archive"
)

// BuildEngineBundle packs a fake engine whose build/Marabou is a shell
// script with the given body into dir/filename and returns the bundle path.
func BuildEngineBundle(t *testing.T, dir, filename, script string) string {
	t.Helper()

	srcDir := filepath.Join(t.TempDir(), "engine")
	if err := os.MkdirAll(filepath.Join(srcDir, "build"), 0o755); err != nil {
		t.Fatalf("creating engine source dir: %v", err)
	}
	binary := filepath.Join(srcDir, "build", "Marabou")
	if err := os.WriteFile(binary, []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
		t.Fatalf("writing engine script: %v", err)
	}

	bundlePath := filepath.Join(dir, filename)
	if err := archive.NewManager().Create(context.Background(), srcDir, bundlePath); err != nil {
		t.Fatalf("packing engine bundle: %v", err)
	}
	return bundlePath
}

// StartBundleServer serves the files in dir over HTTP and shuts the server
// down with the test.
func StartBundleServer(t *testing.T, dir string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.FileServer(http.Dir(dir)))
	t.Cleanup(srv.Close)
	return srv
}

// SHA256Of returns the hex-encoded SHA-256 of the file at path.
func SHA256Of(t *testing.T, path string) string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening %s: %v", path, err)
	}
	defer func() { _ = f.Close() }()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		t.Fatalf("hashing %s: %v", path, err)
	}
	return hex.EncodeToString(h.Sum(nil))
}
