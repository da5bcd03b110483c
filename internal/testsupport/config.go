// Package testsupport holds fixtures shared by dlpanel's package tests: a
// temp-dir scoped config, a scripted download service and cache helpers.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"dlpanel/internal/config"
)

// ConfigOption adjusts a test configuration after the temp defaults apply.
type ConfigOption func(*config.Config)

// NewConfig returns defaults rooted in a fresh t.TempDir: state and logs live
// under it and the service URL points nowhere until WithAPIURL is applied.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	root := t.TempDir()
	cfg := config.Default()
	cfg.API.BaseURL = "http://127.0.0.1:0"
	cfg.API.ReconnectDelay = 1
	cfg.Paths.StateDir = filepath.Join(root, "state")
	cfg.Paths.LogDir = filepath.Join(root, "logs")
	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

func WithAPIURL(url string) ConfigOption {
	return func(cfg *config.Config) { cfg.API.BaseURL = url }
}

func WithCache(enabled bool) ConfigOption {
	return func(cfg *config.Config) { cfg.Cache.Enabled = enabled }
}

// BaseDir is the temp root NewConfig allocated for cfg.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}

// WriteConfig saves cfg as config.toml under BaseDir and returns its path,
// for tests that drive the CLI through --config.
func WriteConfig(t testing.TB, cfg *config.Config) string {
	t.Helper()

	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	path := filepath.Join(BaseDir(cfg), "config.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
