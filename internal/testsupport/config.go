// Package testsupport provides shared fixtures for package tests: temp-dir
// configs, store and registry constructors with cleanup, and tiny image
// payloads for page uploads.
package testsupport

import (
	"path/filepath"
	"testing"

	"reflow/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithHeartbeatSeconds overrides the stream heartbeat cadence.
func WithHeartbeatSeconds(seconds int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Events.HeartbeatSeconds = seconds
	}
}
