// Package testsupport provides shared fixtures for package tests: configs
// seeded with per-test temp directories and pre-opened stores.
package testsupport

import (
	"path/filepath"
	"testing"

	"vidpipe/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Endpoints.UploadURL = "http://127.0.0.1:0/upload"
	cfg.Endpoints.MetadataURL = "http://127.0.0.1:0/videos"

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithEndpoints points the config at the given upload and metadata URLs,
// typically an httptest server.
func WithEndpoints(uploadURL, metadataURL string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Endpoints.UploadURL = uploadURL
		cfg.Endpoints.MetadataURL = metadataURL
	}
}

// WithEngine selects the transcode engine on the test config.
func WithEngine(engine string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Transcode.Engine = engine
	}
}
