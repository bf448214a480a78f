// Package logging assembles structured slog loggers and formatting helpers
// used across the upload pipeline.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so actor code can automatically
// tag log lines with upload IDs, actor names, and correlation IDs. The package
// also provides a no-op logger for tests and wiring code that cannot fail.
package logging
