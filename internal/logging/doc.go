// Package logging assembles structured slog loggers and formatting helpers used
// across ultidisk.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so scans and drive actions can
// tag log lines with device ids, scan ids and drive letters. The package also
// provides a no-op logger for tests and wiring code that cannot fail.
package logging
