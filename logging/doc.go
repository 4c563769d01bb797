// Package logging provides a minimal logging interface and adapters for the
// deepagents runtime.
//
// The Logger interface defines the standard logging methods (Debug, Info,
// Warn, Error) that the runner, sandbox router and tool layer use for
// observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - RuntimeLogger with contextual helpers for sessions, turns and sandboxes
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	r := runner.New(reasoner, registry, runner.WithLogger(logger))
//
// The design intentionally keeps the interface minimal to avoid vendor lock-in
// while supporting structured logging where available.
package logging
