// Package logging provides a minimal logging interface and adapters for CapMesh.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the executor, key pool, status bus and streaming bridge use for
// observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	exec := executor.New(pool, adapters, executor.DefaultPolicy, func(o *executor.Options) {
//		o.Logger = logger
//	})
//
// The design intentionally keeps the interface minimal to avoid vendor lock-in
// while supporting structured logging where available.
package logging
