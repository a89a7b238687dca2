// Package executor dispatches capability requests across a priority-ordered
// list of handlers, each bound to a provider adapter and backed by the
// rotating credential pool.
//
// Handlers are tried strictly sequentially, never in parallel, so a single
// logical request cannot burn multiple providers' quota and fallback ordering
// stays deterministic. Within one handler the executor acquires up to a
// configured number of distinct credentials, classifies every adapter result
// into an explicit outcome kind, reports it back to the key pool and applies
// the configured backoff schedule between retryable failures. The first
// success wins; total exhaustion of all handlers yields an aggregated
// failure outcome listing one attempt record per handler tried.
package executor
