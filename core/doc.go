// Package core provides the foundational domain types and contracts used by
// CapMesh. It defines the core abstractions for:
//
//   - Capabilities (abstract categories of work serviced by handlers)
//   - Handlers (priority-ordered provider bindings used for fallback)
//   - Credentials (provider secrets with rotating health state)
//   - Status events (immutable progress records grouped by session/action)
//   - Provider adapters (the uniform invocation contract per backend)
//
// The package intentionally keeps implementation concerns (key selection,
// retry orchestration, event fan-out, transport) out of scope, exposing small
// types and interfaces so the executor, key pool, status bus and streaming
// bridge can evolve independently. All exported identifiers include concise
// documentation to aid discoverability and external consumption.
package core
