// Package server exposes CapMesh over an HTTP API: session lifecycle,
// capability execution with live status tracking, the SSE status stream and
// credential pool introspection. It is a thin gin layer; all semantics live
// in the executor, statusbus, keypool and stream packages.
package server
