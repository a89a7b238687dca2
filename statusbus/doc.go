// Package statusbus implements the per-session publish/subscribe registry
// carrying status events from running actions to attached observers.
//
// Every session owns a bounded append-only history (a ring: the oldest event
// is evicted once the cap is reached) and an ordered subscriber set. Emit
// appends to history and notifies subscribers synchronously under the session
// lock so a single event's delivery can never interleave with another emit.
//
// Sessions are created implicitly on first emit or subscribe and dropped
// either explicitly via ClearSession or automatically once idle beyond the
// configured TTL (backed by an expirable LRU that also caps the number of
// live sessions). A session with attached subscribers is never dropped by
// the TTL; it becomes evictable again after the last unsubscribe.
package statusbus
