// Package stream relays status bus events to remote observers over a
// long-lived Server-Sent Events response.
//
// On connect the bridge registers a live subscription and snapshots the
// session history in one atomic step, then replays the snapshot and switches
// to live forwarding: no event is delivered twice from replay and none can
// fall into a gap between replay and subscription. Disconnecting the remote
// end (request context cancellation) unsubscribes the bridge. Reconnects
// replay the full retained history again; there is no offset resumption.
package stream
