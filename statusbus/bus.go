package statusbus

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/hupe1980/capmesh/core"
	"github.com/hupe1980/capmesh/logging"
)

// SubscriberFunc receives every event emitted on a session after the
// subscription was registered. Callbacks run synchronously inside Emit and
// must not re-enter the bus for the same session.
type SubscriberFunc func(core.StatusEvent)

// Options holds configuration overrides passed to New().
type Options struct {
	// HistoryLimit caps the number of retained events per session; the
	// oldest event is evicted once the cap is reached.
	HistoryLimit int
	// MaxSessions caps the number of live sessions; the least recently
	// active session is evicted beyond it. Zero means unlimited.
	MaxSessions int
	// SessionTTL evicts sessions idle (no emit) beyond this duration.
	SessionTTL time.Duration
	// Logger receives session lifecycle events.
	Logger logging.Logger
}

type subscriber struct {
	fn SubscriberFunc
}

// session bundles one session's history ring and subscriber registry.
type session struct {
	mu          sync.Mutex
	id          string
	history     []core.StatusEvent
	subscribers []*subscriber
	limit       int
}

func (s *session) emit(ev core.StatusEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, ev)
	if s.limit > 0 && len(s.history) > s.limit {
		// Drop the oldest; copy to release the backing array slot.
		trimmed := make([]core.StatusEvent, len(s.history)-1, s.limit)
		copy(trimmed, s.history[1:])
		s.history = trimmed
	}
	for _, sub := range s.subscribers {
		sub.fn(ev)
	}
}

func (s *session) snapshot() []core.StatusEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := make([]core.StatusEvent, len(s.history))
	copy(events, s.history)
	return events
}

func (s *session) add(sub *subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, sub)
}

// addWithSnapshot registers a subscriber and returns the history atomically,
// so a caller replaying the snapshot cannot miss events emitted in between.
func (s *session) addWithSnapshot(sub *subscriber) []core.StatusEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := make([]core.StatusEvent, len(s.history))
	copy(events, s.history)
	s.subscribers = append(s.subscribers, sub)
	return events
}

func (s *session) remove(sub *subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.subscribers {
		if existing == sub {
			s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
			return
		}
	}
}

func (s *session) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
	s.subscribers = nil
}

func (s *session) subscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}

// Bus is the process-wide status event registry keyed by session id. It is
// constructed once and passed explicitly to trackers, bridges and API
// handlers; it is safe for concurrent use.
type Bus struct {
	mu       sync.Mutex
	sessions *expirable.LRU[string, *session]
	limit    int
	logger   logging.Logger

	// watched indexes sessions with at least one attached subscriber. The
	// eviction callback consults it so an idle-but-streamed session keeps
	// its subscribers; it has its own lock because TTL eviction runs on the
	// cache's background goroutine without mu held.
	watchedMu sync.Mutex
	watched   map[string]*session
}

// New constructs a Bus with optional overrides.
func New(optFns ...func(o *Options)) *Bus {
	opts := Options{
		HistoryLimit: 200,
		MaxSessions:  1024,
		SessionTTL:   30 * time.Minute,
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	b := &Bus{limit: opts.HistoryLimit, logger: opts.Logger, watched: make(map[string]*session)}
	b.sessions = expirable.NewLRU(opts.MaxSessions, func(id string, s *session) {
		// A session with live subscribers is not idle even when nothing
		// has been emitted for a while; keep it intact so the next Emit
		// still reaches them. getOrCreate re-indexes it from watched.
		b.watchedMu.Lock()
		_, keep := b.watched[id]
		b.watchedMu.Unlock()
		if keep {
			b.logger.Debug("session eviction skipped, subscribers attached", "session_id", id)
			return
		}
		s.clear()
		b.logger.Debug("session evicted", "session_id", id)
	}, opts.SessionTTL)
	return b
}

// getOrCreate returns the live session, creating it when absent. Touching a
// session refreshes its TTL.
func (b *Bus) getOrCreate(sessionID string) *session {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s, ok := b.sessions.Get(sessionID); ok {
		// Re-add to refresh the idle deadline.
		b.sessions.Add(sessionID, s)
		return s
	}
	// A watched session may have aged out of the cache while its
	// subscribers stayed attached; put it back rather than forking a
	// fresh session object they would never hear from.
	b.watchedMu.Lock()
	s, ok := b.watched[sessionID]
	b.watchedMu.Unlock()
	if !ok {
		s = &session{id: sessionID, limit: b.limit}
	}
	b.sessions.Add(sessionID, s)
	return s
}

// Emit appends the event to the session's bounded history and synchronously
// notifies every registered subscriber in subscription order. The session is
// created implicitly when absent.
func (b *Bus) Emit(sessionID string, ev core.StatusEvent) {
	b.getOrCreate(sessionID).emit(ev)
}

// Subscribe registers a callback for a session and returns an unsubscribe
// handle that removes exactly that callback, leaving history and unrelated
// subscribers untouched.
func (b *Bus) Subscribe(sessionID string, fn SubscriberFunc) func() {
	s := b.getOrCreate(sessionID)
	sub := &subscriber{fn: fn}
	s.add(sub)
	b.watch(s)
	return func() {
		s.remove(sub)
		b.unwatch(s)
	}
}

// SubscribeWithHistory atomically registers the callback and returns the
// current history snapshot. Streaming bridges use this to replay history and
// switch to live delivery without a gap or duplicate.
func (b *Bus) SubscribeWithHistory(sessionID string, fn SubscriberFunc) ([]core.StatusEvent, func()) {
	s := b.getOrCreate(sessionID)
	sub := &subscriber{fn: fn}
	history := s.addWithSnapshot(sub)
	b.watch(s)
	return history, func() {
		s.remove(sub)
		b.unwatch(s)
	}
}

func (b *Bus) watch(s *session) {
	b.watchedMu.Lock()
	defer b.watchedMu.Unlock()
	b.watched[s.id] = s
}

// unwatch drops the watched entry once the last subscriber is gone. The
// pointer comparison guards against unwatching a successor session that
// re-used the id after ClearSession.
func (b *Bus) unwatch(s *session) {
	if s.subscriberCount() > 0 {
		return
	}
	b.watchedMu.Lock()
	defer b.watchedMu.Unlock()
	if b.watched[s.id] == s {
		delete(b.watched, s.id)
	}
}

// History returns an ordered copy of the session's retained events. A session
// that does not exist yields an empty slice and is not created.
func (b *Bus) History(sessionID string) []core.StatusEvent {
	b.mu.Lock()
	s, ok := b.sessions.Get(sessionID)
	b.mu.Unlock()
	if !ok {
		b.watchedMu.Lock()
		s, ok = b.watched[sessionID]
		b.watchedMu.Unlock()
	}
	if !ok {
		return nil
	}
	return s.snapshot()
}

// ClearSession empties the session's history and detaches all subscribers.
// Future Emit or Subscribe calls transparently re-create the session.
func (b *Bus) ClearSession(sessionID string) {
	b.mu.Lock()
	s, ok := b.sessions.Get(sessionID)
	if ok {
		b.sessions.Remove(sessionID)
	}
	b.mu.Unlock()

	// The session may live only in the watched index when its cache entry
	// already aged out under an open subscription.
	b.watchedMu.Lock()
	if w, wok := b.watched[sessionID]; wok && (!ok || w == s) {
		delete(b.watched, sessionID)
		if !ok {
			s, ok = w, true
		}
	}
	b.watchedMu.Unlock()

	if ok {
		s.clear()
	}
}

// Len reports the number of live sessions, primarily for introspection.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessions.Len()
}
