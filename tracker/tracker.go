package tracker

import (
	"sync"

	"github.com/hupe1980/capmesh/core"
	"github.com/hupe1980/capmesh/logging"
	"github.com/hupe1980/capmesh/statusbus"
)

// Options holds configuration overrides passed to New().
type Options struct {
	// ActionID overrides the generated action identifier. Stable for the
	// lifetime of one logical action; clients use it to de-interleave
	// concurrent actions sharing a session.
	ActionID string
	// Logger receives diagnostics (e.g. calls after a terminal event).
	Logger logging.Logger
}

// Tracker emits lifecycle events for a single action. It holds no event
// state of its own; every call goes straight through the status bus.
type Tracker struct {
	bus       *statusbus.Bus
	sessionID string
	actionID  string
	name      string
	category  string
	logger    logging.Logger

	mu   sync.Mutex
	done bool
}

// New creates a tracker and synchronously emits the action's Start event
// (status running) before returning.
func New(bus *statusbus.Bus, sessionID, name, category string, optFns ...func(o *Options)) *Tracker {
	opts := Options{
		ActionID: core.NewID(),
		Logger:   logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	t := &Tracker{
		bus:       bus,
		sessionID: sessionID,
		actionID:  opts.ActionID,
		name:      name,
		category:  category,
		logger:    opts.Logger,
	}
	bus.Emit(sessionID, core.NewStartEvent(sessionID, t.actionID, name, category))
	return t
}

// ActionID returns the stable identifier of the tracked action.
func (t *Tracker) ActionID() string { return t.actionID }

// SessionID returns the session the action belongs to.
func (t *Tracker) SessionID() string { return t.sessionID }

// begin gates an emission; it returns false once a terminal event was sent.
// terminal marks the tracker done when the emission itself is terminal.
func (t *Tracker) begin(terminal bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		t.logger.Warn("tracker call after terminal event ignored", "session_id", t.sessionID, "action_id", t.actionID)
		return false
	}
	if terminal {
		t.done = true
	}
	return true
}

// Step emits an intermediate step with the given status and optional reason.
func (t *Tracker) Step(name string, status core.StepStatus, reason ...string) {
	if !t.begin(false) {
		return
	}
	r := ""
	if len(reason) > 0 {
		r = reason[0]
	}
	ev := core.NewStepEvent(t.sessionID, t.actionID, name, status, r)
	ev.Category = t.category
	t.bus.Emit(t.sessionID, ev)
}

// Progress emits a numeric progress update with an optional message.
func (t *Tracker) Progress(current, total int, message ...string) {
	if !t.begin(false) {
		return
	}
	msg := ""
	if len(message) > 0 {
		msg = message[0]
	}
	ev := core.NewProgressEvent(t.sessionID, t.actionID, current, total, msg)
	ev.Category = t.category
	ev.Name = t.name
	t.bus.Emit(t.sessionID, ev)
}

// Complete emits exactly one terminal success event.
func (t *Tracker) Complete(message string, details ...string) {
	if !t.begin(true) {
		return
	}
	ev := core.NewCompleteEvent(t.sessionID, t.actionID, message, details)
	ev.Category = t.category
	ev.Name = t.name
	t.bus.Emit(t.sessionID, ev)
}

// Fail emits exactly one terminal failure event with an optional reason.
func (t *Tracker) Fail(message string, reason ...string) {
	if !t.begin(true) {
		return
	}
	r := ""
	if len(reason) > 0 {
		r = reason[0]
	}
	ev := core.NewErrorEvent(t.sessionID, t.actionID, message, r)
	ev.Category = t.category
	ev.Name = t.name
	t.bus.Emit(t.sessionID, ev)
}
