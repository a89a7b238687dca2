package testutil

import (
	"time"

	"github.com/hupe1980/capmesh/core"
)

// EventBuilder provides a fluent helper for constructing status events in
// tests. Example:
//
//	ev := NewEventBuilder().Session("s1").Action("a1").Step("validate").Build()
//
// Chain only the parts you need; sensible defaults are applied.
type EventBuilder struct {
	event core.StatusEvent
}

// NewEventBuilder creates a builder for a running start event with generated
// ids.
func NewEventBuilder() *EventBuilder {
	return &EventBuilder{
		event: core.NewStartEvent("session_test", core.NewID(), "action", ""),
	}
}

// Session sets the session id (chainable).
func (b *EventBuilder) Session(id string) *EventBuilder { b.event.SessionID = id; return b }

// Action sets the action id (chainable).
func (b *EventBuilder) Action(id string) *EventBuilder { b.event.ActionID = id; return b }

// ID overrides the auto-generated event id (chainable). Use mainly where
// determinism matters.
func (b *EventBuilder) ID(id string) *EventBuilder { b.event.ID = id; return b }

// Name sets the event name and message (chainable).
func (b *EventBuilder) Name(name string) *EventBuilder {
	b.event.Name = name
	b.event.Message = name
	return b
}

// Category sets the action category (chainable).
func (b *EventBuilder) Category(c string) *EventBuilder { b.event.Category = c; return b }

// Step turns the event into an intermediate successful step (chainable).
func (b *EventBuilder) Step(name string) *EventBuilder {
	b.event.Type = core.EventStep
	b.event.Status = core.StatusSuccess
	return b.Name(name)
}

// Progress turns the event into a progress report (chainable).
func (b *EventBuilder) Progress(current, total int) *EventBuilder {
	b.event.Type = core.EventProgress
	b.event.Status = core.StatusRunning
	b.event.Progress = &core.Progress{Current: current, Total: total}
	return b
}

// Complete turns the event into the successful terminal event (chainable).
func (b *EventBuilder) Complete(message string) *EventBuilder {
	b.event.Type = core.EventComplete
	b.event.Status = core.StatusSuccess
	b.event.Message = message
	return b
}

// Failed turns the event into the failed terminal event (chainable).
func (b *EventBuilder) Failed(message, reason string) *EventBuilder {
	b.event.Type = core.EventError
	b.event.Status = core.StatusFail
	b.event.Message = message
	b.event.Reason = reason
	return b
}

// At overrides the timestamp (chainable).
func (b *EventBuilder) At(t time.Time) *EventBuilder { b.event.Timestamp = t; return b }

// Build returns the constructed event.
func (b *EventBuilder) Build() core.StatusEvent { return b.event }
