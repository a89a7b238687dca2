package core

import "time"

// EventType categorizes a status event within an action's lifecycle.
type EventType string

const (
	// EventStart marks the beginning of a tracked action.
	EventStart EventType = "start"
	// EventStep records an intermediate named step of an action.
	EventStep EventType = "step"
	// EventProgress reports numeric completion progress of an action.
	EventProgress EventType = "progress"
	// EventComplete marks the successful terminal state of an action.
	EventComplete EventType = "complete"
	// EventError marks the failed terminal state of an action.
	EventError EventType = "error"
)

// StepStatus expresses the outcome quality attached to a status event.
type StepStatus string

const (
	// StatusRunning indicates work still in flight.
	StatusRunning StepStatus = "running"
	// StatusSuccess indicates a successfully completed step or action.
	StatusSuccess StepStatus = "success"
	// StatusWarning indicates a step that completed with caveats.
	StatusWarning StepStatus = "warning"
	// StatusFail indicates a failed step or action.
	StatusFail StepStatus = "fail"
)

// Progress carries a current/total completion pair for progress events.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// StatusEvent is the primary unit of communication between executing actions,
// the status bus and external observers. After emission it should be treated
// as immutable. It captures:
//   - Correlation (SessionID, ActionID, ID)
//   - Lifecycle position (Type) and outcome quality (Status)
//   - Human-readable context (Name, Message, Reason, Details)
//   - Optional numeric progress
//   - High precision UTC timestamp
//
// Clients filter a session's interleaved history by ActionID to reconstruct
// a single action's ordered lifecycle.
type StatusEvent struct {
	ID        string     `json:"id"`
	SessionID string     `json:"session_id"`
	ActionID  string     `json:"action_id"`
	Type      EventType  `json:"type"`
	Name      string     `json:"name"`
	Message   string     `json:"message"`
	Status    StepStatus `json:"status"`
	Category  string     `json:"category,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	Details   []string   `json:"details,omitempty"`
	Progress  *Progress  `json:"progress,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// NewStatusEvent creates a bare event bound to a session and action.
// Prefer the typed constructors for common lifecycle categories.
func NewStatusEvent(sessionID, actionID string, typ EventType) StatusEvent {
	return StatusEvent{
		ID:        NewID(),
		SessionID: sessionID,
		ActionID:  actionID,
		Type:      typ,
		Timestamp: time.Now().UTC(),
	}
}

// NewStartEvent constructs the initial running event of an action.
func NewStartEvent(sessionID, actionID, name, category string) StatusEvent {
	e := NewStatusEvent(sessionID, actionID, EventStart)
	e.Name = name
	e.Message = name
	e.Category = category
	e.Status = StatusRunning
	return e
}

// NewStepEvent records an intermediate step with an explicit status and an
// optional failure/warning reason.
func NewStepEvent(sessionID, actionID, name string, status StepStatus, reason string) StatusEvent {
	e := NewStatusEvent(sessionID, actionID, EventStep)
	e.Name = name
	e.Message = name
	e.Status = status
	e.Reason = reason
	return e
}

// NewProgressEvent reports numeric progress; message may be empty.
func NewProgressEvent(sessionID, actionID string, current, total int, message string) StatusEvent {
	e := NewStatusEvent(sessionID, actionID, EventProgress)
	e.Message = message
	e.Status = StatusRunning
	e.Progress = &Progress{Current: current, Total: total}
	return e
}

// NewCompleteEvent marks the successful terminal state of an action.
func NewCompleteEvent(sessionID, actionID, message string, details []string) StatusEvent {
	e := NewStatusEvent(sessionID, actionID, EventComplete)
	e.Message = message
	e.Status = StatusSuccess
	e.Details = details
	return e
}

// NewErrorEvent marks the failed terminal state of an action.
func NewErrorEvent(sessionID, actionID, message, reason string) StatusEvent {
	e := NewStatusEvent(sessionID, actionID, EventError)
	e.Message = message
	e.Status = StatusFail
	e.Reason = reason
	return e
}

// IsTerminal reports whether the event closes its action's lifecycle.
func (e StatusEvent) IsTerminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}

// UnixSeconds returns the timestamp as fractional seconds since Unix epoch.
// Useful for metrics & numeric serialization paths.
func (e StatusEvent) UnixSeconds() float64 { return float64(e.Timestamp.UnixNano()) / 1e9 }
