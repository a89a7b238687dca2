// Package capmesh provides a high-level façade over the capability
// executor, credential pool, status bus and streaming bridge, enabling rapid
// construction of AI-backed capability services. Most applications interact
// with this package by:
//  1. Creating a CapMesh via New() (optionally overriding defaults)
//  2. Registering provider adapters and capability handlers
//  3. Loading credentials into the pool
//  4. Executing capabilities (Execute / ExecuteTracked) and consuming the
//     per-session status stream
//
// The façade delegates retry and fallback orchestration to
// executor.Executor while keeping setup and usage ergonomics concise. All
// defaults are safe for local development and testing; production
// deployments typically supply a structured logger and tuned limits.
package capmesh

import (
	"context"
	"time"

	"github.com/hupe1980/capmesh/core"
	"github.com/hupe1980/capmesh/executor"
	"github.com/hupe1980/capmesh/keypool"
	"github.com/hupe1980/capmesh/logging"
	"github.com/hupe1980/capmesh/statusbus"
	"github.com/hupe1980/capmesh/stream"
	"github.com/hupe1980/capmesh/tracker"
)

// Options configures the CapMesh instance.
type Options struct {
	// Policy controls retry, backoff and per-attempt timeout behavior of
	// capability executions.
	Policy executor.Policy

	// CooldownDuration is the default credential rest period after a rate
	// limit without an explicit retry-after hint.
	CooldownDuration time.Duration

	// ExhaustThreshold is the consecutive failure count that marks a
	// credential exhausted.
	ExhaustThreshold int

	// HistoryLimit bounds the retained status events per session.
	HistoryLimit int

	// MaxSessions caps concurrently retained sessions; the least recently
	// touched session is evicted beyond it.
	MaxSessions int

	// SessionTTL evicts sessions idle longer than this.
	SessionTTL time.Duration

	// Heartbeat is the SSE keep-alive interval.
	Heartbeat time.Duration

	// StreamBufferSize is the per-connection live event buffer.
	StreamBufferSize int

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// CapMesh is the high-level façade aggregating pool, bus, executor and
// streaming bridge.
type CapMesh struct {
	opts     Options
	pool     *keypool.Manager
	bus      *statusbus.Bus
	executor *executor.Executor
	bridge   *stream.Bridge
	adapters map[string]core.ProviderAdapter
	handlers []core.Handler
}

// New creates a new CapMesh instance with optional overrides.
func New(optFns ...func(o *Options)) *CapMesh {
	opts := Options{
		Policy:           executor.DefaultPolicy,
		CooldownDuration: time.Minute,
		ExhaustThreshold: 3,
		HistoryLimit:     200,
		MaxSessions:      1024,
		SessionTTL:       30 * time.Minute,
		Heartbeat:        30 * time.Second,
		StreamBufferSize: 100,
		Logger:           logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	pool := keypool.New(func(o *keypool.Options) {
		o.CooldownDuration = opts.CooldownDuration
		o.ExhaustThreshold = opts.ExhaustThreshold
		o.Logger = opts.Logger
	})

	bus := statusbus.New(func(o *statusbus.Options) {
		o.HistoryLimit = opts.HistoryLimit
		o.MaxSessions = opts.MaxSessions
		o.SessionTTL = opts.SessionTTL
		o.Logger = opts.Logger
	})

	adapters := map[string]core.ProviderAdapter{}

	exec := executor.New(pool, adapters, func(o *executor.Options) {
		o.Policy = opts.Policy
		o.Logger = opts.Logger
	})

	bridge := stream.New(bus, func(o *stream.Options) {
		o.Heartbeat = opts.Heartbeat
		o.BufferSize = opts.StreamBufferSize
		o.Logger = opts.Logger
	})

	return &CapMesh{
		opts:     opts,
		pool:     pool,
		bus:      bus,
		executor: exec,
		bridge:   bridge,
		adapters: adapters,
	}
}

// RegisterAdapter makes a provider adapter available to handlers, keyed by
// its provider id. Register adapters during setup, before executing.
func (m *CapMesh) RegisterAdapter(a core.ProviderAdapter) {
	m.adapters[a.Info().ID] = a
}

// RegisterHandler appends a handler to the capability routing table.
func (m *CapMesh) RegisterHandler(h core.Handler) {
	m.handlers = append(m.handlers, h)
}

// AddCredential adds a secret for a provider and returns the credential id.
func (m *CapMesh) AddCredential(providerID, secret, ownerLabel string) string {
	return m.pool.AddSecret(providerID, secret, ownerLabel)
}

// LoadCredentials loads a TOML credentials file into the pool and returns
// the number of credentials added.
func (m *CapMesh) LoadCredentials(path string) (int, error) {
	return m.pool.LoadFile(path)
}

// NewSession returns a fresh session id for grouping status events.
func (m *CapMesh) NewSession() string { return core.NewSessionID() }

// Execute runs a capability request through the registered handlers and
// returns the first success or an aggregated failure.
func (m *CapMesh) Execute(ctx context.Context, req core.CapabilityRequest) core.ExecutionOutcome {
	return m.executor.Execute(ctx, req, m.handlers)
}

// ExecuteTracked behaves like Execute and additionally drives a status
// tracker on the given session: a start event, warning steps for retries
// and fallbacks, and a terminal complete or error event. It returns the
// action id alongside the outcome.
func (m *CapMesh) ExecuteTracked(ctx context.Context, sessionID string, req core.CapabilityRequest) (string, core.ExecutionOutcome) {
	track := tracker.New(m.bus, sessionID, req.Capability, "capability", func(o *tracker.Options) {
		o.Logger = m.opts.Logger
	})

	outcome := m.executor.ExecuteWithProgress(ctx, req, m.handlers, func(message string) {
		track.Step(message, core.StatusWarning)
	})

	switch {
	case outcome.Success:
		track.Complete("capability completed", outcome.HandlerUsed)
	case outcome.Cancelled:
		track.Fail("capability cancelled")
	default:
		track.Fail("capability failed", outcome.Error)
	}

	return track.ActionID(), outcome
}

// Subscribe registers a live status listener for a session and returns its
// unsubscribe function.
func (m *CapMesh) Subscribe(sessionID string, fn statusbus.SubscriberFunc) func() {
	return m.bus.Subscribe(sessionID, fn)
}

// History returns the retained status events of a session, oldest first.
func (m *CapMesh) History(sessionID string) []core.StatusEvent {
	return m.bus.History(sessionID)
}

// Handlers returns a copy of the capability routing table.
func (m *CapMesh) Handlers() []core.Handler {
	out := make([]core.Handler, len(m.handlers))
	copy(out, m.handlers)
	return out
}

// Pool exposes the credential pool, e.g. for snapshots or manual resets.
func (m *CapMesh) Pool() *keypool.Manager { return m.pool }

// Bus exposes the status event bus.
func (m *CapMesh) Bus() *statusbus.Bus { return m.bus }

// Executor exposes the capability executor.
func (m *CapMesh) Executor() *executor.Executor { return m.executor }

// Bridge exposes the SSE delivery bridge.
func (m *CapMesh) Bridge() *stream.Bridge { return m.bridge }
