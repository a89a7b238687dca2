package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hupe1980/capmesh/core"
	"github.com/hupe1980/capmesh/logging"
	"github.com/hupe1980/capmesh/statusbus"
)

// Options holds configuration overrides passed to New().
type Options struct {
	// Heartbeat is the interval of keep-alive comments written while no
	// events flow. Zero disables heartbeats.
	Heartbeat time.Duration
	// BufferSize is the live event channel capacity per connection. When a
	// slow consumer fills it, further events are dropped for that
	// connection only (history remains complete on the bus).
	BufferSize int
	// Logger receives connection lifecycle diagnostics.
	Logger logging.Logger
}

// Bridge binds outbound SSE connections to status bus sessions.
type Bridge struct {
	bus       *statusbus.Bus
	heartbeat time.Duration
	buffer    int
	logger    logging.Logger
}

// New constructs a Bridge over the given bus with optional overrides.
func New(bus *statusbus.Bus, optFns ...func(o *Options)) *Bridge {
	opts := Options{
		Heartbeat:  30 * time.Second,
		BufferSize: 100,
		Logger:     logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Bridge{
		bus:       bus,
		heartbeat: opts.Heartbeat,
		buffer:    opts.BufferSize,
		logger:    opts.Logger,
	}
}

// ServeSession streams the session's retained history followed by live
// events to w until ctx is cancelled (remote disconnect). It blocks for the
// lifetime of the connection.
func (b *Bridge) ServeSession(ctx context.Context, w http.ResponseWriter, sessionID string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("stream: response writer does not support flushing")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering

	live := make(chan core.StatusEvent, b.buffer)

	// Subscription and history snapshot happen atomically so an event
	// emitted while we replay lands in the live channel, never in a gap.
	history, unsubscribe := b.bus.SubscribeWithHistory(sessionID, func(ev core.StatusEvent) {
		select {
		case live <- ev:
		default:
			b.logger.Warn("dropping event for slow stream consumer", "session_id", sessionID, "event_id", ev.ID)
		}
	})
	defer unsubscribe()

	b.logger.Info("stream connected", "session_id", sessionID, "replay", len(history))

	if _, err := fmt.Fprintf(w, "event: connected\ndata: {\"session_id\":%q}\n\n", sessionID); err != nil {
		return err
	}
	for _, ev := range history {
		if err := writeEvent(w, ev); err != nil {
			return err
		}
	}
	flusher.Flush()

	var heartbeat <-chan time.Time
	if b.heartbeat > 0 {
		ticker := time.NewTicker(b.heartbeat)
		defer ticker.Stop()
		heartbeat = ticker.C
	}

	for {
		select {
		case ev := <-live:
			if err := writeEvent(w, ev); err != nil {
				return err
			}
			flusher.Flush()

		case <-heartbeat:
			if _, err := fmt.Fprintf(w, ": heartbeat\n\n"); err != nil {
				return err
			}
			flusher.Flush()

		case <-ctx.Done():
			b.logger.Info("stream disconnected", "session_id", sessionID)
			return nil
		}
	}
}

// writeEvent frames one event as an SSE message: "event: <type>" followed by
// the JSON payload on the data line.
func writeEvent(w http.ResponseWriter, ev core.StatusEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("stream: marshal event: %w", err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
	return err
}
