package statusbus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/capmesh/core"
	"github.com/hupe1980/capmesh/internal/testutil"
)

func TestBus_HistoryPreservesEventContent(t *testing.T) {
	b := New()
	ev := testutil.NewEventBuilder().
		Session("s1").
		Action("a1").
		Failed("generation failed", "all handlers failed").
		Build()

	b.Emit("s1", ev)

	history := b.History("s1")
	require.Len(t, history, 1)
	assert.Equal(t, ev, history[0])
	assert.True(t, history[0].IsTerminal())
}

func TestBus_EmitAppendsToHistory(t *testing.T) {
	b := New()
	first := core.NewStartEvent("s1", "a1", "Analyze", "domain")
	second := core.NewStepEvent("s1", "a1", "check", core.StatusSuccess, "")

	b.Emit("s1", first)
	b.Emit("s1", second)

	history := b.History("s1")
	require.Len(t, history, 2)
	assert.Equal(t, first.ID, history[0].ID)
	assert.Equal(t, second.ID, history[1].ID, "last emitted event must be last in history")
}

func TestBus_HistoryRingEvictsOldest(t *testing.T) {
	b := New(func(o *Options) { o.HistoryLimit = 3 })
	for range 5 {
		b.Emit("s1", core.NewStepEvent("s1", "a1", "step", core.StatusRunning, ""))
	}
	history := b.History("s1")
	assert.Len(t, history, 3)
}

func TestBus_SubscribeReceivesLiveEvents(t *testing.T) {
	b := New()
	var got []core.StatusEvent
	unsubscribe := b.Subscribe("s1", func(ev core.StatusEvent) { got = append(got, ev) })

	b.Emit("s1", core.NewStartEvent("s1", "a1", "Analyze", ""))
	require.Len(t, got, 1)

	unsubscribe()
	b.Emit("s1", core.NewCompleteEvent("s1", "a1", "done", nil))
	assert.Len(t, got, 1, "no delivery after unsubscribe")
	assert.Len(t, b.History("s1"), 2, "history unaffected by unsubscribe")
}

func TestBus_UnsubscribeRemovesExactlyOneCallback(t *testing.T) {
	b := New()
	var first, second int
	u1 := b.Subscribe("s1", func(core.StatusEvent) { first++ })
	b.Subscribe("s1", func(core.StatusEvent) { second++ })

	u1()
	b.Emit("s1", core.NewStartEvent("s1", "a1", "x", ""))
	assert.Zero(t, first)
	assert.Equal(t, 1, second)
}

func TestBus_SubscriberOrderMatchesSubscriptionOrder(t *testing.T) {
	b := New()
	var order []string
	b.Subscribe("s1", func(core.StatusEvent) { order = append(order, "first") })
	b.Subscribe("s1", func(core.StatusEvent) { order = append(order, "second") })

	b.Emit("s1", core.NewStartEvent("s1", "a1", "x", ""))
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestBus_NoCrossSessionVisibility(t *testing.T) {
	b := New()
	var got int
	b.Subscribe("s1", func(core.StatusEvent) { got++ })

	b.Emit("s2", core.NewStartEvent("s2", "a1", "x", ""))
	assert.Zero(t, got)
	assert.Empty(t, b.History("s1"))
	assert.Len(t, b.History("s2"), 1)
}

func TestBus_ClearSession(t *testing.T) {
	b := New()
	var got int
	b.Subscribe("s1", func(core.StatusEvent) { got++ })
	b.Emit("s1", core.NewStartEvent("s1", "a1", "x", ""))

	b.ClearSession("s1")
	assert.Empty(t, b.History("s1"))

	// Previously registered subscribers receive nothing further.
	b.Emit("s1", core.NewCompleteEvent("s1", "a1", "done", nil))
	assert.Equal(t, 1, got)

	// The session is transparently re-created.
	assert.Len(t, b.History("s1"), 1)
}

func TestBus_SubscribeWithHistoryIsAtomic(t *testing.T) {
	b := New()
	b.Emit("s1", core.NewStartEvent("s1", "a1", "x", ""))
	b.Emit("s1", core.NewStepEvent("s1", "a1", "y", core.StatusSuccess, ""))

	var live []core.StatusEvent
	history, unsubscribe := b.SubscribeWithHistory("s1", func(ev core.StatusEvent) { live = append(live, ev) })
	defer unsubscribe()

	require.Len(t, history, 2)
	assert.Empty(t, live, "snapshot events must not be delivered live")

	b.Emit("s1", core.NewCompleteEvent("s1", "a1", "done", nil))
	require.Len(t, live, 1)
	assert.Equal(t, core.EventComplete, live[0].Type)
}

func TestBus_SessionTTLEviction(t *testing.T) {
	b := New(func(o *Options) { o.SessionTTL = 20 * time.Millisecond })
	b.Emit("s1", core.NewStartEvent("s1", "a1", "x", ""))
	require.Len(t, b.History("s1"), 1)

	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, b.History("s1"), "idle session should expire")
}

func TestBus_SessionTTLKeepsLiveSubscribersAttached(t *testing.T) {
	b := New(func(o *Options) { o.SessionTTL = 20 * time.Millisecond })

	var got []core.StatusEvent
	unsubscribe := b.Subscribe("s1", func(ev core.StatusEvent) { got = append(got, ev) })
	defer unsubscribe()

	b.Emit("s1", core.NewStartEvent("s1", "a1", "x", ""))
	// Sit past the idle deadline with the subscription still open, as a
	// long-lived stream does between heartbeats.
	time.Sleep(60 * time.Millisecond)
	b.Emit("s1", core.NewCompleteEvent("s1", "a1", "done", nil))

	require.Len(t, got, 2, "subscriber must outlive the idle TTL")
	assert.Equal(t, core.EventStart, got[0].Type)
	assert.Equal(t, core.EventComplete, got[1].Type)
	assert.Len(t, b.History("s1"), 2)
}

func TestBus_SessionExpiresAfterLastUnsubscribe(t *testing.T) {
	b := New(func(o *Options) { o.SessionTTL = 20 * time.Millisecond })

	unsubscribe := b.Subscribe("s1", func(core.StatusEvent) {})
	b.Emit("s1", core.NewStartEvent("s1", "a1", "x", ""))
	unsubscribe()

	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, b.History("s1"), "a session with no subscribers left expires normally")
}

func TestBus_ConcurrentEmitsDoNotInterleaveDelivery(t *testing.T) {
	b := New(func(o *Options) { o.HistoryLimit = 0 })

	// Each callback records the event; delivery runs under the session lock
	// so the slice needs no extra synchronization.
	var delivered []core.StatusEvent
	b.Subscribe("s1", func(ev core.StatusEvent) { delivered = append(delivered, ev) })

	var wg sync.WaitGroup
	const emitters, perEmitter = 8, 50
	for range emitters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perEmitter {
				b.Emit("s1", core.NewStepEvent("s1", "a1", "step", core.StatusRunning, ""))
			}
		}()
	}
	wg.Wait()

	history := b.History("s1")
	require.Len(t, delivered, emitters*perEmitter)
	require.Len(t, history, emitters*perEmitter)
	for i := range history {
		assert.Equal(t, history[i].ID, delivered[i].ID, "delivery order must match history order")
	}
}
