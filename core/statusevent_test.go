package core

import (
	"strings"
	"testing"
)

func TestNewStartEvent(t *testing.T) {
	e := NewStartEvent("s1", "a1", "Analyze", "domain")
	if e.Type != EventStart || e.Status != StatusRunning {
		t.Fatalf("unexpected start event: %+v", e)
	}
	if e.Category != "domain" || e.Name != "Analyze" {
		t.Errorf("start event lost name/category: %+v", e)
	}
	if e.ID == "" || e.Timestamp.IsZero() {
		t.Error("start event missing id or timestamp")
	}
}

func TestStatusEvent_IsTerminal(t *testing.T) {
	if NewStepEvent("s", "a", "check", StatusSuccess, "").IsTerminal() {
		t.Error("step should not be terminal")
	}
	if !NewCompleteEvent("s", "a", "done", nil).IsTerminal() {
		t.Error("complete should be terminal")
	}
	if !NewErrorEvent("s", "a", "boom", "bad").IsTerminal() {
		t.Error("error should be terminal")
	}
}

func TestNewProgressEvent(t *testing.T) {
	e := NewProgressEvent("s", "a", 2, 5, "working")
	if e.Progress == nil || e.Progress.Current != 2 || e.Progress.Total != 5 {
		t.Fatalf("progress not carried: %+v", e.Progress)
	}
}

func TestNewSessionID_Format(t *testing.T) {
	id := NewSessionID()
	if !strings.HasPrefix(id, "session_") {
		t.Fatalf("unexpected session id %q", id)
	}
	parts := strings.SplitN(id, "_", 3)
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		t.Fatalf("session id should have millis and suffix: %q", id)
	}

	seen := map[string]bool{}
	for range 50 {
		next := NewSessionID()
		if seen[next] {
			t.Fatalf("duplicate session id %q", next)
		}
		seen[next] = true
	}
}
