package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want OutcomeKind
	}{
		{"nil", nil, OutcomeSuccess},
		{"rate limit", NewRateLimitError(errors.New("429"), time.Minute), OutcomeRateLimited},
		{"transient", NewTransientError(errors.New("502")), OutcomeTransient},
		{"invalid", NewInvalidResponseError(errors.New("empty")), OutcomeInvalidResponse},
		{"fatal", NewFatalError(errors.New("bad request")), OutcomeFatal},
		{"wrapped", fmt.Errorf("call failed: %w", NewFatalError(errors.New("400"))), OutcomeFatal},
		{"cancelled", context.Canceled, OutcomeCancelled},
		{"deadline", context.DeadlineExceeded, OutcomeTransient},
		{"unknown", errors.New("connection reset"), OutcomeTransient},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err); got != tc.want {
				t.Errorf("Classify(%v) = %s, want %s", tc.err, got, tc.want)
			}
		})
	}
}

func TestOutcomeKind_Retryable(t *testing.T) {
	if !OutcomeRateLimited.Retryable() || !OutcomeTransient.Retryable() {
		t.Error("rate limited and transient must be retryable")
	}
	for _, k := range []OutcomeKind{OutcomeInvalidResponse, OutcomeFatal, OutcomeCancelled, OutcomeSuccess} {
		if k.Retryable() {
			t.Errorf("%s should not be retryable", k)
		}
	}
}

func TestCredential_Usable(t *testing.T) {
	now := time.Now()
	c := NewCredential("openai", "sk-test", "alice")
	if !c.Usable(now) {
		t.Fatal("fresh credential should be usable")
	}
	c.State = CredentialCooldown
	c.CooldownUntil = now.Add(time.Minute)
	if c.Usable(now) {
		t.Error("cooling credential should not be usable")
	}
	if !c.Usable(now.Add(2 * time.Minute)) {
		t.Error("credential should become usable after the deadline")
	}
	c.State = CredentialExhausted
	if c.Usable(now.Add(time.Hour)) {
		t.Error("exhausted credential must never be usable")
	}
}
