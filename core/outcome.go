package core

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// OutcomeKind is the explicit classification of a single provider attempt.
// Adapters produce tagged ProviderError values rather than free-form errors
// so retry decisions never rely on matching response text.
type OutcomeKind string

const (
	// OutcomeSuccess means the adapter returned a usable payload.
	OutcomeSuccess OutcomeKind = "success"
	// OutcomeRateLimited means the provider throttled the credential; the
	// credential cools down and a different one is tried.
	OutcomeRateLimited OutcomeKind = "rate_limited"
	// OutcomeTransient means a retryable failure (network, timeout, 5xx).
	OutcomeTransient OutcomeKind = "transient"
	// OutcomeInvalidResponse means a syntactically valid but unusable payload
	// (empty text, malformed JSON); non-retryable for the credential, the
	// executor falls through to the next handler.
	OutcomeInvalidResponse OutcomeKind = "invalid_response"
	// OutcomeFatal means the request itself was rejected; the current handler
	// is abandoned without penalizing the credential.
	OutcomeFatal OutcomeKind = "fatal"
	// OutcomeCancelled means the caller aborted the execution.
	OutcomeCancelled OutcomeKind = "cancelled"
)

// Retryable reports whether the kind permits another attempt against the
// same handler with a different (or rested) credential.
func (k OutcomeKind) Retryable() bool {
	return k == OutcomeRateLimited || k == OutcomeTransient
}

// ProviderError is a classified adapter failure. RetryAfter is optional and
// only meaningful for OutcomeRateLimited where the provider supplied an
// explicit retry-after hint.
type ProviderError struct {
	Kind       OutcomeKind
	RetryAfter time.Duration
	Err        error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As chains.
func (e *ProviderError) Unwrap() error { return e.Err }

// NewRateLimitError tags err as a rate limit signal with an optional
// provider-supplied retry-after hint (zero when absent).
func NewRateLimitError(err error, retryAfter time.Duration) *ProviderError {
	return &ProviderError{Kind: OutcomeRateLimited, RetryAfter: retryAfter, Err: err}
}

// NewTransientError tags err as retryable.
func NewTransientError(err error) *ProviderError {
	return &ProviderError{Kind: OutcomeTransient, Err: err}
}

// NewInvalidResponseError tags err as an unusable payload.
func NewInvalidResponseError(err error) *ProviderError {
	return &ProviderError{Kind: OutcomeInvalidResponse, Err: err}
}

// NewFatalError tags err as a request-level rejection.
func NewFatalError(err error) *ProviderError {
	return &ProviderError{Kind: OutcomeFatal, Err: err}
}

// Classify maps an adapter error onto the outcome taxonomy. Context timeouts
// classify as transient (retry with backoff); caller cancellation classifies
// as cancelled. Unclassified errors default to transient so an unknown
// provider hiccup never hard-fails the whole execution.
func Classify(err error) OutcomeKind {
	if err == nil {
		return OutcomeSuccess
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.Canceled) {
		return OutcomeCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return OutcomeTransient
	}
	return OutcomeTransient
}
