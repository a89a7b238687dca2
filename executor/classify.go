package executor

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/hupe1980/capmesh/core"
)

// classifyResult maps one adapter invocation onto the outcome taxonomy. A
// syntactically valid but semantically empty payload counts as an invalid
// response, never as success; JSON-format requests additionally require a
// parseable payload.
func classifyResult(req core.CapabilityRequest, result *core.ProviderResult, err error) core.OutcomeKind {
	if err != nil {
		return core.Classify(err)
	}
	if result == nil || strings.TrimSpace(result.Content) == "" {
		return core.OutcomeInvalidResponse
	}
	if req.ResponseFormat == core.FormatJSON && !json.Valid([]byte(result.Content)) {
		return core.OutcomeInvalidResponse
	}
	return core.OutcomeSuccess
}

// reasonOf extracts a human-readable failure reason.
func reasonOf(err error) string {
	if err == nil {
		return "empty or unusable response payload"
	}
	return err.Error()
}

// retryAfterHint surfaces a provider-supplied retry-after duration, or zero.
func retryAfterHint(err error) time.Duration {
	var pe *core.ProviderError
	if errors.As(err, &pe) {
		return pe.RetryAfter
	}
	return 0
}

// parseJSON decodes a JSON payload into a generic value; nil when invalid.
func parseJSON(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil
	}
	return v
}
