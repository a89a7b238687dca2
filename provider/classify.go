package provider

import (
	"net/http"
	"strconv"
	"time"

	"github.com/hupe1980/capmesh/core"
)

// RetryAfter extracts the Retry-After hint from a throttled response.
// Both the delta-seconds and HTTP-date forms are supported; absent or
// unparsable values yield zero so the pool falls back to its default
// cooldown.
func RetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

// ClassifyStatus maps an HTTP status returned by a vendor API onto the
// outcome taxonomy. 429 becomes a rate limit carrying the Retry-After hint;
// 401/403 classify as transient so the executor rotates to another
// credential while the pool walks the rejected key toward exhaustion;
// timeouts and 5xx are transient; every other 4xx is a request-level
// rejection no credential rotation can fix.
func ClassifyStatus(status int, resp *http.Response, err error) *core.ProviderError {
	switch {
	case status == http.StatusTooManyRequests:
		return core.NewRateLimitError(err, RetryAfter(resp))
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return core.NewTransientError(err)
	case status == http.StatusRequestTimeout || status >= 500:
		return core.NewTransientError(err)
	default:
		return core.NewFatalError(err)
	}
}
