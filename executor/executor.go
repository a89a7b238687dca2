package executor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hupe1980/capmesh/core"
	"github.com/hupe1980/capmesh/keypool"
	"github.com/hupe1980/capmesh/logging"
)

// Policy formalizes the retry behavior of one execution. It is injected into
// the executor so retry semantics stay uniform and independently testable
// instead of being scattered across call sites.
type Policy struct {
	// MaxCredentialAttemptsPerHandler bounds how many distinct credential
	// acquisitions one handler may consume.
	MaxCredentialAttemptsPerHandler int
	// MaxHandlerRetries bounds how many retryable failures one handler may
	// absorb before the executor falls through to the next handler.
	MaxHandlerRetries int
	// BackoffSchedule supplies the delays applied between retryable
	// failures; the last entry repeats once the schedule is exhausted.
	BackoffSchedule []time.Duration
	// AttemptTimeout bounds every single adapter invocation. Zero disables
	// the per-attempt deadline (the caller context still applies).
	AttemptTimeout time.Duration
}

// DefaultPolicy provides production-ready retry defaults.
var DefaultPolicy = Policy{
	MaxCredentialAttemptsPerHandler: 3,
	MaxHandlerRetries:               2,
	BackoffSchedule:                 []time.Duration{250 * time.Millisecond, time.Second, 3 * time.Second},
	AttemptTimeout:                  30 * time.Second,
}

// ProgressFunc receives human-readable progress messages while an execution
// walks its handler list. API layers use it to drive an action tracker's
// step events.
type ProgressFunc func(message string)

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// Policy configures retry and backoff behavior.
	Policy Policy
	// Logger receives attempt diagnostics.
	Logger logging.Logger
	// Sleep overrides the backoff delay, mainly for tests. It must return
	// ctx.Err() when the context is cancelled during the delay.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Executor walks handler lists and drives provider adapters with pooled
// credentials. It is stateless between calls and safe for concurrent use;
// concurrent executions share only the key pool.
type Executor struct {
	pool     *keypool.Manager
	adapters map[string]core.ProviderAdapter
	policy   Policy
	logger   logging.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// New constructs an Executor over a credential pool and a providerID-keyed
// adapter map.
func New(pool *keypool.Manager, adapters map[string]core.ProviderAdapter, optFns ...func(o *Options)) *Executor {
	opts := Options{
		Policy: DefaultPolicy,
		Logger: logging.NoOpLogger{},
		Sleep:  sleepCtx,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Executor{
		pool:     pool,
		adapters: adapters,
		policy:   opts.Policy,
		logger:   opts.Logger,
		sleep:    opts.Sleep,
	}
}

// Adapter returns the registered adapter for a provider id. Callers use it
// to inspect adapter metadata, e.g. whether a handler that produced a result
// was credential-free.
func (e *Executor) Adapter(providerID string) (core.ProviderAdapter, bool) {
	a, ok := e.adapters[providerID]
	return a, ok
}

// logAttempt records the classified outcome of one handler attempt. A logger
// with a LogHandlerAttempt method (logging.CapMeshLogger) gets the structured
// form; anything else gets a plain debug line.
func (e *Executor) logAttempt(handlerID string, attempt int, kind core.OutcomeKind) {
	if hl, ok := e.logger.(interface {
		LogHandlerAttempt(handlerID string, attempt int, kind string)
	}); ok {
		hl.LogHandlerAttempt(handlerID, attempt, string(kind))
		return
	}
	e.logger.Debug("handler attempt classified", "handler_id", handlerID, "attempt", attempt, "outcome", string(kind))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Execute dispatches the request across the handler list and returns the
// first success or an aggregated failure. Cancelling ctx aborts the current
// adapter call and yields a cancelled outcome.
func (e *Executor) Execute(ctx context.Context, req core.CapabilityRequest, handlers []core.Handler) core.ExecutionOutcome {
	return e.ExecuteWithProgress(ctx, req, handlers, nil)
}

// ExecuteWithProgress behaves like Execute and additionally reports
// human-readable attempt progress through fn (which may be nil).
func (e *Executor) ExecuteWithProgress(ctx context.Context, req core.CapabilityRequest, handlers []core.Handler, fn ProgressFunc) core.ExecutionOutcome {
	eligible := eligibleHandlers(req.Capability, handlers)
	if len(eligible) == 0 {
		return core.ExecutionOutcome{
			Success: false,
			Error:   fmt.Sprintf("no handler supports capability %q", req.Capability),
		}
	}

	progress := func(msg string) {
		if fn != nil {
			fn(msg)
		}
	}

	run := &execution{
		executor: e,
		req:      req,
		progress: progress,
	}

	for _, h := range eligible {
		if err := ctx.Err(); err != nil {
			return run.cancelledOutcome()
		}

		outcome, done := run.tryHandler(ctx, h)
		if done {
			return outcome
		}
	}

	return core.ExecutionOutcome{
		Success:  false,
		Attempts: run.attempts,
		Error:    run.aggregateError(req.Capability),
	}
}

// eligibleHandlers filters to handlers servicing the capability and orders
// them by ascending priority, preserving declaration order for ties.
func eligibleHandlers(capability string, handlers []core.Handler) []core.Handler {
	eligible := make([]core.Handler, 0, len(handlers))
	for _, h := range handlers {
		if h.Supports(capability) {
			eligible = append(eligible, h)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].Priority < eligible[j].Priority
	})
	return eligible
}

// execution carries the mutable state of one Execute call.
type execution struct {
	executor *Executor
	req      core.CapabilityRequest
	progress ProgressFunc

	attempts   []core.Attempt
	backoffIdx int
}

// record appends the per-handler attempt summary. Exactly one record is kept
// per handler tried, so a failed fallback chain of length k yields k records.
func (x *execution) record(handlerID, owner string, kind core.OutcomeKind, reason string) {
	x.attempts = append(x.attempts, core.Attempt{
		HandlerID:       handlerID,
		CredentialOwner: owner,
		ErrorKind:       kind,
		Reason:          reason,
	})
}

func (x *execution) cancelledOutcome() core.ExecutionOutcome {
	return core.ExecutionOutcome{
		Success:   false,
		Cancelled: true,
		Attempts:  x.attempts,
		Error:     "execution cancelled",
	}
}

// nextBackoff returns the next delay of the schedule; the last entry repeats.
func (x *execution) nextBackoff() time.Duration {
	schedule := x.executor.policy.BackoffSchedule
	if len(schedule) == 0 {
		return 0
	}
	idx := x.backoffIdx
	if idx >= len(schedule) {
		idx = len(schedule) - 1
	}
	x.backoffIdx++
	return schedule[idx]
}

// tryHandler walks one handler's credential attempts. done is true when the
// overall execution should return outcome immediately (success or cancel).
func (x *execution) tryHandler(ctx context.Context, h core.Handler) (core.ExecutionOutcome, bool) {
	e := x.executor

	adapter, ok := e.adapters[h.ProviderID]
	if !ok {
		x.record(h.ID, "", core.OutcomeFatal, fmt.Sprintf("no adapter registered for provider %q", h.ProviderID))
		return core.ExecutionOutcome{}, false
	}

	x.progress(fmt.Sprintf("Attempting handler: %s", h.ID))

	var (
		lastKind   core.OutcomeKind
		lastReason string
		lastOwner  string
		retries    int
	)

attempts:
	for attempt := 0; attempt < e.policy.MaxCredentialAttemptsPerHandler; attempt++ {
		if err := ctx.Err(); err != nil {
			x.record(h.ID, lastOwner, core.OutcomeCancelled, "execution cancelled")
			return x.cancelledOutcome(), true
		}

		secret, owner, credentialID, err := x.selectCredential(adapter, h)
		if err != nil {
			if errors.Is(err, keypool.ErrNoCredentials) {
				lastKind, lastReason = core.OutcomeFatal, "no credentials configured"
			} else {
				lastKind, lastReason = core.OutcomeTransient, "no usable credential available"
			}
			break attempts
		}
		lastOwner = owner

		result, invokeErr := x.invoke(ctx, adapter, secret)
		kind := classifyResult(x.req, result, invokeErr)
		e.logAttempt(h.ID, attempt+1, kind)

		if credentialID != "" {
			if err := e.pool.Report(credentialID, kind, retryAfterHint(invokeErr)); err != nil {
				e.logger.Warn("credential outcome report failed", "error", err)
			}
		}

		switch kind {
		case core.OutcomeSuccess:
			x.record(h.ID, owner, "", "")
			return x.successOutcome(h, result), true

		case core.OutcomeCancelled:
			x.record(h.ID, owner, core.OutcomeCancelled, "execution cancelled")
			return x.cancelledOutcome(), true

		case core.OutcomeRateLimited, core.OutcomeTransient:
			lastKind, lastReason = kind, reasonOf(invokeErr)
			x.progress(fmt.Sprintf("Handler %s failed: %s", h.ID, lastReason))
			retries++
			if retries > e.policy.MaxHandlerRetries {
				break attempts
			}
			if err := e.sleep(ctx, x.nextBackoff()); err != nil {
				x.record(h.ID, owner, core.OutcomeCancelled, "execution cancelled")
				return x.cancelledOutcome(), true
			}

		default: // invalid response or fatal: fall through to the next handler
			lastKind, lastReason = kind, reasonOf(invokeErr)
			x.progress(fmt.Sprintf("Handler %s failed: %s", h.ID, lastReason))
			break attempts
		}
	}

	x.record(h.ID, lastOwner, lastKind, lastReason)
	return core.ExecutionOutcome{}, false
}

// selectCredential resolves the secret for one attempt: an injected
// per-request secret wins, credential-free adapters skip the pool, otherwise
// the key pool hands out the least recently used active credential.
func (x *execution) selectCredential(adapter core.ProviderAdapter, h core.Handler) (secret, owner, credentialID string, err error) {
	if x.req.InjectedCredential != "" {
		return x.req.InjectedCredential, "injected", "", nil
	}
	if !adapter.Info().RequiresCredential {
		return "", "", "", nil
	}
	cred, err := x.executor.pool.Acquire(h.ProviderID)
	if err != nil {
		return "", "", "", err
	}
	return cred.Secret, cred.OwnerLabel, cred.ID, nil
}

func (x *execution) invoke(ctx context.Context, adapter core.ProviderAdapter, secret string) (*core.ProviderResult, error) {
	actx := ctx
	if t := x.executor.policy.AttemptTimeout; t > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	result, err := adapter.Invoke(actx, secret, core.ProviderRequest{
		Prompt:         x.req.Prompt,
		SystemPrompt:   x.req.SystemPrompt,
		ResponseFormat: x.req.ResponseFormat,
	})
	if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		// The per-attempt deadline fired, not the caller's context.
		return nil, core.NewTransientError(fmt.Errorf("attempt timed out after %s", x.executor.policy.AttemptTimeout))
	}
	return result, err
}

func (x *execution) successOutcome(h core.Handler, result *core.ProviderResult) core.ExecutionOutcome {
	outcome := core.ExecutionOutcome{
		Success:      true,
		Text:         result.Content,
		HandlerUsed:  h.ID,
		ProviderUsed: h.ProviderID,
		Attempts:     x.attempts,
	}
	if x.req.ResponseFormat == core.FormatJSON {
		outcome.StructuredData = parseJSON(result.Content)
	}
	return outcome
}

func (x *execution) aggregateError(capability string) string {
	parts := make([]string, 0, len(x.attempts))
	for _, a := range x.attempts {
		if a.Reason != "" {
			parts = append(parts, fmt.Sprintf("%s: %s (%s)", a.HandlerID, a.ErrorKind, a.Reason))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s", a.HandlerID, a.ErrorKind))
		}
	}
	return fmt.Sprintf("all handlers failed for capability %q: %s", capability, strings.Join(parts, "; "))
}
