package keypool

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/capmesh/core"
	"github.com/hupe1980/capmesh/logging"
)

var (
	// ErrNoCredentials signals that zero credentials are configured for the
	// requested provider. This is a configuration error, distinct from
	// transient exhaustion, and must not be retried.
	ErrNoCredentials = errors.New("keypool: no credentials configured for provider")

	// ErrNoneAvailable signals that every configured credential for the
	// provider is currently cooling down or exhausted. The executor reacts
	// by skipping to the next handler.
	ErrNoneAvailable = errors.New("keypool: no usable credential available")

	// ErrUnknownCredential signals a Report call for a credential id the
	// pool does not own.
	ErrUnknownCredential = errors.New("keypool: unknown credential")
)

// Options holds configuration overrides passed to New().
type Options struct {
	// CooldownDuration is the default cooldown applied on a rate limit
	// signal when the provider supplied no retry-after hint.
	CooldownDuration time.Duration
	// ExhaustThreshold is the number of consecutive transient failures
	// after which a credential is retired until manual reset.
	ExhaustThreshold int
	// Clock overrides time.Now for deterministic tests.
	Clock func() time.Time
	// Logger receives credential state transitions.
	Logger logging.Logger
}

// Manager owns every credential and its health state. Credentials are keyed
// by provider and never escape except as copies.
type Manager struct {
	mu         sync.Mutex
	byProvider map[string][]*core.Credential
	byID       map[string]*core.Credential

	cooldown  time.Duration
	threshold int
	now       func() time.Time
	logger    logging.Logger
}

// New constructs an empty Manager with optional overrides.
func New(optFns ...func(o *Options)) *Manager {
	opts := Options{
		CooldownDuration: time.Minute,
		ExhaustThreshold: 3,
		Clock:            time.Now,
		Logger:           logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Manager{
		byProvider: make(map[string][]*core.Credential),
		byID:       make(map[string]*core.Credential),
		cooldown:   opts.CooldownDuration,
		threshold:  opts.ExhaustThreshold,
		now:        opts.Clock,
		logger:     opts.Logger,
	}
}

// Add registers a credential with the pool. A missing ID is assigned and a
// missing state defaults to active; a pre-set state is preserved so pools
// can be restored from a snapshot.
func (m *Manager) Add(cred core.Credential) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cred.ID == "" {
		cred.ID = core.NewID()
	}
	if cred.State == "" {
		cred.State = core.CredentialActive
	}

	c := &cred
	m.byProvider[cred.ProviderID] = append(m.byProvider[cred.ProviderID], c)
	m.byID[cred.ID] = c
	return cred.ID
}

// AddSecret is a convenience wrapper registering a fresh credential from its
// raw parts.
func (m *Manager) AddSecret(providerID, secret, ownerLabel string) string {
	return m.Add(core.NewCredential(providerID, secret, ownerLabel))
}

// Acquire selects the least recently used active credential for a provider,
// reviving cooled-down credentials whose deadline has elapsed. It returns
// ErrNoCredentials when the provider has none configured and ErrNoneAvailable
// when all are cooling down or exhausted.
func (m *Manager) Acquire(providerID string) (core.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	creds := m.byProvider[providerID]
	if len(creds) == 0 {
		return core.Credential{}, fmt.Errorf("%w: %s", ErrNoCredentials, providerID)
	}

	now := m.now()
	var pick *core.Credential
	for _, c := range creds {
		if c.State == core.CredentialCooldown && !now.Before(c.CooldownUntil) {
			c.State = core.CredentialActive
			c.CooldownUntil = time.Time{}
			m.logger.Debug("credential revived from cooldown", "provider", providerID, "owner", c.OwnerLabel)
		}
		if c.State != core.CredentialActive {
			continue
		}
		// Least recently used wins; the slice preserves insertion order so
		// ties fall back to the earliest registered credential.
		if pick == nil || c.LastUsed.Before(pick.LastUsed) {
			pick = c
		}
	}
	if pick == nil {
		return core.Credential{}, fmt.Errorf("%w: %s", ErrNoneAvailable, providerID)
	}

	pick.LastUsed = now
	return *pick, nil
}

// Report feeds one attempt outcome back into the credential's state machine.
// retryAfter is only consulted for rate limit outcomes; zero applies the
// pool's default cooldown.
func (m *Manager) Report(credentialID string, kind core.OutcomeKind, retryAfter time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.byID[credentialID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCredential, credentialID)
	}

	switch kind {
	case core.OutcomeSuccess:
		c.ConsecutiveFailures = 0
		c.State = core.CredentialActive
		c.CooldownUntil = time.Time{}

	case core.OutcomeRateLimited:
		// Rate limits describe quota, not key health: cooldown without
		// touching the failure counter.
		d := retryAfter
		if d <= 0 {
			d = m.cooldown
		}
		c.State = core.CredentialCooldown
		c.CooldownUntil = m.now().Add(d)
		m.logger.Info("credential cooling down", "provider", c.ProviderID, "owner", c.OwnerLabel, "until", c.CooldownUntil)

	case core.OutcomeTransient, core.OutcomeInvalidResponse:
		c.ConsecutiveFailures++
		if c.ConsecutiveFailures >= m.threshold {
			c.State = core.CredentialExhausted
			m.logger.Warn("credential exhausted", "provider", c.ProviderID, "owner", c.OwnerLabel, "failures", c.ConsecutiveFailures)
		}

	case core.OutcomeFatal, core.OutcomeCancelled:
		// Attributable to the request or the caller, not the key.
	}
	return nil
}

// Reset returns every credential of a provider to the active state and
// clears failure counters. Pass an empty provider id to reset the whole pool.
func (m *Manager) Reset(providerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for pid, creds := range m.byProvider {
		if providerID != "" && pid != providerID {
			continue
		}
		for _, c := range creds {
			c.State = core.CredentialActive
			c.CooldownUntil = time.Time{}
			c.ConsecutiveFailures = 0
		}
	}
}

// Providers returns the ids of every provider with at least one credential.
func (m *Manager) Providers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.byProvider))
	for pid := range m.byProvider {
		ids = append(ids, pid)
	}
	return ids
}

// Snapshot returns copies of every credential for introspection. Secrets are
// excluded from JSON marshaling at the type level but present in the copies;
// callers exposing snapshots must not leak the Secret field.
func (m *Manager) Snapshot() []core.Credential {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]core.Credential, 0, len(m.byID))
	for _, creds := range m.byProvider {
		for _, c := range creds {
			out = append(out, *c)
		}
	}
	return out
}
