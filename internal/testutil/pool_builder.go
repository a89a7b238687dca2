package testutil

import (
	"time"

	"github.com/hupe1980/capmesh/core"
)

// CredentialBuilder helps construct credentials in specific health states
// for tests. Example:
//
//	cred := NewCredentialBuilder("openai").Owner("team-a").Cooling(time.Minute).Build()
type CredentialBuilder struct {
	cred core.Credential
}

// NewCredentialBuilder creates a builder for an active credential with a
// generated secret.
func NewCredentialBuilder(providerID string) *CredentialBuilder {
	return &CredentialBuilder{
		cred: core.NewCredential(providerID, "sk-"+core.NewID(), providerID),
	}
}

// Secret sets the secret value (chainable).
func (b *CredentialBuilder) Secret(s string) *CredentialBuilder { b.cred.Secret = s; return b }

// Owner sets the display label (chainable).
func (b *CredentialBuilder) Owner(label string) *CredentialBuilder { b.cred.OwnerLabel = label; return b }

// Cooling puts the credential into cooldown ending after d (chainable).
func (b *CredentialBuilder) Cooling(d time.Duration) *CredentialBuilder {
	b.cred.State = core.CredentialCooldown
	b.cred.CooldownUntil = time.Now().Add(d)
	return b
}

// Exhausted marks the credential out of rotation (chainable).
func (b *CredentialBuilder) Exhausted(failures int) *CredentialBuilder {
	b.cred.State = core.CredentialExhausted
	b.cred.ConsecutiveFailures = failures
	return b
}

// LastUsed sets the LRU timestamp (chainable).
func (b *CredentialBuilder) LastUsed(t time.Time) *CredentialBuilder { b.cred.LastUsed = t; return b }

// Build returns the constructed credential.
func (b *CredentialBuilder) Build() core.Credential { return b.cred }
