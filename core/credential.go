package core

import "time"

// CredentialState describes the health of a pooled provider credential.
type CredentialState string

const (
	// CredentialActive means the credential is eligible for selection.
	CredentialActive CredentialState = "active"
	// CredentialCooldown means the credential was rate limited and must not
	// be selected until its cooldown deadline elapses.
	CredentialCooldown CredentialState = "cooldown"
	// CredentialExhausted means the credential accumulated too many
	// consecutive failures and is out of rotation until a manual reset.
	CredentialExhausted CredentialState = "exhausted"
)

// Credential is a provider secret plus its rotation health state. Instances
// are owned exclusively by the key pool; callers receive copies and must not
// retain the secret beyond the adapter invocation it was acquired for.
type Credential struct {
	ID                  string          `json:"id"`
	ProviderID          string          `json:"provider_id"`
	Secret              string          `json:"-"`
	OwnerLabel          string          `json:"owner_label"`
	State               CredentialState `json:"state"`
	CooldownUntil       time.Time       `json:"cooldown_until,omitempty"`
	ConsecutiveFailures int             `json:"consecutive_failures"`
	LastUsed            time.Time       `json:"last_used,omitempty"`
}

// NewCredential creates an active credential for a provider. OwnerLabel is a
// non-secret display name used in attempt records and status messages.
func NewCredential(providerID, secret, ownerLabel string) Credential {
	return Credential{
		ID:         NewID(),
		ProviderID: providerID,
		Secret:     secret,
		OwnerLabel: ownerLabel,
		State:      CredentialActive,
	}
}

// Usable reports whether the credential may be selected at the given instant.
// A cooled-down credential becomes usable again once its deadline has passed.
func (c Credential) Usable(now time.Time) bool {
	switch c.State {
	case CredentialActive:
		return true
	case CredentialCooldown:
		return !now.Before(c.CooldownUntil)
	default:
		return false
	}
}
