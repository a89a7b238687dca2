package core

// Handler is a configured binding of a provider to one or more capabilities,
// with a priority used for fallback ordering (lower priority values are tried
// first). Handlers are static configuration data and immutable during an
// execution.
type Handler struct {
	ID           string   `json:"id"`
	ProviderID   string   `json:"provider_id"`
	Capabilities []string `json:"capabilities"`
	Priority     int      `json:"priority"`
}

// Supports reports whether the handler services the given capability.
func (h Handler) Supports(capability string) bool {
	for _, c := range h.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// ResponseFormat values accepted on a CapabilityRequest.
const (
	// FormatText requests a plain text payload.
	FormatText = "text"
	// FormatJSON requests a JSON payload parsed into StructuredData.
	FormatJSON = "json"
)

// CapabilityRequest describes one abstract unit of work submitted to the
// executor. Created per call; never persisted.
type CapabilityRequest struct {
	Capability   string `json:"capability"`
	Prompt       string `json:"prompt"`
	SystemPrompt string `json:"system_prompt,omitempty"`
	// ResponseFormat selects text (default) or JSON payload handling.
	ResponseFormat string `json:"response_format,omitempty"`
	// InjectedCredential bypasses the key pool for every handler when set.
	// Used by callers that carry their own per-request secret.
	InjectedCredential string `json:"-"`
}

// Attempt records a single handler/credential try inside an execution,
// successful or not.
type Attempt struct {
	HandlerID       string      `json:"handler_id"`
	CredentialOwner string      `json:"credential_owner,omitempty"`
	ErrorKind       OutcomeKind `json:"error_kind,omitempty"`
	Reason          string      `json:"reason,omitempty"`
}

// ExecutionOutcome is the result of one executor invocation: either the first
// handler success, or an aggregated failure describing every attempt made.
type ExecutionOutcome struct {
	Success        bool      `json:"success"`
	Text           string    `json:"text,omitempty"`
	StructuredData any       `json:"structured_data,omitempty"`
	HandlerUsed    string    `json:"handler_used,omitempty"`
	ProviderUsed   string    `json:"provider_used,omitempty"`
	Attempts       []Attempt `json:"attempts,omitempty"`
	Error          string    `json:"error,omitempty"`
	// Cancelled is set when the caller's context aborted the execution.
	Cancelled bool `json:"cancelled,omitempty"`
}
