package core

import "context"

// ProviderRequest captures the normalized input handed to a provider adapter
// for one attempt. The executor fills it from a CapabilityRequest; adapters
// translate it into their backend's native request format.
type ProviderRequest struct {
	Prompt         string  `json:"prompt"`
	SystemPrompt   string  `json:"system_prompt,omitempty"`
	Model          string  `json:"model,omitempty"`
	MaxTokens      int64   `json:"max_tokens,omitempty"`
	Temperature    float64 `json:"temperature,omitempty"`
	ResponseFormat string  `json:"response_format,omitempty"`
}

// ProviderResult is the successful payload of one adapter invocation.
type ProviderResult struct {
	Content string `json:"content"`
	Model   string `json:"model,omitempty"`
}

// ProviderInfo contains metadata about a provider adapter implementation.
type ProviderInfo struct {
	ID string `json:"id"`
	// RequiresCredential is false for credential-free handlers such as a
	// deterministic lowest-priority fallback; the executor skips key pool
	// acquisition for those.
	RequiresCredential bool `json:"requires_credential"`
}

// ProviderAdapter is the uniform call contract implemented once per backend
// provider. Adapters are supplied to the executor, never owned by it, and
// must classify failures via ProviderError so retry decisions stay explicit.
//
// Invoke must honor ctx cancellation and deadlines; the secret is passed per
// call so one adapter instance serves an entire rotating credential pool.
type ProviderAdapter interface {
	Invoke(ctx context.Context, secret string, req ProviderRequest) (*ProviderResult, error)

	// Info returns information about the provider adapter implementation.
	Info() ProviderInfo
}
