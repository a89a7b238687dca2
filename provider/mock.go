package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/capmesh/core"
)

// MockAdapter is a lightweight in-memory adapter useful for tests &
// examples. Canned responses and failures are keyed by prompt; unknown
// prompts echo a deterministic placeholder.
type MockAdapter struct {
	mu        sync.Mutex
	info      core.ProviderInfo
	responses map[string]string
	failures  map[string]error
	calls     int
}

// NewMockAdapter constructs a MockAdapter that pretends to require a
// credential, matching the shape of a real vendor adapter.
func NewMockAdapter(id string) *MockAdapter {
	return &MockAdapter{
		info:      core.ProviderInfo{ID: id, RequiresCredential: true},
		responses: make(map[string]string),
		failures:  make(map[string]error),
	}
}

// AddResponse registers a deterministic canned completion for a prompt.
func (m *MockAdapter) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// AddFailure registers an error returned for a prompt instead of a result.
func (m *MockAdapter) AddFailure(prompt string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[prompt] = err
}

// Calls returns how many times Invoke has been entered.
func (m *MockAdapter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Invoke implements core.ProviderAdapter.
func (m *MockAdapter) Invoke(ctx context.Context, _ string, req core.ProviderRequest) (*core.ProviderResult, error) {
	m.mu.Lock()
	m.calls++
	err, failed := m.failures[req.Prompt]
	content, ok := m.responses[req.Prompt]
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if failed {
		return nil, err
	}
	if !ok {
		content = fmt.Sprintf("Mock response to: %s", req.Prompt)
	}
	return &core.ProviderResult{Content: content, Model: "mock"}, nil
}

// Info implements core.ProviderAdapter.
func (m *MockAdapter) Info() core.ProviderInfo { return m.info }
