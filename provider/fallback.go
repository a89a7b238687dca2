package provider

import (
	"context"

	"github.com/hupe1980/capmesh/core"
)

// Func wraps a plain Go function as a credential-free adapter. It is the
// building block for algorithmic fallbacks: registered behind the AI
// handlers at the lowest priority, it keeps a capability serviceable when
// every credential is cooling down or exhausted.
type Func struct {
	id string
	fn func(ctx context.Context, req core.ProviderRequest) (*core.ProviderResult, error)
}

// NewFunc constructs a Func adapter with the given provider id.
func NewFunc(id string, fn func(ctx context.Context, req core.ProviderRequest) (*core.ProviderResult, error)) *Func {
	return &Func{id: id, fn: fn}
}

// Invoke implements core.ProviderAdapter. The credential argument is
// ignored; the executor never acquires one for credential-free providers.
func (f *Func) Invoke(ctx context.Context, _ string, req core.ProviderRequest) (*core.ProviderResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.fn(ctx, req)
}

// Info implements core.ProviderAdapter.
func (f *Func) Info() core.ProviderInfo {
	return core.ProviderInfo{ID: f.id, RequiresCredential: false}
}
