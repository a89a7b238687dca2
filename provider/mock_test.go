package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/capmesh/core"
)

func TestMockAdapter(t *testing.T) {
	mock := NewMockAdapter("mock")
	mock.AddResponse("ping", "pong")
	mock.AddFailure("boom", core.NewFatalError(errors.New("rejected")))

	res, err := mock.Invoke(context.Background(), "sk-test", core.ProviderRequest{Prompt: "ping"})
	require.NoError(t, err)
	assert.Equal(t, "pong", res.Content)

	res, err = mock.Invoke(context.Background(), "sk-test", core.ProviderRequest{Prompt: "unknown"})
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: unknown", res.Content)

	_, err = mock.Invoke(context.Background(), "sk-test", core.ProviderRequest{Prompt: "boom"})
	assert.Equal(t, core.OutcomeFatal, core.Classify(err))

	assert.Equal(t, 3, mock.Calls())
	assert.True(t, mock.Info().RequiresCredential)
}

func TestMockAdapter_CancelledContext(t *testing.T) {
	mock := NewMockAdapter("mock")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := mock.Invoke(ctx, "sk-test", core.ProviderRequest{Prompt: "ping"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFunc_CredentialFree(t *testing.T) {
	fallback := NewFunc("fallback", func(_ context.Context, req core.ProviderRequest) (*core.ProviderResult, error) {
		return &core.ProviderResult{Content: "computed: " + req.Prompt, Model: "rule-based"}, nil
	})

	info := fallback.Info()
	assert.Equal(t, "fallback", info.ID)
	assert.False(t, info.RequiresCredential)

	res, err := fallback.Invoke(context.Background(), "", core.ProviderRequest{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "computed: x", res.Content)
}
