package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/capmesh/core"
	"github.com/hupe1980/capmesh/executor"
	"github.com/hupe1980/capmesh/keypool"
	"github.com/hupe1980/capmesh/provider"
	"github.com/hupe1980/capmesh/statusbus"
	"github.com/hupe1980/capmesh/stream"
)

type fixture struct {
	server *Server
	pool   *keypool.Manager
	bus    *statusbus.Bus
	mock   *provider.MockAdapter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	pool := keypool.New()
	pool.AddSecret("mock", "sk-test", "team-a")
	bus := statusbus.New()

	mock := provider.NewMockAdapter("mock")
	fallback := provider.NewFunc("fallback", func(_ context.Context, _ core.ProviderRequest) (*core.ProviderResult, error) {
		return &core.ProviderResult{Content: "computed", Model: "rule-based"}, nil
	})

	exec := executor.New(pool, map[string]core.ProviderAdapter{
		"mock":     mock,
		"fallback": fallback,
	})
	bridge := stream.New(bus)

	handlers := []core.Handler{
		{ID: "mock-primary", ProviderID: "mock", Capabilities: []string{"summarize"}, Priority: 1},
		{ID: "algorithmic", ProviderID: "fallback", Capabilities: []string{"summarize", "word-count"}, Priority: 99},
	}

	return &fixture{
		server: New(pool, bus, exec, bridge, handlers),
		pool:   pool,
		bus:    bus,
		mock:   mock,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.server.Engine().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestCreateSession(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Regexp(t, `^session_\d+_[0-9a-z]+$`, decode(t, rec)["session_id"])
}

func TestRunCapability_Success(t *testing.T) {
	f := newFixture(t)
	f.mock.AddResponse("summarize this", "a summary")

	rec := f.do(t, http.MethodPost, "/api/v1/capability", map[string]any{
		"session_id": "session_1_abc",
		"capability": "summarize",
		"prompt":     "summarize this",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "session_1_abc", body["session_id"])
	assert.Equal(t, SourceAI, body["source"])

	outcome := body["outcome"].(map[string]any)
	assert.Equal(t, true, outcome["success"])
	assert.Equal(t, "a summary", outcome["text"])
	assert.Equal(t, "mock-primary", outcome["handler_used"])

	// The tracker drove the session history from start to completion.
	history := f.bus.History("session_1_abc")
	require.NotEmpty(t, history)
	assert.Equal(t, core.EventStart, history[0].Type)
	assert.Equal(t, core.EventComplete, history[len(history)-1].Type)
}

func TestRunCapability_AlgorithmicFallbackSource(t *testing.T) {
	f := newFixture(t)

	// Only the credential-free handler services this capability.
	rec := f.do(t, http.MethodPost, "/api/v1/capability", map[string]any{
		"capability": "word-count",
		"prompt":     "count me",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, SourceAlgorithmic, body["source"])
	outcome := body["outcome"].(map[string]any)
	assert.Equal(t, "computed", outcome["text"])
}

func TestRunCapability_GeneratesSessionID(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/capability", map[string]any{
		"capability": "summarize",
		"prompt":     "anything",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Regexp(t, `^session_`, decode(t, rec)["session_id"])
}

func TestRunCapability_Validation(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/capability", map[string]any{
		"capability": "summarize",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunCapability_FailureMarksSessionFailed(t *testing.T) {
	f := newFixture(t)

	// No handler services this capability at all.
	rec := f.do(t, http.MethodPost, "/api/v1/capability", map[string]any{
		"session_id": "session_2_def",
		"capability": "translate",
		"prompt":     "bonjour",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Empty(t, body["source"])
	outcome := body["outcome"].(map[string]any)
	assert.Equal(t, false, outcome["success"])

	history := f.bus.History("session_2_def")
	require.NotEmpty(t, history)
	assert.Equal(t, core.EventError, history[len(history)-1].Type)
}

func TestKeys_SnapshotNeverLeaksSecrets(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/keys", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "sk-test")
	assert.Contains(t, rec.Body.String(), "team-a")
}

func TestKeys_Add(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/keys", map[string]any{
		"provider": "mock",
		"secret":   "sk-new",
		"owner":    "team-b",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotEmpty(t, decode(t, rec)["credential_id"])
	assert.Len(t, f.pool.Snapshot(), 2)

	rec = f.do(t, http.MethodPost, "/api/v1/keys", map[string]any{"provider": "mock"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteSession(t *testing.T) {
	f := newFixture(t)
	f.bus.Emit("session_3_ghi", core.NewStartEvent("session_3_ghi", "a1", "work", ""))

	rec := f.do(t, http.MethodDelete, "/api/v1/sessions/session_3_ghi", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, f.bus.History("session_3_ghi"))
}

func TestStreamStatus_RequiresSessionID(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/status/stream", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
