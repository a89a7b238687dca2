// Package anthropic provides a core.ProviderAdapter over the Anthropic
// Messages API. The API key is taken per call so one adapter instance
// serves every credential in the pool.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hupe1980/capmesh/core"
	"github.com/hupe1980/capmesh/provider"
)

// ProviderID is the pool/provider identifier handlers bind to.
const ProviderID = "anthropic"

// Options configure the Anthropic adapter (model id, temperature, max
// tokens). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	// BaseURL overrides the API endpoint, e.g. for proxies or test servers.
	BaseURL string
}

// Adapter wraps the Anthropic Messages API behind core.ProviderAdapter.
type Adapter struct {
	opts Options
}

// New creates a new Anthropic adapter.
func New(optFns ...func(o *Options)) *Adapter {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Adapter{opts: opts}
}

// Invoke implements core.ProviderAdapter.
func (a *Adapter) Invoke(ctx context.Context, secret string, req core.ProviderRequest) (*core.ProviderResult, error) {
	// SDK-internal retries are disabled: the executor owns the retry and
	// backoff policy, and a silently retried 429 would hide the rate-limit
	// signal from the key pool.
	clientOpts := []option.RequestOption{option.WithAPIKey(secret), option.WithMaxRetries(0)}
	if a.opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(a.opts.BaseURL))
	}
	client := anthropic.NewClient(clientOpts...)

	params := a.buildParams(req)

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return nil, classify(err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.AsText().Text)
		}
	}
	if text.Len() == 0 {
		return nil, core.NewInvalidResponseError(fmt.Errorf("anthropic returned no text content"))
	}

	return &core.ProviderResult{
		Content: text.String(),
		Model:   string(resp.Model),
	}, nil
}

// Info implements core.ProviderAdapter.
func (a *Adapter) Info() core.ProviderInfo {
	return core.ProviderInfo{ID: ProviderID, RequiresCredential: true}
}

// buildParams assembles the request, applying per-request overrides on top
// of the adapter defaults. The Messages API has no response-format switch,
// so JSON output is requested through the system prompt instead.
func (a *Adapter) buildParams(req core.ProviderRequest) anthropic.MessageNewParams {
	model := a.opts.Model
	if req.Model != "" {
		model = anthropic.Model(req.Model)
	}
	maxTokens := a.opts.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	temperature := a.opts.Temperature
	if req.Temperature > 0 {
		temperature = req.Temperature
	}

	system := req.SystemPrompt
	if req.ResponseFormat == core.FormatJSON {
		if system != "" {
			system += "\n\n"
		}
		system += "Respond with a single valid JSON object and nothing else."
	}

	params := anthropic.MessageNewParams{
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	return params
}

// classify maps SDK errors onto the outcome taxonomy using the HTTP status
// of the API error; transport-level failures are transient.
func classify(err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		return provider.ClassifyStatus(apierr.StatusCode, apierr.Response, fmt.Errorf("anthropic api error: %w", err))
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return core.NewTransientError(fmt.Errorf("anthropic request failed: %w", err))
}
