// Package openai provides a core.ProviderAdapter over the OpenAI Chat
// Completions API. Unlike a plain SDK client the adapter takes its API key
// per call, so one adapter instance serves every credential in the pool.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/hupe1980/capmesh/core"
	"github.com/hupe1980/capmesh/provider"
)

// ProviderID is the pool/provider identifier handlers bind to.
const ProviderID = "openai"

// Options configure the OpenAI adapter. Fields mirror a minimal subset of
// Chat Completion parameters; extend via functional options without
// breaking callers.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int64
	// BaseURL overrides the API endpoint, e.g. for proxies or test servers.
	BaseURL string
}

// Adapter wraps the OpenAI Chat Completions API behind core.ProviderAdapter.
type Adapter struct {
	opts Options
}

// New creates a new OpenAI adapter.
func New(optFns ...func(o *Options)) *Adapter {
	opts := Options{
		Model:       openai.ChatModelGPT4oMini,
		Temperature: 0.7,
		MaxTokens:   4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Adapter{opts: opts}
}

// Invoke implements core.ProviderAdapter. The client is rebuilt per call
// because the secret rotates between calls; openai-go clients are plain
// option holders, so this costs nothing.
func (a *Adapter) Invoke(ctx context.Context, secret string, req core.ProviderRequest) (*core.ProviderResult, error) {
	// SDK-internal retries are disabled: the executor owns the retry and
	// backoff policy, and a silently retried 429 would hide the rate-limit
	// signal from the key pool.
	clientOpts := []option.RequestOption{option.WithAPIKey(secret), option.WithMaxRetries(0)}
	if a.opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(a.opts.BaseURL))
	}
	client := openai.NewClient(clientOpts...)

	params := a.buildParams(req)

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, core.NewInvalidResponseError(fmt.Errorf("openai returned no choices"))
	}

	return &core.ProviderResult{
		Content: resp.Choices[0].Message.Content,
		Model:   resp.Model,
	}, nil
}

// Info implements core.ProviderAdapter.
func (a *Adapter) Info() core.ProviderInfo {
	return core.ProviderInfo{ID: ProviderID, RequiresCredential: true}
}

// buildParams assembles the request, applying per-request overrides on top
// of the adapter defaults.
func (a *Adapter) buildParams(req core.ProviderRequest) openai.ChatCompletionNewParams {
	model := a.opts.Model
	if req.Model != "" {
		model = req.Model
	}
	maxTokens := a.opts.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	temperature := a.opts.Temperature
	if req.Temperature > 0 {
		temperature = req.Temperature
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               model,
		Temperature:         openai.Float(temperature),
		MaxCompletionTokens: openai.Int(maxTokens),
	}

	if req.ResponseFormat == core.FormatJSON {
		obj := shared.NewResponseFormatJSONObjectParam()
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{OfJSONObject: &obj}
	}

	return params
}

// classify maps SDK errors onto the outcome taxonomy using the HTTP status
// of the API error; transport-level failures are transient.
func classify(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return provider.ClassifyStatus(apierr.StatusCode, apierr.Response, fmt.Errorf("openai api error: %w", err))
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return core.NewTransientError(fmt.Errorf("openai request failed: %w", err))
}
