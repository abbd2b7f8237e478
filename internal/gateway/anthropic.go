package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/time/rate"
)

// Rough blended $/1M-token figures for cost accounting. Accounting only,
// not billing.
const (
	inputCostPerMTok  = 1.00
	outputCostPerMTok = 5.00
)

// AnthropicGateway calls the Anthropic Messages API. Outbound requests are
// paced with a client-side limiter so a folder-sized ingest does not trip
// provider rate limits.
type AnthropicGateway struct {
	client  *anthropic.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewAnthropicGateway creates a gateway backed by the Anthropic API,
// allowing up to requestsPerMinute outbound calls.
func NewAnthropicGateway(apiKey string, requestsPerMinute int, logger *slog.Logger) *AnthropicGateway {
	if logger == nil {
		logger = slog.Default()
	}
	if requestsPerMinute <= 0 {
		requestsPerMinute = 50
	}
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicGateway{
		client:  &c,
		limiter: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), 1),
		logger:  logger,
	}
}

// Generate sends the request and returns the first text block of the
// response with token usage.
func (g *AnthropicGateway) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("gateway: waiting for rate limiter: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: req.MaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.UserPrompt)),
		},
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	resp, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("gateway: calling Claude API: %w", err)
	}

	var content string
	for i := range resp.Content {
		if resp.Content[i].Type == "text" {
			content = resp.Content[i].Text
			break
		}
	}
	if content == "" {
		return nil, fmt.Errorf("gateway: empty response from Claude")
	}

	usage := Usage{
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
	}
	usage.Cost = float64(usage.PromptTokens)/1e6*inputCostPerMTok +
		float64(usage.CompletionTokens)/1e6*outputCostPerMTok

	g.logger.Debug("gateway response",
		"model", resp.Model,
		"prompt_tokens", usage.PromptTokens,
		"completion_tokens", usage.CompletionTokens)

	return &Response{
		Content: content,
		Model:   string(resp.Model),
		Usage:   usage,
	}, nil
}
