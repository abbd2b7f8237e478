// Package gateway abstracts the external model endpoint behind a small
// request/response contract so pipeline stages can be tested with stubs.
package gateway

import "context"

// Request is one completion request to the model endpoint.
type Request struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
	MaxTokens    int64
}

// Usage is the token accounting reported for one request.
type Usage struct {
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	Cost             float64 `json:"cost"`
}

// Response is the generated text plus usage accounting.
type Response struct {
	Content string `json:"content"`
	Model   string `json:"model"`
	Usage   Usage  `json:"usage"`
}

// Gateway sends prompts to a remote completion endpoint. Implementations
// must return an error (never panic) on transport or auth failure; callers
// decide whether to degrade or propagate.
type Gateway interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}
