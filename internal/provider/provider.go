// Package provider implements chat completion against OpenAI-compatible
// HTTP APIs. The surface is deliberately small: one non-streaming
// completion call powers both one-shot asks and the REPL.
package provider

import "context"

// Sampling defaults applied to ask-style requests.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1000
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation. Content is always serialized,
// even when empty: some API servers reject messages without the field.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request describes one completion call.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Usage reports token accounting for one completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response carries the completed message and its accounting.
type Response struct {
	Content string
	Model   string
	Usage   Usage
}

// Provider completes chat requests.
type Provider interface {
	// Name identifies the provider implementation.
	Name() string

	// Complete sends the request and returns the full response.
	Complete(ctx context.Context, req Request) (*Response, error)
}

// NewAskRequest builds the request shape used by one-shot asks and the
// REPL: an optional system prompt followed by the user prompt, with the
// default sampling parameters.
func NewAskRequest(model, systemPrompt, prompt string) Request {
	msgs := make([]Message, 0, 2)
	if systemPrompt != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: systemPrompt})
	}
	msgs = append(msgs, Message{Role: RoleUser, Content: prompt})
	return Request{
		Model:       model,
		Messages:    msgs,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}
}

// Unavailable returns a Provider whose completions always fail with err.
// Interactive callers use it when no real provider can be constructed,
// deferring the error to the first completion instead of failing startup.
func Unavailable(err error) Provider {
	return unavailableProvider{err: err}
}

type unavailableProvider struct {
	err error
}

func (p unavailableProvider) Name() string { return "unavailable" }

func (p unavailableProvider) Complete(context.Context, Request) (*Response, error) {
	return nil, p.err
}
