package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/RyanLisse/opencode-rs/internal/config"
	"github.com/RyanLisse/opencode-rs/internal/errors"
	"github.com/RyanLisse/opencode-rs/internal/logging"
)

// maxErrorBody bounds how much of a failed response is read for the
// error message.
const maxErrorBody = 4096

// OpenAIProvider talks to any OpenAI-compatible chat completion API.
type OpenAIProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *logging.Logger
}

var _ Provider = (*OpenAIProvider)(nil)

// NewOpenAI creates a client for the API at baseURL. An empty apiKey is
// allowed: local inference servers accept unauthenticated requests, and
// the Authorization header is only sent when a key is present.
func NewOpenAI(baseURL, apiKey string, timeout time.Duration, logger *logging.Logger) *OpenAIProvider {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &OpenAIProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.WithComponent("provider"),
	}
}

// FromConfig creates a client from the provider section of cfg, reading
// the API key from the configured environment variable. The key is
// required here: commands that never reach the provider should construct
// it lazily so a missing key only surfaces when a completion is asked for.
func FromConfig(cfg *config.Config, logger *logging.Logger) (*OpenAIProvider, error) {
	key := cfg.Provider.APIKey()
	if key == "" {
		return nil, errors.NewProviderError(
			fmt.Sprintf("no API key found in $%s", cfg.Provider.APIKeyEnv),
			errors.ErrMissingAPIKey,
		).WithProvider("openai")
	}
	return NewOpenAI(cfg.Provider.APIBase, key, cfg.Provider.Timeout(), logger), nil
}

// Name identifies the provider implementation.
func (o *OpenAIProvider) Name() string { return "openai" }

// BaseURL returns the normalized API base the client was built with.
func (o *OpenAIProvider) BaseURL() string { return o.baseURL }

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

// Complete sends one non-streaming completion request and returns the
// first choice. Rate-limit and server-side failures come back as
// retryable ProviderErrors carrying the HTTP status.
func (o *OpenAIProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	if len(req.Messages) == 0 {
		return nil, errors.NewProviderError("request has no messages", errors.ErrInvalidInput).
			WithProvider("openai")
	}

	payload, err := json.Marshal(chatRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      false,
	})
	if err != nil {
		return nil, errors.NewProviderError("failed to encode request", err).WithProvider("openai")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, errors.NewProviderError("failed to build request", err).WithProvider("openai")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	o.logger.Debug("sending completion request", "model", req.Model, "messages", len(req.Messages))

	resp, err := o.client.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		o.logger.Error("completion request failed", "error", err)
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		o.logger.Error("completion request rejected", "status", resp.StatusCode)
		return nil, errors.NewProviderError(parseAPIError(resp.StatusCode, raw), errors.ErrOperationFailed).
			WithProvider("openai").
			WithStatusCode(resp.StatusCode)
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, errors.NewProviderError("failed to decode response", err).WithProvider("openai")
	}
	if len(cr.Choices) == 0 || cr.Choices[0].Message.Content == "" {
		return nil, errors.NewProviderError("no content in response", errors.ErrEmptyResponse).
			WithProvider("openai")
	}

	o.logger.Debug("completion received",
		"model", cr.Model,
		"total_tokens", cr.Usage.TotalTokens,
	)

	return &Response{
		Content: cr.Choices[0].Message.Content,
		Model:   cr.Model,
		Usage:   cr.Usage,
	}, nil
}

// transportError classifies network-level failures into messages a user
// can act on.
func transportError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"):
		return errors.NewProviderError("connection refused (is the service running?)", err).
			WithProvider("openai").WithRetryable(true)
	case strings.Contains(msg, "no such host"):
		return errors.NewProviderError("host not found (check the API base URL)", err).
			WithProvider("openai")
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return errors.NewProviderError("request timed out", errors.ErrTimeout).
			WithProvider("openai").WithRetryable(true)
	default:
		return errors.NewProviderError("request failed", err).WithProvider("openai")
	}
}

// parseAPIError extracts a readable message from an API error response,
// preferring the JSON error envelope, then a friendly status summary,
// then the raw body.
func parseAPIError(statusCode int, body []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &envelope) == nil {
		msg := envelope.Error.Message
		if msg == "" {
			msg = envelope.Message
		}
		if msg != "" {
			return msg
		}
	}

	switch statusCode {
	case http.StatusUnauthorized:
		return "authentication failed (check your API key)"
	case http.StatusForbidden:
		return "access denied (the API key may lack the required permissions)"
	case http.StatusNotFound:
		return "model or endpoint not found"
	case http.StatusTooManyRequests:
		return "rate limited (too many requests)"
	case http.StatusInternalServerError:
		return "internal server error on the provider side"
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return "provider service temporarily unavailable"
	}

	s := string(body)
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return fmt.Sprintf("HTTP %d: %s", statusCode, s)
}
