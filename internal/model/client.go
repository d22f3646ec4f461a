package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Image is an inline image sent alongside a prompt.
type Image struct {
	MIMEType string
	Data     []byte
}

// PNG wraps encoded PNG bytes.
func PNG(data []byte) Image {
	return Image{MIMEType: "image/png", Data: data}
}

// Client sends one prompt plus one image to a multimodal model and returns
// its text reply. Implementations make a single round trip; WithRetry adds
// retries on top.
type Client interface {
	Generate(ctx context.Context, prompt string, img Image) (string, error)
	ModelID() string
}

var (
	ErrMissingAPIKey = errors.New("model API key is required")
	ErrEmptyResponse = errors.New("empty response from model")
)

const (
	ProviderGemini = "gemini"
	ProviderClaude = "claude"
	ProviderOpenAI = "openai"
)

// Config selects and tunes the provider. The API key is not part of it:
// it comes from the user at runtime.
type Config struct {
	Provider  string
	Model     string
	MaxTokens int // 0 sends no limit where the API allows it

	// Optional endpoint overrides for compatible gateways.
	OpenAIBaseURL string
	ClaudeBaseURL string
	GeminiBaseURL string
}

// New builds the configured provider client for apiKey.
func New(ctx context.Context, cfg Config, apiKey string) (Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	switch cfg.Provider {
	case ProviderGemini, "":
		return NewGeminiClient(ctx, apiKey, cfg.Model, cfg.MaxTokens, cfg.GeminiBaseURL)
	case ProviderClaude:
		c := NewClaudeClient(apiKey, cfg.Model, cfg.MaxTokens)
		if cfg.ClaudeBaseURL != "" {
			c.baseURL = strings.TrimRight(cfg.ClaudeBaseURL, "/")
		}
		return c, nil
	case ProviderOpenAI:
		return NewOpenAIClient(apiKey, cfg.Model, cfg.MaxTokens, cfg.OpenAIBaseURL), nil
	default:
		return nil, fmt.Errorf("unknown model provider: %q", cfg.Provider)
	}
}

// Release closes idle resources held by c or by the client it wraps.
func Release(c Client) {
	for c != nil {
		if closer, ok := c.(interface{ Close() }); ok {
			closer.Close()
			return
		}
		w, ok := c.(interface{ Unwrap() Client })
		if !ok {
			return
		}
		c = w.Unwrap()
	}
}

// APIError is a non-success reply from a provider endpoint.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api status %d: %s", e.Provider, e.StatusCode, truncate(e.Message, 200))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
