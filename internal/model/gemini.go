package model

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiClient implements Client using the Google Gen AI SDK.
type GeminiClient struct {
	client    *genai.Client
	model     string
	maxTokens int
}

// NewGeminiClient creates a Gemini API client. baseURL is optional.
func NewGeminiClient(ctx context.Context, apiKey, model string, maxTokens int, baseURL string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiClient{client: client, model: model, maxTokens: maxTokens}, nil
}

func (g *GeminiClient) Generate(ctx context.Context, prompt string, img Image) (string, error) {
	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{Text: prompt},
			{InlineData: &genai.Blob{MIMEType: img.MIMEType, Data: img.Data}},
		},
	}}
	// Thinking tokens count against MaxOutputTokens, so it is only sent when
	// configured.
	config := &genai.GenerateContentConfig{}
	if g.maxTokens > 0 {
		config.MaxOutputTokens = int32(g.maxTokens)
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", mapGeminiError(err)
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (g *GeminiClient) ModelID() string {
	return g.model
}

// The SDK has returned APIError both by value and by pointer across releases.
func mapGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &APIError{Provider: "gemini", StatusCode: apiErr.Code, Message: apiErr.Message}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return &APIError{Provider: "gemini", StatusCode: apiErrPtr.Code, Message: apiErrPtr.Message}
	}
	return fmt.Errorf("gemini generate: %w", err)
}
