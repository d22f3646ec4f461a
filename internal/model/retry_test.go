package model

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limited", &APIError{Provider: "claude", StatusCode: 429}, true},
		{"server error", &APIError{Provider: "openai", StatusCode: 503}, true},
		{"wrapped", fmt.Errorf("grade: %w", &APIError{StatusCode: 500}), true},
		{"unauthorized", &APIError{Provider: "gemini", StatusCode: 401}, false},
		{"empty response", ErrEmptyResponse, false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestBackoff(t *testing.T) {
	for attempt, base := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second} {
		d := Backoff(attempt)
		if d < base || d >= base+base/2 {
			t.Errorf("attempt %d: expected [%s, %s), got %s", attempt, base, base+base/2, d)
		}
	}
	if d := Backoff(10); d < 30*time.Second || d >= 45*time.Second {
		t.Errorf("expected capped backoff, got %s", d)
	}
}

func newTestRetry(inner Client, attempts int) *retryClient {
	c := WithRetry(inner, attempts, slog.New(slog.NewTextHandler(io.Discard, nil))).(*retryClient)
	c.backoff = func(int) time.Duration { return 0 }
	return c
}

func TestWithRetry_RecoversFromTransientError(t *testing.T) {
	mock := NewMockClient(
		MockResponse{Err: &APIError{Provider: "gemini", StatusCode: 429}},
		MockResponse{Text: "שאלה"},
	)
	c := newTestRetry(mock, 3)

	text, err := c.Generate(context.Background(), "p", PNG([]byte{1}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "שאלה" {
		t.Errorf("expected retried text, got %q", text)
	}
	if mock.CallCount() != 2 {
		t.Errorf("expected 2 calls, got %d", mock.CallCount())
	}
}

func TestWithRetry_StopsOnPermanentError(t *testing.T) {
	mock := NewMockClient(
		MockResponse{Err: &APIError{Provider: "claude", StatusCode: 401}},
		MockResponse{Text: "unused"},
	)
	c := newTestRetry(mock, 3)

	_, err := c.Generate(context.Background(), "p", Image{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 401 {
		t.Fatalf("expected 401 APIError, got %v", err)
	}
	if mock.CallCount() != 1 {
		t.Errorf("expected 1 call, got %d", mock.CallCount())
	}
}

func TestWithRetry_GivesUpAfterAttempts(t *testing.T) {
	mock := NewMockClient()
	for range 5 {
		mock.AddResponse(MockResponse{Err: &APIError{StatusCode: 502}})
	}
	c := newTestRetry(mock, 3)

	if _, err := c.Generate(context.Background(), "p", Image{}); !IsRetryable(err) {
		t.Errorf("expected last retryable error, got %v", err)
	}
	if mock.CallCount() != 3 {
		t.Errorf("expected 3 calls, got %d", mock.CallCount())
	}
}

func TestWithRetry_ContextCancelled(t *testing.T) {
	mock := NewMockClient(MockResponse{Err: &APIError{StatusCode: 500}})
	c := newTestRetry(mock, 3)
	c.backoff = func(int) time.Duration { return time.Hour }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Generate(ctx, "p", Image{}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestWithRetry_SingleAttemptIsPassthrough(t *testing.T) {
	mock := NewMockClient()
	if c := WithRetry(mock, 1, nil); c != Client(mock) {
		t.Error("expected the inner client unchanged")
	}
}
