package model

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"
)

// IsRetryable reports whether err is a transient provider failure: rate
// limiting or a server-side error.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

type retryClient struct {
	inner    Client
	attempts int
	backoff  func(int) time.Duration
	log      *slog.Logger
}

// WithRetry wraps c so retryable failures are attempted up to attempts
// times in total.
func WithRetry(c Client, attempts int, log *slog.Logger) Client {
	if attempts <= 1 {
		return c
	}
	if log == nil {
		log = slog.Default()
	}
	return &retryClient{inner: c, attempts: attempts, backoff: Backoff, log: log}
}

func (r *retryClient) Generate(ctx context.Context, prompt string, img Image) (string, error) {
	var text string
	var lastErr error
	for attempt := range r.attempts {
		text, lastErr = r.inner.Generate(ctx, prompt, img)
		if lastErr == nil || !IsRetryable(lastErr) || attempt == r.attempts-1 {
			break
		}
		r.log.Warn("retryable model error",
			"purpose", PurposeFrom(ctx), "attempt", attempt, "error", lastErr)
		select {
		case <-time.After(r.backoff(attempt)):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return text, lastErr
}

func (r *retryClient) ModelID() string {
	return r.inner.ModelID()
}

func (r *retryClient) Unwrap() Client { return r.inner }
