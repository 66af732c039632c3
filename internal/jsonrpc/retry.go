package jsonrpc

import (
	"context"
	"log/slog"
	"time"

	mcperrors "github.com/jamesprial/mcp-client/internal/errors"
)

// RetryPolicy controls WithRetry's backoff: sleep doubles from Backoff on
// each attempt, up to MaxRetries retries beyond the first attempt.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

// DefaultRetryPolicy is modest retries with a one-second base backoff.
var DefaultRetryPolicy = RetryPolicy{MaxRetries: 3, Backoff: time.Second}

// WithRetry executes fn, retrying on retryable failures (per
// mcperrors.IsRetryable) up to policy.MaxRetries additional times, sleeping
// policy.Backoff*2^(attempt-1) between attempts. ServerError and a
// latched ErrConnection are never retried. The final failure (retryable or
// not) is returned unchanged.
func WithRetry(ctx context.Context, policy RetryPolicy, logger *slog.Logger, fn func() error) error {
	if logger == nil {
		logger = slog.Default()
	}
	var lastErr error
	for attempt := 1; attempt <= policy.MaxRetries+1; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !mcperrors.IsRetryable(lastErr) {
			return lastErr
		}
		if attempt > policy.MaxRetries {
			break
		}
		sleep := policy.Backoff * time.Duration(1<<uint(attempt-1))
		logger.Debug("retrying after transient failure",
			"attempt", attempt, "sleep", sleep, "error", lastErr)
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}
