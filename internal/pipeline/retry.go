package pipeline

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/dgallion1/paperdoc/internal/store"
)

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	return store.IsRetryable(err)
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

const MaxRetries = 3

// withRetry runs fn up to MaxRetries times while it fails with a retryable
// error, sleeping backoff(attempt) in between.
func withRetry(ctx context.Context, backoff func(int) time.Duration, fn func() error) error {
	var lastErr error
	for attempt := range MaxRetries {
		lastErr = fn()
		if lastErr == nil || !IsRetryable(lastErr) || attempt == MaxRetries-1 {
			break
		}
		select {
		case <-time.After(backoff(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
