package util

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
)

// Permanent wraps err so that Retry returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return retry.Unrecoverable(err)
}

// Retry calls fn up to maxAttempts times with exponential backoff starting at
// baseDelay and capped at maxDelay (0 means uncapped). It stops on success,
// on an error wrapped with Permanent (returned unwrapped), or when ctx is
// done.
func Retry(ctx context.Context, maxAttempts int, baseDelay, maxDelay time.Duration, fn func() error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return retry.Do(fn,
		retry.Context(ctx),
		retry.Attempts(uint(maxAttempts)),
		retry.Delay(baseDelay),
		retry.MaxDelay(maxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
}
