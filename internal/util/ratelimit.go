package util

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket refilled at a fixed rate, holding at most
// burst tokens.
type RateLimiter struct {
	lim *rate.Limiter
	now func() time.Time
}

// NewRateLimiter allows perMinute operations per minute with bursts of up to
// burst operations (minimum 1). A non-positive perMinute disables limiting.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Limit(float64(perMinute) / 60.0)
	}
	return &RateLimiter{lim: rate.NewLimiter(limit, burst), now: time.Now}
}

// Allow takes a token if one is available without waiting.
func (rl *RateLimiter) Allow() bool {
	if rl == nil {
		return true
	}
	return rl.lim.AllowN(rl.now(), 1)
}

// Wait blocks until a token is available or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl == nil {
		return nil
	}
	return rl.lim.Wait(ctx)
}
