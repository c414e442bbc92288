package services

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"time"
)

// RetryOptions configures the retry executor for one labeled operation.
type RetryOptions struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// ShouldRetry decides whether a failed attempt is worth repeating.
	// Nil retries every error.
	ShouldRetry func(error) bool
}

// DefaultRetry is the policy used by most pipeline steps.
var DefaultRetry = RetryOptions{
	MaxAttempts: 3,
	BaseDelay:   time.Second,
	MaxDelay:    15 * time.Second,
}

func (o RetryOptions) withDefaults() RetryOptions {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultRetry.MaxAttempts
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = DefaultRetry.BaseDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = DefaultRetry.MaxDelay
	}
	return o
}

// Retry invokes fn up to opts.MaxAttempts times, sleeping with jittered
// exponential backoff between attempts. The error from the final attempt is
// returned as-is: exhausting attempts is not its own error kind, so the
// caller can still inspect the original failure with errors.Is.
func Retry[T any](ctx context.Context, label string, opts RetryOptions, fn func(ctx context.Context) (T, error)) (T, error) {
	opts = opts.withDefaults()

	var zero T
	var lastErr error

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == opts.MaxAttempts || (opts.ShouldRetry != nil && !opts.ShouldRetry(err)) {
			break
		}

		delay := backoffDelay(opts, attempt)
		slog.Warn("retry: attempt failed, backing off",
			"op", label, "attempt", attempt, "max_attempts", opts.MaxAttempts, "delay", delay, "err", err)

		if !sleepCtx(ctx, delay) {
			break
		}
	}

	return zero, lastErr
}

// backoffDelay computes min(base * 2^(attempt-1) * jitter, max) with jitter
// sampled uniformly from [0.85, 1.15].
func backoffDelay(opts RetryOptions, attempt int) time.Duration {
	jitter := 0.85 + rand.Float64()*0.3
	delay := float64(opts.BaseDelay) * math.Pow(2, float64(attempt-1)) * jitter
	if time.Duration(delay) > opts.MaxDelay {
		return opts.MaxDelay
	}
	return time.Duration(delay)
}

// sleepCtx waits for d, returning false if the context ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
