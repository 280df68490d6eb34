package errors

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Backoff selects how the delay grows between attempts.
type Backoff int

const (
	// BackoffExponential multiplies the delay by Multiplier after each retry.
	BackoffExponential Backoff = iota
	// BackoffLinear waits InitialDelay*attempt before retry number attempt.
	BackoffLinear
)

// RetryConfig configures retry behavior.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts (not including initial attempt).
	MaxRetries int

	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the delay between retries. Zero means no cap.
	MaxDelay time.Duration

	// Multiplier is the exponential growth factor.
	Multiplier float64

	Backoff Backoff

	// Jitter adds randomness to delay to prevent thundering herd.
	Jitter bool
}

// DefaultRetryConfig returns sensible default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     16 * time.Second,
		Multiplier:   2.0,
	}
}

// LinearRetryConfig returns a config that retries maxRetries times, waiting step*attempt.
func LinearRetryConfig(maxRetries int, step time.Duration) RetryConfig {
	return RetryConfig{
		MaxRetries:   maxRetries,
		InitialDelay: step,
		Backoff:      BackoffLinear,
	}
}

// delayFor returns the wait before retry number attempt (1-based).
func (c RetryConfig) delayFor(attempt int) time.Duration {
	var d time.Duration
	switch c.Backoff {
	case BackoffLinear:
		d = c.InitialDelay * time.Duration(attempt)
	default:
		d = c.InitialDelay
		mult := c.Multiplier
		if mult <= 0 {
			mult = 1
		}
		for i := 1; i < attempt; i++ {
			d = time.Duration(float64(d) * mult)
		}
	}
	if c.MaxDelay > 0 && d > c.MaxDelay {
		d = c.MaxDelay
	}
	if c.Jitter {
		d = time.Duration(float64(d) * (0.5 + rand.Float64()*0.5))
	}
	return d
}

// Retry executes fn until it succeeds, MaxRetries is exhausted, or ctx is done.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	_, err := RetryWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// RetryWithResult executes a function that returns a value with retry logic.
func RetryWithResult[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(cfg.delayFor(attempt)):
			}
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err
	}

	return zero, fmt.Errorf("failed after %d retries: %w", cfg.MaxRetries, lastErr)
}
