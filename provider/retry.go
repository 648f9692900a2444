package provider

import (
	"context"
	"errors"
	"time"
)

// BackoffStrategy defines different backoff strategies
type BackoffStrategy int

const (
	FixedBackoff BackoffStrategy = iota
	ExponentialBackoff
	LinearBackoff
)

// RetryPolicy is a bounded retry policy for transient provider errors.
// Permanent errors (auth, invalid_response) are never retried regardless
// of MaxRetries.
type RetryPolicy struct {
	// MaxRetries is the number of attempts after the first one.
	MaxRetries int
	// BaseDelay is the delay unit for the backoff schedule; defaults to 1s.
	BaseDelay time.Duration
	// BackoffStrategy selects the delay growth curve.
	BackoffStrategy BackoffStrategy
}

// DefaultRetryPolicy retries once with a short fixed backoff, matching the
// pipeline's retry-once-then-record analysis policy.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxRetries:      1,
		BaseDelay:       time.Second,
		BackoffStrategy: FixedBackoff,
	}
}

// Do runs fn, retrying transient provider errors per the policy. It returns
// the last error once attempts are exhausted or a permanent error occurs.
func (p *RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	maxAttempts := 1
	if p != nil {
		maxAttempts = p.MaxRetries + 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !Retryable(err) || attempt == maxAttempts-1 {
			break
		}

		delay := p.backoffDelay(attempt)
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return lastErr
}

// Retryable reports whether err is a transient provider error.
func Retryable(err error) bool {
	var provErr *Error
	if errors.As(err, &provErr) {
		return provErr.Transient()
	}
	return false
}

// backoffDelay calculates the delay before the next attempt.
func (p *RetryPolicy) backoffDelay(attempt int) time.Duration {
	baseDelay := p.BaseDelay
	if baseDelay == 0 {
		baseDelay = time.Second
	}

	switch p.BackoffStrategy {
	case FixedBackoff:
		return baseDelay
	case ExponentialBackoff:
		// 1s, 2s, 4s, 8s, ...
		return baseDelay * time.Duration(1<<attempt)
	case LinearBackoff:
		// 1s, 2s, 3s, 4s, ...
		return baseDelay * time.Duration(attempt+1)
	default:
		return baseDelay
	}
}
