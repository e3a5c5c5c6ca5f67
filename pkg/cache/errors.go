package cache

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for fetch and cache operations.
var (
	// ErrNotFound is returned when a requested source does not exist (HTTP 404, missing object).
	ErrNotFound = errors.New("not found")

	// ErrNetwork is returned for transport failures (timeouts, connection errors, 5xx responses).
	ErrNetwork = errors.New("network error")
)

// RetryableError wraps an error to indicate it should trigger a retry.
type RetryableError struct{ Err error }

// Retryable wraps an error as a RetryableError.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// Error returns the error message of the wrapped error.
func (e *RetryableError) Error() string { return e.Err.Error() }

// Unwrap returns the wrapped error.
func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryable checks if an error is wrapped with RetryableError.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// Backoff describes an exponential retry schedule.
type Backoff struct {
	Attempts int           // total calls, including the first
	Delay    time.Duration // wait before the second call; doubles after each retry
}

// DefaultBackoff is three attempts starting at one second.
var DefaultBackoff = Backoff{Attempts: 3, Delay: time.Second}

// Retry calls fn until it succeeds, returns a non-retryable error, or the
// attempts are exhausted. Only errors wrapped with Retryable trigger retries.
func (b Backoff) Retry(ctx context.Context, fn func() error) error {
	attempts := b.Attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := b.Delay
	var lastErr error

	for i := 0; i < attempts; i++ {
		if err := fn(); err == nil {
			return nil
		} else if lastErr = err; !IsRetryable(err) {
			return err
		}

		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}
	}
	return lastErr
}

// RetryWithBackoff retries fn with DefaultBackoff.
func RetryWithBackoff(ctx context.Context, fn func() error) error {
	return DefaultBackoff.Retry(ctx, fn)
}
