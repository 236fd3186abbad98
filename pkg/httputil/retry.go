package httputil

import (
	"context"
	"errors"
	"time"
)

// DefaultDelay is the wait before the first retry of a [Policy] without an
// explicit delay. It doubles after each failed attempt.
const DefaultDelay = time.Second

// RetryableError wraps an error to indicate it should trigger a retry.
// Wrap transient failures (network timeouts, 5xx responses) with this type
// so that [Policy.Do] knows to attempt the operation again.
type RetryableError struct{ Err error }

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable wraps err as a [RetryableError]. It returns nil for a nil err.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable reports whether err carries a [RetryableError].
func IsRetryable(err error) bool {
	return errors.As(err, new(*RetryableError))
}

// Policy describes how often a request is attempted.
//
// The zero value makes a single attempt, which is what a repack run uses
// unless retries are configured: a failed download is fatal, not retried.
type Policy struct {
	Attempts int           // Total attempts including the first (<= 1: no retry)
	Delay    time.Duration // Initial backoff (default: DefaultDelay)

	// OnRetry is called before sleeping for the next attempt (optional).
	OnRetry func(attempt int, err error)
}

// Do executes fn up to p.Attempts times with exponential backoff.
// It only retries errors wrapped with [RetryableError]; other errors are
// returned immediately. Returns the last error if all attempts fail, or
// ctx.Err() if cancelled while waiting.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	attempts := max(p.Attempts, 1)
	delay := p.Delay
	if delay <= 0 {
		delay = DefaultDelay
	}
	var lastErr error

	for i := range attempts {
		if err := fn(); err == nil {
			return nil
		} else if lastErr = err; !IsRetryable(err) {
			return err
		}

		if i < attempts-1 {
			if p.OnRetry != nil {
				p.OnRetry(i+1, lastErr)
			}
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
