package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net/http"
	"time"
)

const (
	DefaultMaxRetries = 3
	DefaultBaseWait   = 1 * time.Second
)

// Func represents a unit of work that can be retried.
type Func func() error

type options struct {
	maxRetries int
	baseWait   time.Duration
}

// Option configures a Do call.
type Option func(*options)

// WithMaxRetries overrides the number of attempts (including the first).
func WithMaxRetries(n int) Option {
	return func(o *options) { o.maxRetries = n }
}

// WithBaseWait overrides the base backoff duration, before jitter.
func WithBaseWait(d time.Duration) Option {
	return func(o *options) { o.baseWait = d }
}

// recoverableError marks an error as worth retrying. Errors that don't
// implement this (and don't carry a retryable APIError status) are treated
// as permanent and fail fast.
type recoverableError struct {
	err error
}

func (e *recoverableError) Error() string { return e.err.Error() }
func (e *recoverableError) Unwrap() error { return e.err }

// NewRecoverableError wraps err so that Do will retry it.
func NewRecoverableError(err error) error {
	if err == nil {
		return nil
	}
	return &recoverableError{err: err}
}

// IsRecoverable reports whether err was marked recoverable, or carries an
// APIError status code that ShouldRetry accepts.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	var re *recoverableError
	if errors.As(err, &re) {
		return true
	}
	var apiErr APIError
	if errors.As(err, &apiErr) {
		return ShouldRetry(apiErr.StatusCode())
	}
	return false
}

// Do runs f, retrying with exponential backoff and jitter while the error
// is recoverable and attempts remain.
func Do(ctx context.Context, f Func, opts ...Option) error {
	o := &options{maxRetries: DefaultMaxRetries, baseWait: DefaultBaseWait}
	for _, opt := range opts {
		opt(o)
	}

	var lastErr error
	for attempt := 0; attempt < o.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(float64(o.baseWait) * math.Pow(2, float64(attempt-1)))
			jitter := time.Duration(rand.Float64() * float64(backoff) * 0.25)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff + jitter):
			}
		}

		err := f()
		if err == nil {
			return nil
		}
		lastErr = unwrapRecoverable(err)
		if !IsRecoverable(err) {
			return lastErr
		}
	}
	return lastErr
}

func unwrapRecoverable(err error) error {
	var re *recoverableError
	if errors.As(err, &re) {
		return re.err
	}
	return err
}

// ShouldRetry reports whether an HTTP status code indicates a transient
// failure worth retrying.
func ShouldRetry(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusServiceUnavailable ||
		statusCode == http.StatusGatewayTimeout
}

// APIError is implemented by errors that carry an HTTP status code.
type APIError interface {
	error
	StatusCode() int
}
