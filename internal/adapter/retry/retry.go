package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds the attempts made for one external call.
type Policy struct {
	MaxRetries     int           // Retries after the first attempt
	Timeout        time.Duration // Per-attempt timeout, 0 = none
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// Pace, if set, runs before every attempt with the caller's context.
	// Time spent in it does not count against Timeout.
	Pace func(ctx context.Context) error
}

// DefaultPolicy returns a policy with the given retry count and timeout.
func DefaultPolicy(maxRetries int, timeout time.Duration) Policy {
	return Policy{
		MaxRetries:     maxRetries,
		Timeout:        timeout,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
	}
}

// StatusError is a non-2xx response from an HTTP provider.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API returned status %d: %s", e.Code, e.Body)
}

// IsRetryable reports whether err is worth another attempt: timeouts,
// rate limiting and server errors are; auth and other client errors are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return RetryableStatus(se.Code)
	}
	var coder interface{ StatusCode() int }
	if errors.As(err, &coder) {
		return RetryableStatus(coder.StatusCode())
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}

// RetryableStatus classifies an HTTP status code.
func RetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500
}

// Do runs fn until it succeeds, returns a non-retryable error, or the
// policy is exhausted. Each attempt gets its own timeout-bound context.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	eb := backoff.NewExponentialBackOff()
	if p.InitialBackoff > 0 {
		eb.InitialInterval = p.InitialBackoff
	}
	if p.MaxBackoff > 0 {
		eb.MaxInterval = p.MaxBackoff
	}
	eb.MaxElapsedTime = 0

	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(retries)), ctx)

	op := func() error {
		if p.Pace != nil {
			if err := p.Pace(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}
		attemptCtx := ctx
		if p.Timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, p.Timeout)
			defer cancel()
		}
		err := fn(attemptCtx)
		if err != nil && !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	return backoff.Retry(op, b)
}
