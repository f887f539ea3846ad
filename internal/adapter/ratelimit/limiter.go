package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Limiter spaces provider calls so that no two acquisitions are closer than
// the configured interval. The first acquisition never waits.
type Limiter struct {
	limiter  *rate.Limiter
	interval time.Duration
}

// NewPerMinute creates a limiter allowing requestsPerMinute calls per
// minute, i.e. one call every 60/requestsPerMinute seconds.
func NewPerMinute(requestsPerMinute float64) (*Limiter, error) {
	if requestsPerMinute <= 0 {
		return nil, fmt.Errorf("requests per minute must be positive, got %v", requestsPerMinute)
	}
	interval := time.Duration(float64(time.Minute) / requestsPerMinute)
	return NewInterval(interval), nil
}

// NewInterval creates a limiter with a fixed minimum spacing and burst 1.
func NewInterval(interval time.Duration) *Limiter {
	return &Limiter{
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		interval: interval,
	}
}

// Acquire blocks until a call may start or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Interval returns the minimum spacing between calls.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}
