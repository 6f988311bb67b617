package ratelimit

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Limiter enforces a requests-per-minute ceiling shared across every
// caller of one run. It is a token bucket refilled at rpm/60 tokens
// per second with capacity rpm, so throughput converges to the
// configured RPM and never exceeds it in any trailing 60-second
// window once the initial bucket is drained.
type Limiter struct {
	rpm     int
	limiter *rate.Limiter
}

// New returns a limiter for the given requests-per-minute budget.
// rpm values below 1 are treated as 1.
func New(rpm int) *Limiter {
	if rpm < 1 {
		rpm = 1
	}
	return &Limiter{
		rpm:     rpm,
		limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm),
	}
}

// Acquire blocks until issuing one more request stays within the RPM
// budget, or until ctx is done. Safe for concurrent callers.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

// RPM returns the configured budget.
func (l *Limiter) RPM() int {
	return l.rpm
}
