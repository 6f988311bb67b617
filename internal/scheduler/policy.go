package scheduler

import (
	"context"
	"math/rand"
	"time"

	"github.com/MimeLyc/doc-translator/internal/provider"
)

// RetryPolicy is the declarative retry contract applied to every
// batch. MaxRetries counts retries after the first attempt, so a
// batch is attempted at most MaxRetries+1 times. A failure the
// Retryable predicate rejects fails the batch immediately.
type RetryPolicy struct {
	MaxRetries  int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	Jitter      float64
	Retryable   func(error) bool
}

// DefaultRetryPolicy returns the standard policy: exponential backoff
// from 1s capped at 32s with 20% jitter, retrying transient provider
// errors only.
func DefaultRetryPolicy(maxRetries int) RetryPolicy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return RetryPolicy{
		MaxRetries:  maxRetries,
		BaseBackoff: time.Second,
		MaxBackoff:  32 * time.Second,
		Jitter:      0.2,
		Retryable:   provider.IsTransient,
	}
}

// Relaxed returns a copy of the policy with no retry budget, used by
// the comparator so a weak candidate fails fast.
func (p RetryPolicy) Relaxed() RetryPolicy {
	p.MaxRetries = 0
	return p
}

func (p RetryPolicy) retryable(err error) bool {
	if p.Retryable == nil {
		return provider.IsTransient(err)
	}
	return p.Retryable(err)
}

// backoff returns the sleep before retry number attempt (1-based),
// exponentially grown and jittered.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	base := p.BaseBackoff
	if base <= 0 {
		base = time.Second
	}
	d := base << uint(attempt-1)
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	if p.Jitter > 0 {
		delta := float64(d) * p.Jitter
		d = time.Duration(float64(d) - delta + rand.Float64()*2*delta)
	}
	return d
}

// sleep waits for the backoff duration or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
