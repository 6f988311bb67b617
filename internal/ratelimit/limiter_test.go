package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_BurstAllowsFullMinuteBudget(t *testing.T) {
	limiter := New(600)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	start := time.Now()
	for i := 0; i < 10; i++ {
		require.NoError(t, limiter.Acquire(ctx))
	}
	// The bucket starts full, so a small burst never waits.
	assert.Less(t, time.Since(start), 200*time.Millisecond)
}

func TestLimiter_ThrottlesPastBurst(t *testing.T) {
	// 1 rpm with burst 1: the second acquire needs a full minute and
	// must fail against a short deadline.
	limiter := New(1)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.NoError(t, limiter.Acquire(ctx))
	err := limiter.Acquire(ctx)
	require.Error(t, err)
}

func TestLimiter_CancelledContext(t *testing.T) {
	limiter := New(1)
	require.NoError(t, limiter.Acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := limiter.Acquire(ctx)
	require.Error(t, err)
}

func TestLimiter_MinimumOneRPM(t *testing.T) {
	limiter := New(0)
	assert.Equal(t, 1, limiter.RPM())
}
