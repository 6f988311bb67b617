package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_Terminal(t *testing.T) {
	assert.False(t, StatusQueued.Terminal())
	assert.False(t, StatusRunning.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusPartial.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusCancelled.Terminal())
}

func TestStatus_CanTransition(t *testing.T) {
	assert.True(t, StatusQueued.CanTransition(StatusRunning))
	assert.True(t, StatusQueued.CanTransition(StatusCancelled))
	assert.False(t, StatusQueued.CanTransition(StatusCompleted))

	assert.True(t, StatusRunning.CanTransition(StatusCompleted))
	assert.True(t, StatusRunning.CanTransition(StatusPartial))
	assert.True(t, StatusRunning.CanTransition(StatusFailed))
	assert.True(t, StatusRunning.CanTransition(StatusCancelled))
	assert.False(t, StatusRunning.CanTransition(StatusQueued))

	// Terminal statuses never move again.
	for _, s := range []Status{StatusCompleted, StatusPartial, StatusFailed, StatusCancelled} {
		for _, next := range []Status{StatusQueued, StatusRunning, StatusCompleted, StatusFailed} {
			assert.False(t, s.CanTransition(next), "%s -> %s", s, next)
		}
	}

	assert.False(t, StatusRunning.CanTransition(StatusRunning))
}

func TestJob_TransitionRejectsIllegalMove(t *testing.T) {
	j := &Job{Status: StatusCompleted}
	err := j.transition(StatusRunning)
	require.Error(t, err)
	assert.Equal(t, StatusCompleted, j.Status)
}
