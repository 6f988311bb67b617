package runlock

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquire_CreatesLockRecord(t *testing.T) {
	dir := t.TempDir()

	lock, err := Acquire(dir, "job-1", false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = lock.Release() })

	record, err := Inspect(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, record.OutputPath)
	assert.Equal(t, "job-1", record.Owner)
	assert.Equal(t, os.Getpid(), record.PID)
	assert.False(t, record.AcquiredAt.IsZero())
}

func TestAcquire_ConflictWithoutForce(t *testing.T) {
	dir := t.TempDir()

	lock, err := Acquire(dir, "job-1", false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = lock.Release() })

	_, err = Acquire(dir, "job-2", false)
	require.ErrorIs(t, err, ErrConflict)
	// The holder is our own live process, so the diagnostic says so.
	assert.Contains(t, err.Error(), "still running")
	assert.Contains(t, err.Error(), "force-run")
}

func TestAcquire_ForceOverridesConflict(t *testing.T) {
	dir := t.TempDir()

	first, err := Acquire(dir, "job-1", false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = first.Release() })

	second, err := Acquire(dir, "job-2", true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Release() })

	record, err := Inspect(dir)
	require.NoError(t, err)
	assert.Equal(t, "job-2", record.Owner)
}

func TestAcquire_StaleLockStillConflicts(t *testing.T) {
	dir := t.TempDir()

	lock, err := Acquire(dir, "job-1", false)
	require.NoError(t, err)
	record := lock.Record()
	record.PID = 1 << 30
	require.NoError(t, write(filepath.Join(dir, LockFileName), record))

	// A dead owner is reported but never reclaimed automatically.
	_, err = Acquire(dir, "job-2", false)
	require.ErrorIs(t, err, ErrConflict)
	assert.Contains(t, err.Error(), "stale")
}

func TestRelease_Idempotent(t *testing.T) {
	dir := t.TempDir()

	lock, err := Acquire(dir, "job-1", false)
	require.NoError(t, err)

	require.NoError(t, lock.Release())
	require.NoError(t, lock.Release())

	_, err = Inspect(dir)
	assert.ErrorIs(t, err, os.ErrNotExist)

	var nilLock *Lock
	assert.NoError(t, nilLock.Release())
}

func TestAcquire_CreatesMissingOutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "not", "yet", "created")

	lock, err := Acquire(dir, "job-1", false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = lock.Release() })

	_, err = os.Stat(filepath.Join(dir, LockFileName))
	require.NoError(t, err)
}
