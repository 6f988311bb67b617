package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/doc-translator/internal/config"
	"github.com/MimeLyc/doc-translator/internal/job"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleJob(id string) *job.Job {
	now := time.Now().UTC().Truncate(time.Second)
	return &job.Job{
		ID:        id,
		Source:    "api",
		DedupeKey: "doc.md->/out",
		Config: config.Job{
			Inputs:     []string{"doc.md"},
			TargetLang: "zh",
			OutputDir:  "/out",
			BatchSize:  20,
		},
		Status:    job.StatusQueued,
		Progress:  job.Progress{Done: 2, Total: 10},
		PID:       4321,
		LogPath:   "/data/jobs/" + id + "/job.log",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestSQLiteStore_UpsertAndLoadJobs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	original := sampleJob("job-1")
	require.NoError(t, store.UpsertJob(ctx, original))

	loaded, err := store.LoadJobs(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	got := loaded[0]
	assert.Equal(t, original.ID, got.ID)
	assert.Equal(t, original.Source, got.Source)
	assert.Equal(t, original.DedupeKey, got.DedupeKey)
	assert.Equal(t, job.StatusQueued, got.Status)
	assert.Equal(t, original.Progress, got.Progress)
	assert.Equal(t, original.PID, got.PID)
	assert.Equal(t, []string{"doc.md"}, got.Config.Inputs)
	assert.Equal(t, "zh", got.Config.TargetLang)

	// Upsert replaces the existing row.
	original.Status = job.StatusCompleted
	original.Progress = job.Progress{Done: 10, Total: 10}
	require.NoError(t, store.UpsertJob(ctx, original))

	loaded, err = store.LoadJobs(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, job.StatusCompleted, loaded[0].Status)
	assert.Equal(t, 10, loaded[0].Progress.Done)
}

func TestSQLiteStore_UpsertNilJob(t *testing.T) {
	store := newTestStore(t)
	require.Error(t, store.UpsertJob(context.Background(), nil))
}

func TestSQLiteStore_DeleteJob(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertJob(ctx, sampleJob("job-1")))
	require.NoError(t, store.DeleteJob(ctx, "job-1"))
	require.NoError(t, store.DeleteJob(ctx, "job-1"))

	loaded, err := store.LoadJobs(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestSQLiteStore_BatchCheckpoints(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveBatchCheckpoint(ctx, "job-1", "a.md", 0, []string{"x", "y"}))
	require.NoError(t, store.SaveBatchCheckpoint(ctx, "job-1", "a.md", 1, []string{"z"}))
	require.NoError(t, store.SaveBatchCheckpoint(ctx, "job-1", "b.md", 0, []string{"other file"}))
	require.NoError(t, store.SaveBatchCheckpoint(ctx, "job-2", "a.md", 0, []string{"other job"}))

	checkpoints, err := store.LoadBatchCheckpoints(ctx, "job-1", "a.md")
	require.NoError(t, err)
	require.Len(t, checkpoints, 2)
	assert.Equal(t, 0, checkpoints[0].BatchIndex)
	assert.Equal(t, []string{"x", "y"}, checkpoints[0].Translated)
	assert.Equal(t, []string{"z"}, checkpoints[1].Translated)

	// Saving the same key again overwrites.
	require.NoError(t, store.SaveBatchCheckpoint(ctx, "job-1", "a.md", 0, []string{"x2", "y2"}))
	checkpoints, err = store.LoadBatchCheckpoints(ctx, "job-1", "a.md")
	require.NoError(t, err)
	assert.Equal(t, []string{"x2", "y2"}, checkpoints[0].Translated)
}

func TestSQLiteStore_DeleteJobData(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveBatchCheckpoint(ctx, "job-1", "a.md", 0, []string{"x"}))
	require.NoError(t, store.SaveBatchCheckpoint(ctx, "job-2", "a.md", 0, []string{"keep"}))

	require.NoError(t, store.DeleteJobData(ctx, "job-1"))

	gone, err := store.LoadBatchCheckpoints(ctx, "job-1", "a.md")
	require.NoError(t, err)
	assert.Empty(t, gone)

	kept, err := store.LoadBatchCheckpoints(ctx, "job-2", "a.md")
	require.NoError(t, err)
	assert.Len(t, kept, 1)
}

func TestFileCheckpoints_SchedulerView(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveBatchCheckpoint(ctx, "job-1", "a.md", 0, []string{"restored"}))

	view, err := store.Checkpoints(ctx, "job-1", "a.md")
	require.NoError(t, err)

	translated, ok := view.Load(0)
	require.True(t, ok)
	assert.Equal(t, []string{"restored"}, translated)

	_, ok = view.Load(1)
	assert.False(t, ok)

	// A Save through the view lands in the store for the next run.
	require.NoError(t, view.Save(ctx, 1, []string{"fresh"}))
	next, err := store.Checkpoints(ctx, "job-1", "a.md")
	require.NoError(t, err)
	translated, ok = next.Load(1)
	require.True(t, ok)
	assert.Equal(t, []string{"fresh"}, translated)
}

func TestSQLiteStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.UpsertJob(context.Background(), sampleJob("job-1")))
	require.NoError(t, store.Close())

	// Migrations are idempotent across reopens.
	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	loaded, err := reopened.LoadJobs(context.Background())
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "job-1", loaded[0].ID)
}

func TestNewSQLiteStore_EmptyPath(t *testing.T) {
	_, err := NewSQLiteStore("  ")
	require.Error(t, err)
}

func TestMigrationVersion(t *testing.T) {
	assert.Equal(t, 1, migrationVersion("001_init.sql"))
	assert.Equal(t, 12, migrationVersion("012_add_index.sql"))
	assert.Equal(t, 0, migrationVersion("init.sql"))
}
