package job

import "context"

// Store persists job states for queue restart recovery.
type Store interface {
	LoadJobs(ctx context.Context) ([]*Job, error)
	UpsertJob(ctx context.Context, job *Job) error
	DeleteJob(ctx context.Context, jobID string) error
	// DeleteJobData removes all auxiliary data (batch checkpoints) for a job.
	DeleteJobData(ctx context.Context, jobID string) error
}
