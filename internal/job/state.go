package job

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// State file names inside a job's working directory. The worker
// process owns the writes; the server only reads.
const (
	StateFileName = "state.json"
	LogFileName   = "job.log"
)

// StateDir returns the working directory for a job under dataDir.
func StateDir(dataDir, jobID string) string {
	return filepath.Join(dataDir, "jobs", jobID)
}

// StatePath returns the state file location for a job.
func StatePath(dataDir, jobID string) string {
	return filepath.Join(StateDir(dataDir, jobID), StateFileName)
}

// LogPath returns the log file location for a job.
func LogPath(dataDir, jobID string) string {
	return filepath.Join(StateDir(dataDir, jobID), LogFileName)
}

// WriteState persists the job snapshot with temp-write-then-rename
// semantics, so a concurrent reader never observes a torn document.
func WriteState(path string, job *Job) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create job state directory: %w", err)
	}
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal job state: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write job state: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace job state: %w", err)
	}
	return nil
}

// ReadState loads a job snapshot written by WriteState.
func ReadState(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("parse job state %s: %w", path, err)
	}
	return &job, nil
}
