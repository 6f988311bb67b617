package job

import (
	"fmt"
	"time"

	"github.com/MimeLyc/doc-translator/internal/config"
)

// Status is the lifecycle state of a translation job. Transitions are
// monotonic: a terminal status never changes again.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	// StatusPartial marks a run that finished but left some units
	// untranslated after exhausting their retry budget.
	StatusPartial   Status = "completed_with_failures"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusPartial, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next is legal.
func (s Status) CanTransition(next Status) bool {
	if s == next {
		return false
	}
	switch s {
	case StatusQueued:
		return next == StatusRunning || next == StatusCancelled
	case StatusRunning:
		return next.Terminal()
	}
	return false
}

// EnqueueRequest asks the queue for a new job.
type EnqueueRequest struct {
	Source    string
	DedupeKey string
	Config    config.Job
}

// Progress tracks settled units across all files of a job.
type Progress struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

// Job is one translation run tracked by the queue.
type Job struct {
	ID        string     `json:"id"`
	Source    string     `json:"source"`
	DedupeKey string     `json:"dedupe_key,omitempty"`
	Config    config.Job `json:"config"`
	Status    Status     `json:"status"`
	Progress  Progress   `json:"progress"`
	Error     string     `json:"error,omitempty"`
	// PID is set while a process-isolated worker owns the job.
	PID        int       `json:"pid,omitempty"`
	ReportPath string    `json:"report_path,omitempty"`
	LogPath    string    `json:"log_path,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// transition mutates the status after checking legality.
func (j *Job) transition(next Status) error {
	if !j.Status.CanTransition(next) {
		return fmt.Errorf("illegal job transition %s -> %s", j.Status, next)
	}
	j.Status = next
	j.UpdatedAt = time.Now()
	return nil
}
