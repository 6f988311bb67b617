package runlock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// LockFileName is the marker file created inside an output directory.
const LockFileName = ".run.lock"

// ErrConflict is returned when a live lock already guards the output
// directory and force was not requested.
var ErrConflict = errors.New("run lock conflict")

// Record is the persisted lock marker. At most one active record
// exists per output path.
type Record struct {
	OutputPath string    `json:"output_path"`
	Owner      string    `json:"owner"`
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// Lock guards one output directory against concurrent runs.
type Lock struct {
	path   string
	record Record
}

// Acquire takes the run lock for outputDir. If a lock record already
// exists and force is false, it fails with ErrConflict; the error
// notes whether the recorded owner process still looks alive, as a
// diagnostic only — a stale record is never removed automatically.
// With force, the lock is overwritten and ownership taken.
func Acquire(outputDir, owner string, force bool) (*Lock, error) {
	lockPath := filepath.Join(outputDir, LockFileName)

	if existing, err := read(lockPath); err == nil {
		if !force {
			liveness := "owner process not running, likely stale"
			if pidAlive(existing.PID) {
				liveness = "owner process is still running"
			}
			return nil, fmt.Errorf("%w: %s held by pid %d since %s (%s); use force-run to override",
				ErrConflict, lockPath, existing.PID, existing.AcquiredAt.Format(time.RFC3339), liveness)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read run lock %s: %w", lockPath, err)
	}

	record := Record{
		OutputPath: outputDir,
		Owner:      owner,
		PID:        os.Getpid(),
		AcquiredAt: time.Now().UTC(),
	}
	if err := write(lockPath, record); err != nil {
		return nil, err
	}
	return &Lock{path: lockPath, record: record}, nil
}

// Release removes the lock record. It is safe to call on every exit
// path; a record already removed is not an error.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release run lock %s: %w", l.path, err)
	}
	return nil
}

// Record returns a copy of the persisted marker.
func (l *Lock) Record() Record {
	return l.record
}

// Inspect reads the lock record for an output directory without
// acquiring it. Returns os.ErrNotExist when no lock is held.
func Inspect(outputDir string) (Record, error) {
	return read(filepath.Join(outputDir, LockFileName))
}

func read(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, err
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return Record{}, fmt.Errorf("parse lock record: %w", err)
	}
	return record, nil
}

func write(path string, record Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal lock record: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write run lock %s: %w", path, err)
	}
	return nil
}

// pidAlive probes whether a process exists. Advisory: used only to
// enrich conflict diagnostics.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
