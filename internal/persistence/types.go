package persistence

import "time"

// BatchCheckpoint is one persisted batch result. Checkpoints are
// scoped per job and per input file, keyed by batch index.
type BatchCheckpoint struct {
	JobID      string
	FilePath   string
	BatchIndex int
	Translated []string
	UpdatedAt  time.Time
}
