package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/doc-translator/internal/job"
	"github.com/MimeLyc/doc-translator/internal/persistence"
	"github.com/MimeLyc/doc-translator/internal/scheduler"
	"github.com/MimeLyc/doc-translator/pkg/log"
)

var (
	workerJobID   string
	workerDataDir string
)

// The worker command executes exactly one job in an isolated process.
// It communicates solely through the persisted job state and its log
// stream; the serving process never shares memory with it.
var workerCmd = &cobra.Command{
	Use:    "worker",
	Short:  "Run a single queued job (internal)",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if workerJobID == "" {
			return fmt.Errorf("--job-id is required")
		}
		dataDir := workerDataDir
		if dataDir == "" {
			dataDir = settings.Server.DataDir
		}

		statePath := job.StatePath(dataDir, workerJobID)
		j, err := job.ReadState(statePath)
		if err != nil {
			return fmt.Errorf("read job state: %w", err)
		}

		j.Status = job.StatusRunning
		j.PID = os.Getpid()
		j.LogPath = job.LogPath(dataDir, workerJobID)
		j.UpdatedAt = time.Now()
		if err := job.WriteState(statePath, j); err != nil {
			return err
		}

		store, err := persistence.NewSQLiteStore(settings.Server.DBPath())
		if err != nil {
			log.Warn("Checkpoint store unavailable: %v", err)
		} else {
			defer store.Close()
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		runner := &job.Runner{
			Settings: settings,
			Local:    local,
			OnProgress: func(progress job.Progress) {
				j.Progress = progress
				j.UpdatedAt = time.Now()
				if werr := job.WriteState(statePath, j); werr != nil {
					log.Warn("Failed to persist progress: %v", werr)
				}
			},
		}
		if store != nil {
			runner.Checkpoints = func(ctx context.Context, jobID, filePath string) (scheduler.CheckpointStore, error) {
				return store.Checkpoints(ctx, jobID, filePath)
			}
		}

		status, runErr := runner.Run(ctx, j)

		j.Status = status
		j.PID = 0
		j.Error = ""
		if runErr != nil {
			j.Error = runErr.Error()
		}
		j.UpdatedAt = time.Now()
		if err := job.WriteState(statePath, j); err != nil {
			return err
		}

		log.Info("Job %s finished: %s", j.ID, status)
		return nil
	},
}

func init() {
	workerCmd.Flags().StringVar(&workerJobID, "job-id", "", "job identifier")
	workerCmd.Flags().StringVar(&workerDataDir, "data-dir", "", "state directory (default from DATA_DIR)")
	rootCmd.AddCommand(workerCmd)
}
