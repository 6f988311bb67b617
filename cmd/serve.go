package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/doc-translator/internal/config"
	"github.com/MimeLyc/doc-translator/internal/httpapi"
	"github.com/MimeLyc/doc-translator/internal/job"
	"github.com/MimeLyc/doc-translator/internal/persistence"
	"github.com/MimeLyc/doc-translator/pkg/log"
)

var (
	serveAddr    string
	serveWorkers int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web API",
	Long: `Serve the job API. Each submitted job runs in an isolated worker
process; status and log polling read persisted state and never block
on translation work.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := serveAddr
		if addr == "" {
			addr = settings.Server.HTTPAddr
		}
		dataDir := settings.Server.DataDir

		store, err := persistence.NewSQLiteStore(settings.Server.DBPath())
		if err != nil {
			return err
		}
		defer store.Close()

		queue := job.NewQueue(serveWorkers, store)
		queue.Start(workerExecutor(dataDir, queue))
		defer queue.Stop()

		settingsStore, err := runtimeSettingsStore(dataDir)
		if err != nil {
			return err
		}

		server := httpapi.NewServer(queue, dataDir,
			httpapi.WithRuntimeSettingsStore(settingsStore),
			httpapi.WithRuntimeSettingsApplier(func(next config.RuntimeSettings) error {
				config.WithRuntimeSettings(next)(settings)
				return nil
			}),
		)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			log.Info("Listening on %s", addr)
			errCh <- server.ListenAndServe(addr)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		}
	},
}

// workerExecutor spawns one worker process per job and mirrors its
// persisted state back into the queue while it runs.
func workerExecutor(dataDir string, queue *job.Queue) job.Executor {
	return func(ctx context.Context, j *job.Job) (job.Status, error) {
		statePath := job.StatePath(dataDir, j.ID)
		j.LogPath = job.LogPath(dataDir, j.ID)
		if err := job.WriteState(statePath, j); err != nil {
			return job.StatusFailed, err
		}

		self, err := os.Executable()
		if err != nil {
			return job.StatusFailed, fmt.Errorf("locate executable: %w", err)
		}

		logFile, err := os.OpenFile(j.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return job.StatusFailed, fmt.Errorf("open job log: %w", err)
		}
		defer logFile.Close()

		proc := exec.CommandContext(ctx, self, "worker", "--job-id", j.ID, "--data-dir", dataDir)
		proc.Stdout = logFile
		proc.Stderr = logFile
		proc.Env = os.Environ()
		stopGracefully(proc)

		if err := proc.Start(); err != nil {
			return job.StatusFailed, fmt.Errorf("start worker: %w", err)
		}

		done := make(chan error, 1)
		go func() { done <- proc.Wait() }()

		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		var waitErr error
	loop:
		for {
			select {
			case waitErr = <-done:
				break loop
			case <-ticker.C:
				if state, rerr := job.ReadState(statePath); rerr == nil {
					queue.UpdateProgress(j.ID, state.Progress)
				}
			}
		}

		state, rerr := job.ReadState(statePath)
		if rerr == nil && state.Status.Terminal() {
			if state.Error != "" {
				return state.Status, errors.New(state.Error)
			}
			return state.Status, nil
		}
		if ctx.Err() != nil {
			return job.StatusCancelled, nil
		}
		if waitErr != nil {
			return job.StatusFailed, fmt.Errorf("worker exited: %w", waitErr)
		}
		return job.StatusFailed, fmt.Errorf("worker left no terminal state")
	}
}

// stopGracefully makes context cancellation deliver SIGTERM so the
// worker can finish in-flight batches, write its terminal state and
// release the run lock. A worker that ignores the signal is killed
// after the wait delay.
func stopGracefully(proc *exec.Cmd) {
	proc.Cancel = func() error {
		return proc.Process.Signal(syscall.SIGTERM)
	}
	proc.WaitDelay = 30 * time.Second
}

// runtimeSettingsStore always yields a usable store: a fresh install
// starts from the (possibly incomplete) environment snapshot and the
// first valid update through the API creates the settings file.
func runtimeSettingsStore(dataDir string) (*config.RuntimeSettingsStore, error) {
	path := config.RuntimeSettingsFilePath(dataDir)
	initial := settings.RuntimeSettings("")

	if persisted, err := config.LoadRuntimeSettingsFile(path); err == nil {
		config.WithRuntimeSettings(persisted)(settings)
		initial = persisted
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	return config.NewRuntimeSettingsStore(path, initial)
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from HTTP_ADDR)")
	serveCmd.Flags().IntVar(&serveWorkers, "workers", 2, "concurrent jobs")
	rootCmd.AddCommand(serveCmd)
}
