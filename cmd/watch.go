package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/MimeLyc/doc-translator/internal/config"
	"github.com/MimeLyc/doc-translator/internal/job"
	"github.com/MimeLyc/doc-translator/internal/persistence"
	"github.com/MimeLyc/doc-translator/internal/scheduler"
	"github.com/MimeLyc/doc-translator/internal/watch"
	"github.com/MimeLyc/doc-translator/pkg/log"
)

var (
	watchDir      string
	watchCronExpr string
	watchTarget   string
	watchGlossary string
	watchOutDir   string
	watchWorkers  int
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch a directory and translate new documents",
	Long: `Scan a directory on a cron schedule and enqueue a translation job
for every new or modified document without a translated counterpart.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if watchDir != "" {
			settings.Server.WatchDir = watchDir
		}
		if watchCronExpr != "" {
			settings.Server.CronExpr = watchCronExpr
		}
		if err := settings.Validate(); err != nil {
			return err
		}

		store, err := persistence.NewSQLiteStore(settings.Server.DBPath())
		if err != nil {
			return err
		}
		defer store.Close()

		queue := job.NewQueue(watchWorkers, store)
		queue.Start(func(ctx context.Context, j *job.Job) (job.Status, error) {
			runner := &job.Runner{
				Settings: settings,
				Local:    local,
				Checkpoints: func(ctx context.Context, jobID, filePath string) (scheduler.CheckpointStore, error) {
					return store.Checkpoints(ctx, jobID, filePath)
				},
				OnProgress: func(progress job.Progress) {
					queue.UpdateProgress(j.ID, progress)
				},
			}
			return runner.Run(ctx, j)
		})
		defer queue.Stop()

		template := config.Job{
			TargetLang:   watchTarget,
			GlossaryPath: watchGlossary,
			OutputDir:    watchOutDir,
		}
		template.ApplyDefaults()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cronRunner := cron.New()
		service := watch.NewService(settings, template, queue, cronRunner)
		if err := service.Schedule(ctx); err != nil {
			return err
		}
		cronRunner.Start()
		defer cronRunner.Stop()

		// First scan immediately; later ones follow the cron schedule.
		if err := service.Scan(ctx, settings.Server.WatchDir); err != nil {
			log.Error("Initial scan: %v", err)
		}

		<-ctx.Done()
		return nil
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchDir, "dir", "", "directory to watch (default from WATCH_DIR)")
	watchCmd.Flags().StringVar(&watchCronExpr, "cron", "", "scan schedule (default from CRON_EXPR)")
	watchCmd.Flags().StringVar(&watchTarget, "target", "", "target language (required)")
	watchCmd.Flags().StringVar(&watchGlossary, "glossary", "", "glossary file applied to every job")
	watchCmd.Flags().StringVar(&watchOutDir, "output", "", "output directory (default next to each input)")
	watchCmd.Flags().IntVar(&watchWorkers, "workers", 1, "concurrent jobs")
	_ = watchCmd.MarkFlagRequired("target")
	rootCmd.AddCommand(watchCmd)
}
