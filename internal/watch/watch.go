package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/MimeLyc/doc-translator/internal/config"
	"github.com/MimeLyc/doc-translator/internal/document"
	"github.com/MimeLyc/doc-translator/internal/job"
	"github.com/MimeLyc/doc-translator/pkg/file"
	"github.com/MimeLyc/doc-translator/pkg/icron"
	"github.com/MimeLyc/doc-translator/pkg/log"
)

// Service scans the watch directory on a cron schedule and enqueues a
// translation job for every new or modified document that has no
// translated counterpart yet.
type Service struct {
	settings *config.Settings
	template config.Job
	queue    *job.Queue
	cron     *cron.Cron

	lastTriggerTime time.Time
}

func NewService(settings *config.Settings, template config.Job, queue *job.Queue, cron *cron.Cron) *Service {
	return &Service{
		settings: settings,
		template: template,
		queue:    queue,
		cron:     cron,
	}
}

var singleflightGroup singleflight.Group

// Schedule registers the periodic scan. Overlapping triggers collapse
// into one run via singleflight.
func (s *Service) Schedule(ctx context.Context) error {
	dir := s.settings.Server.WatchDir
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("watch directory is not configured")
	}
	log.Info("Watching %s (%s)", dir, s.settings.Server.CronExpr)

	runFunc := func() {
		_, _, _ = singleflightGroup.Do("scan", func() (any, error) {
			if err := s.Scan(ctx, dir); err != nil {
				log.Error("Failed to scan %s: %v", dir, err)
			}
			return nil, nil
		})
	}
	_, err := s.cron.AddFunc(s.settings.Server.CronExpr, runFunc)
	return err
}

// Scan walks the directory once and enqueues jobs for candidate
// documents modified since the previous trigger.
func (s *Service) Scan(ctx context.Context, dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("directory %s does not exist", dir)
	}

	startTime, err := s.startTime()
	if err != nil {
		return err
	}
	log.Info("Scanning %s for documents modified after %v", dir, startTime)

	recentFiles, err := file.ModifiedAfter(dir, startTime)
	if err != nil {
		return fmt.Errorf("failed to find recent files: %w", err)
	}
	s.lastTriggerTime = time.Now()

	suffixes := document.Supported()
	enqueued := 0
	for _, path := range recentFiles {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !slices.Contains(suffixes, ext) {
			continue
		}
		if s.isOutput(path) {
			continue
		}
		if s.hasTranslation(path) {
			continue
		}

		cfg := s.template
		cfg.Inputs = []string{path}
		if cfg.OutputDir == "" {
			cfg.OutputDir = filepath.Dir(path)
		}

		created, isNew := s.queue.Enqueue(job.EnqueueRequest{
			Source:    "watch",
			DedupeKey: path,
			Config:    cfg,
		})
		if isNew {
			enqueued++
			log.Info("Enqueued job %s for %s", created.ID, path)
		}
	}
	log.Info("Scan of %s enqueued %d jobs (%d recent files)", dir, enqueued, len(recentFiles))
	return nil
}

// isOutput recognizes our own output files so a scan never feeds a
// translation back into the queue.
func (s *Service) isOutput(path string) bool {
	suffix := s.template.OutputSuffix
	if suffix == "" {
		suffix = config.DefaultOutputSuffix
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return strings.HasSuffix(stem, suffix)
}

// hasTranslation checks whether the expected output already exists.
func (s *Service) hasTranslation(path string) bool {
	suffix := s.template.OutputSuffix
	if suffix == "" {
		suffix = config.DefaultOutputSuffix
	}
	outputDir := s.template.OutputDir
	if outputDir == "" {
		outputDir = filepath.Dir(path)
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(filepath.Base(path), ext)
	_, err := os.Stat(filepath.Join(outputDir, stem+suffix+ext))
	return err == nil
}

// startTime picks the scan window start: the previous in-process
// trigger when known, otherwise derived from the cron schedule, with
// a one-week cap for schedules that fire rarely.
func (s *Service) startTime() (time.Time, error) {
	if s.lastTriggerTime.IsZero() {
		cronSchedule, err := icron.GetTriggerInfo(s.settings.Server.CronExpr, time.Now())
		if err != nil {
			return time.Time{}, fmt.Errorf("failed to get cron schedule: %w", err)
		}

		if time.Now().Add(-24 * 1 * time.Hour).Before(cronSchedule.Last) {
			return time.Now().Add(-24 * 7 * time.Hour), nil
		}
		return cronSchedule.Last, nil
	}

	return s.lastTriggerTime, nil
}
