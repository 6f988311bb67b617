package job

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/MimeLyc/doc-translator/internal/comparator"
	"github.com/MimeLyc/doc-translator/internal/config"
	"github.com/MimeLyc/doc-translator/internal/glossary"
	"github.com/MimeLyc/doc-translator/internal/pipeline"
	"github.com/MimeLyc/doc-translator/internal/provider"
	"github.com/MimeLyc/doc-translator/internal/ratelimit"
	"github.com/MimeLyc/doc-translator/internal/report"
	"github.com/MimeLyc/doc-translator/internal/runlock"
	"github.com/MimeLyc/doc-translator/internal/scheduler"
	"github.com/MimeLyc/doc-translator/internal/unit"
	"github.com/MimeLyc/doc-translator/pkg/log"
)

// CheckpointFunc provides a per-file checkpoint store. Nil disables
// checkpointing.
type CheckpointFunc func(ctx context.Context, jobID, filePath string) (scheduler.CheckpointStore, error)

// Runner executes one job end to end: run lock, glossary, optional
// provider comparison, per-file pipeline and the final report.
type Runner struct {
	Settings    *config.Settings
	Local       config.Local
	Checkpoints CheckpointFunc
	// ClientFactory overrides provider client construction, used by
	// tests. Nil means provider.New.
	ClientFactory func(profile provider.Profile, opts provider.Options) (provider.Client, error)
	// OnProgress receives settled-unit counts across all files.
	OnProgress func(progress Progress)
}

type extracted struct {
	inputPath  string
	outputPath string
	adapter    unit.Adapter
	units      []unit.Unit
}

// Run drives the job and returns its terminal status. The returned
// error carries the failure summary; a partial completion reports
// StatusPartial with a nil error and the details in the report file.
func (r *Runner) Run(ctx context.Context, j *Job) (Status, error) {
	cfg := j.Config
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return StatusFailed, err
	}

	owner := "doc-translator"
	if j.ID != "" {
		owner = owner + "/" + j.ID
	}
	lock, err := runlock.Acquire(cfg.OutputDir, owner, cfg.ForceRun)
	if err != nil {
		if errors.Is(err, runlock.ErrConflict) {
			log.Error("Output directory busy: %v", err)
		}
		return StatusFailed, err
	}
	defer func() {
		if rerr := lock.Release(); rerr != nil {
			log.Warn("Run lock release: %v", rerr)
		}
	}()

	gloss, err := glossary.Load(cfg.GlossaryPath)
	if err != nil {
		return StatusFailed, err
	}

	files, total, err := r.extractAll(ctx, &cfg)
	if err != nil {
		return StatusFailed, err
	}

	r.resolveSourceLang(&cfg, files)

	limiter := ratelimit.New(cfg.RateLimitRPM)
	profile := cfg.Profile(r.Settings.Provider)
	opts := cfg.Options(r.Settings.Provider)

	agg := report.NewAggregator(cfg.SourceLang, cfg.TargetLang, profile.Model)

	if cfg.Compare.Enabled {
		profile, err = r.compare(ctx, &cfg, opts, gloss, limiter, files, agg)
		if err != nil {
			return StatusFailed, err
		}
		agg.SetModel(profile.Model)
	}

	client, err := r.newClient(profile, opts)
	if err != nil {
		return StatusFailed, err
	}

	pipe := pipeline.New(gloss, client, limiter, scheduler.Config{
		BatchSize:   cfg.BatchSize,
		Concurrency: cfg.Concurrency,
		Policy:      scheduler.DefaultRetryPolicy(cfg.RetryBudget()),
	})

	var systemic error
	cancelled := false
	doneBase := 0
	for _, file := range files {
		if ctx.Err() != nil {
			cancelled = true
		}
		if cancelled || systemic != nil {
			agg.AddFile(report.FileResult{
				InputPath:  file.inputPath,
				OutputPath: file.outputPath,
				Status:     pipeline.StatusCancelled,
				UnitsTotal: len(file.units),
			})
			continue
		}

		checkpoints := r.checkpointsFor(ctx, j.ID, file.inputPath)
		progress := func(done, totalFile int) {
			r.notifyProgress(doneBase+done, total)
		}

		result, run, err := pipe.TranslateFile(ctx, file.inputPath, file.outputPath, file.units, file.adapter, checkpoints, progress)
		agg.AddFile(result)
		if run != nil {
			agg.AddBatches(run.BatchesTotal, run.BatchesRetried, run.BatchesFailed)
			if run.Cancelled {
				cancelled = true
			}
		}
		if err != nil {
			if errors.Is(err, scheduler.ErrSystemic) {
				// A rejected key fails the same way for every later
				// file; stop burning the rate budget.
				systemic = err
			} else {
				log.Error("File %s: %v", file.inputPath, err)
			}
		}
		doneBase += len(file.units)
		r.notifyProgress(doneBase, total)
	}

	agg.SetGlossaryHits(gloss.Hits())

	reportPath := filepath.Join(cfg.OutputDir, cfg.ReportFile)
	if err := agg.Write(reportPath); err != nil {
		log.Error("Failed to write report: %v", err)
	} else {
		j.ReportPath = reportPath
	}

	switch {
	case cancelled:
		return StatusCancelled, nil
	case systemic != nil:
		return StatusFailed, systemic
	case agg.HasFailures():
		return StatusPartial, nil
	default:
		return StatusCompleted, nil
	}
}

// extractAll reads every input up front so language detection, the
// comparison sample and progress totals see the whole job.
func (r *Runner) extractAll(ctx context.Context, cfg *config.Job) ([]extracted, int, error) {
	files := make([]extracted, 0, len(cfg.Inputs))
	total := 0
	for _, input := range cfg.Inputs {
		units, adapter, err := pipeline.Extract(ctx, input)
		if err != nil {
			return nil, 0, err
		}
		files = append(files, extracted{
			inputPath:  input,
			outputPath: pipeline.OutputPath(cfg.OutputDir, input, cfg.OutputSuffix),
			adapter:    adapter,
			units:      units,
		})
		total += len(units)
	}
	return files, total, nil
}

func (r *Runner) resolveSourceLang(cfg *config.Job, files []extracted) {
	if cfg.SourceLang != "" && cfg.SourceLang != config.AutoSourceLang {
		cfg.SourceLang = config.NormalizeLang(cfg.SourceLang)
		return
	}
	var texts []string
	for _, file := range files {
		for _, u := range file.units {
			texts = append(texts, u.Text)
		}
	}
	detected := config.DetectSourceLang(texts)
	if detected == "" {
		log.Warn("Source language detection failed, leaving it to the provider")
	} else {
		log.Info("Detected source language: %s", detected)
	}
	cfg.SourceLang = detected
}

// compare ranks the candidate profiles on a sample and returns the
// winner. The ranked table is written next to the outputs and
// attached to the job report.
func (r *Runner) compare(
	ctx context.Context,
	cfg *config.Job,
	opts provider.Options,
	gloss *glossary.Engine,
	limiter *ratelimit.Limiter,
	files []extracted,
	agg *report.Aggregator,
) (provider.Profile, error) {
	candidates := config.Candidates(cfg, r.Settings, r.Local)

	// Locked units never reach a provider, so they carry no ranking
	// signal; filter them without recording hits — Mask counts each
	// lock once when the files are actually translated.
	var translatable []unit.Unit
	for _, file := range files {
		for _, u := range file.units {
			if !gloss.LocksText(u.Text) {
				translatable = append(translatable, u)
			}
		}
	}
	sample := comparator.Sample(translatable, cfg.Compare.SampleSize)

	comp := comparator.New(func(p provider.Profile) (provider.Client, error) {
		return r.newClient(p, opts)
	}, limiter, gloss, comparator.DefaultWeights)

	ranked, err := comp.Compare(ctx, candidates, sample)
	if err != nil {
		return provider.Profile{}, fmt.Errorf("provider comparison: %w", err)
	}

	comparePath := filepath.Join(cfg.OutputDir, cfg.Compare.ReportFile)
	if err := comparator.WriteReport(comparePath, ranked); err != nil {
		log.Warn("Failed to write comparison report: %v", err)
	}
	agg.SetComparison(ranked)

	best, err := comparator.Best(candidates, ranked)
	if err != nil {
		return provider.Profile{}, err
	}
	log.Info("Comparison winner: %s (%s, score %.3f)", best.Name, best.Model, ranked[0].Score)
	return best, nil
}

func (r *Runner) newClient(profile provider.Profile, opts provider.Options) (provider.Client, error) {
	if r.ClientFactory != nil {
		return r.ClientFactory(profile, opts)
	}
	return provider.New(profile, opts)
}

func (r *Runner) checkpointsFor(ctx context.Context, jobID, filePath string) scheduler.CheckpointStore {
	if r.Checkpoints == nil || jobID == "" {
		return nil
	}
	store, err := r.Checkpoints(ctx, jobID, filePath)
	if err != nil {
		log.Warn("Checkpoints unavailable for %s: %v", filePath, err)
		return nil
	}
	return store
}

func (r *Runner) notifyProgress(done, total int) {
	if r.OnProgress != nil {
		r.OnProgress(Progress{Done: done, Total: total})
	}
}
