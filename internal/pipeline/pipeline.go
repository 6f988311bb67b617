package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/MimeLyc/doc-translator/internal/document"
	"github.com/MimeLyc/doc-translator/internal/glossary"
	"github.com/MimeLyc/doc-translator/internal/provider"
	"github.com/MimeLyc/doc-translator/internal/ratelimit"
	"github.com/MimeLyc/doc-translator/internal/report"
	"github.com/MimeLyc/doc-translator/internal/scheduler"
	"github.com/MimeLyc/doc-translator/internal/unit"
	"github.com/MimeLyc/doc-translator/pkg/log"
)

// File statuses reported per translated document.
const (
	StatusSuccess   = "success"
	StatusPartial   = "partial"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Pipeline drives single documents through extraction, glossary
// masking, batched translation, glossary enforcement and reinsertion.
type Pipeline struct {
	glossary *glossary.Engine
	client   provider.Client
	limiter  *ratelimit.Limiter
	sched    scheduler.Config
}

func New(gloss *glossary.Engine, client provider.Client, limiter *ratelimit.Limiter, sched scheduler.Config) *Pipeline {
	return &Pipeline{
		glossary: gloss,
		client:   client,
		limiter:  limiter,
		sched:    sched,
	}
}

// Extract reads the document's unit sequence and returns it together
// with the adapter that will handle reinsertion.
func Extract(ctx context.Context, path string) ([]unit.Unit, unit.Adapter, error) {
	adapter, err := document.ForPath(path)
	if err != nil {
		return nil, nil, err
	}
	units, err := adapter.Extract(ctx, path)
	if err != nil {
		return nil, nil, fmt.Errorf("extract %s: %w", path, err)
	}
	return units, adapter, nil
}

// TranslateFile runs one document through the pipeline. Reinsertion
// happens only after every batch has resolved; a cancelled run skips
// it. The scheduler result is returned alongside the file summary so
// the caller can fold counters and detect systemic failures.
func (p *Pipeline) TranslateFile(
	ctx context.Context,
	inputPath, outputPath string,
	units []unit.Unit,
	adapter unit.Adapter,
	checkpoints scheduler.CheckpointStore,
	progress func(done, total int),
) (report.FileResult, *scheduler.Result, error) {
	result := report.FileResult{
		InputPath:  inputPath,
		OutputPath: outputPath,
		UnitsTotal: len(units),
	}

	masked := p.glossary.Mask(units)
	locked := 0
	for _, u := range masked {
		if u.Locked {
			locked++
		}
	}
	if locked > 0 {
		log.Info("File %s: %d of %d units locked by glossary", inputPath, locked, len(masked))
	}

	opts := []scheduler.Option{}
	if checkpoints != nil {
		opts = append(opts, scheduler.WithCheckpoints(checkpoints))
	}
	if progress != nil {
		opts = append(opts, scheduler.WithProgress(progress))
	}
	sched := scheduler.New(p.client, p.limiter, p.sched, opts...)

	run, err := sched.Run(ctx, masked)
	if err != nil {
		// Systemic failures abort the file; counters still describe
		// what was attempted.
		result.Status = StatusFailed
		result.Error = err.Error()
		result.UnitsFailed = run.FailedCount()
		result.BatchFailures = run.Failures
		return result, run, err
	}

	run.Units = p.glossary.Enforce(run.Units)

	result.UnitsTranslated = run.TranslatedCount()
	result.UnitsFailed = run.FailedCount()
	result.BatchFailures = run.Failures

	if run.Cancelled {
		result.Status = StatusCancelled
		return result, run, nil
	}

	if err := adapter.Reinsert(ctx, inputPath, outputPath, run.Units); err != nil {
		result.Status = StatusFailed
		result.Error = err.Error()
		return result, run, fmt.Errorf("reinsert %s: %w", outputPath, err)
	}

	if result.UnitsFailed > 0 {
		result.Status = StatusPartial
	} else {
		result.Status = StatusSuccess
	}
	return result, run, nil
}

// OutputPath derives the destination file name: the input base name
// with the suffix spliced in before the extension.
func OutputPath(outputDir, inputPath, suffix string) string {
	base := filepath.Base(inputPath)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return filepath.Join(outputDir, stem+suffix+ext)
}
