package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/MimeLyc/doc-translator/internal/comparator"
	"github.com/MimeLyc/doc-translator/internal/scheduler"
)

// FileResult is the outcome of one translated file.
type FileResult struct {
	InputPath       string                   `json:"input_path"`
	OutputPath      string                   `json:"output_path"`
	Status          string                   `json:"status"`
	UnitsTotal      int                      `json:"units_total"`
	UnitsTranslated int                      `json:"units_translated"`
	UnitsFailed     int                      `json:"units_failed"`
	GlossaryHits    int                      `json:"glossary_hits"`
	BatchFailures   []scheduler.BatchFailure `json:"batch_failures,omitempty"`
	Error           string                   `json:"error,omitempty"`
}

// Summary is the immutable report emitted at job completion.
type Summary struct {
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
	Model      string `json:"model"`

	FilesTotal     int `json:"files_total"`
	FilesSucceeded int `json:"files_succeeded"`
	FilesFailed    int `json:"files_failed"`

	UnitsTotal      int `json:"units_total"`
	UnitsTranslated int `json:"units_translated"`
	UnitsFailed     int `json:"units_failed"`

	BatchesAttempted int `json:"batches_attempted"`
	BatchesRetried   int `json:"batches_retried"`
	BatchesFailed    int `json:"batches_failed"`

	GlossaryHits map[string]int      `json:"glossary_hits,omitempty"`
	Comparison   []comparator.Result `json:"comparison,omitempty"`
	Results      []FileResult        `json:"results"`
}

// Aggregator accumulates counts over the life of one job and emits a
// single Summary when the job finishes.
type Aggregator struct {
	mu      sync.Mutex
	summary Summary
}

func NewAggregator(sourceLang, targetLang, model string) *Aggregator {
	return &Aggregator{
		summary: Summary{
			SourceLang: sourceLang,
			TargetLang: targetLang,
			Model:      model,
		},
	}
}

// AddFile folds one file outcome into the totals.
func (a *Aggregator) AddFile(result FileResult) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.summary.Results = append(a.summary.Results, result)
	a.summary.FilesTotal++
	a.summary.UnitsTotal += result.UnitsTotal
	a.summary.UnitsTranslated += result.UnitsTranslated
	a.summary.UnitsFailed += result.UnitsFailed
	if result.Status == "success" {
		a.summary.FilesSucceeded++
	} else {
		a.summary.FilesFailed++
	}
}

// AddBatches folds scheduler counters into the totals.
func (a *Aggregator) AddBatches(attempted, retried, failed int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.summary.BatchesAttempted += attempted
	a.summary.BatchesRetried += retried
	a.summary.BatchesFailed += failed
}

// SetGlossaryHits records the per-entry hit counters.
func (a *Aggregator) SetGlossaryHits(hits map[string]int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(hits) == 0 {
		return
	}
	a.summary.GlossaryHits = make(map[string]int, len(hits))
	for k, v := range hits {
		a.summary.GlossaryHits[k] = v
	}
}

// SetComparison attaches the ranked comparison table.
func (a *Aggregator) SetComparison(results []comparator.Result) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.summary.Comparison = append([]comparator.Result(nil), results...)
}

// SetModel records the profile actually used for the full run (it may
// differ from the configured one when comparison ran).
func (a *Aggregator) SetModel(model string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.summary.Model = model
}

// Summary returns a snapshot of the accumulated totals.
func (a *Aggregator) Summary() Summary {
	a.mu.Lock()
	defer a.mu.Unlock()

	snapshot := a.summary
	snapshot.Results = append([]FileResult(nil), a.summary.Results...)
	return snapshot
}

// HasFailures reports whether any file or unit failed.
func (a *Aggregator) HasFailures() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.summary.FilesFailed > 0 || a.summary.UnitsFailed > 0
}

// Write persists the summary as indented JSON with
// temp-write-then-rename semantics, so a concurrent reader never sees
// a partial document.
func (a *Aggregator) Write(path string) error {
	summary := a.Summary()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace report: %w", err)
	}
	return nil
}
