package comparator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/MimeLyc/doc-translator/internal/glossary"
	"github.com/MimeLyc/doc-translator/internal/provider"
	"github.com/MimeLyc/doc-translator/internal/ratelimit"
	"github.com/MimeLyc/doc-translator/internal/scheduler"
	"github.com/MimeLyc/doc-translator/internal/unit"
	"github.com/MimeLyc/doc-translator/pkg/log"
)

// Weights control how candidate scores are combined. Latency carries
// the smallest default weight; success dominates.
type Weights struct {
	Success  float64 `json:"success"`
	Glossary float64 `json:"glossary"`
	Latency  float64 `json:"latency"`
}

// DefaultWeights is the documented default scoring mix.
var DefaultWeights = Weights{Success: 0.5, Glossary: 0.3, Latency: 0.2}

// Result is the scored outcome of one candidate profile.
type Result struct {
	ProfileName       string        `json:"profile_name"`
	Provider          string        `json:"provider"`
	Model             string        `json:"model"`
	Score             float64       `json:"score"`
	SuccessRatio      float64       `json:"success_ratio"`
	GlossaryAdherence float64       `json:"glossary_adherence"`
	LatencyScore      float64       `json:"latency_score"`
	AvgLatency        time.Duration `json:"avg_latency_ns"`
	SampleSize        int           `json:"sample_size"`
	SampleTranslated  []string      `json:"sample_translations,omitempty"`
	Elapsed           time.Duration `json:"elapsed_ns"`
	Error             string        `json:"error,omitempty"`
}

// ClientFactory builds a translation client for a candidate profile.
type ClientFactory func(profile provider.Profile) (provider.Client, error)

// Comparator runs a small sample through every candidate profile and
// ranks them. Candidates are compared with single-unit batches and no
// retry budget, so a weak profile fails fast and per-unit success is
// observable.
type Comparator struct {
	factory  ClientFactory
	limiter  *ratelimit.Limiter
	glossary *glossary.Engine
	weights  Weights
}

func New(factory ClientFactory, limiter *ratelimit.Limiter, gloss *glossary.Engine, weights Weights) *Comparator {
	if weights == (Weights{}) {
		weights = DefaultWeights
	}
	return &Comparator{
		factory:  factory,
		limiter:  limiter,
		glossary: gloss,
		weights:  weights,
	}
}

// Sample selects up to size units evenly spaced over the sequence.
// The selection is deterministic for a given sequence and size.
func Sample(units []unit.Unit, size int) []unit.Unit {
	if size <= 0 || len(units) == 0 {
		return nil
	}
	if len(units) <= size {
		return append([]unit.Unit(nil), units...)
	}

	sampled := make([]unit.Unit, 0, size)
	for i := 0; i < size; i++ {
		sampled = append(sampled, units[i*len(units)/size])
	}
	return sampled
}

// Compare scores every candidate on the sample and returns the
// ranked results, best first. Ties keep candidate declaration order.
// At least one candidate must produce a usable client.
func (c *Comparator) Compare(ctx context.Context, candidates []provider.Profile, sample []unit.Unit) ([]Result, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no candidate profiles to compare")
	}
	if len(sample) == 0 {
		return nil, fmt.Errorf("empty comparison sample")
	}

	results := make([]Result, 0, len(candidates))
	for _, candidate := range candidates {
		log.Info("Comparing profile %s (%s/%s) on %d sample units",
			candidate.Name, candidate.Provider, candidate.Model, len(sample))
		results = append(results, c.evaluate(ctx, candidate, sample))
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results, nil
}

// Best returns the top-ranked profile from Compare output.
func Best(candidates []provider.Profile, ranked []Result) (provider.Profile, error) {
	if len(ranked) == 0 {
		return provider.Profile{}, fmt.Errorf("no comparison results")
	}
	for _, candidate := range candidates {
		if candidate.Name == ranked[0].ProfileName {
			return candidate, nil
		}
	}
	return provider.Profile{}, fmt.Errorf("winning profile %s not among candidates", ranked[0].ProfileName)
}

func (c *Comparator) evaluate(ctx context.Context, candidate provider.Profile, sample []unit.Unit) Result {
	result := Result{
		ProfileName: candidate.Name,
		Provider:    string(candidate.Provider),
		Model:       candidate.Model,
		SampleSize:  len(sample),
	}

	client, err := c.factory(candidate)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	sched := scheduler.New(client, c.limiter, scheduler.Config{
		BatchSize: 1,
		Policy:    scheduler.DefaultRetryPolicy(0),
	})

	run, err := sched.Run(ctx, sample)
	if err != nil {
		// A fully failed candidate still gets scored (at zero
		// success) so the table stays complete.
		if !errors.Is(err, scheduler.ErrSystemic) {
			result.Error = err.Error()
			return result
		}
		result.Error = err.Error()
	}

	translated := make([]string, len(run.Units))
	success := 0
	for i, u := range run.Units {
		translated[i] = u.Translated
		if !u.Failed && strings.TrimSpace(u.Translated) != "" {
			success++
		}
	}

	avgLatency := time.Duration(0)
	if run.BatchesTotal > 0 {
		avgLatency = run.Elapsed / time.Duration(run.BatchesTotal)
	}

	result.SampleTranslated = translated
	result.Elapsed = run.Elapsed
	result.AvgLatency = avgLatency
	result.SuccessRatio = float64(success) / float64(len(sample))
	result.GlossaryAdherence = c.adherence(run.Units)
	result.LatencyScore = latencyScore(avgLatency)
	result.Score = c.weights.Success*result.SuccessRatio +
		c.weights.Glossary*result.GlossaryAdherence +
		c.weights.Latency*result.LatencyScore
	return result
}

// adherence measures the fraction of forced-term occurrences in the
// successfully translated sample whose mandated target is present in
// the output. A sample without forced-term occurrences scores 1.
func (c *Comparator) adherence(units []unit.Unit) float64 {
	if c.glossary == nil {
		return 1.0
	}
	forced := c.glossary.ForceEntries()
	if len(forced) == 0 {
		return 1.0
	}

	expected := 0
	present := 0
	for _, u := range units {
		if u.Failed || u.Translated == "" {
			continue
		}
		for _, entry := range forced {
			occurrences := countFold(u.Text, entry.Source, entry.CaseSensitive)
			if occurrences == 0 {
				continue
			}
			expected += occurrences
			found := countFold(u.Translated, entry.Target, entry.CaseSensitive)
			if found > occurrences {
				found = occurrences
			}
			present += found
		}
	}
	if expected == 0 {
		return 1.0
	}
	return float64(present) / float64(expected)
}

// latencyScore maps average call latency into (0, 1], higher for
// faster candidates.
func latencyScore(avg time.Duration) float64 {
	return 1.0 / (1.0 + avg.Seconds())
}

func countFold(text, term string, caseSensitive bool) int {
	if term == "" {
		return 0
	}
	if !caseSensitive {
		text = strings.ToLower(text)
		term = strings.ToLower(term)
	}
	return strings.Count(text, term)
}

// WriteReport persists the ranked comparison table as indented JSON
// for auditability.
func WriteReport(path string, results []Result) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal comparison report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write comparison report: %w", err)
	}
	return nil
}
