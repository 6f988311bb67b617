package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MimeLyc/doc-translator/internal/provider"
	"github.com/MimeLyc/doc-translator/internal/ratelimit"
	"github.com/MimeLyc/doc-translator/internal/unit"
	"github.com/MimeLyc/doc-translator/pkg/log"
)

// ErrSystemic marks a run where every batch failed with a permanent
// provider error, e.g. a rejected API key. The caller escalates the
// whole job instead of treating the failures as isolated.
var ErrSystemic = errors.New("systemic provider failure: all batches failed permanently")

// CheckpointStore persists translated batches so a restarted job can
// resume without re-translating. A nil store disables checkpoints.
type CheckpointStore interface {
	Load(batchIndex int) ([]string, bool)
	Save(ctx context.Context, batchIndex int, translated []string) error
}

// Config controls batching and dispatch for one run.
type Config struct {
	BatchSize int
	// Concurrency bounds the worker pool. Zero means rpm/10, at
	// least 1, so a burst of workers cannot starve the limiter.
	Concurrency int
	Policy      RetryPolicy
}

// BatchFailure records one batch that exhausted its retry budget or
// failed permanently.
type BatchFailure struct {
	BatchIndex int    `json:"batch_index"`
	Units      int    `json:"units"`
	Error      string `json:"error"`
	Permanent  bool   `json:"permanent"`
}

// Result is the reassembled outcome of a run. Units are in the exact
// original order; failed batches leave their units untranslated and
// flagged.
type Result struct {
	Units []unit.Unit

	BatchesTotal   int
	BatchesRetried int
	BatchesFailed  int
	Failures       []BatchFailure
	Elapsed        time.Duration
	Cancelled      bool
}

// TranslatedCount returns the number of units carrying output,
// including locked pass-through units.
func (r *Result) TranslatedCount() int {
	n := 0
	for _, u := range r.Units {
		if u.Locked || (!u.Failed && u.Translated != "") {
			n++
		}
	}
	return n
}

// FailedCount returns the number of units left untranslated.
func (r *Result) FailedCount() int {
	n := 0
	for _, u := range r.Units {
		if u.Failed {
			n++
		}
	}
	return n
}

// Scheduler partitions a unit sequence into ordered batches and
// drives them through the provider client under one shared rate
// limiter and the retry policy.
type Scheduler struct {
	client      provider.Client
	limiter     *ratelimit.Limiter
	cfg         Config
	checkpoints CheckpointStore
	progress    func(done, total int)
}

type Option func(*Scheduler)

// WithCheckpoints enables batch checkpoint persistence.
func WithCheckpoints(store CheckpointStore) Option {
	return func(s *Scheduler) {
		s.checkpoints = store
	}
}

// WithProgress installs a callback invoked after each resolved batch
// with the number of settled units.
func WithProgress(fn func(done, total int)) Option {
	return func(s *Scheduler) {
		s.progress = fn
	}
}

func New(client provider.Client, limiter *ratelimit.Limiter, cfg Config, opts ...Option) *Scheduler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = max(1, limiter.RPM()/10)
	}
	s := &Scheduler{
		client:  client,
		limiter: limiter,
		cfg:     cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// batchRef ties a batch back to the unit positions it came from.
type batchRef struct {
	batch     unit.Batch
	positions []int
}

// Partition splits units into ordered batches of at most batchSize
// non-locked units. Locked units do not occupy batch slots but keep
// their position for reassembly.
func Partition(units []unit.Unit, batchSize int) []unit.Batch {
	refs := partition(units, batchSize)
	batches := make([]unit.Batch, len(refs))
	for i, ref := range refs {
		batches[i] = ref.batch
	}
	return batches
}

func partition(units []unit.Unit, batchSize int) []batchRef {
	if batchSize <= 0 {
		batchSize = 20
	}

	var refs []batchRef
	var current batchRef
	for pos, u := range units {
		if u.Locked {
			continue
		}
		current.batch.Units = append(current.batch.Units, u)
		current.positions = append(current.positions, pos)
		if len(current.batch.Units) == batchSize {
			current.batch.Index = len(refs)
			refs = append(refs, current)
			current = batchRef{}
		}
	}
	if len(current.batch.Units) > 0 {
		current.batch.Index = len(refs)
		refs = append(refs, current)
	}
	return refs
}

// outcome collects batch results under one mutex.
type outcome struct {
	mu             sync.Mutex
	result         *Result
	total          int
	permanentFails int
	progress       func(done, total int)
}

func (o *outcome) apply(ref batchRef, translated []string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, pos := range ref.positions {
		o.result.Units[pos].Translated = translated[i]
	}
	o.notifyLocked()
}

func (o *outcome) fail(ref batchRef, err error, permanent bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, pos := range ref.positions {
		o.result.Units[pos].Failed = true
	}
	o.result.BatchesFailed++
	if permanent {
		o.permanentFails++
	}
	o.result.Failures = append(o.result.Failures, BatchFailure{
		BatchIndex: ref.batch.Index,
		Units:      len(ref.batch.Units),
		Error:      err.Error(),
		Permanent:  permanent,
	})
	o.notifyLocked()
}

// markRetried is called once per batch, on its first retry.
func (o *outcome) markRetried() {
	o.mu.Lock()
	o.result.BatchesRetried++
	o.mu.Unlock()
}

func (o *outcome) notifyLocked() {
	if o.progress != nil {
		o.progress(settledUnits(o.result.Units), o.total)
	}
}

// Run translates the unit sequence. Batch failures are isolated: the
// run proceeds and reports them in the result. Run returns an error
// only for systemic conditions (ErrSystemic) — cancellation surfaces
// through Result.Cancelled, not as an error.
func (s *Scheduler) Run(ctx context.Context, units []unit.Unit) (*Result, error) {
	started := time.Now()

	out := append([]unit.Unit(nil), units...)
	refs := partition(out, s.cfg.BatchSize)

	result := &Result{
		Units:        out,
		BatchesTotal: len(refs),
	}
	if len(refs) == 0 {
		result.Elapsed = time.Since(started)
		return result, nil
	}

	o := &outcome{
		result:   result,
		total:    len(out),
		progress: s.progress,
	}

	group := new(errgroup.Group)
	group.SetLimit(s.cfg.Concurrency)

	cancelled := false
	for _, ref := range refs {
		// Cooperative cancellation: checked at dispatch boundaries
		// only; in-flight batches finish or time out on their own.
		if ctx.Err() != nil {
			cancelled = true
			o.fail(ref, fmt.Errorf("cancelled before dispatch: %w", ctx.Err()), false)
			continue
		}

		ref := ref
		group.Go(func() error {
			s.runBatch(ctx, ref, o)
			return nil
		})
	}
	_ = group.Wait()

	result.Cancelled = cancelled || ctx.Err() != nil
	result.Elapsed = time.Since(started)

	if !result.Cancelled && result.BatchesTotal > 0 && o.permanentFails == result.BatchesTotal {
		return result, ErrSystemic
	}
	return result, nil
}

func (s *Scheduler) runBatch(ctx context.Context, ref batchRef, o *outcome) {
	if s.checkpoints != nil {
		if translated, ok := s.checkpoints.Load(ref.batch.Index); ok && len(translated) == len(ref.batch.Units) {
			log.Debug("Batch %d restored from checkpoint (%d units)", ref.batch.Index, len(translated))
			o.apply(ref, translated)
			return
		}
	}

	policy := s.cfg.Policy
	retried := false
	var lastErr error

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if err := s.limiter.Acquire(ctx); err != nil {
			o.fail(ref, err, false)
			return
		}

		translated, err := s.client.TranslateBatch(ctx, ref.batch.Texts())
		if err == nil {
			if s.checkpoints != nil {
				if cerr := s.checkpoints.Save(ctx, ref.batch.Index, translated); cerr != nil {
					log.Warn("Failed to checkpoint batch %d: %v", ref.batch.Index, cerr)
				}
			}
			o.apply(ref, translated)
			return
		}
		lastErr = err

		if !policy.retryable(err) {
			log.Error("Batch %d failed permanently: %v", ref.batch.Index, err)
			o.fail(ref, err, true)
			return
		}
		if attempt == policy.MaxRetries {
			break
		}

		if !retried {
			retried = true
			o.markRetried()
		}
		wait := policy.backoff(attempt + 1)
		log.Warn("Batch %d attempt %d failed (%v), retrying in %s", ref.batch.Index, attempt+1, err, wait)
		if err := sleep(ctx, wait); err != nil {
			o.fail(ref, lastErr, false)
			return
		}
	}

	log.Error("Batch %d failed after %d attempts: %v", ref.batch.Index, policy.MaxRetries+1, lastErr)
	o.fail(ref, fmt.Errorf("retries exhausted: %w", lastErr), false)
}

func settledUnits(units []unit.Unit) int {
	n := 0
	for _, u := range units {
		if u.Locked || u.Failed || u.Translated != "" {
			n++
		}
	}
	return n
}
