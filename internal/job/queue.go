package job

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MimeLyc/doc-translator/pkg/log"
)

// Executor runs one job to completion and reports its terminal
// status. A non-nil error is recorded on the job; the returned status
// still decides the transition, so an executor can report a partial
// completion alongside an error summary.
type Executor func(ctx context.Context, job *Job) (Status, error)

// Queue schedules jobs across a bounded worker set, persists every
// state change through the Store and recovers interrupted jobs on
// restart.
type Queue struct {
	workerCount int
	maxJobs     int
	store       Store

	mu         sync.RWMutex
	jobs       map[string]*Job
	dedupe     map[string]string
	cancels    map[string]context.CancelFunc
	started    bool
	pendingIDs chan string
	stopCh     chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

func NewQueue(workerCount int, store Store) *Queue {
	if workerCount <= 0 {
		workerCount = 1
	}
	q := &Queue{
		workerCount: workerCount,
		maxJobs:     1000,
		store:       store,
		jobs:        make(map[string]*Job),
		dedupe:      make(map[string]string),
		cancels:     make(map[string]context.CancelFunc),
		pendingIDs:  make(chan string, 1024),
		stopCh:      make(chan struct{}),
	}
	q.hydrateFromStore(context.Background())
	return q
}

// Enqueue registers a job. A live job with the same dedupe key is
// returned instead of creating a duplicate; the second return value
// reports whether a new job was created.
func (q *Queue) Enqueue(req EnqueueRequest) (*Job, bool) {
	now := time.Now()

	q.mu.Lock()
	if id, ok := q.dedupe[req.DedupeKey]; ok {
		if existing, exists := q.jobs[id]; exists {
			snapshot := cloneJob(existing)
			q.mu.Unlock()
			return snapshot, false
		}
		delete(q.dedupe, req.DedupeKey)
	}

	job := &Job{
		ID:        uuid.NewString(),
		Source:    req.Source,
		DedupeKey: req.DedupeKey,
		Config:    req.Config,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	q.jobs[job.ID] = job
	if req.DedupeKey != "" {
		q.dedupe[req.DedupeKey] = job.ID
	}
	started := q.started
	snapshot := cloneJob(job)
	q.mu.Unlock()

	q.persistJob(snapshot)
	if started {
		q.enqueuePendingID(job.ID)
	}
	return snapshot, true
}

func (q *Queue) Get(id string) (*Job, bool) {
	q.mu.RLock()
	job, ok := q.jobs[id]
	q.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return cloneJob(job), true
}

// List returns job snapshots, newest first.
func (q *Queue) List() []*Job {
	q.mu.RLock()
	ret := make([]*Job, 0, len(q.jobs))
	for _, job := range q.jobs {
		ret = append(ret, cloneJob(job))
	}
	q.mu.RUnlock()

	sort.Slice(ret, func(i, j int) bool {
		return ret[i].CreatedAt.After(ret[j].CreatedAt)
	})
	return ret
}

// Cancel requests cancellation. A queued job is cancelled in place; a
// running job gets its context cancelled and settles when its worker
// observes it. Returns false for unknown or already terminal jobs.
func (q *Queue) Cancel(id string) bool {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok || job.Status.Terminal() {
		q.mu.Unlock()
		return false
	}
	if job.Status == StatusQueued {
		_ = job.transition(StatusCancelled)
		q.releaseDedupeLocked(job)
		snapshot := cloneJob(job)
		q.mu.Unlock()
		q.persistJob(snapshot)
		return true
	}
	cancel, ok := q.cancels[id]
	q.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// UpdateProgress replaces the progress counters of a running job.
func (q *Queue) UpdateProgress(id string, progress Progress) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok || job.Status != StatusRunning {
		q.mu.Unlock()
		return
	}
	job.Progress = progress
	job.UpdatedAt = time.Now()
	snapshot := cloneJob(job)
	q.mu.Unlock()

	q.persistJob(snapshot)
}

// Start launches the worker pool. Jobs already queued (including
// recovered ones) are dispatched immediately.
func (q *Queue) Start(exec Executor) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true

	pending := make([]string, 0)
	for id, job := range q.jobs {
		if job.Status == StatusQueued {
			pending = append(pending, id)
		}
	}
	q.mu.Unlock()

	for _, id := range pending {
		q.enqueuePendingID(id)
	}

	for i := 0; i < q.workerCount; i++ {
		q.wg.Add(1)
		go q.worker(exec)
	}
}

func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		close(q.stopCh)
		q.wg.Wait()
	})
}

func (q *Queue) worker(exec Executor) {
	defer q.wg.Done()

	for {
		select {
		case <-q.stopCh:
			return
		case id := <-q.pendingIDs:
			job, ctx, ok := q.markRunning(id)
			if !ok {
				continue
			}

			status, err := exec(ctx, job)
			q.settle(id, status, err)
		}
	}
}

func (q *Queue) enqueuePendingID(id string) {
	select {
	case q.pendingIDs <- id:
	default:
		go func() { q.pendingIDs <- id }()
	}
}

func (q *Queue) markRunning(id string) (*Job, context.Context, bool) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok || job.Status != StatusQueued {
		q.mu.Unlock()
		return nil, nil, false
	}
	_ = job.transition(StatusRunning)
	ctx, cancel := context.WithCancel(context.Background())
	q.cancels[id] = cancel
	snapshot := cloneJob(job)
	q.mu.Unlock()

	q.persistJob(snapshot)
	return snapshot, ctx, true
}

// settle records the terminal outcome of a job run.
func (q *Queue) settle(id string, status Status, err error) {
	if !status.Terminal() {
		status = StatusFailed
	}

	q.mu.Lock()
	if cancel, ok := q.cancels[id]; ok {
		cancel()
		delete(q.cancels, id)
	}
	job, ok := q.jobs[id]
	if !ok {
		q.mu.Unlock()
		return
	}
	if terr := job.transition(status); terr != nil {
		log.Error("Job %s: %v", id, terr)
		q.mu.Unlock()
		return
	}
	job.Error = ""
	if err != nil {
		job.Error = err.Error()
	}
	q.releaseDedupeLocked(job)
	pruned := q.pruneTerminalJobsLocked()
	snapshot := cloneJob(job)
	q.mu.Unlock()

	q.persistJob(snapshot)
	q.deleteJobsFromStore(pruned)
}

func (q *Queue) releaseDedupeLocked(job *Job) {
	if job == nil || job.DedupeKey == "" {
		return
	}
	if id, ok := q.dedupe[job.DedupeKey]; ok && id == job.ID {
		delete(q.dedupe, job.DedupeKey)
	}
}

func (q *Queue) pruneTerminalJobsLocked() []string {
	if q.maxJobs <= 0 || len(q.jobs) <= q.maxJobs {
		return nil
	}

	type candidate struct {
		id        string
		updatedAt time.Time
	}
	terminal := make([]candidate, 0, len(q.jobs))
	for id, job := range q.jobs {
		if job == nil || !job.Status.Terminal() {
			continue
		}
		terminal = append(terminal, candidate{id: id, updatedAt: job.UpdatedAt})
	}
	if len(terminal) == 0 {
		return nil
	}

	sort.Slice(terminal, func(i, j int) bool {
		return terminal[i].updatedAt.Before(terminal[j].updatedAt)
	})

	toRemove := len(q.jobs) - q.maxJobs
	if toRemove <= 0 {
		return nil
	}
	if toRemove > len(terminal) {
		toRemove = len(terminal)
	}

	pruned := make([]string, 0, toRemove)
	for i := 0; i < toRemove; i++ {
		id := terminal[i].id
		job := q.jobs[id]
		if job != nil {
			q.releaseDedupeLocked(job)
		}
		delete(q.jobs, id)
		pruned = append(pruned, id)
	}
	return pruned
}

func (q *Queue) deleteJobsFromStore(ids []string) {
	if q.store == nil || len(ids) == 0 {
		return
	}
	for _, id := range ids {
		if err := q.store.DeleteJobData(context.Background(), id); err != nil {
			log.Error("Failed to delete data for pruned job %s: %v", id, err)
		}
		if err := q.store.DeleteJob(context.Background(), id); err != nil {
			log.Error("Failed to delete pruned job %s from store: %v", id, err)
		}
	}
}

// hydrateFromStore reloads persisted jobs. Jobs caught mid-run by a
// crash are re-queued; their batch checkpoints make the re-run cheap.
func (q *Queue) hydrateFromStore(ctx context.Context) {
	if q.store == nil {
		return
	}
	loaded, err := q.store.LoadJobs(ctx)
	if err != nil {
		log.Error("Failed to load jobs from store: %v", err)
		return
	}

	now := time.Now()
	toPersist := make([]*Job, 0)
	q.mu.Lock()
	for _, raw := range loaded {
		if raw == nil || raw.ID == "" {
			continue
		}
		job := cloneJob(raw)
		if job.Status == StatusRunning {
			job.Status = StatusQueued
			job.PID = 0
			job.UpdatedAt = now
			toPersist = append(toPersist, cloneJob(job))
		}
		q.jobs[job.ID] = job
		if job.Status == StatusQueued && job.DedupeKey != "" {
			q.dedupe[job.DedupeKey] = job.ID
		}
	}
	q.mu.Unlock()

	for _, job := range toPersist {
		q.persistJob(job)
	}
}

func (q *Queue) persistJob(job *Job) {
	if q.store == nil || job == nil {
		return
	}
	if err := q.store.UpsertJob(context.Background(), job); err != nil {
		log.Error("Failed to persist job %s: %v", job.ID, err)
	}
}

func cloneJob(job *Job) *Job {
	if job == nil {
		return nil
	}
	tmp := *job
	tmp.Config.Inputs = append([]string(nil), job.Config.Inputs...)
	if job.Config.MaxRetries != nil {
		retries := *job.Config.MaxRetries
		tmp.Config.MaxRetries = &retries
	}
	return &tmp
}
