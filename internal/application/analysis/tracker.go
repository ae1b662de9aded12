package analysis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bryanwahyu/seo-analyzer/internal/application"
	domain "github.com/bryanwahyu/seo-analyzer/internal/domain/analysis"
)

// statusRank orders statuses so transitions can only move forward. Terminal
// statuses share one rank; a job reaches exactly one of them.
var statusRank = map[domain.Status]int{
	domain.StatusPending:   0,
	domain.StatusAnalyzing: 1,
	domain.StatusCompleted: 2,
	domain.StatusPartial:   2,
	domain.StatusFailed:    2,
}

type jobState struct {
	job     *domain.Job
	workers map[domain.Worker]*domain.WorkerProgress
	current domain.Worker
}

// Tracker owns job records and their lifecycle. It keeps the authoritative
// in-memory state for running jobs and writes every transition through to
// the durable store.
type Tracker struct {
	repo  domain.Repository
	clock application.Clock

	mu   sync.RWMutex
	jobs map[domain.JobID]*jobState
}

func NewTracker(repo domain.Repository, clock application.Clock) *Tracker {
	return &Tracker{
		repo:  repo,
		clock: clock,
		jobs:  make(map[domain.JobID]*jobState),
	}
}

// Create assigns a fresh job record with status pending.
func (t *Tracker) Create(ctx context.Context, target string) (*domain.Job, error) {
	job := &domain.Job{
		ID:        domain.JobID(uuid.New().String()),
		Target:    target,
		Status:    domain.StatusPending,
		CreatedAt: t.clock.Now(),
	}

	if err := t.repo.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	st := &jobState{
		job:     job,
		workers: make(map[domain.Worker]*domain.WorkerProgress),
	}
	for _, w := range domain.AnalysisWorkers() {
		st.workers[w] = &domain.WorkerProgress{Name: w, Status: domain.WorkerPending}
	}
	st.workers[domain.WorkerReport] = &domain.WorkerProgress{Name: domain.WorkerReport, Status: domain.WorkerPending}

	t.mu.Lock()
	t.jobs[job.ID] = st
	t.mu.Unlock()

	return job, nil
}

// Update carries the fields of a status transition.
type Update struct {
	Report       string
	ResultJSON   string
	OverallScore int
	ArtifactURL  string
	ErrorMessage string
	DurationMS   int64
}

// Transition atomically moves a job to the given status and persists the
// snapshot. Repeating the current status overwrites the update fields
// (idempotent); moving backwards or out of a terminal state is rejected.
func (t *Tracker) Transition(ctx context.Context, id domain.JobID, status domain.Status, u Update) error {
	t.mu.Lock()
	st, ok := t.jobs[id]
	if !ok {
		t.mu.Unlock()
		return domain.ErrNotFound
	}

	cur := st.job.Status
	if statusRank[status] < statusRank[cur] || (cur.Terminal() && status != cur) {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, cur, status)
	}

	prev := *st.job
	prevCurrent := st.current

	st.job.Status = status
	if u.Report != "" {
		st.job.Report = u.Report
	}
	if u.ResultJSON != "" {
		st.job.ResultJSON = u.ResultJSON
	}
	if u.OverallScore != 0 {
		st.job.OverallScore = u.OverallScore
	}
	if u.ArtifactURL != "" {
		st.job.ArtifactURL = u.ArtifactURL
	}
	if u.ErrorMessage != "" {
		st.job.ErrorMessage = u.ErrorMessage
	}
	if u.DurationMS != 0 {
		st.job.DurationMS = u.DurationMS
	}
	if status.Terminal() && st.job.CompletedAt == nil {
		now := t.clock.Now()
		st.job.CompletedAt = &now
		st.current = ""
	}
	snapshot := *st.job
	t.mu.Unlock()

	if err := t.repo.UpdateStatus(ctx, &snapshot); err != nil {
		// Roll back so a later transition (often to failed) is still legal.
		t.mu.Lock()
		*st.job = prev
		st.current = prevCurrent
		t.mu.Unlock()
		return fmt.Errorf("update status: %w", err)
	}
	return nil
}

// Get returns the job, preferring live in-memory state over the store.
func (t *Tracker) Get(ctx context.Context, id domain.JobID) (*domain.Job, error) {
	t.mu.RLock()
	if st, ok := t.jobs[id]; ok {
		snapshot := *st.job
		t.mu.RUnlock()
		return &snapshot, nil
	}
	t.mu.RUnlock()
	return t.repo.Get(ctx, id)
}

// WorkerRunning marks a worker as dispatched in the progress projection.
func (t *Tracker) WorkerRunning(id domain.JobID, w domain.Worker) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.jobs[id]
	if !ok {
		return
	}
	if wp, ok := st.workers[w]; ok {
		wp.Status = domain.WorkerRunning
	}
	st.current = w
}

// WorkerDone settles a worker entry from its result.
func (t *Tracker) WorkerDone(id domain.JobID, res domain.WorkerResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.jobs[id]
	if !ok {
		return
	}
	wp, ok := st.workers[res.Worker]
	if !ok {
		return
	}
	if res.Success {
		wp.Status = domain.WorkerCompleted
	} else {
		wp.Status = domain.WorkerFailed
	}
	d := res.DurationMS
	wp.DurationMS = &d
}

// Progress builds the read-only projection served to polling clients.
// Worker order is fixed: the analysis workers, then the report worker.
func (t *Tracker) Progress(id domain.JobID) (domain.Progress, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	st, ok := t.jobs[id]
	if !ok {
		return domain.Progress{}, domain.ErrNotFound
	}

	order := append(domain.AnalysisWorkers(), domain.WorkerReport)
	workers := make([]domain.WorkerProgress, 0, len(order))
	for _, w := range order {
		if wp, ok := st.workers[w]; ok {
			cp := *wp
			if wp.DurationMS != nil {
				d := *wp.DurationMS
				cp.DurationMS = &d
			}
			workers = append(workers, cp)
		}
	}

	return domain.Progress{
		JobID:         id,
		Status:        st.job.Status,
		CurrentWorker: st.current,
		Workers:       workers,
	}, nil
}

// CreatedAtFor exposes a job's creation time for duration accounting.
func (t *Tracker) CreatedAtFor(id domain.JobID) (time.Time, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if st, ok := t.jobs[id]; ok {
		return st.job.CreatedAt, true
	}
	return time.Time{}, false
}
