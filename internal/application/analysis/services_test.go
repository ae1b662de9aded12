package analysis_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/bryanwahyu/seo-analyzer/internal/application"
	appanalysis "github.com/bryanwahyu/seo-analyzer/internal/application/analysis"
	domain "github.com/bryanwahyu/seo-analyzer/internal/domain/analysis"
	"github.com/bryanwahyu/seo-analyzer/internal/observability"
	"github.com/bryanwahyu/seo-analyzer/internal/sessions"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

//
// ==== FAKES ====
//

type fakeRepo struct {
	mu        sync.Mutex
	jobs      map[domain.JobID]*domain.Job
	statuses  []domain.Status // every persisted status, in call order
	logs      []*domain.LogEntry
	createErr error
	failOn    domain.Status // UpdateStatus fails when persisting this status
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{jobs: make(map[domain.JobID]*domain.Job)}
}

func (r *fakeRepo) CreateJob(ctx context.Context, j *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	cp := *j
	r.jobs[j.ID] = &cp
	r.statuses = append(r.statuses, j.Status)
	return nil
}

func (r *fakeRepo) UpdateStatus(ctx context.Context, j *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn != "" && j.Status == r.failOn {
		return errors.New("store unavailable")
	}
	cp := *j
	r.jobs[j.ID] = &cp
	r.statuses = append(r.statuses, j.Status)
	return nil
}

func (r *fakeRepo) Get(ctx context.Context, id domain.JobID) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (r *fakeRepo) Latest(ctx context.Context, limit int) ([]*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		cp := *j
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeRepo) AppendLog(ctx context.Context, e *domain.LogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *e
	r.logs = append(r.logs, &cp)
	return nil
}

func (r *fakeRepo) Logs(ctx context.Context, id domain.JobID, limit int) ([]*domain.LogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.LogEntry
	for _, e := range r.logs {
		if e.JobID == id {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeRepo) statusHistory() []domain.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Status(nil), r.statuses...)
}

func (r *fakeRepo) actions(id domain.JobID) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.logs {
		if e.JobID == id {
			out = append(out, e.Action)
		}
	}
	return out
}

// script drives one worker's fake capability behavior.
type script struct {
	fragments []string
	invokeErr error
	recvErr   error
	panics    bool
}

type fakeCapability struct {
	mu      sync.Mutex
	scripts map[domain.Worker]script
	calls   []domain.Invocation
}

func (c *fakeCapability) Invoke(ctx context.Context, inv domain.Invocation) (domain.FragmentStream, error) {
	c.mu.Lock()
	c.calls = append(c.calls, inv)
	sc := c.scripts[inv.Worker]
	c.mu.Unlock()

	if sc.panics {
		panic("capability blew up")
	}
	if sc.invokeErr != nil {
		return nil, sc.invokeErr
	}
	return &fakeStream{fragments: sc.fragments, recvErr: sc.recvErr}, nil
}

func (c *fakeCapability) callFor(w domain.Worker) (domain.Invocation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, inv := range c.calls {
		if inv.Worker == w {
			return inv, true
		}
	}
	return domain.Invocation{}, false
}

type fakeStream struct {
	fragments []string
	i         int
	recvErr   error
}

func (s *fakeStream) Recv() (domain.Fragment, error) {
	if s.i < len(s.fragments) {
		f := domain.Fragment{Text: s.fragments[s.i]}
		s.i++
		return f, nil
	}
	if s.recvErr != nil {
		return domain.Fragment{}, s.recvErr
	}
	return domain.Fragment{}, io.EOF
}

func (s *fakeStream) Close() error { return nil }

// allSucceedScripts gives every analysis worker a parseable score and the
// report worker a multi-section report.
func allSucceedScripts() map[domain.Worker]script {
	return map[domain.Worker]script{
		domain.WorkerSecurity:     {fragments: []string{"HTTPS is enforced. ", "Score: 80/100"}},
		domain.WorkerOnPage:       {fragments: []string{"Meta tags look fine. Score: 90/100"}},
		domain.WorkerContent:      {fragments: []string{"Readable copy. Score: 70/100"}},
		domain.WorkerPerformance:  {fragments: []string{"Fast enough. Score: 60/100"}},
		domain.WorkerIndexability: {fragments: []string{"Crawlable. Score: 100/100"}},
		domain.WorkerReport: {fragments: []string{
			"## Security\nScore: 80/100\n",
			"## Performance\nScore: 60/100\n",
			"✅ HTTPS ⚠️ images ❌ missing sitemap\n",
		}},
	}
}

func newService(repo *fakeRepo, capability *fakeCapability) *appanalysis.Service {
	clock := application.SystemClock{}
	return &appanalysis.Service{
		Tracker:    appanalysis.NewTracker(repo, clock),
		Repo:       repo,
		Capability: capability,
		Sessions:   sessions.NewRegistry(),
		Recorder:   observability.NewRecorder(repo),
		Clock:      clock,
	}
}

//
// ==== RUN PIPELINE ====
//

func TestAnalyzeAllWorkersSucceed(t *testing.T) {
	repo := newFakeRepo()
	capability := &fakeCapability{scripts: allSucceedScripts()}
	svc := newService(repo, capability)

	res, err := svc.Analyze(context.Background(), "https://example.com")
	require.NoError(t, err)

	require.Equal(t, domain.StatusCompleted, res.Status)
	require.Equal(t, 80, res.OverallScore) // (80+90+70+60+100)/5
	require.Len(t, res.Workers, 5)
	for _, w := range domain.AnalysisWorkers() {
		require.True(t, res.Workers[w].Success, "worker %s", w)
	}
	// fragments arrive in order and concatenate into the final report
	require.True(t, strings.HasPrefix(res.Report, "## Security\nScore: 80/100\n"))
	require.Equal(t, 80, res.CategoryScores["security"])
	require.Equal(t, 60, res.CategoryScores["performance"])

	// pending at create, then analyzing, then terminal
	require.Equal(t, []domain.Status{
		domain.StatusPending, domain.StatusAnalyzing, domain.StatusCompleted,
	}, repo.statusHistory())

	stored, err := repo.Get(context.Background(), res.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, stored.Status)
	require.NotNil(t, stored.CompletedAt)
	require.Equal(t, 80, stored.OverallScore)

	// five analysis sessions plus one report session
	require.Equal(t, 6, svc.Sessions.Count())
}

func TestAnalyzeOpensAndClosesOneTrace(t *testing.T) {
	repo := newFakeRepo()
	capability := &fakeCapability{scripts: allSucceedScripts()}
	svc := newService(repo, capability)

	res, err := svc.Analyze(context.Background(), "https://example.com")
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, res.Status)

	tracer := svc.Recorder.Tracer
	require.Equal(t, 1, tracer.TracesStarted())
	require.Equal(t, 1, tracer.TracesEnded())

	// root + batch + 5 workers + synthesis, all settled
	spans := tracer.Spans("")
	require.Len(t, spans, 8)
	for _, sp := range spans {
		require.NotEqual(t, "in_progress", sp.Status, "span %s left open", sp.Name)
	}
}

func TestWorkerFaultDoesNotAbortBatch(t *testing.T) {
	scripts := allSucceedScripts()
	scripts[domain.WorkerSecurity] = script{invokeErr: errors.New("connection refused")}
	repo := newFakeRepo()
	capability := &fakeCapability{scripts: scripts}
	svc := newService(repo, capability)

	res, err := svc.Analyze(context.Background(), "https://example.com")
	require.NoError(t, err)

	require.Equal(t, domain.StatusCompleted, res.Status)
	require.False(t, res.Workers[domain.WorkerSecurity].Success)
	require.Contains(t, res.Workers[domain.WorkerSecurity].Error, "connection refused")
	for _, w := range []domain.Worker{domain.WorkerOnPage, domain.WorkerContent, domain.WorkerPerformance, domain.WorkerIndexability} {
		require.True(t, res.Workers[w].Success, "worker %s", w)
	}
	// failed worker is skipped by the average: (90+70+60+100)/4
	require.Equal(t, 80, res.OverallScore)

	// the synthesis prompt tells the report writer which analysis failed
	inv, ok := capability.callFor(domain.WorkerReport)
	require.True(t, ok)
	require.Contains(t, inv.Prompt, "Analysis failed")
	require.Contains(t, inv.Prompt, "connection refused")
}

func TestWorkerPanicDegradesOnlyThatWorker(t *testing.T) {
	scripts := allSucceedScripts()
	scripts[domain.WorkerContent] = script{panics: true}
	repo := newFakeRepo()
	svc := newService(repo, &fakeCapability{scripts: scripts})

	res, err := svc.Analyze(context.Background(), "https://example.com")
	require.NoError(t, err)

	require.Equal(t, domain.StatusCompleted, res.Status)
	require.False(t, res.Workers[domain.WorkerContent].Success)
	require.Contains(t, res.Workers[domain.WorkerContent].Error, "worker fault")
	require.True(t, res.Workers[domain.WorkerSecurity].Success)
}

func TestStreamFaultFailsWorker(t *testing.T) {
	scripts := allSucceedScripts()
	scripts[domain.WorkerPerformance] = script{
		fragments: []string{"partial out"},
		recvErr:   errors.New("stream reset"),
	}
	repo := newFakeRepo()
	svc := newService(repo, &fakeCapability{scripts: scripts})

	res, err := svc.Analyze(context.Background(), "https://example.com")
	require.NoError(t, err)

	require.Equal(t, domain.StatusCompleted, res.Status)
	require.False(t, res.Workers[domain.WorkerPerformance].Success)
	require.Contains(t, res.Workers[domain.WorkerPerformance].Error, "stream reset")
}

func TestSynthesisFaultYieldsPartial(t *testing.T) {
	scripts := allSucceedScripts()
	scripts[domain.WorkerReport] = script{invokeErr: errors.New("model overloaded")}
	repo := newFakeRepo()
	svc := newService(repo, &fakeCapability{scripts: scripts})

	res, err := svc.Analyze(context.Background(), "https://example.com")
	require.NoError(t, err)

	require.Equal(t, domain.StatusPartial, res.Status)
	require.Equal(t, "Report generation failed. See individual worker results.", res.Report)
	// worker scores survive even without a report
	require.Equal(t, 80, res.OverallScore)

	stored, err := repo.Get(context.Background(), res.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusPartial, stored.Status)
}

func TestSynthesisPanicYieldsPartial(t *testing.T) {
	scripts := allSucceedScripts()
	scripts[domain.WorkerReport] = script{panics: true}
	repo := newFakeRepo()
	svc := newService(repo, &fakeCapability{scripts: scripts})

	res, err := svc.Analyze(context.Background(), "https://example.com")
	require.NoError(t, err)
	require.Equal(t, domain.StatusPartial, res.Status)
}

func TestQuotaExhaustionAcrossAllWorkers(t *testing.T) {
	scripts := make(map[domain.Worker]script)
	for _, w := range domain.AnalysisWorkers() {
		scripts[w] = script{invokeErr: domain.ErrQuotaExceeded}
	}
	scripts[domain.WorkerReport] = script{invokeErr: domain.ErrQuotaExceeded}
	repo := newFakeRepo()
	svc := newService(repo, &fakeCapability{scripts: scripts})

	res, err := svc.Analyze(context.Background(), "https://example.com")
	require.NoError(t, err)

	// every stage degraded, nothing scored, but the run still settles
	require.Equal(t, domain.StatusPartial, res.Status)
	require.Equal(t, 0, res.OverallScore)
	for _, w := range domain.AnalysisWorkers() {
		require.False(t, res.Workers[w].Success)
	}
}

func TestCreateJobFailureIsFatal(t *testing.T) {
	repo := newFakeRepo()
	repo.createErr = errors.New("connection pool exhausted")
	svc := newService(repo, &fakeCapability{scripts: allSucceedScripts()})

	res, err := svc.Analyze(context.Background(), "https://example.com")
	require.Error(t, err)
	require.Equal(t, domain.StatusFailed, res.Status)
	require.Empty(t, res.ID)
}

func TestTerminalPersistFailureFailsJob(t *testing.T) {
	repo := newFakeRepo()
	repo.failOn = domain.StatusCompleted
	svc := newService(repo, &fakeCapability{scripts: allSucceedScripts()})

	res, err := svc.Analyze(context.Background(), "https://example.com")
	require.Error(t, err)
	require.Equal(t, domain.StatusFailed, res.Status)
	require.Contains(t, res.ErrorMessage, "store unavailable")

	stored, serr := repo.Get(context.Background(), res.ID)
	require.NoError(t, serr)
	require.Equal(t, domain.StatusFailed, stored.Status)
}

func TestTargetNormalizationFlowsIntoPrompts(t *testing.T) {
	repo := newFakeRepo()
	capability := &fakeCapability{scripts: allSucceedScripts()}
	svc := newService(repo, capability)

	res, err := svc.Analyze(context.Background(), "example.com/")
	require.NoError(t, err)
	require.Equal(t, "https://example.com", res.Target)

	capability.mu.Lock()
	defer capability.mu.Unlock()
	require.Len(t, capability.calls, 6)
	for _, inv := range capability.calls {
		require.Contains(t, inv.Prompt, "https://example.com")
		require.NotEmpty(t, inv.Session)
	}
}

func TestWorkersUseDistinctSessions(t *testing.T) {
	repo := newFakeRepo()
	capability := &fakeCapability{scripts: allSucceedScripts()}
	svc := newService(repo, capability)

	_, err := svc.Analyze(context.Background(), "https://example.com")
	require.NoError(t, err)

	capability.mu.Lock()
	defer capability.mu.Unlock()
	seen := make(map[string]domain.Worker)
	for _, inv := range capability.calls {
		prev, dup := seen[inv.Session]
		require.False(t, dup, "session shared between %s and %s", prev, inv.Worker)
		seen[inv.Session] = inv.Worker
	}
}

func TestProgressProjection(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo, &fakeCapability{scripts: allSucceedScripts()})

	res, err := svc.Analyze(context.Background(), "https://example.com")
	require.NoError(t, err)

	p, err := svc.Progress(res.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, p.Status)
	require.Len(t, p.Workers, 6)

	wantOrder := append(domain.AnalysisWorkers(), domain.WorkerReport)
	for i, wp := range p.Workers {
		require.Equal(t, wantOrder[i], wp.Name)
		require.Equal(t, domain.WorkerCompleted, wp.Status)
		require.NotNil(t, wp.DurationMS)
	}

	_, err = svc.Progress("no-such-job")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestActionLogCoversRunStages(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo, &fakeCapability{scripts: allSucceedScripts()})

	res, err := svc.Analyze(context.Background(), "https://example.com")
	require.NoError(t, err)

	actions := repo.actions(res.ID)
	require.Contains(t, actions, "parallel_analysis_start")
	require.Contains(t, actions, "report_generation_start")
	require.Contains(t, actions, "analysis_finished")
	// one completion entry per analysis worker plus the report
	count := 0
	for _, a := range actions {
		if a == "analysis_complete" {
			count++
		}
	}
	require.Equal(t, 6, count)
}

func TestRunForPrecreatedJob(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo, &fakeCapability{scripts: allSucceedScripts()})

	job, err := svc.Tracker.Create(context.Background(), "https://example.com")
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, job.Status)

	res, err := svc.Run(job)
	require.NoError(t, err)
	require.Equal(t, job.ID, res.ID)
	require.Equal(t, domain.StatusCompleted, res.Status)
}
