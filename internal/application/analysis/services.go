package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/seo-analyzer/internal/application"
	domain "github.com/bryanwahyu/seo-analyzer/internal/domain/analysis"
	"github.com/bryanwahyu/seo-analyzer/internal/infra/ai/prompt"
	"github.com/bryanwahyu/seo-analyzer/internal/observability"
	"github.com/bryanwahyu/seo-analyzer/internal/scoring"
	"github.com/bryanwahyu/seo-analyzer/internal/sessions"
)

// Service implements the analysis use-cases. It fans out the fixed worker
// set concurrently, synthesizes their outputs into one report, and tracks
// the whole operation as a pollable job.
// Service is designed to be used concurrently and is thread-safe.
type Service struct {
	Tracker    *Tracker
	Repo       domain.Repository
	Capability domain.Capability
	Sessions   *sessions.Registry
	Recorder   *observability.Recorder
	Artifacts  domain.ArtifactStore // optional
	Renderer   domain.Renderer      // optional
	Clock      application.Clock
}

// Result is the record returned by a complete run. The Status field is the
// sole channel communicating the degree of success; worker and synthesis
// faults never surface as returned errors.
type Result struct {
	ID             domain.JobID                           `json:"id"`
	Target         string                                 `json:"target"`
	Status         domain.Status                          `json:"status"`
	Workers        map[domain.Worker]domain.WorkerResult  `json:"workers"`
	Report         string                                 `json:"report,omitempty"`
	OverallScore   int                                    `json:"overall_score"`
	CategoryScores map[string]int                         `json:"category_scores,omitempty"`
	Issues         int                                    `json:"issues_found"`
	Warnings       int                                    `json:"warnings"`
	Passed         int                                    `json:"passed"`
	ArtifactURL    string                                 `json:"artifact_url,omitempty"`
	ErrorMessage   string                                 `json:"error_message,omitempty"`
	DurationMS     int64                                  `json:"duration_ms"`
}

const failedReportPlaceholder = "Report generation failed. See individual worker results."

// Run executes the pipeline for an already created job with
// context.Background(), suitable for a background goroutine spawned by the
// HTTP layer so the run is not cut short by a canceled request context.
func (s *Service) Run(job *domain.Job) (Result, error) {
	return s.run(context.Background(), job)
}

// Analyze performs one complete run: create job, parallel analysis,
// sequential synthesis, scoring, optional artifact, terminal transition.
// The returned error is non-nil only for pipeline-fatal faults (store
// unavailable and the like); even then the Result record is populated and
// the job, when one exists, is left in status failed.
func (s *Service) Analyze(ctx context.Context, rawTarget string) (Result, error) {
	target := domain.NormalizeTarget(rawTarget)

	job, err := s.Tracker.Create(ctx, target)
	if err != nil {
		return Result{Target: target, Status: domain.StatusFailed, ErrorMessage: err.Error()}, err
	}
	return s.run(ctx, job)
}

func (s *Service) run(ctx context.Context, job *domain.Job) (res Result, err error) {
	target := job.Target
	start := s.Clock.Now()
	res = Result{ID: job.ID, Target: target, Status: domain.StatusFailed}

	trace := s.Recorder.Tracer.StartTrace("seo_analysis/" + string(job.ID))
	defer trace.End()

	// Anything escaping the worker and synthesis stages is pipeline-fatal:
	// capture it, park the job in failed, and still return a result record.
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("pipeline fault: %v", r)
			log.Printf("[%s] %s", job.ID, msg)
			_ = s.Tracker.Transition(context.Background(), job.ID, domain.StatusFailed, Update{
				ErrorMessage: msg,
				DurationMS:   s.Clock.Now().Sub(start).Milliseconds(),
			})
			res.Status = domain.StatusFailed
			res.ErrorMessage = msg
			err = errors.New(msg)
		}
	}()

	if terr := s.Tracker.Transition(ctx, job.ID, domain.StatusAnalyzing, Update{}); terr != nil {
		res.ErrorMessage = terr.Error()
		return res, terr
	}
	s.Recorder.RunStarted(ctx, job.ID, target)

	// STEP 1: parallel fan-out/fan-in over the fixed worker set.
	results := s.runParallel(ctx, trace, job.ID, target)
	res.Workers = results

	// STEP 2: sequential synthesis, strictly after the batch has settled.
	s.Recorder.SynthesisStarted(ctx, job.ID)
	reportRes := s.synthesize(ctx, trace, job.ID, target, results)
	s.Tracker.WorkerDone(job.ID, reportRes)

	status := domain.StatusCompleted
	report := reportRes.Output
	if !reportRes.Success {
		// Synthesis fault degrades the job, it never fails it.
		status = domain.StatusPartial
		report = failedReportPlaceholder
	}

	overall := scoring.Overall(results)
	res.Report = report
	res.OverallScore = overall
	res.CategoryScores = scoring.CategoryScores(report)
	res.Issues, res.Warnings, res.Passed = scoring.ReportStats(report)

	// Artifact rendering is optional and degrades gracefully.
	if reportRes.Success {
		res.ArtifactURL = s.renderArtifact(ctx, job.ID, target, report, overall)
	}

	res.DurationMS = s.Clock.Now().Sub(start).Milliseconds()
	update := Update{
		Report:       report,
		ResultJSON:   marshalResults(results),
		OverallScore: overall,
		ArtifactURL:  res.ArtifactURL,
		DurationMS:   res.DurationMS,
	}
	if terr := s.Tracker.Transition(ctx, job.ID, status, update); terr != nil {
		// Durable store lost mid-run: report the job as failed.
		_ = s.Tracker.Transition(context.Background(), job.ID, domain.StatusFailed, Update{
			ErrorMessage: terr.Error(),
			DurationMS:   res.DurationMS,
		})
		res.Status = domain.StatusFailed
		res.ErrorMessage = terr.Error()
		s.Recorder.RunFinished(ctx, job.ID, domain.StatusFailed, res.DurationMS)
		return res, terr
	}

	res.Status = status
	s.Recorder.RunFinished(ctx, job.ID, status, res.DurationMS)
	log.Printf("[%s] analysis complete in %dms status=%s score=%d",
		job.ID, res.DurationMS, status, overall)
	return res, nil
}

// runParallel dispatches every analysis worker concurrently and waits for
// all of them to settle. A faulting worker is recorded as a failed result
// and never cancels or otherwise affects its siblings.
func (s *Service) runParallel(ctx context.Context, trace *observability.Trace, id domain.JobID, target string) map[domain.Worker]domain.WorkerResult {
	results := make(map[domain.Worker]domain.WorkerResult)

	_ = trace.WithSpan("parallel_analysis", nil, func(batch *observability.Span) error {
		batchStart := s.Clock.Now()

		var mu sync.Mutex
		g := new(errgroup.Group)

		for _, w := range domain.AnalysisWorkers() {
			w := w
			sess := s.Sessions.Create(string(id), string(w))
			s.Tracker.WorkerRunning(id, w)
			s.Recorder.WorkerStarted(ctx, id, w)

			g.Go(func() error {
				wr := s.invokeWorker(ctx, trace, batch, w, target, sess)
				mu.Lock()
				results[w] = wr
				mu.Unlock()
				s.Tracker.WorkerDone(id, wr)
				s.Recorder.WorkerFinished(ctx, id, wr)
				// Always nil: the group must wait for every sibling.
				return nil
			})
		}
		_ = g.Wait()

		s.Recorder.Metrics.Observe("batch_duration_ms",
			float64(s.Clock.Now().Sub(batchStart).Milliseconds()), nil)
		return nil
	})

	return results
}

// invokeWorker runs one capability invocation and collects its fragment
// stream into the worker's final text.
func (s *Service) invokeWorker(ctx context.Context, trace *observability.Trace, parent *observability.Span, w domain.Worker, target string, sess *sessions.Session) domain.WorkerResult {
	start := s.Clock.Now()
	wr := domain.WorkerResult{Worker: w}

	err := trace.WithSpan("worker/"+string(w), parent, func(sp *observability.Span) (rerr error) {
		// A panicking capability degrades this worker, never the batch.
		defer func() {
			if r := recover(); r != nil {
				rerr = fmt.Errorf("worker fault: %v", r)
			}
		}()
		text, ierr := s.invoke(ctx, domain.Invocation{
			Worker:  w,
			System:  prompt.WorkerSystemPrompt(w),
			Prompt:  prompt.WorkerUserPrompt(w, target),
			Session: sess.ID,
		})
		if ierr != nil {
			return ierr
		}
		wr.Output = text
		return nil
	})

	wr.DurationMS = s.Clock.Now().Sub(start).Milliseconds()
	if err != nil {
		wr.Error = err.Error()
		log.Printf("[%s] worker %s failed: %v", sess.JobID, w, err)
		return wr
	}
	wr.Success = true
	return wr
}

// synthesize runs the single sequential report invocation in its own
// session. Its fault is recovered into a failed WorkerResult.
func (s *Service) synthesize(ctx context.Context, trace *observability.Trace, id domain.JobID, target string, results map[domain.Worker]domain.WorkerResult) domain.WorkerResult {
	sess := s.Sessions.Create(string(id), string(domain.WorkerReport))
	s.Tracker.WorkerRunning(id, domain.WorkerReport)
	s.Recorder.WorkerStarted(ctx, id, domain.WorkerReport)

	start := s.Clock.Now()
	wr := domain.WorkerResult{Worker: domain.WorkerReport}

	err := trace.WithSpan("synthesis", nil, func(sp *observability.Span) (rerr error) {
		defer func() {
			if r := recover(); r != nil {
				rerr = fmt.Errorf("synthesis fault: %v", r)
			}
		}()
		text, ierr := s.invoke(ctx, domain.Invocation{
			Worker:  domain.WorkerReport,
			System:  prompt.ReportSystemPrompt(),
			Prompt:  prompt.ReportUserPrompt(target, results),
			Session: sess.ID,
		})
		if ierr != nil {
			return ierr
		}
		wr.Output = text
		return nil
	})

	wr.DurationMS = s.Clock.Now().Sub(start).Milliseconds()
	if err != nil {
		wr.Error = err.Error()
		log.Printf("[%s] report synthesis failed: %v", id, err)
	} else {
		wr.Success = true
	}
	s.Recorder.WorkerFinished(ctx, id, wr)
	return wr
}

// invoke performs one capability call and concatenates its fragments.
func (s *Service) invoke(ctx context.Context, inv domain.Invocation) (string, error) {
	stream, err := s.Capability.Invoke(ctx, inv)
	if err != nil {
		return "", fmt.Errorf("invoke %s: %w", inv.Worker, err)
	}
	defer stream.Close()

	var b strings.Builder
	for {
		frag, rerr := stream.Recv()
		if errors.Is(rerr, io.EOF) {
			return b.String(), nil
		}
		if rerr != nil {
			return "", fmt.Errorf("invoke %s: stream: %w", inv.Worker, rerr)
		}
		b.WriteString(frag.Text)
	}
}

func (s *Service) renderArtifact(ctx context.Context, id domain.JobID, target, report string, score int) string {
	if s.Renderer == nil || s.Artifacts == nil {
		return ""
	}
	path, err := s.Renderer.Render(report, target, id, score)
	if err != nil {
		log.Printf("[%s] artifact render failed: %v", id, err)
		return ""
	}
	key := fmt.Sprintf("reports/%s.html", id)
	url, err := s.Artifacts.UploadAndCleanup(ctx, path, key)
	if err != nil {
		log.Printf("[%s] artifact upload failed: %v", id, err)
		return ""
	}
	return url
}

func marshalResults(results map[domain.Worker]domain.WorkerResult) string {
	type summary struct {
		Success    bool   `json:"success"`
		DurationMS int64  `json:"duration_ms"`
		Error      string `json:"error,omitempty"`
	}
	out := make(map[string]summary, len(results))
	for w, r := range results {
		out[string(w)] = summary{Success: r.Success, DurationMS: r.DurationMS, Error: r.Error}
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "{}"
	}
	return string(b)
}

//
// ==== QUERY USE CASES ====
//

// Get returns one job by id.
func (s *Service) Get(ctx context.Context, id domain.JobID) (*domain.Job, error) {
	return s.Tracker.Get(ctx, id)
}

// Progress returns the polling projection for one job.
func (s *Service) Progress(id domain.JobID) (domain.Progress, error) {
	return s.Tracker.Progress(id)
}

// Latest returns the most recent jobs.
func (s *Service) Latest(ctx context.Context, limit int) ([]*domain.Job, error) {
	return s.Repo.Latest(ctx, limit)
}

// Logs returns the durable action log for one job.
func (s *Service) Logs(ctx context.Context, id domain.JobID, limit int) ([]*domain.LogEntry, error) {
	return s.Repo.Logs(ctx, id, limit)
}
