package observability

import (
	"context"
	"log"

	domain "github.com/bryanwahyu/seo-analyzer/internal/domain/analysis"
)

// AuditLog is the durable append-only sink. It persists independently of the
// in-memory trace store and is the basis for history queries.
type AuditLog interface {
	AppendLog(ctx context.Context, e *domain.LogEntry) error
}

// Recorder ties together the in-memory tracer/metrics and the durable audit
// log. Durable writes are best-effort: a failing log write never fails the
// run it documents.
type Recorder struct {
	Tracer  *Tracer
	Metrics *Metrics
	Audit   AuditLog
}

func NewRecorder(audit AuditLog) *Recorder {
	return &Recorder{
		Tracer:  NewTracer(),
		Metrics: NewMetrics(),
		Audit:   audit,
	}
}

func (r *Recorder) append(ctx context.Context, e *domain.LogEntry) {
	if r.Audit == nil {
		return
	}
	if err := r.Audit.AppendLog(ctx, e); err != nil {
		log.Printf("audit log write failed: job=%s worker=%s action=%s err=%v",
			e.JobID, e.Worker, e.Action, err)
	}
}

// RunStarted records the beginning of a parallel batch.
func (r *Recorder) RunStarted(ctx context.Context, id domain.JobID, target string) {
	r.Metrics.Count("analysis_starts", nil)
	r.append(ctx, &domain.LogEntry{
		JobID:  id,
		Worker: "orchestrator",
		Action: "parallel_analysis_start",
		Detail: target,
	})
}

// WorkerStarted records a worker dispatch.
func (r *Recorder) WorkerStarted(ctx context.Context, id domain.JobID, w domain.Worker) {
	r.Metrics.Count("worker_starts", map[string]string{"worker": string(w)})
}

// WorkerFinished records a settled worker result, durable and in-memory.
func (r *Recorder) WorkerFinished(ctx context.Context, id domain.JobID, res domain.WorkerResult) {
	status := "success"
	action := "analysis_complete"
	detail := ""
	if !res.Success {
		status = "error"
		action = "analysis_error"
		detail = res.Error
	}
	r.Metrics.Count("worker_completions", map[string]string{"worker": string(res.Worker), "status": status})
	r.Metrics.Observe("worker_duration_ms", float64(res.DurationMS), map[string]string{"worker": string(res.Worker)})
	r.append(ctx, &domain.LogEntry{
		JobID:      id,
		Worker:     res.Worker,
		Action:     action,
		Detail:     detail,
		DurationMS: res.DurationMS,
	})
}

// SynthesisStarted records the start of the sequential report stage.
func (r *Recorder) SynthesisStarted(ctx context.Context, id domain.JobID) {
	r.append(ctx, &domain.LogEntry{
		JobID:  id,
		Worker: "orchestrator",
		Action: "report_generation_start",
	})
}

// RunFinished records the outcome of a complete run.
func (r *Recorder) RunFinished(ctx context.Context, id domain.JobID, status domain.Status, totalMS int64) {
	r.Metrics.Count("analysis_completions", map[string]string{"status": string(status)})
	r.Metrics.Observe("analysis_duration_ms", float64(totalMS), nil)
	r.append(ctx, &domain.LogEntry{
		JobID:      id,
		Worker:     "orchestrator",
		Action:     "analysis_finished",
		Detail:     string(status),
		DurationMS: totalMS,
	})
}
