package analysis

import (
	"strings"
	"time"
)

// JobID identifies one AnalysisJob
type JobID string

// Worker enum
type Worker string

const (
	WorkerSecurity     Worker = "security"
	WorkerOnPage       Worker = "onpage"
	WorkerContent      Worker = "content"
	WorkerPerformance  Worker = "performance"
	WorkerIndexability Worker = "indexability"
	WorkerReport       Worker = "report"
)

// AnalysisWorkers returns the fixed set of parallel analysis workers.
// The report worker is sequential and not part of this set.
func AnalysisWorkers() []Worker {
	return []Worker{
		WorkerSecurity,
		WorkerOnPage,
		WorkerContent,
		WorkerPerformance,
		WorkerIndexability,
	}
}

// Status enum
type Status string

const (
	StatusPending   Status = "pending"
	StatusAnalyzing Status = "analyzing"
	StatusCompleted Status = "completed"
	StatusPartial   Status = "partial"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further status transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusPartial || s == StatusFailed
}

// WorkerResult value object. Immutable once produced by a run.
type WorkerResult struct {
	Worker     Worker `json:"worker"`
	Success    bool   `json:"success"`
	Output     string `json:"output,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// Aggregate Root: Job
type Job struct {
	ID           JobID      `json:"id"`
	Target       string     `json:"target"`
	Status       Status     `json:"status"`
	OverallScore int        `json:"overall_score"`
	Report       string     `json:"report,omitempty"`
	ResultJSON   string     `json:"-"`
	ArtifactURL  string     `json:"artifact_url,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	DurationMS   int64      `json:"duration_ms"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// LogEntry is one row of the append-only per-job action log.
type LogEntry struct {
	JobID      JobID     `json:"job_id"`
	Worker     Worker    `json:"worker"`
	Action     string    `json:"action"`
	Detail     string    `json:"detail,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// WorkerState of a single worker as seen by the progress projection.
type WorkerState string

const (
	WorkerPending   WorkerState = "pending"
	WorkerRunning   WorkerState = "running"
	WorkerCompleted WorkerState = "completed"
	WorkerFailed    WorkerState = "failed"
)

// WorkerProgress is one worker's line in the progress projection.
type WorkerProgress struct {
	Name       Worker      `json:"name"`
	Status     WorkerState `json:"status"`
	DurationMS *int64      `json:"duration_ms,omitempty"`
}

// Progress is the read-only view consumed by a polling client.
type Progress struct {
	JobID         JobID            `json:"job_id"`
	Status        Status           `json:"status"`
	CurrentWorker Worker           `json:"current_worker,omitempty"`
	Workers       []WorkerProgress `json:"workers"`
}

// NormalizeTarget ensures the target URL carries a scheme. A bare host
// like "example.com" becomes "https://example.com".
func NormalizeTarget(raw string) string {
	t := strings.TrimSpace(raw)
	if t == "" {
		return t
	}
	if !strings.HasPrefix(t, "http://") && !strings.HasPrefix(t, "https://") {
		t = "https://" + t
	}
	return strings.TrimRight(t, "/")
}
