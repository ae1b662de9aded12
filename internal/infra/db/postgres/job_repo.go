package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	domain "github.com/bryanwahyu/seo-analyzer/internal/domain/analysis"
)

type JobRepository struct{ db *sql.DB }

func NewJobRepository(db *sql.DB) *JobRepository { return &JobRepository{db: db} }

// CreateJob inserts the initial pending row for a job
func (r *JobRepository) CreateJob(ctx context.Context, j *domain.Job) error {
	const q = `
INSERT INTO analysis_jobs
(id, target, status, overall_score, report_markdown, result_json,
 artifact_url, error_message, duration_ms, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10);`
	created := j.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q,
		j.ID, j.Target, stringOrDash(string(j.Status)), j.OverallScore,
		j.Report, j.ResultJSON, j.ArtifactURL, j.ErrorMessage,
		j.DurationMS, created,
	)
	return err
}

// UpdateStatus writes one job snapshot in a single statement
func (r *JobRepository) UpdateStatus(ctx context.Context, j *domain.Job) error {
	const q = `
UPDATE analysis_jobs
SET status = $1,
    overall_score = $2,
    report_markdown = $3,
    result_json = $4,
    artifact_url = $5,
    error_message = $6,
    duration_ms = $7,
    completed_at = $8,
    updated_at = NOW()
WHERE id = $9;`
	var completed sql.NullTime
	if j.CompletedAt != nil {
		completed = sql.NullTime{Time: *j.CompletedAt, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, q,
		stringOrDash(string(j.Status)), j.OverallScore, j.Report, j.ResultJSON,
		j.ArtifactURL, j.ErrorMessage, j.DurationMS, completed, j.ID,
	)
	return err
}

// Get by ID
func (r *JobRepository) Get(ctx context.Context, id domain.JobID) (*domain.Job, error) {
	const q = `
SELECT id, target, status, overall_score, report_markdown, result_json,
       artifact_url, error_message, duration_ms, created_at, completed_at
FROM analysis_jobs
WHERE id=$1
LIMIT 1;`
	row := r.db.QueryRowContext(ctx, q, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return j, err
}

// Latest jobs ordered by creation time
func (r *JobRepository) Latest(ctx context.Context, limit int) ([]*domain.Job, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, target, status, overall_score, report_markdown, result_json,
       artifact_url, error_message, duration_ms, created_at, completed_at
FROM analysis_jobs
ORDER BY created_at DESC
LIMIT $1;`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// AppendLog inserts one append-only action log row
func (r *JobRepository) AppendLog(ctx context.Context, e *domain.LogEntry) error {
	const q = `
INSERT INTO analysis_logs (job_id, worker, action, detail, duration_ms, created_at)
VALUES ($1,$2,$3,$4,$5,$6);`
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q,
		e.JobID, stringOrDash(string(e.Worker)), e.Action, e.Detail, e.DurationMS, created,
	)
	return err
}

// Logs returns the action log for one job in append order
func (r *JobRepository) Logs(ctx context.Context, id domain.JobID, limit int) ([]*domain.LogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT job_id, worker, action, detail, duration_ms, created_at
FROM analysis_logs
WHERE job_id=$1
ORDER BY created_at ASC, id ASC
LIMIT $2;`
	rows, err := r.db.QueryContext(ctx, q, id, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.LogEntry
	for rows.Next() {
		var e domain.LogEntry
		var detail sql.NullString
		if err := rows.Scan(&e.JobID, &e.Worker, &e.Action, &detail, &e.DurationMS, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Detail = detail.String
		out = append(out, &e)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var j domain.Job
	var report, resultJSON, artifactURL, errMsg sql.NullString
	var completed sql.NullTime
	if err := row.Scan(
		&j.ID, &j.Target, &j.Status, &j.OverallScore, &report, &resultJSON,
		&artifactURL, &errMsg, &j.DurationMS, &j.CreatedAt, &completed,
	); err != nil {
		return nil, err
	}
	j.Report = report.String
	j.ResultJSON = resultJSON.String
	j.ArtifactURL = artifactURL.String
	j.ErrorMessage = errMsg.String
	if completed.Valid {
		t := completed.Time
		j.CompletedAt = &t
	}
	return &j, nil
}

// stringOrDash returns "-" when the input is empty/whitespace
func stringOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
