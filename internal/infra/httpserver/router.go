package httpserver

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	appanalysis "github.com/bryanwahyu/seo-analyzer/internal/application/analysis"
	domain "github.com/bryanwahyu/seo-analyzer/internal/domain/analysis"
	"github.com/bryanwahyu/seo-analyzer/internal/middleware"
)

type Router struct {
	svc *appanalysis.Service
}

// Options configures the HTTP surface around the analysis service.
type Options struct {
	CORSOrigins       []string
	APIKeys           map[string]string
	RateCapacity      int
	RateRefillPerSec  int
	HealthCheckers    map[string]middleware.HealthChecker
	MetricsSummarizer func() map[string]any
}

func NewRouter(svc *appanalysis.Service, opts Options) http.Handler {
	r := &Router{svc: svc}
	mux := chi.NewRouter()

	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.MetricsMiddleware)
	if len(opts.CORSOrigins) > 0 {
		mux.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
		}))
	}
	mux.Use(middleware.APIKeyAuth(opts.APIKeys))
	if opts.RateCapacity > 0 {
		mux.Use(middleware.RateLimitMiddleware(opts.RateCapacity, opts.RateRefillPerSec))
	}

	mux.Get("/health", middleware.HealthHandler(opts.HealthCheckers))
	mux.Get("/metrics", middleware.MetricsHandler(opts.MetricsSummarizer))

	mux.Route("/v1", func(rt chi.Router) {
		rt.Post("/analyze", r.wrap(r.handleAnalyze))
		rt.Get("/analysis", r.wrap(r.handleLatest))
		rt.Get("/analysis/{id}", r.wrap(r.handleGet))
		rt.Get("/analysis/{id}/progress", r.wrap(r.handleProgress))
		rt.Get("/analysis/{id}/logs", r.wrap(r.handleLogs))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			if errors.Is(err, domain.ErrQuotaExceeded) {
				http.Error(w, "capability quota exceeded", http.StatusTooManyRequests)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(v)
}

// POST /v1/analyze
// Body: {"url": "<target>"}
// The analysis runs in the background; poll the progress endpoint for status.
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return err
	}
	if err := middleware.ValidateTarget(body.URL); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil
	}

	target := domain.NormalizeTarget(body.URL)

	// Create the job record synchronously so the caller has an ID to poll,
	// then run the pipeline until done in the background.
	job, err := r.svc.Tracker.Create(req.Context(), target)
	if err != nil {
		return err
	}

	go func() {
		middleware.IncrementAnalyses()
		middleware.IncrementAnalysesRunning()
		defer middleware.DecrementAnalysesRunning()

		res, err := r.svc.Run(job)
		if err != nil {
			middleware.IncrementAnalysesFailed()
			log.Printf("background analysis error: job=%s target=%s err=%v", job.ID, target, err)
			return
		}
		log.Printf("analysis finished: job=%s status=%s score=%d", res.ID, res.Status, res.OverallScore)
	}()

	w.WriteHeader(http.StatusAccepted)
	return writeJSON(w, map[string]any{
		"id":       job.ID,
		"target":   target,
		"status":   job.Status,
		"queuedAt": time.Now(),
		"message":  "analysis started in background",
	})
}

// GET /v1/analysis/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	id := domain.JobID(chi.URLParam(req, "id"))

	job, err := r.svc.Get(req.Context(), id)
	if err != nil {
		return err
	}
	if !job.Status.Terminal() {
		w.WriteHeader(http.StatusAccepted)
		return writeJSON(w, map[string]any{
			"id":      job.ID,
			"status":  job.Status,
			"message": "analysis still in progress",
		})
	}
	return writeJSON(w, job)
}

// GET /v1/analysis/{id}/progress
func (r *Router) handleProgress(w http.ResponseWriter, req *http.Request) error {
	id := domain.JobID(chi.URLParam(req, "id"))

	p, err := r.svc.Progress(id)
	if err != nil {
		return err
	}
	return writeJSON(w, p)
}

// GET /v1/analysis?limit=20
func (r *Router) handleLatest(w http.ResponseWriter, req *http.Request) error {
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.svc.Latest(req.Context(), middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}
	return writeJSON(w, list)
}

// GET /v1/analysis/{id}/logs?limit=100
func (r *Router) handleLogs(w http.ResponseWriter, req *http.Request) error {
	id := domain.JobID(chi.URLParam(req, "id"))
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	logs, err := r.svc.Logs(req.Context(), id, limit)
	if err != nil {
		return err
	}
	return writeJSON(w, logs)
}
