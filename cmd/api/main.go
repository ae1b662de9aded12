package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bryanwahyu/seo-analyzer/internal/application"
	appanalysis "github.com/bryanwahyu/seo-analyzer/internal/application/analysis"
	"github.com/bryanwahyu/seo-analyzer/internal/config"
	domain "github.com/bryanwahyu/seo-analyzer/internal/domain/analysis"
	"github.com/bryanwahyu/seo-analyzer/internal/infra/ai/openai"
	"github.com/bryanwahyu/seo-analyzer/internal/infra/artifact"
	mysqlp "github.com/bryanwahyu/seo-analyzer/internal/infra/db/mysql"
	postgresp "github.com/bryanwahyu/seo-analyzer/internal/infra/db/postgres"
	"github.com/bryanwahyu/seo-analyzer/internal/infra/httpserver"
	minioStore "github.com/bryanwahyu/seo-analyzer/internal/infra/storage"
	"github.com/bryanwahyu/seo-analyzer/internal/middleware"
	"github.com/bryanwahyu/seo-analyzer/internal/observability"
	"github.com/bryanwahyu/seo-analyzer/internal/sessions"
)

func main() {
	// .env is optional, env overrides apply in config.Parse
	_ = godotenv.Load()

	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx := context.Background()

	// connect durable store
	var db *sql.DB
	var repo domain.Repository
	switch cfg.Database.Driver {
	case "postgres":
		db, err = postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			log.Fatalf("postgres connect error: %v", err)
		}
		repo = postgresp.NewJobRepository(db)
	default:
		db, err = mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			log.Fatalf("mysql connect error: %v", err)
		}
		repo = mysqlp.NewJobRepository(db)
	}
	defer db.Close()

	// artifact store is optional
	var store domain.ArtifactStore
	var renderer domain.Renderer
	if cfg.Minio.Enabled {
		s, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			log.Fatalf("minio init error: %v", err)
		}
		store = s
		renderer = &artifact.HTMLRenderer{Dir: cfg.Artifacts.Dir}
	}

	clock := application.SystemClock{}
	recorder := observability.NewRecorder(repo)

	svc := &appanalysis.Service{
		Tracker:    appanalysis.NewTracker(repo, clock),
		Repo:       repo,
		Capability: openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model),
		Sessions:   sessions.NewRegistry(),
		Recorder:   recorder,
		Artifacts:  store,
		Renderer:   renderer,
		Clock:      clock,
	}

	handler := httpserver.NewRouter(svc, httpserver.Options{
		CORSOrigins:      cfg.Server.CORSOrigins,
		APIKeys:          cfg.Server.APIKeys,
		RateCapacity:     cfg.Server.RateLimit.Capacity,
		RateRefillPerSec: cfg.Server.RateLimit.RefillRate,
		HealthCheckers: map[string]middleware.HealthChecker{
			"database": &middleware.DatabaseHealthChecker{DB: db},
		},
		MetricsSummarizer: func() map[string]any {
			out := recorder.Metrics.Summary()
			out["traces_started"] = recorder.Tracer.TracesStarted()
			out["traces_ended"] = recorder.Tracer.TracesEnded()
			return out
		},
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
