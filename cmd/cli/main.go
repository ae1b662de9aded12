package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bryanwahyu/seo-analyzer/internal/application"
	appanalysis "github.com/bryanwahyu/seo-analyzer/internal/application/analysis"
	"github.com/bryanwahyu/seo-analyzer/internal/config"
	domain "github.com/bryanwahyu/seo-analyzer/internal/domain/analysis"
	"github.com/bryanwahyu/seo-analyzer/internal/infra/ai/openai"
	mysqlp "github.com/bryanwahyu/seo-analyzer/internal/infra/db/mysql"
	postgresp "github.com/bryanwahyu/seo-analyzer/internal/infra/db/postgres"
	"github.com/bryanwahyu/seo-analyzer/internal/observability"
	"github.com/bryanwahyu/seo-analyzer/internal/sessions"
)

func main() {
	_ = godotenv.Load()

	var configPath string

	root := &cobra.Command{
		Use:   "seo-analyzer",
		Short: "Run SEO analyses against websites from the command line",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config file")

	root.AddCommand(analyzeCmd(&configPath))
	root.AddCommand(historyCmd(&configPath))
	root.AddCommand(logsCmd(&configPath))

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func analyzeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <url>",
		Short: "Analyze one website and print the report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, db, err := buildService(*configPath)
			if err != nil {
				return err
			}
			defer db.Close()

			res, err := svc.Analyze(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Job:     %s\n", res.ID)
			fmt.Printf("Target:  %s\n", res.Target)
			fmt.Printf("Status:  %s\n", res.Status)
			fmt.Printf("Score:   %d/100\n", res.OverallScore)
			fmt.Printf("Took:    %dms\n\n", res.DurationMS)
			if res.Report != "" {
				fmt.Println(res.Report)
			}
			for _, w := range domain.AnalysisWorkers() {
				if wr, ok := res.Workers[w]; ok && !wr.Success {
					fmt.Fprintf(os.Stderr, "worker %s failed: %s\n", w, wr.Error)
				}
			}
			return nil
		},
	}
}

func historyCmd(configPath *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent analysis jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, db, err := buildService(*configPath)
			if err != nil {
				return err
			}
			defer db.Close()

			jobs, err := svc.Latest(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, j := range jobs {
				fmt.Printf("%s  %-10s  score=%-3s  %s\n",
					j.CreatedAt.Format("2006-01-02 15:04"),
					j.Status,
					scoreCell(j),
					j.Target,
				)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of jobs to list")
	return cmd
}

func logsCmd(configPath *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "logs <job-id>",
		Short: "Print the action log for one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, db, err := buildService(*configPath)
			if err != nil {
				return err
			}
			defer db.Close()

			entries, err := svc.Logs(cmd.Context(), domain.JobID(args[0]), limit)
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Printf("%s  %-25s  %s\n",
					e.CreatedAt.Format("15:04:05"), e.Action, e.Detail)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "number of entries to print")
	return cmd
}

func scoreCell(j *domain.Job) string {
	if j.Status != domain.StatusCompleted && j.Status != domain.StatusPartial {
		return "-"
	}
	return strconv.Itoa(j.OverallScore)
}

func buildService(configPath string) (*appanalysis.Service, *sql.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("config load: %w", err)
	}

	ctx := context.Background()
	var db *sql.DB
	var repo domain.Repository
	switch cfg.Database.Driver {
	case "postgres":
		db, err = postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, nil, err
		}
		repo = postgresp.NewJobRepository(db)
	default:
		db, err = mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, nil, err
		}
		repo = mysqlp.NewJobRepository(db)
	}

	if cfg.OpenAI.APIKey == "" {
		log.Println("warning: no OpenAI API key configured")
	}

	clock := application.SystemClock{}
	svc := &appanalysis.Service{
		Tracker:    appanalysis.NewTracker(repo, clock),
		Repo:       repo,
		Capability: openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model),
		Sessions:   sessions.NewRegistry(),
		Recorder:   observability.NewRecorder(repo),
		Clock:      clock,
	}
	return svc, db, nil
}
