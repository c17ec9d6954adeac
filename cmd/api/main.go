package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tracelight/ppm-backend/internal/api/handlers"
	"github.com/tracelight/ppm-backend/internal/api/middleware"
	"github.com/tracelight/ppm-backend/internal/auth"
	"github.com/tracelight/ppm-backend/internal/importer"
	"github.com/tracelight/ppm-backend/internal/jobs"
	jobsmem "github.com/tracelight/ppm-backend/internal/jobs/inmemory"
	"github.com/tracelight/ppm-backend/internal/logger"
	"github.com/tracelight/ppm-backend/internal/store"
	"github.com/tracelight/ppm-backend/internal/store/memory"
	"github.com/tracelight/ppm-backend/internal/store/postgres"
	"github.com/tracelight/ppm-backend/internal/variance"
)

func main() {
	godotenv.Load()

	// Parse command-line flags
	var (
		port   = flag.String("port", envDefault("PORT", "8080"), "HTTP server port (or set PORT env)")
		dsn    = flag.String("database-url", os.Getenv("DATABASE_URL"), "Postgres connection string (or set DATABASE_URL env)")
		tokens = flag.String("api-tokens", os.Getenv("API_TOKENS"), "token:user[:import] entries, comma-separated (or set API_TOKENS env)")
	)
	flag.Parse()

	// Initialize logger
	log := logger.New()

	verifier, err := auth.NewStaticVerifier(*tokens)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to parse API token table")
	}
	if *tokens == "" {
		log.Warn().Msg("No API tokens configured - every authenticated endpoint will answer 401")
	}

	ctx := context.Background()

	// Initialize repositories. Without a database URL everything runs
	// on the in-memory store, which is enough for local development.
	var (
		projects    store.ProjectStore
		commitments store.CommitmentStore
		actuals     store.ActualStore
		variances   store.VarianceStore
		importLogs  store.ImportLogStore
	)
	if *dsn != "" {
		pool, err := postgres.Connect(ctx, *dsn)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Postgres")
		}
		defer pool.Close()

		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("Failed to ensure database schema")
		}

		projects = postgres.NewProjectRepo(pool)
		commitments = postgres.NewCommitmentRepo(pool)
		actuals = postgres.NewActualRepo(pool)
		variances = postgres.NewVarianceRepo(pool)
		importLogs = postgres.NewImportLogRepo(pool)
	} else {
		log.Warn().Msg("No DATABASE_URL configured - using in-memory store, data is lost on restart")
		mem := memory.New()
		projects = mem
		commitments = mem.Commitments()
		actuals = mem.Actuals()
		variances = mem.Variances()
		importLogs = mem.ImportLogs()
	}

	imp := importer.New(projects, commitments, actuals, importLogs, log)
	aggregator := variance.NewAggregator(commitments, actuals, variances, log)

	// Initialize job infrastructure
	jobStore := jobsmem.NewStore()
	jobQueue := jobsmem.NewQueue(100, jobStore)

	// Start worker in background to process recompute jobs
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job *jobs.RecomputeVarianceJob) error {
		log.Info().
			Str("job_id", job.JobID).
			Strs("projects", job.ProjectNumbers).
			Str("requested_by", job.RequestedBy).
			Msg("Processing recompute job")

		result, err := aggregator.Recompute(ctx, job.ProjectNumbers...)
		if err != nil {
			log.Error().Err(err).Str("job_id", job.JobID).Msg("Variance recompute failed")
			return err
		}

		alerts := variance.Scan(result, variance.ScanOptions{})
		for _, alert := range alerts {
			log.Warn().
				Str("project", alert.ProjectNumber).
				Str("wbs", alert.WBSElement).
				Str("severity", string(alert.Severity)).
				Str("ratio", alert.VarianceRatio.String()).
				Msg(alert.Message)
		}

		job.GroupCount = len(result)
		job.AlertCount = len(alerts)
		return nil
	}

	go func() {
		log.Info().Msg("Starting job worker")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Job worker stopped with error")
		}
	}()

	// Initialize handlers
	importsHandler := handlers.NewImportsHandler(imp, importLogs, log)
	variancesHandler := handlers.NewVariancesHandler(variances, jobQueue, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	// Create router
	mux := http.NewServeMux()

	// Import endpoints
	mux.HandleFunc("/api/imports/commitments", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			importsHandler.ImportCommitments(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/imports/actuals", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			importsHandler.ImportActuals(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/imports/history", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			importsHandler.History(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/imports/templates/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			kind := strings.TrimPrefix(r.URL.Path, "/api/imports/templates/")
			if kind == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Template type is required")
				return
			}
			importsHandler.Template(w, r, kind)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Variance endpoints
	mux.HandleFunc("/api/variances", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			variancesHandler.List(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/variances/recompute", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			variancesHandler.Recompute(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Jobs endpoints
	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(
					middleware.Auth(verifier, "/health")(mux),
				),
			),
		),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", *port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Cancel worker context
	cancelWorker()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
