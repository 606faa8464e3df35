package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pvoronov/homeledger/internal/api/handlers"
	"github.com/pvoronov/homeledger/internal/api/middleware"
	"github.com/pvoronov/homeledger/internal/config"
	"github.com/pvoronov/homeledger/internal/gcs"
	infra "github.com/pvoronov/homeledger/internal/infra/bigquery"
	"github.com/pvoronov/homeledger/internal/jobs"
	"github.com/pvoronov/homeledger/internal/jobs/inmemory"
	"github.com/pvoronov/homeledger/internal/logger"
	"github.com/pvoronov/homeledger/internal/pipeline"
	"github.com/pvoronov/homeledger/internal/recurring"
	"github.com/pvoronov/homeledger/internal/report"
	"github.com/pvoronov/homeledger/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewWithLevel(cfg.LogLevel)

	if cfg.Bucket == "" {
		log.Warn().Msg("No GCS bucket configured - statement uploads will be disabled")
	}

	ctx := context.Background()

	repo, err := infra.NewRepository(ctx, cfg.ProjectID, cfg.DatasetID, cfg.UserID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create repository")
	}
	defer repo.Close()

	storage := gcs.NewService()
	extractor := pipeline.NewGeminiExtractor(repo, cfg.ModelName, cfg.Currency)
	importer := pipeline.NewImporter(repo, storage, extractor, cfg.Currency)
	sweepSvc := recurring.NewService(repo, repo)
	reportSvc := report.NewService(repo)

	// Job infrastructure; in-memory is fine for a single-instance deployment.
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job jobs.Job) error {
		importJob, ok := job.(*jobs.ImportStatementJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		ctx = logger.WithContext(ctx, log)
		log.Info().
			Str("job_id", importJob.JobID).
			Str("gcs_uri", importJob.GCSURI).
			Msg("Processing import job")

		rep, err := importer.ImportStatement(ctx, importJob.GCSURI, importJob.AccountID)
		if err != nil {
			log.Error().
				Err(err).
				Str("job_id", importJob.JobID).
				Msg("Statement import failed")
			return err
		}
		importJob.DocumentID = rep.DocumentID

		return nil
	}

	go func() {
		log.Info().Msg("Starting import worker")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Import worker stopped with error")
		}
	}()

	// Recurring sweep on a cron schedule, alongside the on-demand endpoint.
	sweepScheduler := scheduler.NewSweepScheduler(sweepSvc, cfg.SweepCronSpec, log)
	if err := sweepScheduler.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start sweep scheduler")
	}
	defer sweepScheduler.Stop()

	documentsHandler := handlers.NewDocumentsHandler(repo, storage, jobQueue, cfg.Bucket, log)
	transactionsHandler := handlers.NewTransactionsHandler(repo, log)
	categoriesHandler := handlers.NewCategoriesHandler(repo, log)
	recurringHandler := handlers.NewRecurringHandler(repo, sweepSvc, log)
	reportsHandler := handlers.NewReportsHandler(reportSvc, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/documents", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			documentsHandler.ListDocuments(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/documents/upload", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			documentsHandler.UploadStatement(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/documents/import", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			documentsHandler.EnqueueImport(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/transactions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			transactionsHandler.ListTransactions(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/categories", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			categoriesHandler.ListCategories(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/recurring", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			recurringHandler.ListDefinitions(w, r)
		case http.MethodPost:
			recurringHandler.CreateDefinition(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/recurring/sweep", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			recurringHandler.RunSweep(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/recurring/suggestions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			recurringHandler.Suggestions(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/recurring/", func(w http.ResponseWriter, r *http.Request) {
		// POST /api/recurring/{id}/deactivate
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/deactivate") {
			middleware.WriteError(w, http.StatusNotFound, "Not found")
			return
		}
		definitionID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/recurring/"), "/deactivate")
		if definitionID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Definition ID is required")
			return
		}
		recurringHandler.DeactivateDefinition(w, r, definitionID)
	})

	mux.HandleFunc("/api/reports/monthly", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			reportsHandler.MonthlySummary(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

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

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	handler := middleware.Recovery(log)(
		middleware.RequestID(
			middleware.Logger(log)(
				middleware.CORS(mux),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}
