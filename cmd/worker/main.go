package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pvoronov/homeledger/internal/config"
	"github.com/pvoronov/homeledger/internal/gcs"
	infra "github.com/pvoronov/homeledger/internal/infra/bigquery"
	"github.com/pvoronov/homeledger/internal/jobs"
	"github.com/pvoronov/homeledger/internal/jobs/inmemory"
	"github.com/pvoronov/homeledger/internal/logger"
	"github.com/pvoronov/homeledger/internal/pipeline"
	"github.com/pvoronov/homeledger/internal/recurring"
	"github.com/pvoronov/homeledger/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewWithLevel(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, err := infra.NewRepository(ctx, cfg.ProjectID, cfg.DatasetID, cfg.UserID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create repository")
	}
	defer repo.Close()

	storage := gcs.NewService()
	extractor := pipeline.NewGeminiExtractor(repo, cfg.ModelName, cfg.Currency)
	importer := pipeline.NewImporter(repo, storage, extractor, cfg.Currency)

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	log.Info().Msg("Starting worker service")

	handler := func(ctx context.Context, job jobs.Job) error {
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

		log.Info().
			Str("job_id", importJob.JobID).
			Str("document_id", rep.DocumentID).
			Int("imported", rep.Imported).
			Int("duplicates", rep.Duplicates).
			Msg("Statement import completed")

		return nil
	}

	if err := jobQueue.Start(ctx, handler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	// The worker also owns the nightly recurring sweep.
	sweepSvc := recurring.NewService(repo, repo)
	sweepScheduler := scheduler.NewSweepScheduler(sweepSvc, cfg.SweepCronSpec, log)
	if err := sweepScheduler.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start sweep scheduler")
	}

	log.Info().Msg("Worker service started, waiting for jobs...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	cancel()
	sweepScheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	log.Info().Msg("Worker service exited")
}
