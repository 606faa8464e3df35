package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/civil"

	"github.com/pvoronov/homeledger/internal/config"
	infra "github.com/pvoronov/homeledger/internal/infra/bigquery"
	"github.com/pvoronov/homeledger/internal/logger"
	"github.com/pvoronov/homeledger/internal/recurring"
)

func main() {
	dateStr := flag.String("date", "", "Sweep date in YYYY-MM-DD form (defaults to today)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewWithLevel(cfg.LogLevel)

	today := civil.DateOf(time.Now())
	if *dateStr != "" {
		parsed, err := civil.ParseDate(*dateStr)
		if err != nil {
			log.Fatal().Str("date", *dateStr).Msg("Invalid --date, want YYYY-MM-DD")
		}
		today = parsed
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	repo, err := infra.NewRepository(ctx, cfg.ProjectID, cfg.DatasetID, cfg.UserID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create repository")
	}
	defer repo.Close()

	svc := recurring.NewService(repo, repo)

	report, err := svc.Sweep(ctx, today)
	if err != nil {
		log.Fatal().Err(err).Msg("Sweep failed")
	}

	fmt.Printf("Sweep for %s: %d due, %d fired, %d already fired, %d skipped, %d failed.\n",
		today, report.Due, report.Fired, report.AlreadyFired, report.Skipped, report.Failed)
}
