package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pvoronov/homeledger/internal/config"
	"github.com/pvoronov/homeledger/internal/gcs"
	infra "github.com/pvoronov/homeledger/internal/infra/bigquery"
	"github.com/pvoronov/homeledger/internal/logger"
	"github.com/pvoronov/homeledger/internal/pipeline"
)

func main() {
	gcsURI := flag.String("gcs-uri", "", "GCS URI of the statement (e.g. gs://bucket/file.pdf)")
	localFile := flag.String("file", "", "Local statement file to upload and import")
	accountID := flag.String("account", "", "Account ID to book transactions against")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewWithLevel(cfg.LogLevel)

	if *gcsURI == "" && *localFile == "" {
		log.Fatal().Msg("Error: either --gcs-uri or --file is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	repo, err := infra.NewRepository(ctx, cfg.ProjectID, cfg.DatasetID, cfg.UserID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create repository")
	}
	defer repo.Close()

	storage := gcs.NewService()

	uri := *gcsURI
	if uri == "" {
		if cfg.Bucket == "" {
			log.Fatal().Msg("GCS_BUCKET must be set to upload local files")
		}
		objectName := fmt.Sprintf("uploads/%s/%s", time.Now().Format("2006/01/02"), filepath.Base(*localFile))
		if err := storage.UploadFile(ctx, cfg.Bucket, objectName, *localFile); err != nil {
			log.Fatal().Err(err).Msg("Upload failed")
		}
		uri = fmt.Sprintf("gs://%s/%s", cfg.Bucket, objectName)
		log.Info().Str("gcs_uri", uri).Msg("File uploaded")
	}

	extractor := pipeline.NewGeminiExtractor(repo, cfg.ModelName, cfg.Currency)
	importer := pipeline.NewImporter(repo, storage, extractor, cfg.Currency)

	log.Info().Str("gcs_uri", uri).Msg("Starting import")

	report, err := importer.ImportStatement(ctx, uri, *accountID)
	if err != nil {
		log.Fatal().Err(err).Msg("Import failed")
	}

	fmt.Printf("Import completed: %d extracted, %d imported, %d duplicates skipped.\n",
		report.Total, report.Imported, report.Duplicates)
}
