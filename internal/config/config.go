// Package config loads application configuration from the environment, with
// optional .env support for local development.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application.
type AppConfig struct {
	// ProjectID is the GCP project hosting the BigQuery dataset and the
	// statement bucket.
	ProjectID string
	// DatasetID is the BigQuery dataset holding all homeledger tables.
	DatasetID string
	// Bucket is the GCS bucket statement files are uploaded to.
	Bucket string

	// ModelName is the Gemini model used for statement extraction.
	ModelName string

	// UserID scopes all rows in a single-household deployment.
	UserID string
	// Currency is the default currency for extracted transactions that do
	// not carry one.
	Currency string

	// Port is the HTTP listen port for the API server.
	Port string
	// SweepCronSpec is the cron expression for the recurring sweep job.
	SweepCronSpec string
	LogLevel      string
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}

	cfg.ProjectID = os.Getenv("GCP_PROJECT")
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("GCP_PROJECT is not set")
	}

	cfg.DatasetID = getenvDefault("BQ_DATASET", "homeledger")
	cfg.Bucket = os.Getenv("GCS_BUCKET")
	cfg.ModelName = getenvDefault("GEMINI_MODEL", "gemini-2.5-flash")
	cfg.UserID = getenvDefault("LEDGER_USER", "household")
	cfg.Currency = strings.ToUpper(getenvDefault("LEDGER_CURRENCY", "GBP"))
	cfg.Port = getenvDefault("PORT", "8080")
	// Default: sweep shortly after midnight so due definitions book on their
	// due date.
	cfg.SweepCronSpec = getenvDefault("SWEEP_CRON_SPEC", "10 0 * * *")
	cfg.LogLevel = strings.ToLower(getenvDefault("LOG_LEVEL", "info"))

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
