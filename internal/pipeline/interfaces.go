// Package pipeline runs the statement import: fetch the uploaded file,
// extract transactions with Gemini, filter out already-booked duplicates and
// insert the rest.
package pipeline

import (
	"context"

	"cloud.google.com/go/civil"

	"github.com/pvoronov/homeledger/internal/domain"
	infra "github.com/pvoronov/homeledger/internal/infra/bigquery"
)

// StorageService is the slice of the storage layer the pipeline needs.
type StorageService interface {
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)
	ExtractFilenameFromGCSURI(uri string) string
}

// Extractor provides an interface for model-powered statement extraction.
// This interface enables mocking and testing of extraction functionality.
type Extractor interface {
	// ExtractStatement sends file bytes to the model and returns parsed JSON
	// output keyed by "transactions".
	ExtractStatement(ctx context.Context, data []byte, mimeType string) (map[string]interface{}, error)
}

// ImportStore is the slice of the store the pipeline needs. The BigQuery
// repository satisfies it.
type ImportStore interface {
	InsertDocument(ctx context.Context, row *infra.DocumentRow) error
	UpdateDocumentStatus(ctx context.Context, documentID, status string) error

	StartParsingRun(ctx context.Context, documentID string) (string, error)
	MarkParsingRunFailed(ctx context.Context, parsingRunID string, parseErr error)
	MarkParsingRunSucceeded(ctx context.Context, parsingRunID string) error

	InsertModelOutput(ctx context.Context, parsingRunID, documentID, rawJSON string) error

	InsertStatementTransactions(ctx context.Context, documentID, parsingRunID string, txs []domain.Transaction) error
	QueryTransactionsByDateRange(ctx context.Context, start, end civil.Date) ([]domain.Transaction, error)

	ListActiveCategories(ctx context.Context) ([]domain.Category, error)
}
