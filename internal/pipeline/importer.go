package pipeline

import (
	"context"

	infra "github.com/pvoronov/homeledger/internal/infra/bigquery"
	"github.com/pvoronov/homeledger/internal/logger"
)

// ImportReport summarizes one statement import.
type ImportReport struct {
	DocumentID   string `json:"document_id"`
	ParsingRunID string `json:"parsing_run_id"`

	// Total is the number of transactions the model extracted.
	Total int `json:"total"`
	// Imported is the number of transactions booked after duplicate
	// filtering.
	Imported int `json:"imported"`
	// Duplicates is the number of extracted transactions already present in
	// the history.
	Duplicates int `json:"duplicates"`
}

// Importer runs the statement import pipeline end to end.
type Importer struct {
	store     ImportStore
	storage   StorageService
	extractor Extractor

	defaultCurrency string
}

// NewImporter wires the import pipeline over the given store, storage and
// extractor.
func NewImporter(store ImportStore, storage StorageService, extractor Extractor, defaultCurrency string) *Importer {
	return &Importer{
		store:           store,
		storage:         storage,
		extractor:       extractor,
		defaultCurrency: defaultCurrency,
	}
}

// ImportStatement imports a single statement file stored in GCS.
// gcsURI should look like: "gs://bucket/path/to/statement.pdf".
func (imp *Importer) ImportStatement(ctx context.Context, gcsURI, accountID string) (*ImportReport, error) {
	log := logger.FromContext(ctx)

	state := &PipelineState{
		GCSURI:    gcsURI,
		AccountID: accountID,
	}

	p := NewStatementImportPipeline(imp.store, imp.storage, imp.extractor, imp.defaultCurrency)
	if err := p.Execute(ctx, state); err != nil {
		if state.DocumentID != "" {
			if stErr := imp.store.UpdateDocumentStatus(ctx, state.DocumentID, infra.DocumentStatusFailed); stErr != nil {
				log.Error().
					Str("document_id", state.DocumentID).
					Err(stErr).
					Msg("Failed to mark document as failed")
			}
		}
		return nil, err
	}

	report := &ImportReport{
		DocumentID:   state.DocumentID,
		ParsingRunID: state.ParsingRunID,
		Total:        len(state.Candidates),
		Imported:     len(state.Booked),
		Duplicates:   state.DuplicateCount,
	}

	log.Info().
		Str("document_id", report.DocumentID).
		Int("total", report.Total).
		Int("imported", report.Imported).
		Int("duplicates", report.Duplicates).
		Msg("Statement import finished")

	return report, nil
}
