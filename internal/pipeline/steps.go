package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/pvoronov/homeledger/internal/category"
	"github.com/pvoronov/homeledger/internal/dedup"
	"github.com/pvoronov/homeledger/internal/domain"
	infra "github.com/pvoronov/homeledger/internal/infra/bigquery"
)

// PipelineStep represents a single step in the import pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	GCSURI    string
	AccountID string

	DocumentID   string
	ParsingRunID string

	FileBytes []byte
	MIMEType  string

	RawModelOutput map[string]interface{}
	Candidates     []domain.CandidateTransaction

	Accepted       []domain.CandidateTransaction
	DuplicateCount int

	Booked []domain.Transaction
}

// CreateDocumentStep creates a document record for the file.
type CreateDocumentStep struct {
	store   ImportStore
	storage StorageService
}

func (s *CreateDocumentStep) Execute(ctx context.Context, state *PipelineState) error {
	filename := s.storage.ExtractFilenameFromGCSURI(state.GCSURI)
	state.MIMEType = mimeTypeForFilename(filename)

	row := &infra.DocumentRow{
		DocumentID:       uuid.NewString(),
		GCSURI:           state.GCSURI,
		DocumentType:     DefaultDocumentType,
		AccountID:        state.AccountID,
		UploadTS:         time.Now(),
		ParsingStatus:    infra.DocumentStatusUploaded,
		OriginalFilename: filename,
		FileMimeType:     state.MIMEType,
	}
	if err := s.store.InsertDocument(ctx, row); err != nil {
		return err
	}
	state.DocumentID = row.DocumentID
	return nil
}

// StartParsingRunStep starts a parsing run (status=RUNNING).
type StartParsingRunStep struct {
	store ImportStore
}

func (s *StartParsingRunStep) Execute(ctx context.Context, state *PipelineState) error {
	parsingRunID, err := s.store.StartParsingRun(ctx, state.DocumentID)
	if err != nil {
		return err
	}
	state.ParsingRunID = parsingRunID
	return s.store.UpdateDocumentStatus(ctx, state.DocumentID, infra.DocumentStatusProcessing)
}

// FetchFileStep fetches the statement bytes from GCS.
type FetchFileStep struct {
	store   ImportStore
	storage StorageService
}

func (s *FetchFileStep) Execute(ctx context.Context, state *PipelineState) error {
	data, err := s.storage.FetchFromGCS(ctx, state.GCSURI)
	if err != nil {
		s.store.MarkParsingRunFailed(ctx, state.ParsingRunID, err)
		return err
	}
	state.FileBytes = data
	return nil
}

// ExtractStep calls the statement extractor (Gemini) with the file.
type ExtractStep struct {
	store     ImportStore
	extractor Extractor
}

func (s *ExtractStep) Execute(ctx context.Context, state *PipelineState) error {
	raw, err := s.extractor.ExtractStatement(ctx, state.FileBytes, state.MIMEType)
	if err != nil {
		s.store.MarkParsingRunFailed(ctx, state.ParsingRunID, err)
		return err
	}
	state.RawModelOutput = raw
	return nil
}

// StoreModelOutputStep stores raw model output for audit and replay.
type StoreModelOutputStep struct {
	store ImportStore
}

func (s *StoreModelOutputStep) Execute(ctx context.Context, state *PipelineState) error {
	raw, err := json.Marshal(state.RawModelOutput)
	if err != nil {
		err = fmt.Errorf("marshaling model output: %w", err)
		s.store.MarkParsingRunFailed(ctx, state.ParsingRunID, err)
		return err
	}
	if err := s.store.InsertModelOutput(ctx, state.ParsingRunID, state.DocumentID, string(raw)); err != nil {
		s.store.MarkParsingRunFailed(ctx, state.ParsingRunID, err)
		return err
	}
	return nil
}

// TransformStep transforms raw model output into candidate transactions.
type TransformStep struct {
	store           ImportStore
	defaultCurrency string
}

func (s *TransformStep) Execute(ctx context.Context, state *PipelineState) error {
	candidates, err := transformModelOutput(state.RawModelOutput, s.defaultCurrency)
	if err != nil {
		s.store.MarkParsingRunFailed(ctx, state.ParsingRunID, err)
		return err
	}
	state.Candidates = candidates
	return nil
}

// FilterDuplicatesStep classifies candidates against the booked history so
// re-imported and overlapping statements do not double-book.
type FilterDuplicatesStep struct {
	store ImportStore
}

func (s *FilterDuplicatesStep) Execute(ctx context.Context, state *PipelineState) error {
	if len(state.Candidates) == 0 {
		state.Accepted = nil
		return nil
	}

	start, end := candidateDateRange(state.Candidates)
	existing, err := s.store.QueryTransactionsByDateRange(ctx,
		start.AddDays(-historyPaddingDays), end.AddDays(historyPaddingDays))
	if err != nil {
		s.store.MarkParsingRunFailed(ctx, state.ParsingRunID, err)
		return err
	}

	res := dedup.FilterNew(state.Candidates, existing)
	state.Accepted = res.Accepted
	state.DuplicateCount = res.DuplicateCount
	return nil
}

// ResolveCategoriesStep maps the model's category labels onto the taxonomy
// and builds the transactions to book.
type ResolveCategoriesStep struct {
	store ImportStore
}

func (s *ResolveCategoriesStep) Execute(ctx context.Context, state *PipelineState) error {
	if len(state.Accepted) == 0 {
		state.Booked = nil
		return nil
	}

	resolver, err := category.NewResolver(ctx, s.store)
	if err != nil {
		s.store.MarkParsingRunFailed(ctx, state.ParsingRunID, err)
		return err
	}

	txs := make([]domain.Transaction, 0, len(state.Accepted))
	for _, cand := range state.Accepted {
		txs = append(txs, domain.Transaction{
			Date:        cand.Date,
			Description: cand.Description,
			Amount:      cand.Amount,
			Currency:    cand.Currency,
			AccountID:   state.AccountID,
			CategoryID:  resolver.Resolve(cand.CategoryLabel).ID,
		})
	}
	state.Booked = txs
	return nil
}

// InsertTransactionsStep books the accepted transactions.
type InsertTransactionsStep struct {
	store ImportStore
}

func (s *InsertTransactionsStep) Execute(ctx context.Context, state *PipelineState) error {
	if err := s.store.InsertStatementTransactions(ctx, state.DocumentID, state.ParsingRunID, state.Booked); err != nil {
		s.store.MarkParsingRunFailed(ctx, state.ParsingRunID, err)
		return err
	}
	return nil
}

// MarkSuccessStep marks the parsing run and document as done.
type MarkSuccessStep struct {
	store ImportStore
}

func (s *MarkSuccessStep) Execute(ctx context.Context, state *PipelineState) error {
	if err := s.store.MarkParsingRunSucceeded(ctx, state.ParsingRunID); err != nil {
		return err
	}
	return s.store.UpdateDocumentStatus(ctx, state.DocumentID, infra.DocumentStatusParsed)
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// NewStatementImportPipeline creates the standard pipeline for importing
// statements.
func NewStatementImportPipeline(store ImportStore, storage StorageService, extractor Extractor, defaultCurrency string) *Pipeline {
	return NewPipeline(
		&CreateDocumentStep{store: store, storage: storage},
		&StartParsingRunStep{store: store},
		&FetchFileStep{store: store, storage: storage},
		&ExtractStep{store: store, extractor: extractor},
		&StoreModelOutputStep{store: store},
		&TransformStep{store: store, defaultCurrency: defaultCurrency},
		&FilterDuplicatesStep{store: store},
		&ResolveCategoriesStep{store: store},
		&InsertTransactionsStep{store: store},
		&MarkSuccessStep{store: store},
	)
}

func candidateDateRange(candidates []domain.CandidateTransaction) (start, end civil.Date) {
	start, end = candidates[0].Date, candidates[0].Date
	for _, c := range candidates[1:] {
		if c.Date.Before(start) {
			start = c.Date
		}
		if c.Date.After(end) {
			end = c.Date
		}
	}
	return start, end
}
