// Package bigquery implements the homeledger repositories on top of Google
// BigQuery.
package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/pvoronov/homeledger/internal/domain"
)

// Table names inside the homeledger dataset.
const (
	documentsTable    = "documents"
	parsingRunsTable  = "parsing_runs"
	modelOutputsTable = "model_outputs"
	transactionsTable = "transactions"
	recurringTable    = "recurring_definitions"
	categoriesTable   = "categories"
)

// DocumentRow represents a statement document record.
type DocumentRow struct {
	DocumentID string `bigquery:"document_id"`
	UserID     string `bigquery:"user_id"`
	GCSURI     string `bigquery:"gcs_uri"`

	DocumentType string `bigquery:"document_type"`

	AccountID string `bigquery:"account_id"`

	UploadTS    time.Time              `bigquery:"upload_ts"`
	ProcessedTS bigquery.NullTimestamp `bigquery:"processed_ts"`

	ParsingStatus string `bigquery:"parsing_status"`

	OriginalFilename string `bigquery:"original_filename"`
	FileMimeType     string `bigquery:"file_mime_type"`

	Metadata bigquery.NullJSON `bigquery:"metadata"`
}

// ParsingRunRow represents one extraction attempt over a document.
type ParsingRunRow struct {
	ParsingRunID string `bigquery:"parsing_run_id"`
	DocumentID   string `bigquery:"document_id"`

	StartedTS  time.Time              `bigquery:"started_ts"`
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts"`

	ParserType    string `bigquery:"parser_type"`    // e.g. GEMINI_VISION
	ParserVersion string `bigquery:"parser_version"` // e.g. v1

	Status       string `bigquery:"status"`
	ErrorMessage string `bigquery:"error_message"`
}

// ModelOutputRow stores the raw model response for a parsing run, kept for
// audit and replay.
type ModelOutputRow struct {
	OutputID     string    `bigquery:"output_id"`
	ParsingRunID string    `bigquery:"parsing_run_id"`
	DocumentID   string    `bigquery:"document_id"`
	RawJSON      string    `bigquery:"raw_json"`
	CreatedTS    time.Time `bigquery:"created_ts"`
}

// TransactionRow represents a booked transaction record.
type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"`

	UserID    string `bigquery:"user_id"`
	AccountID string `bigquery:"account_id"`

	DocumentID   string `bigquery:"document_id"`
	ParsingRunID string `bigquery:"parsing_run_id"`

	TransactionDate civil.Date `bigquery:"transaction_date"`

	Amount   *big.Rat `bigquery:"amount"`
	Currency string   `bigquery:"currency"`

	Description string `bigquery:"description"`

	CategoryID string `bigquery:"category_id"`

	IsRecurring bool `bigquery:"is_recurring"`

	// ExternalReference carries the idempotency key for recurring
	// materializations; see domain.Transaction.
	ExternalReference bigquery.NullString `bigquery:"external_reference"`

	CreatedTS time.Time `bigquery:"created_ts"`
}

// RecurringDefinitionRow represents a stored recurring definition.
// The interval column is named recur_interval because INTERVAL is a reserved
// word in BigQuery SQL.
type RecurringDefinitionRow struct {
	DefinitionID string `bigquery:"definition_id"`
	UserID       string `bigquery:"user_id"`

	Description string   `bigquery:"description"`
	Amount      *big.Rat `bigquery:"amount"`
	Currency    string   `bigquery:"currency"`

	RecurInterval string `bigquery:"recur_interval"`

	NextRunDate civil.Date        `bigquery:"next_run_date"`
	LastRunDate bigquery.NullDate `bigquery:"last_run_date"`

	Active bool `bigquery:"active"`

	AccountID  bigquery.NullString `bigquery:"account_id"`
	CategoryID bigquery.NullString `bigquery:"category_id"`

	CreatedTS time.Time              `bigquery:"created_ts"`
	UpdatedTS bigquery.NullTimestamp `bigquery:"updated_ts"`
}

// CategoryRow represents one taxonomy entry.
type CategoryRow struct {
	CategoryID string `bigquery:"category_id"`
	Name       string `bigquery:"category_name"`
	Slug       string `bigquery:"slug"`
	IsActive   bool   `bigquery:"is_active"`
}

// ratFromFloat converts a signed decimal amount to the NUMERIC wire type.
func ratFromFloat(f float64) *big.Rat {
	return new(big.Rat).SetFloat64(f)
}

// floatFromRat converts a NUMERIC value back to the domain's float64 amount.
// A nil NUMERIC maps to zero.
func floatFromRat(r *big.Rat) float64 {
	if r == nil {
		return 0
	}
	f, _ := r.Float64()
	return f
}

func (r *TransactionRow) toDomain() domain.Transaction {
	tx := domain.Transaction{
		Date:        r.TransactionDate,
		Description: r.Description,
		Amount:      floatFromRat(r.Amount),
		Currency:    r.Currency,
		AccountID:   r.AccountID,
		CategoryID:  r.CategoryID,
		IsRecurring: r.IsRecurring,
	}
	if r.ExternalReference.Valid {
		tx.ExternalReference = r.ExternalReference.StringVal
	}
	return tx
}

func (r *RecurringDefinitionRow) toDomain() domain.RecurringDefinition {
	def := domain.RecurringDefinition{
		ID:          r.DefinitionID,
		Description: r.Description,
		Amount:      floatFromRat(r.Amount),
		Currency:    r.Currency,
		Interval:    domain.Interval(r.RecurInterval),
		NextRunDate: r.NextRunDate,
		Active:      r.Active,
	}
	if r.LastRunDate.Valid {
		last := r.LastRunDate.Date
		def.LastRunDate = &last
	}
	if r.AccountID.Valid {
		def.AccountID = r.AccountID.StringVal
	}
	if r.CategoryID.Valid {
		def.CategoryID = r.CategoryID.StringVal
	}
	return def
}

func (r *CategoryRow) toDomain() domain.Category {
	return domain.Category{
		ID:     r.CategoryID,
		Name:   r.Name,
		Slug:   r.Slug,
		Active: r.IsActive,
	}
}
