// Package handlers implements the HTTP API endpoints.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pvoronov/homeledger/internal/api/middleware"
	"github.com/pvoronov/homeledger/internal/dedup"
	"github.com/pvoronov/homeledger/internal/domain"
	"github.com/pvoronov/homeledger/internal/gcs"
	infra "github.com/pvoronov/homeledger/internal/infra/bigquery"
	"github.com/pvoronov/homeledger/internal/jobs"
	"github.com/pvoronov/homeledger/internal/recurring"
	"github.com/pvoronov/homeledger/internal/report"
)

// DocumentStore is the slice of the store the documents handler needs.
type DocumentStore interface {
	ListAllDocuments(ctx context.Context) ([]*infra.DocumentRow, error)
}

// DocumentsHandler handles statement document endpoints.
type DocumentsHandler struct {
	store     DocumentStore
	storage   gcs.StorageService
	publisher jobs.Publisher
	bucket    string
	log       zerolog.Logger
}

// NewDocumentsHandler creates a new documents handler.
func NewDocumentsHandler(store DocumentStore, storage gcs.StorageService, publisher jobs.Publisher, bucket string, log zerolog.Logger) *DocumentsHandler {
	return &DocumentsHandler{
		store:     store,
		storage:   storage,
		publisher: publisher,
		bucket:    bucket,
		log:       log,
	}
}

// ListDocuments handles GET /api/documents
func (h *DocumentsHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	documents, err := h.store.ListAllDocuments(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list documents")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list documents")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"documents": documents,
		"count":     len(documents),
	})
}

// UploadStatement handles POST /api/documents/upload?filename=...&account_id=...
// It stores the request body in GCS and enqueues an import job. The document
// row is created by the import pipeline when the job runs.
func (h *DocumentsHandler) UploadStatement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filename := r.URL.Query().Get("filename")
	if filename == "" {
		middleware.WriteError(w, http.StatusBadRequest, "filename is required")
		return
	}
	accountID := r.URL.Query().Get("account_id")

	data, err := io.ReadAll(r.Body)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}
	if len(data) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "Empty request body")
		return
	}

	objectName := fmt.Sprintf("uploads/%s/%s-%s", time.Now().Format("2006/01/02"), uuid.NewString(), filename)
	gcsURI, err := h.storage.UploadBytes(ctx, h.bucket, objectName, data)
	if err != nil {
		h.log.Error().Err(err).Str("object", objectName).Msg("Failed to upload statement")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to upload file")
		return
	}

	job := &jobs.ImportStatementJob{
		GCSURI:    gcsURI,
		AccountID: accountID,
	}
	if err := h.publisher.PublishImportStatement(ctx, job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue import job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue import job")
		return
	}

	h.log.Info().
		Str("job_id", job.JobID).
		Str("gcs_uri", gcsURI).
		Int("bytes", len(data)).
		Msg("Statement uploaded and import enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":  job.JobID,
		"gcs_uri": gcsURI,
		"status":  string(job.Status),
	})
}

// EnqueueImport handles POST /api/documents/import for files already in GCS.
func (h *DocumentsHandler) EnqueueImport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GCSURI    string `json:"gcs_uri"`
		AccountID string `json:"account_id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.GCSURI == "" {
		middleware.WriteError(w, http.StatusBadRequest, "gcs_uri is required")
		return
	}

	job := &jobs.ImportStatementJob{
		GCSURI:    req.GCSURI,
		AccountID: req.AccountID,
	}
	if err := h.publisher.PublishImportStatement(r.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue import job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue import job")
		return
	}

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(job.Status),
	})
}

// TransactionStore is the slice of the store the transactions handler needs.
type TransactionStore interface {
	QueryTransactionsByDateRange(ctx context.Context, start, end civil.Date) ([]domain.Transaction, error)
	ListRecentTransactions(ctx context.Context, limit int) ([]domain.Transaction, error)
}

// TransactionsHandler handles transaction endpoints.
type TransactionsHandler struct {
	store TransactionStore
	log   zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(store TransactionStore, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{store: store, log: log}
}

// ListTransactions handles GET /api/transactions?start_date=...&end_date=...
// With ?limit=N and no date bounds it returns the N most recent transactions
// instead.
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()

	if s := query.Get("limit"); s != "" && query.Get("start_date") == "" && query.Get("end_date") == "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit < 1 {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid limit value")
			return
		}
		transactions, err := h.store.ListRecentTransactions(ctx, limit)
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to list recent transactions")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to query transactions")
			return
		}
		if transactions == nil {
			transactions = []domain.Transaction{}
		}
		middleware.WriteJSON(w, http.StatusOK, transactions)
		return
	}

	now := civil.DateOf(time.Now())
	start := now.AddDays(-365)
	end := now

	if s := query.Get("start_date"); s != "" {
		parsed, err := civil.ParseDate(s)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid start_date format")
			return
		}
		start = parsed
	}
	if s := query.Get("end_date"); s != "" {
		parsed, err := civil.ParseDate(s)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid end_date format")
			return
		}
		end = parsed
	}

	transactions, err := h.store.QueryTransactionsByDateRange(ctx, start, end)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to query transactions")
		return
	}

	// Return array directly for frontend compatibility
	if transactions == nil {
		transactions = []domain.Transaction{}
	}
	middleware.WriteJSON(w, http.StatusOK, transactions)
}

// CategoryStore is the slice of the store the categories handler needs.
type CategoryStore interface {
	ListActiveCategories(ctx context.Context) ([]domain.Category, error)
}

// CategoriesHandler handles category endpoints.
type CategoriesHandler struct {
	store CategoryStore
	log   zerolog.Logger
}

// NewCategoriesHandler creates a new categories handler.
func NewCategoriesHandler(store CategoryStore, log zerolog.Logger) *CategoriesHandler {
	return &CategoriesHandler{store: store, log: log}
}

// ListCategories handles GET /api/categories
func (h *CategoriesHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	categories, err := h.store.ListActiveCategories(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list categories")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list categories")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
		"count":      len(categories),
	})
}

// RecurringStore is the slice of the store the recurring handler needs.
type RecurringStore interface {
	ListAllDefinitions(ctx context.Context) ([]domain.RecurringDefinition, error)
	ListActiveDefinitions(ctx context.Context) ([]domain.RecurringDefinition, error)
	InsertDefinition(ctx context.Context, def domain.RecurringDefinition) (string, error)
	SetDefinitionActive(ctx context.Context, definitionID string, active bool) error
	QueryTransactionsByDateRange(ctx context.Context, start, end civil.Date) ([]domain.Transaction, error)
}

// Sweeper runs the recurring sweep on demand.
type Sweeper interface {
	Sweep(ctx context.Context, today civil.Date) (*recurring.SweepReport, error)
}

// RecurringHandler handles recurring definition endpoints.
type RecurringHandler struct {
	store   RecurringStore
	sweeper Sweeper
	log     zerolog.Logger
}

// NewRecurringHandler creates a new recurring handler.
func NewRecurringHandler(store RecurringStore, sweeper Sweeper, log zerolog.Logger) *RecurringHandler {
	return &RecurringHandler{store: store, sweeper: sweeper, log: log}
}

// ListDefinitions handles GET /api/recurring
func (h *RecurringHandler) ListDefinitions(w http.ResponseWriter, r *http.Request) {
	defs, err := h.store.ListAllDefinitions(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list recurring definitions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list recurring definitions")
		return
	}

	if defs == nil {
		defs = []domain.RecurringDefinition{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"definitions": defs,
		"count":       len(defs),
	})
}

// CreateDefinition handles POST /api/recurring
func (h *RecurringHandler) CreateDefinition(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Description string  `json:"description"`
		Amount      float64 `json:"amount"`
		Currency    string  `json:"currency"`
		Interval    string  `json:"interval"`
		NextRunDate string  `json:"next_run_date"`
		AccountID   string  `json:"account_id"`
		CategoryID  string  `json:"category_id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Description == "" {
		middleware.WriteError(w, http.StatusBadRequest, "description is required")
		return
	}

	interval, err := domain.ParseInterval(req.Interval)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	nextRun, err := civil.ParseDate(req.NextRunDate)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid next_run_date format, want YYYY-MM-DD")
		return
	}

	id, err := h.store.InsertDefinition(r.Context(), domain.RecurringDefinition{
		Description: req.Description,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Interval:    interval,
		NextRunDate: nextRun,
		Active:      true,
		AccountID:   req.AccountID,
		CategoryID:  req.CategoryID,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to create recurring definition")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to create recurring definition")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, map[string]string{
		"definition_id": id,
	})
}

// DeactivateDefinition handles POST /api/recurring/{id}/deactivate
func (h *RecurringHandler) DeactivateDefinition(w http.ResponseWriter, r *http.Request, definitionID string) {
	if err := h.store.SetDefinitionActive(r.Context(), definitionID, false); err != nil {
		h.log.Error().Err(err).Str("definition_id", definitionID).Msg("Failed to deactivate definition")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to deactivate definition")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"definition_id": definitionID,
		"status":        "deactivated",
	})
}

// RunSweep handles POST /api/recurring/sweep
func (h *RecurringHandler) RunSweep(w http.ResponseWriter, r *http.Request) {
	today := civil.DateOf(time.Now())
	if s := r.URL.Query().Get("date"); s != "" {
		parsed, err := civil.ParseDate(s)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid date format, want YYYY-MM-DD")
			return
		}
		today = parsed
	}

	rep, err := h.sweeper.Sweep(r.Context(), today)
	if err != nil {
		h.log.Error().Err(err).Msg("Recurring sweep failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Recurring sweep failed")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, rep)
}

// Suggestions handles GET /api/recurring/suggestions?months=6
// It scans recent history for repeating patterns not yet tracked by a
// definition.
func (h *RecurringHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	months := 6
	if s := r.URL.Query().Get("months"); s != "" {
		parsed, err := strconv.Atoi(s)
		if err != nil || parsed < 1 {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid months value")
			return
		}
		months = parsed
	}

	end := civil.DateOf(time.Now())
	start := end.AddDays(-months * 30)

	history, err := h.store.QueryTransactionsByDateRange(ctx, start, end)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load history for suggestions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load transaction history")
		return
	}

	defs, err := h.store.ListActiveDefinitions(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load definitions for suggestions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load recurring definitions")
		return
	}

	suggestions := dedup.AnalyzeTransactions(history, defs)
	if suggestions == nil {
		suggestions = []domain.RecurringSuggestion{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"suggestions": suggestions,
		"count":       len(suggestions),
	})
}

// ReportsHandler handles spending report endpoints.
type ReportsHandler struct {
	svc *report.Service
	log zerolog.Logger
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(svc *report.Service, log zerolog.Logger) *ReportsHandler {
	return &ReportsHandler{svc: svc, log: log}
}

// MonthlySummary handles GET /api/reports/monthly?year=2024&month=3
func (h *ReportsHandler) MonthlySummary(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	year, month := now.Year(), now.Month()

	query := r.URL.Query()
	if s := query.Get("year"); s != "" {
		parsed, err := strconv.Atoi(s)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid year")
			return
		}
		year = parsed
	}
	if s := query.Get("month"); s != "" {
		parsed, err := strconv.Atoi(s)
		if err != nil || parsed < 1 || parsed > 12 {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid month")
			return
		}
		month = time.Month(parsed)
	}

	summary, err := h.svc.MonthlySummary(r.Context(), year, month)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to build monthly summary")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to build monthly summary")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, summary)
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{store: store, log: log}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		DocumentID: query.Get("document_id"),
		Status:     jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
