package pipeline

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/civil"

	"github.com/pvoronov/homeledger/internal/domain"
	infra "github.com/pvoronov/homeledger/internal/infra/bigquery"
)

type mockImportStore struct {
	documents    []*infra.DocumentRow
	docStatuses  map[string]string
	runsStarted  []string
	runsFailed   map[string]error
	runsSuccess  []string
	modelOutputs []string

	insertedDocID string
	insertedRunID string
	inserted      []domain.Transaction

	existing   []domain.Transaction
	categories []domain.Category

	queryErr error
}

func newMockImportStore() *mockImportStore {
	return &mockImportStore{
		docStatuses: make(map[string]string),
		runsFailed:  make(map[string]error),
		categories: []domain.Category{
			{ID: "cat-groceries", Name: "Groceries", Slug: "groceries", Active: true},
			{ID: "cat-other", Name: "Other", Slug: "other", Active: true},
		},
	}
}

func (m *mockImportStore) InsertDocument(ctx context.Context, row *infra.DocumentRow) error {
	m.documents = append(m.documents, row)
	return nil
}

func (m *mockImportStore) UpdateDocumentStatus(ctx context.Context, documentID, status string) error {
	m.docStatuses[documentID] = status
	return nil
}

func (m *mockImportStore) StartParsingRun(ctx context.Context, documentID string) (string, error) {
	runID := "run-" + documentID
	m.runsStarted = append(m.runsStarted, runID)
	return runID, nil
}

func (m *mockImportStore) MarkParsingRunFailed(ctx context.Context, parsingRunID string, parseErr error) {
	m.runsFailed[parsingRunID] = parseErr
}

func (m *mockImportStore) MarkParsingRunSucceeded(ctx context.Context, parsingRunID string) error {
	m.runsSuccess = append(m.runsSuccess, parsingRunID)
	return nil
}

func (m *mockImportStore) InsertModelOutput(ctx context.Context, parsingRunID, documentID, rawJSON string) error {
	m.modelOutputs = append(m.modelOutputs, rawJSON)
	return nil
}

func (m *mockImportStore) InsertStatementTransactions(ctx context.Context, documentID, parsingRunID string, txs []domain.Transaction) error {
	m.insertedDocID = documentID
	m.insertedRunID = parsingRunID
	m.inserted = append(m.inserted, txs...)
	return nil
}

func (m *mockImportStore) QueryTransactionsByDateRange(ctx context.Context, start, end civil.Date) ([]domain.Transaction, error) {
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	return m.existing, nil
}

func (m *mockImportStore) ListActiveCategories(ctx context.Context) ([]domain.Category, error) {
	return m.categories, nil
}

type mockStorage struct {
	data     []byte
	fetchErr error
}

func (m *mockStorage) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	return m.data, nil
}

func (m *mockStorage) ExtractFilenameFromGCSURI(uri string) string {
	return "statement.pdf"
}

type mockExtractor struct {
	output map[string]interface{}
	err    error
}

func (m *mockExtractor) ExtractStatement(ctx context.Context, data []byte, mimeType string) (map[string]interface{}, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.output, nil
}

func statementOutput() map[string]interface{} {
	return map[string]interface{}{
		"transactions": []interface{}{
			map[string]interface{}{
				"date":        "2024-03-14",
				"description": "TESCO STORES 2041",
				"amount":      -23.50,
				"currency":    "GBP",
				"category":    "Groceries",
			},
			map[string]interface{}{
				"date":        "2024-03-15",
				"description": "COFFEE SHOP",
				"amount":      -4.20,
				"currency":    "GBP",
				"category":    "Eating Out",
			},
			map[string]interface{}{
				"date":        "2024-03-16",
				"description": "NETFLIX.COM",
				"amount":      -15.99,
				"currency":    "GBP",
				"category":    "Entertainment",
			},
		},
	}
}

func TestImportStatement_BooksNewAndSkipsDuplicates(t *testing.T) {
	store := newMockImportStore()
	// The Tesco transaction is already booked from an overlapping statement;
	// dates differ by a day but fall inside the window.
	store.existing = []domain.Transaction{
		{
			Date:        civil.Date{Year: 2024, Month: 3, Day: 15},
			Description: "TESCO 2041 CARD PAYMENT",
			Amount:      -23.50,
		},
	}

	imp := NewImporter(store, &mockStorage{data: []byte("pdf")}, &mockExtractor{output: statementOutput()}, "GBP")

	report, err := imp.ImportStatement(context.Background(), "gs://statements/statement.pdf", "acc-1")
	if err != nil {
		t.Fatalf("ImportStatement failed: %v", err)
	}

	if report.Total != 3 {
		t.Errorf("Total = %d, want 3", report.Total)
	}
	if report.Imported != 2 {
		t.Errorf("Imported = %d, want 2", report.Imported)
	}
	if report.Duplicates != 1 {
		t.Errorf("Duplicates = %d, want 1", report.Duplicates)
	}

	if len(store.inserted) != 2 {
		t.Fatalf("inserted %d transactions, want 2", len(store.inserted))
	}
	for _, tx := range store.inserted {
		if tx.Description == "TESCO STORES 2041" {
			t.Error("duplicate transaction was booked")
		}
		if tx.AccountID != "acc-1" {
			t.Errorf("AccountID = %q, want acc-1", tx.AccountID)
		}
	}

	// Known label resolves to its category, unknown labels fall back to Other.
	if store.inserted[0].CategoryID != "cat-other" {
		t.Errorf("COFFEE SHOP category = %q, want cat-other", store.inserted[0].CategoryID)
	}

	if len(store.runsSuccess) != 1 {
		t.Errorf("runs marked succeeded = %d, want 1", len(store.runsSuccess))
	}
	if got := store.docStatuses[report.DocumentID]; got != infra.DocumentStatusParsed {
		t.Errorf("document status = %q, want PARSED", got)
	}
	if len(store.modelOutputs) != 1 {
		t.Errorf("stored %d model outputs, want 1", len(store.modelOutputs))
	}
}

func TestImportStatement_AllDuplicatesBooksNothing(t *testing.T) {
	store := newMockImportStore()
	store.existing = []domain.Transaction{
		{Date: civil.Date{Year: 2024, Month: 3, Day: 14}, Amount: -23.50},
		{Date: civil.Date{Year: 2024, Month: 3, Day: 15}, Amount: -4.20},
		{Date: civil.Date{Year: 2024, Month: 3, Day: 16}, Amount: -15.99},
	}

	imp := NewImporter(store, &mockStorage{data: []byte("pdf")}, &mockExtractor{output: statementOutput()}, "GBP")

	report, err := imp.ImportStatement(context.Background(), "gs://statements/statement.pdf", "acc-1")
	if err != nil {
		t.Fatalf("ImportStatement failed: %v", err)
	}

	if report.Imported != 0 || report.Duplicates != 3 {
		t.Errorf("report = %+v, want 0 imported / 3 duplicates", report)
	}
	if len(store.inserted) != 0 {
		t.Errorf("inserted %d transactions, want 0", len(store.inserted))
	}
	// A fully duplicate statement is still a successful import.
	if len(store.runsSuccess) != 1 {
		t.Errorf("runs marked succeeded = %d, want 1", len(store.runsSuccess))
	}
}

func TestImportStatement_ExtractorFailureMarksRunFailed(t *testing.T) {
	store := newMockImportStore()
	imp := NewImporter(store, &mockStorage{data: []byte("pdf")}, &mockExtractor{err: errors.New("model unavailable")}, "GBP")

	_, err := imp.ImportStatement(context.Background(), "gs://statements/statement.pdf", "acc-1")
	if err == nil {
		t.Fatal("expected an error")
	}

	if len(store.runsFailed) != 1 {
		t.Errorf("runs marked failed = %d, want 1", len(store.runsFailed))
	}
	if len(store.inserted) != 0 {
		t.Errorf("inserted %d transactions, want 0", len(store.inserted))
	}

	if len(store.documents) != 1 {
		t.Fatalf("created %d documents, want 1", len(store.documents))
	}
	docID := store.documents[0].DocumentID
	if got := store.docStatuses[docID]; got != infra.DocumentStatusFailed {
		t.Errorf("document status = %q, want FAILED", got)
	}
}

func TestImportStatement_HistoryQueryFailureBooksNothing(t *testing.T) {
	store := newMockImportStore()
	store.queryErr = errors.New("bigquery unavailable")

	imp := NewImporter(store, &mockStorage{data: []byte("pdf")}, &mockExtractor{output: statementOutput()}, "GBP")

	_, err := imp.ImportStatement(context.Background(), "gs://statements/statement.pdf", "acc-1")
	if err == nil {
		t.Fatal("expected an error")
	}
	// Without the history there is no safe dedup decision, so nothing books.
	if len(store.inserted) != 0 {
		t.Errorf("inserted %d transactions, want 0", len(store.inserted))
	}
}
