package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"github.com/pvoronov/homeledger/internal/domain"
)

// InsertTransactions inserts a batch of booked transactions. It satisfies the
// writer interface the recurring sweep books through.
func (r *Repository) InsertTransactions(ctx context.Context, txs []domain.Transaction) error {
	return r.InsertStatementTransactions(ctx, "", "", txs)
}

// InsertStatementTransactions inserts transactions produced by a statement
// import, linked to the originating document and parsing run. Either ID may
// be empty for transactions that did not come from a statement.
func (r *Repository) InsertStatementTransactions(ctx context.Context, documentID, parsingRunID string, txs []domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	now := time.Now()
	rows := make([]*TransactionRow, 0, len(txs))
	for _, tx := range txs {
		row := &TransactionRow{
			TransactionID:   uuid.NewString(),
			UserID:          r.userID,
			AccountID:       tx.AccountID,
			DocumentID:      documentID,
			ParsingRunID:    parsingRunID,
			TransactionDate: tx.Date,
			Amount:          ratFromFloat(tx.Amount),
			Currency:        tx.Currency,
			Description:     tx.Description,
			CategoryID:      tx.CategoryID,
			IsRecurring:     tx.IsRecurring,
			CreatedTS:       now,
		}
		if tx.ExternalReference != "" {
			row.ExternalReference = bigquery.NullString{StringVal: tx.ExternalReference, Valid: true}
		}
		rows = append(rows, row)
	}

	inserter := r.table(transactionsTable).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertStatementTransactions: inserting rows: %w", err)
	}
	return nil
}

// TransactionExistsByReference reports whether a transaction carrying the
// given external reference has already been booked.
func (r *Repository) TransactionExistsByReference(ctx context.Context, ref string) (bool, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT COUNT(1) AS n
		FROM %s.%s
		WHERE external_reference = @ref
	`, r.datasetID, transactionsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "ref", Value: ref},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return false, fmt.Errorf("TransactionExistsByReference: query read: %w", err)
	}

	var row struct {
		N int64 `bigquery:"n"`
	}
	if err := it.Next(&row); err != nil {
		return false, fmt.Errorf("TransactionExistsByReference: iter next: %w", err)
	}
	return row.N > 0, nil
}

// QueryTransactionsByDateRange returns transactions with dates inside the
// inclusive [start, end] range, oldest first.
func (r *Repository) QueryTransactionsByDateRange(ctx context.Context, start, end civil.Date) ([]domain.Transaction, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT
		  transaction_id,
		  user_id,
		  account_id,
		  document_id,
		  parsing_run_id,
		  transaction_date,
		  amount,
		  currency,
		  description,
		  category_id,
		  is_recurring,
		  external_reference,
		  created_ts
		FROM %s.%s
		WHERE transaction_date >= @start_date
		  AND transaction_date <= @end_date
		ORDER BY transaction_date, created_ts
	`, r.datasetID, transactionsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "start_date", Value: start.String()},
		{Name: "end_date", Value: end.String()},
	}

	return r.queryTransactions(ctx, q, "QueryTransactionsByDateRange")
}

// ListRecentTransactions returns the most recently dated transactions, newest
// first, capped at limit.
func (r *Repository) ListRecentTransactions(ctx context.Context, limit int) ([]domain.Transaction, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT
		  transaction_id,
		  user_id,
		  account_id,
		  document_id,
		  parsing_run_id,
		  transaction_date,
		  amount,
		  currency,
		  description,
		  category_id,
		  is_recurring,
		  external_reference,
		  created_ts
		FROM %s.%s
		ORDER BY transaction_date DESC, created_ts DESC
		LIMIT @limit
	`, r.datasetID, transactionsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "limit", Value: int64(limit)},
	}

	return r.queryTransactions(ctx, q, "ListRecentTransactions")
}

func (r *Repository) queryTransactions(ctx context.Context, q *bigquery.Query, op string) ([]domain.Transaction, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: query read: %w", op, err)
	}

	var txs []domain.Transaction
	for {
		var row TransactionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: iter next: %w", op, err)
		}
		txs = append(txs, row.toDomain())
	}

	return txs, nil
}
