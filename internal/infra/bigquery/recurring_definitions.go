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

const definitionColumns = `
	  definition_id,
	  user_id,
	  description,
	  amount,
	  currency,
	  recur_interval,
	  next_run_date,
	  last_run_date,
	  active,
	  account_id,
	  category_id,
	  created_ts,
	  updated_ts`

// InsertDefinition stores a new recurring definition and returns its
// generated ID.
func (r *Repository) InsertDefinition(ctx context.Context, def domain.RecurringDefinition) (string, error) {
	if _, err := domain.ParseInterval(string(def.Interval)); err != nil {
		return "", fmt.Errorf("InsertDefinition: %w", err)
	}

	row := &RecurringDefinitionRow{
		DefinitionID:  uuid.NewString(),
		UserID:        r.userID,
		Description:   def.Description,
		Amount:        ratFromFloat(def.Amount),
		Currency:      def.Currency,
		RecurInterval: string(def.Interval),
		NextRunDate:   def.NextRunDate,
		Active:        def.Active,
		CreatedTS:     time.Now(),
	}
	if def.LastRunDate != nil {
		row.LastRunDate = bigquery.NullDate{Date: *def.LastRunDate, Valid: true}
	}
	if def.AccountID != "" {
		row.AccountID = bigquery.NullString{StringVal: def.AccountID, Valid: true}
	}
	if def.CategoryID != "" {
		row.CategoryID = bigquery.NullString{StringVal: def.CategoryID, Valid: true}
	}

	inserter := r.table(recurringTable).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return "", fmt.Errorf("InsertDefinition: inserting row: %w", err)
	}
	return row.DefinitionID, nil
}

// ListDueDefinitions returns active definitions whose next_run_date is on or
// before today.
func (r *Repository) ListDueDefinitions(ctx context.Context, today civil.Date) ([]domain.RecurringDefinition, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT%s
		FROM %s.%s
		WHERE active = TRUE
		  AND next_run_date <= @today
		ORDER BY next_run_date, definition_id
	`, definitionColumns, r.datasetID, recurringTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "today", Value: today.String()},
	}

	return r.queryDefinitions(ctx, q, "ListDueDefinitions")
}

// ListAllDefinitions returns every recurring definition, active or not.
func (r *Repository) ListAllDefinitions(ctx context.Context) ([]domain.RecurringDefinition, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT%s
		FROM %s.%s
		ORDER BY next_run_date, definition_id
	`, definitionColumns, r.datasetID, recurringTable))

	return r.queryDefinitions(ctx, q, "ListAllDefinitions")
}

// ListActiveDefinitions returns active definitions regardless of due date.
// The suggestion detector uses these to suppress already-tracked patterns.
func (r *Repository) ListActiveDefinitions(ctx context.Context) ([]domain.RecurringDefinition, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT%s
		FROM %s.%s
		WHERE active = TRUE
		ORDER BY next_run_date, definition_id
	`, definitionColumns, r.datasetID, recurringTable))

	return r.queryDefinitions(ctx, q, "ListActiveDefinitions")
}

// UpdateSchedule persists next_run_date and last_run_date after a cycle
// fires.
func (r *Repository) UpdateSchedule(ctx context.Context, def domain.RecurringDefinition) error {
	lastRunClause := "last_run_date = NULL"
	params := []bigquery.QueryParameter{
		{Name: "next_run_date", Value: def.NextRunDate.String()},
		{Name: "now", Value: time.Now()},
		{Name: "definition_id", Value: def.ID},
	}
	if def.LastRunDate != nil {
		lastRunClause = "last_run_date = @last_run_date"
		params = append(params, bigquery.QueryParameter{Name: "last_run_date", Value: def.LastRunDate.String()})
	}

	q := r.client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET next_run_date = @next_run_date,
		    %s,
		    updated_ts = @now
		WHERE definition_id = @definition_id
	`, r.datasetID, recurringTable, lastRunClause))
	q.Parameters = params

	return r.runDML(ctx, q, "UpdateSchedule")
}

// SetDefinitionActive flips the active flag on a definition.
func (r *Repository) SetDefinitionActive(ctx context.Context, definitionID string, active bool) error {
	q := r.client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET active = @active,
		    updated_ts = @now
		WHERE definition_id = @definition_id
	`, r.datasetID, recurringTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "active", Value: active},
		{Name: "now", Value: time.Now()},
		{Name: "definition_id", Value: definitionID},
	}

	return r.runDML(ctx, q, "SetDefinitionActive")
}

func (r *Repository) queryDefinitions(ctx context.Context, q *bigquery.Query, op string) ([]domain.RecurringDefinition, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: query read: %w", op, err)
	}

	var defs []domain.RecurringDefinition
	for {
		var row RecurringDefinitionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: iter next: %w", op, err)
		}
		defs = append(defs, row.toDomain())
	}

	return defs, nil
}
