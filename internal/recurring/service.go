package recurring

import (
	"context"
	"fmt"

	"cloud.google.com/go/civil"

	"github.com/pvoronov/homeledger/internal/domain"
	"github.com/pvoronov/homeledger/internal/logger"
)

// DefinitionRepository is the slice of the store the sweep needs for
// recurring definitions.
type DefinitionRepository interface {
	// ListDueDefinitions returns definitions with active = true and
	// next_run_date <= today.
	ListDueDefinitions(ctx context.Context, today civil.Date) ([]domain.RecurringDefinition, error)

	// UpdateSchedule persists NextRunDate and LastRunDate for one definition.
	UpdateSchedule(ctx context.Context, def domain.RecurringDefinition) error
}

// TransactionWriter is the slice of the store the sweep needs for booking
// materialized transactions.
type TransactionWriter interface {
	InsertTransactions(ctx context.Context, txs []domain.Transaction) error

	// TransactionExistsByReference reports whether a transaction with the
	// given external reference has already been booked.
	TransactionExistsByReference(ctx context.Context, ref string) (bool, error)
}

// SweepReport summarizes one sweep for the caller and the user.
type SweepReport struct {
	Due          int `json:"due"`
	Fired        int `json:"fired"`
	AlreadyFired int `json:"already_fired"`
	Skipped      int `json:"skipped"`
	Failed       int `json:"failed"`
}

// Service runs the recurring sweep against the backing store.
type Service struct {
	defs DefinitionRepository
	txs  TransactionWriter
}

// NewService creates a sweep service over the given repositories.
func NewService(defs DefinitionRepository, txs TransactionWriter) *Service {
	return &Service{defs: defs, txs: txs}
}

// Sweep materializes every due definition once and advances its schedule.
// Each definition is processed independently and best-effort: a storage
// failure on one definition is counted and logged but never blocks the
// others. The read-compute-write sequence holds no lock, so two concurrent
// sweeps may observe the same due definition; the idempotency key on the
// materialized transaction keeps the second sweep from double-booking it.
func (s *Service) Sweep(ctx context.Context, today civil.Date) (*SweepReport, error) {
	log := logger.FromContext(ctx)

	due, err := s.defs.ListDueDefinitions(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("Sweep: listing due definitions: %w", err)
	}

	report := &SweepReport{Due: len(due)}
	if len(due) == 0 {
		return report, nil
	}

	result := ProcessDue(due, today)
	for _, skipped := range result.Skipped {
		report.Skipped++
		log.Warn().
			Str("definition_id", skipped.DefinitionID).
			Err(skipped.Err).
			Msg("Skipping misconfigured recurring definition")
	}

	for i, tx := range result.Fired {
		updated := result.Updated[i]

		booked, err := s.bookOnce(ctx, tx)
		if err != nil {
			report.Failed++
			log.Error().
				Str("definition_id", updated.ID).
				Err(err).
				Msg("Failed to materialize recurring transaction")
			continue
		}
		if booked {
			report.Fired++
		} else {
			// A concurrent sweep already booked this cycle. The schedule
			// still advances so the definition does not stay due forever.
			report.AlreadyFired++
			log.Info().
				Str("definition_id", updated.ID).
				Str("fired_date", tx.Date.String()).
				Msg("Cycle already materialized by a concurrent sweep")
		}

		if err := s.defs.UpdateSchedule(ctx, updated); err != nil {
			report.Failed++
			log.Error().
				Str("definition_id", updated.ID).
				Err(err).
				Msg("Materialized transaction but failed to advance schedule")
			continue
		}
	}

	log.Info().
		Int("due", report.Due).
		Int("fired", report.Fired).
		Int("already_fired", report.AlreadyFired).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Msg("Recurring sweep finished")

	return report, nil
}

// bookOnce inserts the transaction unless its idempotency key is already
// present. Returns false when the cycle was booked previously.
func (s *Service) bookOnce(ctx context.Context, tx domain.Transaction) (bool, error) {
	exists, err := s.txs.TransactionExistsByReference(ctx, tx.ExternalReference)
	if err != nil {
		return false, fmt.Errorf("bookOnce: checking idempotency key: %w", err)
	}
	if exists {
		return false, nil
	}
	if err := s.txs.InsertTransactions(ctx, []domain.Transaction{tx}); err != nil {
		return false, fmt.Errorf("bookOnce: inserting transaction: %w", err)
	}
	return true, nil
}
