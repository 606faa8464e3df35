// Package recurring converts due recurring definitions into booked
// transactions exactly once per cycle and keeps each definition's schedule
// correct going forward.
package recurring

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"

	"github.com/pvoronov/homeledger/internal/domain"
)

// SkippedDefinition records a definition the engine could not process,
// together with the configuration error that disqualified it.
type SkippedDefinition struct {
	DefinitionID string
	Err          error
}

// Result is the outcome of one ProcessDue invocation.
type Result struct {
	// Fired holds one materialized transaction per due definition, dated at
	// the definition's due date (not "today").
	Fired []domain.Transaction

	// Updated holds the post-advance copies of the definitions that fired,
	// in the same order as Fired. Persisting them is the caller's job.
	Updated []domain.RecurringDefinition

	// Skipped holds definitions with malformed configuration. A skipped
	// definition never blocks the rest of the batch.
	Skipped []SkippedDefinition
}

// ProcessDue fires every due definition exactly once and advances its
// schedule by exactly one interval unit, even if several cycles have elapsed
// since the last run. Callers needing catch-up re-invoke until nothing is
// due. The function is pure: it never touches storage and never mutates its
// inputs.
func ProcessDue(definitions []domain.RecurringDefinition, today civil.Date) Result {
	var res Result
	for _, def := range definitions {
		if !def.IsDue(today) {
			continue
		}

		updated, err := Advance(def, def.NextRunDate)
		if err != nil {
			res.Skipped = append(res.Skipped, SkippedDefinition{DefinitionID: def.ID, Err: err})
			continue
		}

		res.Fired = append(res.Fired, materialize(def))
		res.Updated = append(res.Updated, updated)
	}
	return res
}

// Advance returns a copy of the definition with its schedule moved one
// interval unit past firedDate: NextRunDate = firedDate + interval,
// LastRunDate = firedDate. The input is never mutated.
func Advance(def domain.RecurringDefinition, firedDate civil.Date) (domain.RecurringDefinition, error) {
	interval, err := domain.ParseInterval(string(def.Interval))
	if err != nil {
		return domain.RecurringDefinition{}, fmt.Errorf("Advance: definition %s: %w", def.ID, err)
	}

	next := firedDate
	switch interval {
	case domain.IntervalDaily:
		next = next.AddDays(1)
	case domain.IntervalWeekly:
		next = next.AddDays(7)
	case domain.IntervalMonthly:
		next = addMonthsClamped(next, 1)
	case domain.IntervalYearly:
		next = addMonthsClamped(next, 12)
	}

	last := firedDate
	def.NextRunDate = next
	def.LastRunDate = &last
	return def, nil
}

// materialize builds the concrete transaction for one due cycle. The
// transaction is dated at the due date so an overdue definition still books
// on the day it was scheduled for.
func materialize(def domain.RecurringDefinition) domain.Transaction {
	return domain.Transaction{
		Date:              def.NextRunDate,
		Description:       def.Description,
		Amount:            def.Amount,
		Currency:          def.Currency,
		AccountID:         def.AccountID,
		CategoryID:        def.CategoryID,
		IsRecurring:       true,
		ExternalReference: def.IdempotencyKey(def.NextRunDate),
	}
}

// addMonthsClamped adds calendar months keeping the day-of-month, clamping
// to the last day of the target month when the source day does not exist
// there (Jan 31 + 1 month = Feb 28/29).
func addMonthsClamped(d civil.Date, months int) civil.Date {
	firstOfTarget := time.Date(d.Year, d.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, months, 0)
	day := d.Day
	if last := daysInMonth(firstOfTarget.Year(), firstOfTarget.Month()); day > last {
		day = last
	}
	return civil.Date{Year: firstOfTarget.Year(), Month: firstOfTarget.Month(), Day: day}
}

func daysInMonth(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this month.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
