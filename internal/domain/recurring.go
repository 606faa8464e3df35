package domain

import (
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
)

// Interval is the recurrence cadence of a RecurringDefinition.
type Interval string

const (
	IntervalDaily   Interval = "daily"
	IntervalWeekly  Interval = "weekly"
	IntervalMonthly Interval = "monthly"
	IntervalYearly  Interval = "yearly"
)

// ParseInterval normalizes and validates a stored interval value.
// An unknown value is a configuration error for the one definition that
// carries it, never a reason to abort a batch.
func ParseInterval(s string) (Interval, error) {
	switch Interval(strings.ToLower(strings.TrimSpace(s))) {
	case IntervalDaily:
		return IntervalDaily, nil
	case IntervalWeekly:
		return IntervalWeekly, nil
	case IntervalMonthly:
		return IntervalMonthly, nil
	case IntervalYearly:
		return IntervalYearly, nil
	default:
		return "", fmt.Errorf("ParseInterval: unsupported interval %q", s)
	}
}

// RecurringDefinition is a user-defined template that materializes one
// transaction per due cycle.
type RecurringDefinition struct {
	ID          string
	Description string
	Amount      float64
	Currency    string
	Interval    Interval

	// NextRunDate is the earliest date on which the definition is eligible to
	// fire. Once fired it strictly advances by exactly one interval unit from
	// its pre-fire value.
	NextRunDate civil.Date

	// LastRunDate, once set, equals the NextRunDate value immediately prior
	// to the most recent advance.
	LastRunDate *civil.Date

	Active     bool
	AccountID  string
	CategoryID string
}

// IsDue reports whether the definition is eligible to fire on the given day.
// The comparison is date-only; time of day never matters.
func (d RecurringDefinition) IsDue(today civil.Date) bool {
	return d.Active && !d.NextRunDate.After(today)
}

// IdempotencyKey identifies one (definition, fired-date) materialization so
// that concurrent sweeps cannot book the same cycle twice.
func (d RecurringDefinition) IdempotencyKey(firedDate civil.Date) string {
	return fmt.Sprintf("rec:%s:%s", d.ID, firedDate.String())
}
