package domain

import (
	"cloud.google.com/go/civil"
)

// Transaction is one booked transaction in an account's history.
// Amounts are signed: negative for money OUT, positive for money IN.
type Transaction struct {
	Date        civil.Date
	Description string
	Amount      float64
	Currency    string

	AccountID  string
	CategoryID string

	// IsRecurring marks transactions materialized from a recurring definition.
	IsRecurring bool

	// ExternalReference carries an idempotency key for transactions that must
	// not be booked twice, e.g. "rec:<definition_id>:<fired_date>" for
	// recurring materializations. Empty for ordinary transactions.
	ExternalReference string
}

// CandidateTransaction is an extracted transaction that has not been
// persisted yet. It exists only during the import/suggestion pipeline and is
// discarded after the accept/reject decision.
type CandidateTransaction struct {
	Date        civil.Date
	Description string
	Amount      float64
	Currency    string

	// CategoryLabel is the free-text label the extractor assigned; it is
	// resolved to a category reference before insert.
	CategoryLabel string
}

// RecurringSuggestion is a detected recurrence pattern proposed to the user.
type RecurringSuggestion struct {
	Description     string
	Amount          float64
	Interval        Interval
	OccurrenceCount int

	// Confidence grows with the occurrence count and is deliberately not
	// clamped to 1.0; it is a ranking score, not a probability.
	Confidence float64
}
