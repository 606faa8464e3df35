// Package dedup decides whether newly observed transactions already exist in
// an account's history, so statement imports and recurring materializations
// do not double-book.
package dedup

import (
	"math"

	"cloud.google.com/go/civil"

	"github.com/pvoronov/homeledger/internal/domain"
)

const (
	// amountToleranceMilli is the strict upper bound on the amount
	// difference, in thousandths of a currency unit. Ten milli-units is one
	// cent: differences under a cent match, a full cent does not.
	amountToleranceMilli = 10

	// dateWindowDays is the maximum day distance for a duplicate match.
	dateWindowDays = 3
)

// FilterResult reports the accept/reject split of one FilterNew call.
type FilterResult struct {
	Accepted       []domain.CandidateTransaction
	DuplicateCount int
}

// FilterNew classifies each candidate against the existing history. A
// candidate is a duplicate iff some existing transaction lies within the
// amount tolerance and the date window; the description is deliberately not
// part of the match key, since statements and manual entries rarely agree on
// wording. Matching is greedy and non-consuming: one existing transaction
// may mark several candidates as duplicates. The classification of each
// candidate depends only on the candidate/existing pair, so input order
// never changes the outcome.
func FilterNew(candidates []domain.CandidateTransaction, existing []domain.Transaction) FilterResult {
	res := FilterResult{Accepted: make([]domain.CandidateTransaction, 0, len(candidates))}
	for _, cand := range candidates {
		if matchesExisting(cand, existing) {
			res.DuplicateCount++
			continue
		}
		res.Accepted = append(res.Accepted, cand)
	}
	return res
}

func matchesExisting(cand domain.CandidateTransaction, existing []domain.Transaction) bool {
	for _, e := range existing {
		if amountsMatch(e.Amount, cand.Amount) && dayDistance(e.Date, cand.Date) <= dateWindowDays {
			return true
		}
	}
	return false
}

// amountsMatch compares in rounded milli-units rather than raw float64
// subtraction: a one-cent gap like -50.00 vs -49.99 subtracts to
// 0.00999999... in binary floating point, which a naive `< 0.01` check would
// wrongly classify as under a cent.
func amountsMatch(a, b float64) bool {
	diffMilli := math.Abs(math.Round(a*1000) - math.Round(b*1000))
	return diffMilli < amountToleranceMilli
}

func dayDistance(a, b civil.Date) int {
	d := a.DaysSince(b)
	if d < 0 {
		return -d
	}
	return d
}
