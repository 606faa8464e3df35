package dedup

import (
	"sort"
	"strings"

	"github.com/pvoronov/homeledger/internal/domain"
)

const (
	// minOccurrences is the smallest group size worth proposing as recurring.
	minOccurrences = 2

	// amountVarianceRatio rejects groups whose amounts spread more than this
	// fraction of the mean absolute amount.
	amountVarianceRatio = 0.10

	// maxSuggestions caps how many suggestions one analysis returns.
	maxSuggestions = 5

	baseConfidence          = 0.8
	confidencePerOccurrence = 0.05
)

// Gap classification windows, in days around the nominal cadence.
const (
	monthlyGapDays, monthlyGapSlack = 30, 5
	weeklyGapDays, weeklyGapSlack   = 7, 2
	yearlyGapDays, yearlyGapSlack   = 365, 10
)

// AnalyzeTransactions scans a transaction history for repeated charges and
// proposes recurring definitions the user has not set up yet. Groups are
// keyed by a normalized description (lowercased, digits stripped, trimmed)
// so "Netflix 01" and "Netflix 02" land in the same bucket.
func AnalyzeTransactions(history []domain.Transaction, existingDefs []domain.RecurringDefinition) []domain.RecurringSuggestion {
	groups := make(map[string][]domain.Transaction)
	for _, tx := range history {
		key := normalizeDescription(tx.Description)
		if key == "" {
			continue
		}
		groups[key] = append(groups[key], tx)
	}

	var suggestions []domain.RecurringSuggestion
	for key, txs := range groups {
		if len(txs) < minOccurrences {
			continue
		}
		if !amountsAreStable(txs) {
			continue
		}
		interval, ok := classifyCadence(txs)
		if !ok {
			continue
		}
		if coveredByExistingDefinition(key, txs, existingDefs) {
			continue
		}

		latest := mostRecent(txs)
		suggestions = append(suggestions, domain.RecurringSuggestion{
			Description:     latest.Description,
			Amount:          latest.Amount,
			Interval:        interval,
			OccurrenceCount: len(txs),
			Confidence:      baseConfidence + confidencePerOccurrence*float64(len(txs)),
		})
	}

	sort.Slice(suggestions, func(i, j int) bool {
		return suggestions[i].OccurrenceCount > suggestions[j].OccurrenceCount
	})
	if len(suggestions) > maxSuggestions {
		suggestions = suggestions[:maxSuggestions]
	}
	return suggestions
}

// normalizeDescription builds the grouping key: lowercase, digits stripped,
// whitespace trimmed and collapsed.
func normalizeDescription(desc string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(desc) {
		if r >= '0' && r <= '9' {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// amountsAreStable rejects groups whose absolute amounts deviate from their
// mean by more than amountVarianceRatio of that mean.
func amountsAreStable(txs []domain.Transaction) bool {
	var sum float64
	for _, tx := range txs {
		sum += abs(tx.Amount)
	}
	mean := sum / float64(len(txs))
	if mean == 0 {
		return false
	}
	for _, tx := range txs {
		if abs(abs(tx.Amount)-mean) > amountVarianceRatio*mean {
			return false
		}
	}
	return true
}

// classifyCadence averages the consecutive-day gaps of the date-sorted group
// and maps the average onto a known cadence. Groups matching none are
// dropped.
func classifyCadence(txs []domain.Transaction) (domain.Interval, bool) {
	sorted := make([]domain.Transaction, len(txs))
	copy(sorted, txs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	var totalGap int
	for i := 1; i < len(sorted); i++ {
		totalGap += sorted[i].Date.DaysSince(sorted[i-1].Date)
	}
	avg := float64(totalGap) / float64(len(sorted)-1)

	switch {
	case within(avg, monthlyGapDays, monthlyGapSlack):
		return domain.IntervalMonthly, true
	case within(avg, weeklyGapDays, weeklyGapSlack):
		return domain.IntervalWeekly, true
	case within(avg, yearlyGapDays, yearlyGapSlack):
		return domain.IntervalYearly, true
	default:
		return "", false
	}
}

func within(value float64, center, slack int) bool {
	return value >= float64(center-slack) && value <= float64(center+slack)
}

// coveredByExistingDefinition drops groups the user already tracks: the
// normalized key appears inside an existing definition's description and the
// amounts agree to within one currency unit.
func coveredByExistingDefinition(key string, txs []domain.Transaction, defs []domain.RecurringDefinition) bool {
	amount := mostRecent(txs).Amount
	for _, def := range defs {
		if strings.Contains(normalizeDescription(def.Description), key) && abs(def.Amount-amount) < 1 {
			return true
		}
	}
	return false
}

func mostRecent(txs []domain.Transaction) domain.Transaction {
	latest := txs[0]
	for _, tx := range txs[1:] {
		if tx.Date.After(latest.Date) {
			latest = tx
		}
	}
	return latest
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
