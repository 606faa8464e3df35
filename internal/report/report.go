// Package report computes spending summaries over the booked history.
package report

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"cloud.google.com/go/civil"

	"github.com/pvoronov/homeledger/internal/domain"
)

// CategoryTotal is one category's signed total for the period.
type CategoryTotal struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
}

// DailyTotal is one day's signed net total.
type DailyTotal struct {
	Date  string  `json:"date"`
	Total float64 `json:"total"`
}

// Summary is the spending report for one period.
type Summary struct {
	Period           string  `json:"period"`
	TransactionCount int     `json:"transaction_count"`
	Income           float64 `json:"income"`
	Spending         float64 `json:"spending"`
	Net              float64 `json:"net"`

	ByCategory []CategoryTotal `json:"by_category"`
	Trend      []DailyTotal    `json:"trend"`
}

// uncategorizedName labels transactions whose category is unknown or missing
// from the active taxonomy.
const uncategorizedName = "Uncategorized"

// Build computes a summary over the given transactions. categoryNames maps
// category IDs to display names; amounts are signed (negative = money out).
func Build(period string, txs []domain.Transaction, categoryNames map[string]string) *Summary {
	s := &Summary{
		Period:           period,
		TransactionCount: len(txs),
	}

	categoryTotals := map[string]float64{}
	trendTotals := map[string]float64{}

	for _, tx := range txs {
		if tx.Amount >= 0 {
			s.Income += tx.Amount
		} else {
			s.Spending += -tx.Amount
		}
		s.Net += tx.Amount

		name, ok := categoryNames[tx.CategoryID]
		if !ok || name == "" {
			name = uncategorizedName
		}
		categoryTotals[name] += tx.Amount
		trendTotals[tx.Date.String()] += tx.Amount
	}

	s.ByCategory = make([]CategoryTotal, 0, len(categoryTotals))
	for name, total := range categoryTotals {
		s.ByCategory = append(s.ByCategory, CategoryTotal{Category: name, Total: total})
	}
	// Largest absolute totals first; name breaks ties so output is stable.
	sort.Slice(s.ByCategory, func(i, j int) bool {
		ai, aj := math.Abs(s.ByCategory[i].Total), math.Abs(s.ByCategory[j].Total)
		if ai != aj {
			return ai > aj
		}
		return s.ByCategory[i].Category < s.ByCategory[j].Category
	})

	days := make([]string, 0, len(trendTotals))
	for day := range trendTotals {
		days = append(days, day)
	}
	sort.Strings(days)
	s.Trend = make([]DailyTotal, 0, len(days))
	for _, day := range days {
		s.Trend = append(s.Trend, DailyTotal{Date: day, Total: trendTotals[day]})
	}

	return s
}

// Store is the slice of the store the report service needs.
type Store interface {
	QueryTransactionsByDateRange(ctx context.Context, start, end civil.Date) ([]domain.Transaction, error)
	ListActiveCategories(ctx context.Context) ([]domain.Category, error)
}

// Service loads history and produces summaries.
type Service struct {
	store Store
}

// NewService creates a report service over the given store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// MonthlySummary builds the summary for one calendar month.
func (s *Service) MonthlySummary(ctx context.Context, year int, month time.Month) (*Summary, error) {
	start := civil.Date{Year: year, Month: month, Day: 1}
	end := start.AddDays(daysInMonth(year, month) - 1)

	txs, err := s.store.QueryTransactionsByDateRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("MonthlySummary: loading transactions: %w", err)
	}

	cats, err := s.store.ListActiveCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("MonthlySummary: loading categories: %w", err)
	}
	names := make(map[string]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}

	period := fmt.Sprintf("%04d-%02d", year, int(month))
	return Build(period, txs, names), nil
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
