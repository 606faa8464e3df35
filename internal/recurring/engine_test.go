package recurring

import (
	"testing"

	"cloud.google.com/go/civil"

	"github.com/pvoronov/homeledger/internal/domain"
)

func TestProcessDue_MonthlyOverdueFiresOnceAndAdvancesOneCycle(t *testing.T) {
	def := domain.RecurringDefinition{
		ID:          "def-1",
		Description: "Streaming subscription",
		Amount:      -9.99,
		Currency:    "GBP",
		Interval:    domain.IntervalMonthly,
		NextRunDate: civil.Date{Year: 2024, Month: 1, Day: 15},
		Active:      true,
	}
	today := civil.Date{Year: 2024, Month: 3, Day: 1}

	res := ProcessDue([]domain.RecurringDefinition{def}, today)

	if len(res.Fired) != 1 {
		t.Fatalf("expected 1 fired transaction, got %d", len(res.Fired))
	}
	tx := res.Fired[0]
	if got, want := tx.Date, (civil.Date{Year: 2024, Month: 1, Day: 15}); got != want {
		t.Errorf("fired date = %s, want %s", got, want)
	}
	if tx.Amount != -9.99 {
		t.Errorf("fired amount = %v, want -9.99", tx.Amount)
	}
	if !tx.IsRecurring {
		t.Error("fired transaction should be marked recurring")
	}

	if len(res.Updated) != 1 {
		t.Fatalf("expected 1 updated definition, got %d", len(res.Updated))
	}
	upd := res.Updated[0]
	if got, want := upd.NextRunDate, (civil.Date{Year: 2024, Month: 2, Day: 15}); got != want {
		t.Errorf("next run date = %s, want %s (one cycle, not catch-up)", got, want)
	}
	if upd.LastRunDate == nil || *upd.LastRunDate != (civil.Date{Year: 2024, Month: 1, Day: 15}) {
		t.Errorf("last run date = %v, want 2024-01-15", upd.LastRunDate)
	}
}

func TestProcessDue_InactiveNeverFires(t *testing.T) {
	def := domain.RecurringDefinition{
		ID:          "def-inactive",
		Amount:      -5,
		Interval:    domain.IntervalDaily,
		NextRunDate: civil.Date{Year: 2024, Month: 1, Day: 1},
		Active:      false,
	}

	res := ProcessDue([]domain.RecurringDefinition{def}, civil.Date{Year: 2024, Month: 6, Day: 1})

	if len(res.Fired) != 0 || len(res.Updated) != 0 || len(res.Skipped) != 0 {
		t.Fatalf("inactive definition must be ignored entirely, got %+v", res)
	}
}

func TestProcessDue_NotYetDue(t *testing.T) {
	def := domain.RecurringDefinition{
		ID:          "def-future",
		Amount:      100,
		Interval:    domain.IntervalWeekly,
		NextRunDate: civil.Date{Year: 2024, Month: 5, Day: 10},
		Active:      true,
	}

	res := ProcessDue([]domain.RecurringDefinition{def}, civil.Date{Year: 2024, Month: 5, Day: 9})
	if len(res.Fired) != 0 {
		t.Fatalf("definition due tomorrow must not fire today")
	}

	// Due exactly today fires.
	res = ProcessDue([]domain.RecurringDefinition{def}, civil.Date{Year: 2024, Month: 5, Day: 10})
	if len(res.Fired) != 1 {
		t.Fatalf("definition due today must fire")
	}
}

func TestProcessDue_MalformedIntervalSkipsWithoutAbortingBatch(t *testing.T) {
	bad := domain.RecurringDefinition{
		ID:          "def-bad",
		Amount:      -10,
		Interval:    "fortnightly",
		NextRunDate: civil.Date{Year: 2024, Month: 1, Day: 1},
		Active:      true,
	}
	good := domain.RecurringDefinition{
		ID:          "def-good",
		Amount:      -20,
		Interval:    domain.IntervalDaily,
		NextRunDate: civil.Date{Year: 2024, Month: 1, Day: 1},
		Active:      true,
	}

	res := ProcessDue([]domain.RecurringDefinition{bad, good}, civil.Date{Year: 2024, Month: 1, Day: 2})

	if len(res.Skipped) != 1 || res.Skipped[0].DefinitionID != "def-bad" {
		t.Fatalf("expected def-bad skipped, got %+v", res.Skipped)
	}
	if len(res.Fired) != 1 || res.Fired[0].Amount != -20 {
		t.Fatalf("good definition must still fire, got %+v", res.Fired)
	}
}

func TestAdvance_IntervalArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		interval domain.Interval
		fired    civil.Date
		want     civil.Date
	}{
		{"daily", domain.IntervalDaily, civil.Date{Year: 2024, Month: 3, Day: 31}, civil.Date{Year: 2024, Month: 4, Day: 1}},
		{"weekly", domain.IntervalWeekly, civil.Date{Year: 2024, Month: 12, Day: 30}, civil.Date{Year: 2025, Month: 1, Day: 6}},
		{"monthly mid-month", domain.IntervalMonthly, civil.Date{Year: 2024, Month: 1, Day: 15}, civil.Date{Year: 2024, Month: 2, Day: 15}},
		{"monthly clamps to leap February", domain.IntervalMonthly, civil.Date{Year: 2024, Month: 1, Day: 31}, civil.Date{Year: 2024, Month: 2, Day: 29}},
		{"monthly clamps to short February", domain.IntervalMonthly, civil.Date{Year: 2025, Month: 1, Day: 31}, civil.Date{Year: 2025, Month: 2, Day: 28}},
		{"monthly keeps clamped day forward", domain.IntervalMonthly, civil.Date{Year: 2024, Month: 4, Day: 30}, civil.Date{Year: 2024, Month: 5, Day: 30}},
		{"yearly", domain.IntervalYearly, civil.Date{Year: 2024, Month: 6, Day: 1}, civil.Date{Year: 2025, Month: 6, Day: 1}},
		{"yearly clamps leap day", domain.IntervalYearly, civil.Date{Year: 2024, Month: 2, Day: 29}, civil.Date{Year: 2025, Month: 2, Day: 28}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := domain.RecurringDefinition{ID: "d", Interval: tt.interval, Active: true}
			got, err := Advance(def, tt.fired)
			if err != nil {
				t.Fatalf("Advance returned error: %v", err)
			}
			if got.NextRunDate != tt.want {
				t.Errorf("next run date = %s, want %s", got.NextRunDate, tt.want)
			}
			if got.LastRunDate == nil || *got.LastRunDate != tt.fired {
				t.Errorf("last run date = %v, want %s", got.LastRunDate, tt.fired)
			}
		})
	}
}

func TestAdvance_DoesNotMutateInput(t *testing.T) {
	def := domain.RecurringDefinition{
		ID:          "def-pure",
		Interval:    domain.IntervalDaily,
		NextRunDate: civil.Date{Year: 2024, Month: 1, Day: 1},
		Active:      true,
	}
	before := def

	if _, err := Advance(def, def.NextRunDate); err != nil {
		t.Fatalf("Advance returned error: %v", err)
	}
	if def != before {
		t.Errorf("Advance mutated its input: %+v", def)
	}
}
