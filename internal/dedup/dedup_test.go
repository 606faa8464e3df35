package dedup

import (
	"testing"

	"cloud.google.com/go/civil"

	"github.com/pvoronov/homeledger/internal/domain"
)

func tx(date civil.Date, amount float64) domain.Transaction {
	return domain.Transaction{Date: date, Description: "existing", Amount: amount}
}

func cand(date civil.Date, amount float64) domain.CandidateTransaction {
	return domain.CandidateTransaction{Date: date, Description: "candidate", Amount: amount}
}

var (
	jan10 = civil.Date{Year: 2024, Month: 1, Day: 10}
	jan12 = civil.Date{Year: 2024, Month: 1, Day: 12}
	jan13 = civil.Date{Year: 2024, Month: 1, Day: 13}
	jan14 = civil.Date{Year: 2024, Month: 1, Day: 14}
)

func TestFilterNew_ExactAmountWithinWindowIsDuplicate(t *testing.T) {
	existing := []domain.Transaction{tx(jan10, -50.00)}
	candidates := []domain.CandidateTransaction{cand(jan12, -50.00)}

	res := FilterNew(candidates, existing)

	if len(res.Accepted) != 0 || res.DuplicateCount != 1 {
		t.Fatalf("2-day gap with exact amount must be a duplicate, got %+v", res)
	}
}

func TestFilterNew_AmountToleranceBoundary(t *testing.T) {
	existing := []domain.Transaction{tx(jan10, -50.00)}

	tests := []struct {
		name      string
		amount    float64
		duplicate bool
	}{
		{"same amount", -50.00, true},
		{"0.009 under tolerance", -50.009, true},
		// -50.00 minus -49.99 is 0.00999999... in float64, not 0.01; the
		// comparison must still treat the gap as a full cent.
		{"a full cent apart", -49.99, false},
		{"a full cent apart the other way", -50.01, false},
		{"well apart", -51.00, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := FilterNew([]domain.CandidateTransaction{cand(jan10, tt.amount)}, existing)
			if got := res.DuplicateCount == 1; got != tt.duplicate {
				t.Errorf("amount %v: duplicate = %v, want %v", tt.amount, got, tt.duplicate)
			}
		})
	}
}

func TestFilterNew_FractionalAmountBoundary(t *testing.T) {
	// Amounts with sub-cent digits hit the same float64 representation
	// noise as round ones; the cent boundary must stay exact.
	existing := []domain.Transaction{tx(jan10, 10.555)}

	exactCent := FilterNew([]domain.CandidateTransaction{cand(jan10, 10.545)}, existing)
	if exactCent.DuplicateCount != 0 {
		t.Error("exactly one cent apart must not match")
	}

	underCent := FilterNew([]domain.CandidateTransaction{cand(jan10, 10.549)}, existing)
	if underCent.DuplicateCount != 1 {
		t.Error("0.006 apart must match")
	}
}

func TestFilterNew_DateWindowBoundary(t *testing.T) {
	existing := []domain.Transaction{tx(jan10, -20.00)}

	threeDays := FilterNew([]domain.CandidateTransaction{cand(jan13, -20.00)}, existing)
	if threeDays.DuplicateCount != 1 {
		t.Error("3-day difference must match")
	}

	fourDays := FilterNew([]domain.CandidateTransaction{cand(jan14, -20.00)}, existing)
	if fourDays.DuplicateCount != 0 {
		t.Error("4-day difference must not match")
	}

	// The window is symmetric: candidate three days before the existing
	// record also matches.
	before := FilterNew([]domain.CandidateTransaction{cand(civil.Date{Year: 2024, Month: 1, Day: 7}, -20.00)}, existing)
	if before.DuplicateCount != 1 {
		t.Error("3-day difference in the past must match")
	}
}

func TestFilterNew_DescriptionIsNotPartOfTheMatchKey(t *testing.T) {
	existing := []domain.Transaction{{Date: jan10, Description: "CARD PAYMENT TESCO", Amount: -31.40}}
	candidates := []domain.CandidateTransaction{{Date: jan10, Description: "Tesco Stores 2041", Amount: -31.40}}

	res := FilterNew(candidates, existing)
	if res.DuplicateCount != 1 {
		t.Fatal("differing descriptions must not prevent a duplicate match")
	}
}

func TestFilterNew_NonConsumingMatch(t *testing.T) {
	// One existing record may mark several candidates as duplicates.
	existing := []domain.Transaction{tx(jan10, -15.00)}
	candidates := []domain.CandidateTransaction{
		cand(jan10, -15.00),
		cand(jan12, -15.00),
	}

	res := FilterNew(candidates, existing)
	if res.DuplicateCount != 2 || len(res.Accepted) != 0 {
		t.Fatalf("both candidates should match the single existing record, got %+v", res)
	}
}

func TestFilterNew_ReRunClassifiesAcceptedAsDuplicates(t *testing.T) {
	existing := []domain.Transaction{tx(jan10, -50.00)}
	candidates := []domain.CandidateTransaction{
		cand(jan12, -50.00), // duplicate of existing
		cand(jan12, -75.25), // new
		cand(jan13, -8.10),  // new
	}

	first := FilterNew(candidates, existing)
	if len(first.Accepted) != 2 || first.DuplicateCount != 1 {
		t.Fatalf("first pass = %+v, want 2 accepted / 1 duplicate", first)
	}

	// Book the accepted candidates, then re-run the same input: the
	// previously accepted candidates must now classify as duplicates.
	for _, a := range first.Accepted {
		existing = append(existing, domain.Transaction{Date: a.Date, Description: a.Description, Amount: a.Amount})
	}

	second := FilterNew(candidates, existing)
	if len(second.Accepted) != 0 || second.DuplicateCount != 3 {
		t.Fatalf("second pass = %+v, want everything classified duplicate", second)
	}
}

func TestFilterNew_EmptyInputs(t *testing.T) {
	if res := FilterNew(nil, []domain.Transaction{tx(jan10, -1)}); len(res.Accepted) != 0 || res.DuplicateCount != 0 {
		t.Fatalf("no candidates should yield an empty result, got %+v", res)
	}

	res := FilterNew([]domain.CandidateTransaction{cand(jan10, -1)}, nil)
	if len(res.Accepted) != 1 || res.DuplicateCount != 0 {
		t.Fatalf("empty history should accept everything, got %+v", res)
	}
}

func TestFilterNew_OrderIndependentClassification(t *testing.T) {
	existing := []domain.Transaction{tx(jan10, -50.00), tx(jan13, -9.99)}
	forward := []domain.CandidateTransaction{
		cand(jan12, -50.00),
		cand(jan12, -9.99),
		cand(jan12, -123.45),
	}
	reversed := []domain.CandidateTransaction{forward[2], forward[1], forward[0]}

	a := FilterNew(forward, existing)
	b := FilterNew(reversed, existing)

	if a.DuplicateCount != b.DuplicateCount || len(a.Accepted) != len(b.Accepted) {
		t.Fatalf("classification must not depend on candidate order: %+v vs %+v", a, b)
	}
}
