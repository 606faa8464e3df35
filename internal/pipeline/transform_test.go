package pipeline

import (
	"testing"

	"cloud.google.com/go/civil"
)

func TestTransformModelOutput(t *testing.T) {
	raw := map[string]interface{}{
		"transactions": []interface{}{
			map[string]interface{}{
				"date":        "2024-03-14",
				"description": "TESCO STORES 2041",
				"amount":      -23.50,
				"currency":    "gbp",
				"category":    "Groceries",
			},
			map[string]interface{}{
				"date":        "2024-03-15",
				"description": "SALARY ACME LTD",
				"amount":      2100.00,
			},
		},
	}

	candidates, err := transformModelOutput(raw, "GBP")
	if err != nil {
		t.Fatalf("transformModelOutput failed: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("got %d candidates, want 2", len(candidates))
	}

	first := candidates[0]
	if first.Date != (civil.Date{Year: 2024, Month: 3, Day: 14}) {
		t.Errorf("date = %v", first.Date)
	}
	if first.Currency != "GBP" {
		t.Errorf("currency = %q, want normalized GBP", first.Currency)
	}
	if first.CategoryLabel != "Groceries" {
		t.Errorf("category label = %q", first.CategoryLabel)
	}

	// Missing currency and category fall back to defaults.
	second := candidates[1]
	if second.Currency != "GBP" {
		t.Errorf("default currency = %q, want GBP", second.Currency)
	}
	if second.CategoryLabel != "" {
		t.Errorf("category label = %q, want empty", second.CategoryLabel)
	}
}

func TestTransformModelOutput_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]interface{}
	}{
		{
			name: "missing transactions key",
			raw:  map[string]interface{}{},
		},
		{
			name: "transactions not an array",
			raw:  map[string]interface{}{"transactions": "nope"},
		},
		{
			name: "missing date",
			raw: map[string]interface{}{
				"transactions": []interface{}{
					map[string]interface{}{"description": "X", "amount": 1.0},
				},
			},
		},
		{
			name: "invalid date format",
			raw: map[string]interface{}{
				"transactions": []interface{}{
					map[string]interface{}{"date": "14/03/2024", "description": "X", "amount": 1.0},
				},
			},
		},
		{
			name: "amount has wrong type",
			raw: map[string]interface{}{
				"transactions": []interface{}{
					map[string]interface{}{"date": "2024-03-14", "description": "X", "amount": "1.0"},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := transformModelOutput(tt.raw, "GBP"); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "plain JSON untouched",
			raw:  `[{"a":1}]`,
			want: `[{"a":1}]`,
		},
		{
			name: "json code fence",
			raw:  "```json\n[{\"a\":1}]\n```",
			want: `[{"a":1}]`,
		},
		{
			name: "bare code fence",
			raw:  "```\n[{\"a\":1}]\n```",
			want: `[{"a":1}]`,
		},
		{
			name: "prose around the array",
			raw:  "Here are the transactions:\n[{\"a\":1}]\nHope that helps!",
			want: `[{"a":1}]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanModelJSON(tt.raw); got != tt.want {
				t.Errorf("cleanModelJSON(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestMimeTypeForFilename(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"statement.pdf", "application/pdf"},
		{"statement.PDF", "application/pdf"},
		{"export.csv", "text/csv"},
		{"scan.jpeg", "image/jpeg"},
		{"unknown.bin", "application/octet-stream"},
	}

	for _, tt := range tests {
		if got := mimeTypeForFilename(tt.filename); got != tt.want {
			t.Errorf("mimeTypeForFilename(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}
