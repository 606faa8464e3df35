package pipeline

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/pvoronov/homeledger/internal/domain"
)

// transformModelOutput converts raw model output into candidate transactions.
// Candidates carry the model's free-text category label; resolution against
// the taxonomy happens later in the pipeline.
func transformModelOutput(rawOutput map[string]interface{}, defaultCurrency string) ([]domain.CandidateTransaction, error) {
	// Expect top-level: { "transactions": [...] }
	txAny, ok := rawOutput["transactions"]
	if !ok {
		return nil, fmt.Errorf("transformModelOutput: missing 'transactions' key in model output")
	}

	txSlice, ok := txAny.([]interface{})
	if !ok {
		return nil, fmt.Errorf("transformModelOutput: 'transactions' is %T, want []interface{}", txAny)
	}

	result := make([]domain.CandidateTransaction, 0, len(txSlice))

	for i, item := range txSlice {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("transformModelOutput: element %d is %T, want map[string]interface{}", i, item)
		}

		dateStr, err := getStringField(obj, "date", true)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		desc, err := getStringField(obj, "description", true)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		amount, err := getFloat64Field(obj, "amount", true)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}

		currencyPtr, err := getOptionalStringField(obj, "currency")
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		currency := defaultCurrency
		if currencyPtr != nil {
			currency = strings.ToUpper(*currencyPtr)
		}

		labelPtr, err := getOptionalStringField(obj, "category")
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		label := ""
		if labelPtr != nil {
			label = *labelPtr
		}

		parsed, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: invalid date %q: %w", i, dateStr, err)
		}

		result = append(result, domain.CandidateTransaction{
			Date:          civil.DateOf(parsed),
			Description:   desc,
			Amount:        amount,
			Currency:      currency,
			CategoryLabel: label,
		})
	}

	return result, nil
}

func getStringField(m map[string]interface{}, key string, required bool) (string, error) {
	v, ok := m[key]
	if !ok {
		if required {
			return "", fmt.Errorf("missing required field %q", key)
		}
		return "", nil
	}
	switch val := v.(type) {
	case string:
		if required && strings.TrimSpace(val) == "" {
			return "", fmt.Errorf("required field %q is empty", key)
		}
		return val, nil
	default:
		return "", fmt.Errorf("field %q has type %T, want string", key, v)
	}
}

func getOptionalStringField(m map[string]interface{}, key string) (*string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return nil, nil
		}
		return &s, nil
	default:
		return nil, fmt.Errorf("field %q has type %T, want string or null", key, v)
	}
}

func getFloat64Field(m map[string]interface{}, key string, required bool) (float64, error) {
	v, ok := m[key]
	if !ok {
		if required {
			return 0, fmt.Errorf("missing required field %q", key)
		}
		return 0, nil
	}
	switch val := v.(type) {
	case float64:
		return val, nil
	case int: // unlikely from encoding/json, but harmless to support
		return float64(val), nil
	default:
		return 0, fmt.Errorf("field %q has type %T, want number", key, v)
	}
}
