// Package category maps the free-text labels produced by statement
// extraction onto the category taxonomy.
package category

import (
	"context"
	"fmt"
	"strings"

	"github.com/pvoronov/homeledger/internal/domain"
)

// FallbackName is the catch-all category assigned to labels the taxonomy
// does not know.
const FallbackName = "Other"

// Repository is the slice of the store the resolver needs.
type Repository interface {
	ListActiveCategories(ctx context.Context) ([]domain.Category, error)
}

// Resolver resolves free-text category labels case-insensitively, falling
// back to the "Other" category when a label is unknown.
type Resolver struct {
	byName   map[string]domain.Category
	fallback domain.Category
}

// NewResolver loads the active taxonomy and builds the lookup table.
// The taxonomy must contain the fallback category.
func NewResolver(ctx context.Context, repo Repository) (*Resolver, error) {
	cats, err := repo.ListActiveCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewResolver: list categories: %w", err)
	}

	r := &Resolver{byName: make(map[string]domain.Category, len(cats))}
	for _, c := range cats {
		r.byName[normalizeLabel(c.Name)] = c
	}

	fallback, ok := r.byName[normalizeLabel(FallbackName)]
	if !ok {
		return nil, fmt.Errorf("NewResolver: taxonomy is missing the %q category", FallbackName)
	}
	r.fallback = fallback

	return r, nil
}

// Resolve returns the category for a free-text label, or the fallback
// category when the label is empty or unknown.
func (r *Resolver) Resolve(label string) domain.Category {
	if c, ok := r.byName[normalizeLabel(label)]; ok {
		return c
	}
	return r.fallback
}

// normalizeLabel normalizes a label for case-insensitive comparison.
func normalizeLabel(label string) string {
	return strings.ToUpper(strings.TrimSpace(label))
}
