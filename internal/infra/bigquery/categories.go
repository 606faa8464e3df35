package bigquery

import (
	"context"
	"fmt"

	"google.golang.org/api/iterator"

	"github.com/pvoronov/homeledger/internal/domain"
)

// ListActiveCategories returns all active categories ordered by name.
func (r *Repository) ListActiveCategories(ctx context.Context) ([]domain.Category, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT
		  category_id,
		  category_name,
		  slug,
		  is_active
		FROM %s.%s
		WHERE is_active = TRUE
		ORDER BY category_name
	`, r.datasetID, categoriesTable))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListActiveCategories: query read: %w", err)
	}

	var categories []domain.Category
	for {
		var row CategoryRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListActiveCategories: iter next: %w", err)
		}
		categories = append(categories, row.toDomain())
	}

	return categories, nil
}
