package bigquery

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// InsertModelOutput stores the raw model response for a parsing run.
func (r *Repository) InsertModelOutput(ctx context.Context, parsingRunID, documentID, rawJSON string) error {
	row := &ModelOutputRow{
		OutputID:     uuid.NewString(),
		ParsingRunID: parsingRunID,
		DocumentID:   documentID,
		RawJSON:      rawJSON,
		CreatedTS:    time.Now(),
	}

	inserter := r.table(modelOutputsTable).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("InsertModelOutput: inserting row: %w", err)
	}
	return nil
}
