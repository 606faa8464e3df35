package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

// Document parsing statuses.
const (
	DocumentStatusUploaded   = "UPLOADED"
	DocumentStatusProcessing = "PROCESSING"
	DocumentStatusParsed     = "PARSED"
	DocumentStatusFailed     = "FAILED"
)

// InsertDocument inserts a new document row.
func (r *Repository) InsertDocument(ctx context.Context, row *DocumentRow) error {
	if row.UploadTS.IsZero() {
		row.UploadTS = time.Now()
	}
	if row.ParsingStatus == "" {
		row.ParsingStatus = DocumentStatusUploaded
	}
	if row.UserID == "" {
		row.UserID = r.userID
	}

	inserter := r.table(documentsTable).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("InsertDocument: inserting row: %w", err)
	}
	return nil
}

// ListAllDocuments returns every document, newest upload first.
func (r *Repository) ListAllDocuments(ctx context.Context) ([]*DocumentRow, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT
		  document_id,
		  user_id,
		  gcs_uri,
		  document_type,
		  account_id,
		  upload_ts,
		  processed_ts,
		  parsing_status,
		  original_filename,
		  file_mime_type,
		  metadata
		FROM %s.%s
		ORDER BY upload_ts DESC
	`, r.datasetID, documentsTable))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListAllDocuments: query read: %w", err)
	}

	var rows []*DocumentRow
	for {
		var row DocumentRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListAllDocuments: iter next: %w", err)
		}
		rows = append(rows, &row)
	}

	return rows, nil
}

// UpdateDocumentStatus sets parsing_status for a document. Terminal statuses
// also stamp processed_ts.
func (r *Repository) UpdateDocumentStatus(ctx context.Context, documentID, status string) error {
	q := r.client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET parsing_status = @status,
		    processed_ts = IF(@status IN ('PARSED', 'FAILED'), @now, processed_ts)
		WHERE document_id = @document_id
	`, r.datasetID, documentsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: status},
		{Name: "now", Value: time.Now()},
		{Name: "document_id", Value: documentID},
	}

	return r.runDML(ctx, q, "UpdateDocumentStatus")
}
