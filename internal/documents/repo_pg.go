package documents

import (
	"context"
	"database/sql"
	"errors"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new document.
func (r *PGRepo) Create(ctx context.Context, doc Document) error {
	const query = `
INSERT INTO application_documents (
    id,
    application_id,
    kind,
    file_name,
    mime_type,
    size_bytes,
    page_count,
    storage_key,
    uploaded_by,
    created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	var pages sql.NullInt32
	if doc.PageCount != nil {
		pages = sql.NullInt32{Int32: int32(*doc.PageCount), Valid: true}
	}

	_, err := r.DB.ExecContext(
		ctx,
		query,
		doc.ID,
		doc.ApplicationID,
		string(doc.Kind),
		doc.FileName,
		doc.MimeType,
		doc.SizeBytes,
		pages,
		doc.StorageKey,
		doc.UploadedBy,
		doc.CreatedAt,
	)
	return err
}

// GetByID fetches a document by ID.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Document, error) {
	const query = `
SELECT id, application_id, kind, file_name, mime_type, size_bytes, page_count, storage_key, uploaded_by, created_at
FROM application_documents
WHERE id = $1`
	doc, err := scanDocument(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

// ListByApplication lists an application's documents, oldest first.
func (r *PGRepo) ListByApplication(ctx context.Context, applicationID string) ([]Document, error) {
	const query = `
SELECT id, application_id, kind, file_name, mime_type, size_bytes, page_count, storage_key, uploaded_by, created_at
FROM application_documents
WHERE application_id = $1
ORDER BY created_at ASC`

	rows, err := r.DB.QueryContext(ctx, query, applicationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var (
		doc   Document
		kind  string
		pages sql.NullInt32
	)
	if err := row.Scan(
		&doc.ID,
		&doc.ApplicationID,
		&kind,
		&doc.FileName,
		&doc.MimeType,
		&doc.SizeBytes,
		&pages,
		&doc.StorageKey,
		&doc.UploadedBy,
		&doc.CreatedAt,
	); err != nil {
		return Document{}, err
	}
	doc.Kind = Kind(kind)
	if pages.Valid {
		n := int(pages.Int32)
		doc.PageCount = &n
	}
	return doc, nil
}

var _ Repo = (*PGRepo)(nil)
