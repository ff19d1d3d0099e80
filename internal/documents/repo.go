package documents

import "context"

// Repo stores document metadata; file bytes live in the object store.
// GetByID returns ErrNotFound for unknown ids.
type Repo interface {
	Create(ctx context.Context, doc Document) error
	GetByID(ctx context.Context, id string) (Document, error)
	ListByApplication(ctx context.Context, applicationID string) ([]Document, error)
}
