package attorneys

import "context"

// Repo defines persistence operations for attorneys.
type Repo interface {
	Create(ctx context.Context, a Attorney) error
	GetByID(ctx context.Context, id string) (Attorney, error)
	List(ctx context.Context) ([]Attorney, error)
}
