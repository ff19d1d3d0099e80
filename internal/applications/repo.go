package applications

import (
	"context"
	"time"

	"patent-backend/internal/workflow"
)

// Repo persists applications. It is also the workflow store, so status
// writes only ever happen through CompareAndSwap.
type Repo interface {
	workflow.Store
	Create(ctx context.Context, app Application) error
	GetByID(ctx context.Context, id string) (Application, error)
	ListByApplicant(ctx context.Context, applicantID string) ([]Application, error)
	List(ctx context.Context, filter Filter) ([]Application, error)
	CountByStatus(ctx context.Context) (map[workflow.Status]int, error)
	History(ctx context.Context, id string) ([]HistoryEntry, error)
	SetAttorney(ctx context.Context, id, attorneyID string, at time.Time) error
}
