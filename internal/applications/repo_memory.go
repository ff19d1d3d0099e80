package applications

import (
	"context"
	"sort"
	"sync"
	"time"

	"patent-backend/internal/workflow"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu      sync.RWMutex
	data    map[string]Application
	history map[string][]HistoryEntry
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		data:    make(map[string]Application),
		history: make(map[string][]HistoryEntry),
	}
}

// Create stores a new application.
func (r *MemoryRepo) Create(ctx context.Context, app Application) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[app.ID] = clone(app)
	return nil
}

// GetByID returns an application by ID.
func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Application, error) {
	if err := ctx.Err(); err != nil {
		return Application{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	app, ok := r.data[id]
	if !ok {
		return Application{}, ErrNotFound
	}
	return clone(app), nil
}

// Get returns the workflow snapshot of an application.
func (r *MemoryRepo) Get(ctx context.Context, id string) (workflow.Snapshot, error) {
	app, err := r.GetByID(ctx, id)
	if err != nil {
		return workflow.Snapshot{}, err
	}
	return app.snapshot(), nil
}

// CompareAndSwap applies swap if the stored status still equals swap.Expected.
func (r *MemoryRepo) CompareAndSwap(ctx context.Context, swap workflow.Swap) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.data[swap.ApplicationID]
	if !ok {
		return false, ErrNotFound
	}
	if app.Status != swap.Expected {
		return false, nil
	}

	app = clone(app)
	app.Status = swap.Next
	if swap.StampedAt != nil && swap.DateField != "" {
		if existing, set := app.Dates[swap.DateField]; !set || existing.IsZero() {
			app.Dates[swap.DateField] = *swap.StampedAt
		}
	}
	if swap.DecisionStatus != "" {
		app.DecisionStatus = swap.DecisionStatus
	}
	app.UpdatedAt = swap.At
	r.data[app.ID] = app
	r.history[app.ID] = append(r.history[app.ID], HistoryEntry{
		ApplicationID: app.ID,
		From:          swap.Expected,
		To:            swap.Next,
		ActorID:       swap.ActorID,
		Role:          swap.Role,
		At:            swap.At,
	})
	return true, nil
}

// ListByApplicant returns an applicant's applications, newest first.
func (r *MemoryRepo) ListByApplicant(ctx context.Context, applicantID string) ([]Application, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]Application, 0)
	for _, app := range r.data {
		if app.ApplicantID == applicantID {
			out = append(out, clone(app))
		}
	}
	r.mu.RUnlock()
	sortNewestFirst(out)
	return out, nil
}

// List returns applications matching filter, newest first.
func (r *MemoryRepo) List(ctx context.Context, filter Filter) ([]Application, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]Application, 0)
	for _, app := range r.data {
		if filter.Matches(app.Status) {
			out = append(out, clone(app))
		}
	}
	r.mu.RUnlock()
	sortNewestFirst(out)

	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(out) {
		return []Application{}, nil
	}
	end := len(out)
	if filter.Limit > 0 && offset+filter.Limit < end {
		end = offset + filter.Limit
	}
	return out[offset:end], nil
}

// CountByStatus counts applications per status.
func (r *MemoryRepo) CountByStatus(ctx context.Context) (map[workflow.Status]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[workflow.Status]int)
	for _, app := range r.data {
		out[app.Status]++
	}
	return out, nil
}

// History returns the status changes of an application, oldest first.
func (r *MemoryRepo) History(ctx context.Context, id string) ([]HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.data[id]; !ok {
		return nil, ErrNotFound
	}
	out := make([]HistoryEntry, len(r.history[id]))
	copy(out, r.history[id])
	return out, nil
}

// SetAttorney records the attorney assigned to an application.
func (r *MemoryRepo) SetAttorney(ctx context.Context, id, attorneyID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.data[id]
	if !ok {
		return ErrNotFound
	}
	app.AttorneyID = attorneyID
	app.UpdatedAt = at
	r.data[id] = app
	return nil
}

func clone(app Application) Application {
	dates := make(map[string]time.Time, len(app.Dates))
	for k, v := range app.Dates {
		dates[k] = v
	}
	app.Dates = dates
	if app.Sections != nil {
		sections := make([]byte, len(app.Sections))
		copy(sections, app.Sections)
		app.Sections = sections
	}
	return app
}

func sortNewestFirst(apps []Application) {
	sort.Slice(apps, func(i, j int) bool {
		if apps[i].CreatedAt.Equal(apps[j].CreatedAt) {
			return apps[i].ID > apps[j].ID
		}
		return apps[i].CreatedAt.After(apps[j].CreatedAt)
	})
}

var _ Repo = (*MemoryRepo)(nil)
