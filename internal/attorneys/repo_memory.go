package attorneys

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]Attorney
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string]Attorney)}
}

// Create stores a new attorney.
func (r *MemoryRepo) Create(ctx context.Context, a Attorney) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.data {
		if strings.EqualFold(existing.Email, a.Email) {
			return ErrDuplicate
		}
	}
	r.data[a.ID] = a
	return nil
}

// GetByID returns an attorney by ID.
func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Attorney, error) {
	if err := ctx.Err(); err != nil {
		return Attorney{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.data[id]
	if !ok {
		return Attorney{}, ErrNotFound
	}
	return a, nil
}

// List returns attorneys ordered by name.
func (r *MemoryRepo) List(ctx context.Context) ([]Attorney, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]Attorney, 0, len(r.data))
	for _, a := range r.data {
		out = append(out, a)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

var _ Repo = (*MemoryRepo)(nil)
