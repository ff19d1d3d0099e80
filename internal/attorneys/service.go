package attorneys

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service contains business logic for attorneys.
type Service struct {
	Repo Repo
	Now  func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repo) *Service {
	return &Service{Repo: repo, Now: time.Now}
}

// CreateInput holds the fields accepted when registering an attorney.
type CreateInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Firm  string `json:"firm"`
}

// Create registers an attorney.
func (s *Service) Create(ctx context.Context, in CreateInput) (Attorney, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Attorney{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(in.Email))
	if err != nil {
		return Attorney{}, fmt.Errorf("%w: invalid email", ErrInvalidInput)
	}

	a := Attorney{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     strings.ToLower(addr.Address),
		Phone:     strings.TrimSpace(in.Phone),
		Firm:      strings.TrimSpace(in.Firm),
		CreatedAt: s.Now().UTC(),
	}
	if err := s.Repo.Create(ctx, a); err != nil {
		return Attorney{}, err
	}
	return a, nil
}

// Get returns an attorney by ID.
func (s *Service) Get(ctx context.Context, id string) (Attorney, error) {
	return s.Repo.GetByID(ctx, id)
}

// List returns all attorneys.
func (s *Service) List(ctx context.Context) ([]Attorney, error) {
	return s.Repo.List(ctx)
}

// Exists reports whether an attorney with id is registered.
func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.Repo.GetByID(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}
