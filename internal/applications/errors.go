package applications

import (
	"errors"
	"fmt"

	"patent-backend/internal/workflow"
)

var (
	ErrNotFound     = fmt.Errorf("application: %w", workflow.ErrNotFound)
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("forbidden")
)

// ValidationError carries per-field schema failures.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid application: %d field error(s)", len(e.Fields))
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }
