package attorneys

import "errors"

var (
	ErrNotFound     = errors.New("attorney not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrDuplicate    = errors.New("attorney email already registered")
)
