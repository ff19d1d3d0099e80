package workflow

import (
	"errors"
	"fmt"
)

// Code classifies engine failures for callers and HTTP mapping.
type Code string

const (
	CodePolicyDenied     Code = "POLICY_DENIED"
	CodeConflict         Code = "CONFLICT"
	CodeStoreUnavailable Code = "STORE_UNAVAILABLE"
	CodeUnknownStatus    Code = "UNKNOWN_STATUS"
	CodeNotFound         Code = "NOT_FOUND"
)

var (
	ErrPolicyDenied     = errors.New("transition denied")
	ErrConflict         = errors.New("status changed concurrently")
	ErrStoreUnavailable = errors.New("application store unavailable")
	ErrUnknownStatus    = errors.New("unknown status")
	ErrNotFound         = errors.New("application not found")
)

// Error is returned by Engine operations.
type Error struct {
	Code   Code
	Reason Reason
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Reason != ReasonNone && e.Err != nil:
		return fmt.Sprintf("%s (%s): %v", e.Code, e.Reason, e.Err)
	case e.Reason != ReasonNone:
		return fmt.Sprintf("%s (%s)", e.Code, e.Reason)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match the package sentinels by code.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrPolicyDenied:
		return e.Code == CodePolicyDenied
	case ErrConflict:
		return e.Code == CodeConflict
	case ErrStoreUnavailable:
		return e.Code == CodeStoreUnavailable
	case ErrUnknownStatus:
		return e.Code == CodeUnknownStatus || e.Reason == ReasonUnknownStatus
	case ErrNotFound:
		return e.Code == CodeNotFound
	}
	return false
}

// Retryable reports whether the caller may retry the same request.
func (e *Error) Retryable() bool {
	return e.Code == CodeConflict || e.Code == CodeStoreUnavailable
}

// ReasonOf extracts the policy reason from err, if any.
func ReasonOf(err error) Reason {
	var we *Error
	if errors.As(err, &we) {
		return we.Reason
	}
	return ReasonNone
}

func denied(r Reason) *Error {
	return &Error{Code: CodePolicyDenied, Reason: r}
}
