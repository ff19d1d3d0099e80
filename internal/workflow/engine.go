package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"patent-backend/internal/shared/metrics"
	"patent-backend/internal/shared/telemetry"
)

// Snapshot is the workflow state of one application as read from the store.
type Snapshot struct {
	Status         Status
	Dates          map[string]time.Time
	DecisionStatus string
}

// Swap describes a conditional write. The store must apply it only when the
// application's status still equals Expected, and must write every field
// (status, stamped date, decision status, history) atomically.
type Swap struct {
	ApplicationID  string
	Expected       Status
	Next           Status
	DateField      string
	StampedAt      *time.Time // nil when the milestone was already recorded
	DecisionStatus string     // "" leaves the decision untouched
	ActorID        string
	Role           Role
	At             time.Time
}

// Store is the persistence the engine depends on.
type Store interface {
	Get(ctx context.Context, applicationID string) (Snapshot, error)
	CompareAndSwap(ctx context.Context, swap Swap) (bool, error)
}

// Actor identifies who requests a transition.
type Actor struct {
	ID   string
	Role Role
}

// Result reports the outcome of a transition request.
type Result struct {
	Success        bool       `json:"success"`
	NoOp           bool       `json:"noOp,omitempty"`
	ApplicationID  string     `json:"applicationId"`
	PreviousStatus Status     `json:"previousStatus"`
	NewStatus      Status     `json:"status"`
	StampedField   string     `json:"stampedField,omitempty"`
	StampedDate    *time.Time `json:"stampedDate,omitempty"`
	Reason         Reason     `json:"reason,omitempty"`
}

// Engine applies status transitions. It is the only writer of status and
// milestone dates and holds no per-application state.
type Engine struct {
	Store Store
	Now   func() time.Time
}

// NewEngine constructs an Engine backed by store.
func NewEngine(store Store) *Engine {
	return &Engine{Store: store, Now: time.Now}
}

// Apply moves an application to the requested status.
func (e *Engine) Apply(ctx context.Context, applicationID string, to Status, actor Actor) (Result, error) {
	start := time.Now()
	snap, err := e.load(ctx, applicationID)
	if err != nil {
		e.observe(Result{}, err, start)
		return Result{ApplicationID: applicationID}, err
	}
	res, err := e.transition(ctx, applicationID, snap, to, actor)
	e.observe(res, err, start)
	return res, err
}

// ApplyFrom is Apply conditioned on the caller's earlier read: it fails
// with CodeConflict when the stored status is no longer expected, so a
// decision made on a stale status is never applied.
func (e *Engine) ApplyFrom(ctx context.Context, applicationID string, expected, to Status, actor Actor) (Result, error) {
	start := time.Now()
	snap, err := e.load(ctx, applicationID)
	if err != nil {
		e.observe(Result{}, err, start)
		return Result{ApplicationID: applicationID}, err
	}
	if snap.Status != expected {
		res := Result{ApplicationID: applicationID, PreviousStatus: snap.Status, NewStatus: snap.Status}
		err := &Error{Code: CodeConflict, Err: fmt.Errorf("expected status %q, found %q", expected, snap.Status)}
		e.observe(res, err, start)
		return res, err
	}
	res, err := e.transition(ctx, applicationID, snap, to, actor)
	e.observe(res, err, start)
	return res, err
}

// Next moves an application to the following pipeline stage.
func (e *Engine) Next(ctx context.Context, applicationID string, actor Actor) (Result, error) {
	return e.step(ctx, applicationID, actor, func(s Snapshot) (Status, Reason) {
		next := NextStages(s.Status)
		switch {
		case IsTerminal(s.Status):
			return "", ReasonTerminalLocked
		case len(next) == 0:
			return "", ReasonNotAdjacent
		case len(next) > 1:
			return "", ReasonOutcomeRequired
		}
		return next[0], ReasonNone
	})
}

// Previous moves an application back one pipeline stage.
func (e *Engine) Previous(ctx context.Context, applicationID string, actor Actor) (Result, error) {
	return e.step(ctx, applicationID, actor, func(s Snapshot) (Status, Reason) {
		if IsTerminal(s.Status) {
			return "", ReasonTerminalLocked
		}
		prev, ok := PreviousStage(s.Status)
		if !ok {
			return "", ReasonNotAdjacent
		}
		return prev, ReasonNone
	})
}

func (e *Engine) step(ctx context.Context, applicationID string, actor Actor, target func(Snapshot) (Status, Reason)) (Result, error) {
	start := time.Now()
	snap, err := e.load(ctx, applicationID)
	if err != nil {
		e.observe(Result{}, err, start)
		return Result{ApplicationID: applicationID}, err
	}
	res := Result{ApplicationID: applicationID, PreviousStatus: snap.Status, NewStatus: snap.Status}
	if !IsKnown(snap.Status) {
		err := e.unknownCurrent(applicationID, snap.Status)
		e.observe(res, err, start)
		return res, err
	}
	if !actor.Role.IsAdmin() {
		res.Reason = ReasonUnauthorizedRole
		err := denied(res.Reason)
		e.observe(res, err, start)
		return res, err
	}
	to, reason := target(snap)
	if reason != ReasonNone {
		res.Reason = reason
		err := denied(reason)
		e.observe(res, err, start)
		return res, err
	}
	res, err = e.transition(ctx, applicationID, snap, to, actor)
	e.observe(res, err, start)
	return res, err
}

func (e *Engine) load(ctx context.Context, applicationID string) (Snapshot, error) {
	if strings.TrimSpace(applicationID) == "" {
		return Snapshot{}, &Error{Code: CodeNotFound, Err: errors.New("application id required")}
	}
	snap, err := e.Store.Get(ctx, applicationID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Snapshot{}, &Error{Code: CodeNotFound, Err: err}
		}
		return Snapshot{}, &Error{Code: CodeStoreUnavailable, Err: err}
	}
	return snap, nil
}

func (e *Engine) transition(ctx context.Context, applicationID string, snap Snapshot, to Status, actor Actor) (Result, error) {
	res := Result{ApplicationID: applicationID, PreviousStatus: snap.Status, NewStatus: snap.Status}
	if !IsKnown(snap.Status) {
		return res, e.unknownCurrent(applicationID, snap.Status)
	}

	decision := Evaluate(snap.Status, to, actor.Role)
	if !decision.Allowed {
		res.Reason = decision.Reason
		return res, denied(decision.Reason)
	}
	if decision.NoOp {
		res.Success = true
		res.NoOp = true
		return res, nil
	}

	now := e.now()
	swap := Swap{
		ApplicationID:  applicationID,
		Expected:       snap.Status,
		Next:           to,
		DecisionStatus: DecisionFor(to),
		ActorID:        actor.ID,
		Role:           actor.Role,
		At:             now,
	}
	if field, ok := MilestoneField(to); ok {
		swap.DateField = field
		if existing, set := snap.Dates[field]; !set || existing.IsZero() {
			stamped := now
			swap.StampedAt = &stamped
		}
	}

	ok, err := e.Store.CompareAndSwap(ctx, swap)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return res, &Error{Code: CodeNotFound, Err: err}
		}
		return res, &Error{Code: CodeStoreUnavailable, Err: err}
	}
	if !ok {
		return res, &Error{Code: CodeConflict, Err: fmt.Errorf("expected status %q", snap.Status)}
	}

	res.Success = true
	res.NewStatus = to
	if swap.StampedAt != nil {
		res.StampedField = swap.DateField
		res.StampedDate = swap.StampedAt
	}

	telemetry.Info("workflow.transition", map[string]any{
		"application_id": applicationID,
		"from":           string(snap.Status),
		"to":             string(to),
		"direction":      string(decision.Direction),
		"actor_id":       actor.ID,
		"role":           string(actor.Role),
		"stamped_field":  res.StampedField,
	})
	return res, nil
}

func (e *Engine) unknownCurrent(applicationID string, status Status) error {
	telemetry.Error("workflow.unknown_status", map[string]any{
		"application_id": applicationID,
		"status":         string(status),
	})
	return &Error{
		Code:   CodeUnknownStatus,
		Reason: ReasonUnknownStatus,
		Err:    fmt.Errorf("%w: stored status %q", ErrUnknownStatus, status),
	}
}

func (e *Engine) now() time.Time {
	if e.Now == nil {
		return time.Now().UTC()
	}
	return e.Now().UTC()
}

func (e *Engine) observe(res Result, err error, start time.Time) {
	result := "success"
	switch {
	case err != nil:
		var we *Error
		if errors.As(err, &we) {
			result = strings.ToLower(string(we.Code))
		} else {
			result = "error"
		}
	case res.NoOp:
		result = "noop"
	}
	metrics.ObserveTransition(result, string(ReasonOf(err)), time.Since(start))
}
