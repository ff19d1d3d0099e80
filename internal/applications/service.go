package applications

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"patent-backend/internal/queue"
	"patent-backend/internal/shared/metrics"
	"patent-backend/internal/shared/telemetry"
	"patent-backend/internal/workflow"
)

// AttorneyLookup reports whether an attorney exists.
type AttorneyLookup interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// Applicant identifies the submitter of an application.
type Applicant struct {
	ID   string
	Name string
}

// StatusCount is one dashboard bucket.
type StatusCount struct {
	Status workflow.Status `json:"status"`
	Count  int             `json:"count"`
}

// Service contains business logic for applications.
type Service struct {
	Repo      Repo
	Engine    *workflow.Engine
	Attorneys AttorneyLookup
	Events    queue.Client
	Now       func() time.Time
}

// NewService wires a Service whose engine writes through repo.
func NewService(repo Repo, attorneys AttorneyLookup, events queue.Client) *Service {
	return &Service{
		Repo:      repo,
		Engine:    workflow.NewEngine(repo),
		Attorneys: attorneys,
		Events:    events,
		Now:       time.Now,
	}
}

// Submit validates and stores a new application in the first stage.
func (s *Service) Submit(ctx context.Context, applicant Applicant, payload map[string]any) (Application, error) {
	if strings.TrimSpace(applicant.ID) == "" {
		return Application{}, fmt.Errorf("%w: applicant id required", ErrInvalidInput)
	}
	if err := validateSubmission(payload); err != nil {
		return Application{}, err
	}

	sections, err := json.Marshal(payload)
	if err != nil {
		return Application{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	now := s.now()
	id := uuid.NewString()
	title, _ := payload["title"].(string)
	comments, _ := payload["comments"].(string)
	app := Application{
		ID:             id,
		TokenNo:        tokenNo(id, now),
		Title:          strings.TrimSpace(title),
		ApplicantID:    applicant.ID,
		ApplicantName:  applicant.Name,
		Status:         workflow.StatusSubmitted,
		DecisionStatus: workflow.DecisionPending,
		Dates:          map[string]time.Time{workflow.DateSubmitted: now},
		Sections:       sections,
		Comments:       strings.TrimSpace(comments),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.Repo.Create(ctx, app); err != nil {
		return Application{}, err
	}

	metrics.IncApplicationsSubmitted()
	telemetry.Info("application.submitted", map[string]any{
		"application_id": app.ID,
		"applicant_id":   app.ApplicantID,
		"token_no":       app.TokenNo,
	})
	return app, nil
}

// Get returns an application visible to actor.
func (s *Service) Get(ctx context.Context, id string, actor workflow.Actor) (Application, error) {
	app, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return Application{}, err
	}
	if !canView(app, actor) {
		return Application{}, ErrForbidden
	}
	return app, nil
}

// ListForApplicant returns the caller's own applications.
func (s *Service) ListForApplicant(ctx context.Context, applicantID string) ([]Application, error) {
	if strings.TrimSpace(applicantID) == "" {
		return nil, fmt.Errorf("%w: applicant id required", ErrInvalidInput)
	}
	return s.Repo.ListByApplicant(ctx, applicantID)
}

// List returns applications for the admin dashboards.
func (s *Service) List(ctx context.Context, filter Filter) ([]Application, error) {
	if filter.Status != "" && !workflow.IsKnown(filter.Status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, filter.Status)
	}
	switch filter.View {
	case ViewAll, ViewNew, ViewOngoing, ViewPast:
	default:
		return nil, fmt.Errorf("%w: unknown view %q", ErrInvalidInput, filter.View)
	}
	return s.Repo.List(ctx, filter)
}

// Stats counts applications per catalog status, in catalog order.
func (s *Service) Stats(ctx context.Context) ([]StatusCount, error) {
	counts, err := s.Repo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	entries := workflow.All()
	out := make([]StatusCount, 0, len(entries))
	for _, e := range entries {
		out = append(out, StatusCount{Status: e.Name, Count: counts[e.Name]})
	}
	return out, nil
}

// ChangeStatus moves an application to the named status.
func (s *Service) ChangeStatus(ctx context.Context, id, to string, actor workflow.Actor) (workflow.Result, error) {
	target, ok := workflow.ParseStatus(to)
	if !ok {
		target = workflow.Status(strings.TrimSpace(to))
	}
	res, err := s.Engine.Apply(ctx, id, target, actor)
	if err != nil {
		return res, err
	}
	s.publish(ctx, res, actor)
	return res, nil
}

// MoveNext advances an application one stage.
func (s *Service) MoveNext(ctx context.Context, id string, actor workflow.Actor) (workflow.Result, error) {
	res, err := s.Engine.Next(ctx, id, actor)
	if err != nil {
		return res, err
	}
	s.publish(ctx, res, actor)
	return res, nil
}

// MovePrevious moves an application back one stage.
func (s *Service) MovePrevious(ctx context.Context, id string, actor workflow.Actor) (workflow.Result, error) {
	res, err := s.Engine.Previous(ctx, id, actor)
	if err != nil {
		return res, err
	}
	s.publish(ctx, res, actor)
	return res, nil
}

// Progress projects the application's status onto the display steps.
func (s *Service) Progress(ctx context.Context, id string, actor workflow.Actor) (workflow.Progress, error) {
	app, err := s.Get(ctx, id, actor)
	if err != nil {
		return workflow.Progress{}, err
	}
	return workflow.ProjectWithDates(app.Status, app.Dates)
}

// History returns the applied status changes of an application.
func (s *Service) History(ctx context.Context, id string, actor workflow.Actor) ([]HistoryEntry, error) {
	if _, err := s.Get(ctx, id, actor); err != nil {
		return nil, err
	}
	return s.Repo.History(ctx, id)
}

// AssignAttorney records the attorney and, from "Reviewed by PCC Admin",
// advances the application to "Attorney Assigned". The advance is
// conditioned on the status read here, and the attorney is written only
// after it commits, so a concurrent transition is never rolled back and a
// conflict leaves the application untouched.
func (s *Service) AssignAttorney(ctx context.Context, id, attorneyID string, actor workflow.Actor) (Application, error) {
	if !actor.Role.IsAdmin() {
		return Application{}, ErrForbidden
	}
	attorneyID = strings.TrimSpace(attorneyID)
	if attorneyID == "" {
		return Application{}, fmt.Errorf("%w: attorney id required", ErrInvalidInput)
	}
	if s.Attorneys != nil {
		exists, err := s.Attorneys.Exists(ctx, attorneyID)
		if err != nil {
			return Application{}, err
		}
		if !exists {
			return Application{}, fmt.Errorf("%w: attorney %q not found", ErrInvalidInput, attorneyID)
		}
	}

	app, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return Application{}, err
	}
	if workflow.IsTerminal(app.Status) {
		return Application{}, &workflow.Error{Code: workflow.CodePolicyDenied, Reason: workflow.ReasonTerminalLocked}
	}

	if app.Status == workflow.StatusReviewedByPCCAdmin {
		res, err := s.Engine.ApplyFrom(ctx, id, app.Status, workflow.StatusAttorneyAssigned, actor)
		if err != nil {
			return Application{}, err
		}
		s.publish(ctx, res, actor)
	}
	if err := s.Repo.SetAttorney(ctx, id, attorneyID, s.now()); err != nil {
		return Application{}, err
	}
	return s.Repo.GetByID(ctx, id)
}

func (s *Service) publish(ctx context.Context, res workflow.Result, actor workflow.Actor) {
	if s.Events == nil || !res.Success || res.NoOp {
		return
	}
	app, err := s.Repo.GetByID(ctx, res.ApplicationID)
	if err != nil {
		telemetry.Warn("application.event.lookup_failed", map[string]any{
			"application_id": res.ApplicationID,
			"error":          err,
		})
		return
	}
	msg := queue.StatusChanged(app.ID, app.ApplicantID, string(res.PreviousStatus), string(res.NewStatus), s.now())
	msg.Title = app.Title
	msg.ActorID = actor.ID
	msg.ActorRole = string(actor.Role)
	msg.RequestID = RequestIDFromContext(ctx)
	if err := s.Events.Send(ctx, msg); err != nil {
		telemetry.Warn("application.event.publish_failed", map[string]any{
			"application_id": app.ID,
			"to":             msg.To,
			"error":          err,
		})
	}
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

func canView(app Application, actor workflow.Actor) bool {
	if actor.Role.IsAdmin() {
		return true
	}
	return actor.ID != "" && actor.ID == app.ApplicantID
}

func tokenNo(id string, at time.Time) string {
	short := strings.ToUpper(strings.ReplaceAll(id, "-", ""))
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("PAT-%s-%s", at.Format("20060102"), short)
}

type requestIDKey struct{}

// WithRequestID stores the request ID for events raised during ctx.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request ID stored by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
