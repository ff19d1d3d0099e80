package applications

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patent-backend/internal/queue"
	"patent-backend/internal/workflow"
)

var (
	fixedNow  = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	applicant = workflow.Actor{ID: "student-1", Role: workflow.RoleApplicant}
	admin     = workflow.Actor{ID: "pcc-1", Role: workflow.RolePCCAdmin}
	director  = workflow.Actor{ID: "dir-1", Role: workflow.RoleDirector}
)

type recordingClient struct {
	mu   sync.Mutex
	msgs []queue.Message
	err  error
}

func (c *recordingClient) Send(ctx context.Context, msg queue.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
	return c.err
}

func (c *recordingClient) sent() []queue.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]queue.Message, len(c.msgs))
	copy(out, c.msgs)
	return out
}

type attorneySet map[string]bool

func (a attorneySet) Exists(ctx context.Context, id string) (bool, error) {
	return a[id], nil
}

func validPayload() map[string]any {
	return map[string]any{
		"title": "Low cost water purifier",
		"inventors": []any{
			map[string]any{"name": "A. Inventor", "email": "a@example.edu", "share": 60.0},
			map[string]any{"name": "B. Inventor", "email": "b@example.edu", "share": 40.0},
		},
		"general": map[string]any{
			"area":        "Water treatment",
			"problemArea": "Cost of filtration",
			"objective":   "Cheap filtration",
			"novelty":     "Clay membrane",
		},
	}
}

func newTestService(t *testing.T) (*Service, *MemoryRepo, *recordingClient) {
	t.Helper()
	repo := NewMemoryRepo()
	events := &recordingClient{}
	svc := NewService(repo, attorneySet{"att-1": true}, events)
	svc.Now = func() time.Time { return fixedNow }
	svc.Engine.Now = func() time.Time { return fixedNow.Add(time.Hour) }
	return svc, repo, events
}

func submit(t *testing.T, svc *Service) Application {
	t.Helper()
	app, err := svc.Submit(context.Background(), Applicant{ID: applicant.ID, Name: "Student"}, validPayload())
	require.NoError(t, err)
	return app
}

func TestSubmitCreatesSubmittedApplication(t *testing.T) {
	svc, _, _ := newTestService(t)
	app := submit(t, svc)

	assert.Equal(t, workflow.StatusSubmitted, app.Status)
	assert.Equal(t, workflow.DecisionPending, app.DecisionStatus)
	assert.Equal(t, "Low cost water purifier", app.Title)
	assert.Contains(t, app.TokenNo, "PAT-20240301-")
	assert.True(t, app.Dates[workflow.DateSubmitted].Equal(fixedNow))
}

func TestSubmitRejectsInvalidPayload(t *testing.T) {
	svc, _, _ := newTestService(t)
	payload := validPayload()
	delete(payload, "general")
	payload["inventors"] = []any{map[string]any{"name": "x", "email": "not-an-email"}}

	_, err := svc.Submit(context.Background(), Applicant{ID: applicant.ID}, payload)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.GreaterOrEqual(t, len(verr.Fields), 2)
}

func TestGetEnforcesOwnership(t *testing.T) {
	svc, _, _ := newTestService(t)
	app := submit(t, svc)

	_, err := svc.Get(context.Background(), app.ID, applicant)
	assert.NoError(t, err)
	_, err = svc.Get(context.Background(), app.ID, admin)
	assert.NoError(t, err)
	_, err = svc.Get(context.Background(), app.ID, workflow.Actor{ID: "someone-else", Role: workflow.RoleApplicant})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Get(context.Background(), "missing", admin)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChangeStatusPublishesEvent(t *testing.T) {
	svc, _, events := newTestService(t)
	app := submit(t, svc)
	ctx := WithRequestID(context.Background(), "req-1")

	res, err := svc.ChangeStatus(ctx, app.ID, "reviewed by pcc admin", admin)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, workflow.StatusReviewedByPCCAdmin, res.NewStatus)

	sent := events.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, queue.TypeStatusChanged, sent[0].Type)
	assert.Equal(t, app.ApplicantID, sent[0].ApplicantID)
	assert.Equal(t, string(workflow.StatusSubmitted), sent[0].From)
	assert.Equal(t, string(workflow.StatusReviewedByPCCAdmin), sent[0].To)
	assert.Equal(t, "req-1", sent[0].RequestID)
	assert.Equal(t, app.Title, sent[0].Title)
}

func TestChangeStatusNoOpAndDenialsDoNotPublish(t *testing.T) {
	svc, _, events := newTestService(t)
	app := submit(t, svc)

	res, err := svc.ChangeStatus(context.Background(), app.ID, string(workflow.StatusSubmitted), admin)
	require.NoError(t, err)
	assert.True(t, res.NoOp)

	_, err = svc.ChangeStatus(context.Background(), app.ID, string(workflow.StatusPatentFiled), admin)
	assert.ErrorIs(t, err, workflow.ErrPolicyDenied)
	assert.Equal(t, workflow.ReasonNotAdjacent, workflow.ReasonOf(err))

	_, err = svc.ChangeStatus(context.Background(), app.ID, "Under Review", admin)
	assert.Equal(t, workflow.ReasonUnknownStatus, workflow.ReasonOf(err))

	_, err = svc.ChangeStatus(context.Background(), app.ID, string(workflow.StatusReviewedByPCCAdmin), applicant)
	assert.Equal(t, workflow.ReasonUnauthorizedRole, workflow.ReasonOf(err))

	assert.Empty(t, events.sent())
}

func TestPublishFailureKeepsTransition(t *testing.T) {
	svc, repo, events := newTestService(t)
	events.err = errors.New("queue down")
	app := submit(t, svc)

	res, err := svc.MoveNext(context.Background(), app.ID, director)
	require.NoError(t, err)
	assert.True(t, res.Success)

	stored, err := repo.GetByID(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusReviewedByPCCAdmin, stored.Status)
}

func TestFullPipelineToGrant(t *testing.T) {
	svc, repo, events := newTestService(t)
	app := submit(t, svc)
	ctx := context.Background()

	for i := 0; i < 9; i++ {
		_, err := svc.MoveNext(ctx, app.ID, director)
		require.NoError(t, err, "step %d", i)
	}
	_, err := svc.MoveNext(ctx, app.ID, director)
	assert.Equal(t, workflow.ReasonOutcomeRequired, workflow.ReasonOf(err))

	res, err := svc.ChangeStatus(ctx, app.ID, string(workflow.StatusPatentGranted), director)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusPatentGranted, res.NewStatus)

	stored, err := repo.GetByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.DecisionGranted, stored.DecisionStatus)
	assert.Len(t, stored.Dates, 11)

	history, err := svc.History(ctx, app.ID, applicant)
	require.NoError(t, err)
	assert.Len(t, history, 10)
	assert.Len(t, events.sent(), 10)

	p, err := svc.Progress(ctx, app.ID, applicant)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusPatentGranted, p.Outcome)
}

func TestRejectIsFinal(t *testing.T) {
	svc, repo, _ := newTestService(t)
	app := submit(t, svc)
	ctx := context.Background()

	_, err := svc.ChangeStatus(ctx, app.ID, string(workflow.StatusRejected), admin)
	require.NoError(t, err)
	stored, _ := repo.GetByID(ctx, app.ID)
	assert.Equal(t, workflow.DecisionRejected, stored.DecisionStatus)

	_, err = svc.MovePrevious(ctx, app.ID, admin)
	assert.Equal(t, workflow.ReasonTerminalLocked, workflow.ReasonOf(err))

	p, err := svc.Progress(ctx, app.ID, applicant)
	require.NoError(t, err)
	assert.True(t, p.Rejected)
}

func TestAssignAttorneyAdvancesFromReview(t *testing.T) {
	svc, _, events := newTestService(t)
	app := submit(t, svc)
	ctx := context.Background()

	_, err := svc.AssignAttorney(ctx, app.ID, "att-1", applicant)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.AssignAttorney(ctx, app.ID, "att-404", admin)
	assert.ErrorIs(t, err, ErrInvalidInput)

	updated, err := svc.AssignAttorney(ctx, app.ID, "att-1", admin)
	require.NoError(t, err)
	assert.Equal(t, "att-1", updated.AttorneyID)
	assert.Equal(t, workflow.StatusSubmitted, updated.Status)

	_, err = svc.MoveNext(ctx, app.ID, admin)
	require.NoError(t, err)
	updated, err = svc.AssignAttorney(ctx, app.ID, "att-1", admin)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusAttorneyAssigned, updated.Status)
	assert.Contains(t, updated.Dates, workflow.DateAttorneyAssigned)
	assert.Len(t, events.sent(), 2)
}

// racingRepo lets another reviewer act between AssignAttorney's read and
// its writes.
type racingRepo struct {
	*MemoryRepo
	mu     sync.Mutex
	onRead func()
}

func (r *racingRepo) GetByID(ctx context.Context, id string) (Application, error) {
	app, err := r.MemoryRepo.GetByID(ctx, id)
	r.mu.Lock()
	hook := r.onRead
	r.onRead = nil
	r.mu.Unlock()
	if hook != nil {
		hook()
	}
	return app, err
}

func TestAssignAttorneyDoesNotUndoConcurrentAdvance(t *testing.T) {
	mem := NewMemoryRepo()
	repo := &racingRepo{MemoryRepo: mem}
	events := &recordingClient{}
	svc := NewService(repo, attorneySet{"att-1": true}, events)
	svc.Now = func() time.Time { return fixedNow }
	ctx := context.Background()

	app := submit(t, svc)
	_, err := svc.MoveNext(ctx, app.ID, admin)
	require.NoError(t, err)

	other := NewService(mem, attorneySet{"att-1": true}, nil)
	repo.onRead = func() {
		_, err := other.MoveNext(ctx, app.ID, director)
		require.NoError(t, err)
		_, err = other.MoveNext(ctx, app.ID, director)
		require.NoError(t, err)
	}

	_, err = svc.AssignAttorney(ctx, app.ID, "att-1", admin)
	require.Error(t, err)
	assert.ErrorIs(t, err, workflow.ErrConflict)

	stored, err := mem.GetByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusForwardedToDirector, stored.Status)
	assert.Empty(t, stored.AttorneyID)

	history, err := mem.History(ctx, app.ID)
	require.NoError(t, err)
	require.NotEmpty(t, history)
	last := history[len(history)-1]
	assert.Equal(t, workflow.StatusForwardedToDirector, last.To)
	assert.Equal(t, director.ID, last.ActorID)
}

func TestListViewsAndStats(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	a := submit(t, svc)
	b := submit(t, svc)
	c := submit(t, svc)

	_, err := svc.MoveNext(ctx, b.ID, admin)
	require.NoError(t, err)
	_, err = svc.ChangeStatus(ctx, c.ID, string(workflow.StatusRejected), admin)
	require.NoError(t, err)

	newApps, err := svc.List(ctx, Filter{View: ViewNew})
	require.NoError(t, err)
	require.Len(t, newApps, 1)
	assert.Equal(t, a.ID, newApps[0].ID)

	ongoing, err := svc.List(ctx, Filter{View: ViewOngoing})
	require.NoError(t, err)
	require.Len(t, ongoing, 1)
	assert.Equal(t, b.ID, ongoing[0].ID)

	past, err := svc.List(ctx, Filter{View: ViewPast})
	require.NoError(t, err)
	require.Len(t, past, 1)
	assert.Equal(t, c.ID, past[0].ID)

	_, err = svc.List(ctx, Filter{View: "archived"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, len(workflow.All()))
	counts := map[workflow.Status]int{}
	for _, s := range stats {
		counts[s.Status] = s.Count
	}
	assert.Equal(t, 1, counts[workflow.StatusSubmitted])
	assert.Equal(t, 1, counts[workflow.StatusReviewedByPCCAdmin])
	assert.Equal(t, 1, counts[workflow.StatusRejected])
	assert.Equal(t, 0, counts[workflow.StatusPatentFiled])

	mine, err := svc.ListForApplicant(ctx, applicant.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 3)
}
