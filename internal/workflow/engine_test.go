package workflow

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"patent-backend/internal/shared/telemetry"
)

func TestMain(m *testing.M) {
	telemetry.SetLogger(zap.NewNop())
	os.Exit(m.Run())
}

type fakeStore struct {
	mu      sync.Mutex
	apps    map[string]Snapshot
	swaps   []Swap
	getErr  error
	swapErr error
	// afterGet runs after every successful read, outside the lock.
	afterGet func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{apps: map[string]Snapshot{}}
}

func (s *fakeStore) put(id string, status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apps[id] = Snapshot{
		Status:         status,
		Dates:          map[string]time.Time{DateSubmitted: fixedNow.Add(-24 * time.Hour)},
		DecisionStatus: DecisionPending,
	}
}

func (s *fakeStore) snapshot(id string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apps[id]
}

func (s *fakeStore) Get(ctx context.Context, id string) (Snapshot, error) {
	if s.getErr != nil {
		return Snapshot{}, s.getErr
	}
	s.mu.Lock()
	snap, ok := s.apps[id]
	s.mu.Unlock()
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	dates := make(map[string]time.Time, len(snap.Dates))
	for k, v := range snap.Dates {
		dates[k] = v
	}
	snap.Dates = dates
	if s.afterGet != nil {
		s.afterGet()
	}
	return snap, nil
}

func (s *fakeStore) CompareAndSwap(ctx context.Context, swap Swap) (bool, error) {
	if s.swapErr != nil {
		return false, s.swapErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.apps[swap.ApplicationID]
	if !ok {
		return false, ErrNotFound
	}
	if snap.Status != swap.Expected {
		return false, nil
	}
	snap.Status = swap.Next
	if swap.StampedAt != nil {
		snap.Dates[swap.DateField] = *swap.StampedAt
	}
	if swap.DecisionStatus != "" {
		snap.DecisionStatus = swap.DecisionStatus
	}
	s.apps[swap.ApplicationID] = snap
	s.swaps = append(s.swaps, swap)
	return true, nil
}

var fixedNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestEngine(store Store) *Engine {
	e := NewEngine(store)
	e.Now = func() time.Time { return fixedNow }
	return e
}

var director = Actor{ID: "dir-1", Role: RoleDirector}

func TestApplyAdvancesAndStampsDate(t *testing.T) {
	store := newFakeStore()
	store.put("app-1", StatusSubmitted)
	engine := newTestEngine(store)

	res, err := engine.Apply(context.Background(), "app-1", StatusReviewedByPCCAdmin, director)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, StatusReviewedByPCCAdmin, res.NewStatus)
	assert.Equal(t, StatusSubmitted, res.PreviousStatus)
	assert.Equal(t, DateReviewedByPCC, res.StampedField)
	require.NotNil(t, res.StampedDate)
	assert.True(t, res.StampedDate.Equal(fixedNow))

	snap := store.snapshot("app-1")
	assert.Equal(t, StatusReviewedByPCCAdmin, snap.Status)
	assert.True(t, snap.Dates[DateReviewedByPCC].Equal(fixedNow))
}

func TestApplyOneStepAtATimeReachesAttorneyAssigned(t *testing.T) {
	store := newFakeStore()
	store.put("app-1", StatusSubmitted)
	engine := newTestEngine(store)
	ctx := context.Background()

	_, err := engine.Apply(ctx, "app-1", StatusReviewedByPCCAdmin, director)
	require.NoError(t, err)
	res, err := engine.Apply(ctx, "app-1", StatusAttorneyAssigned, director)
	require.NoError(t, err)
	assert.Equal(t, StatusAttorneyAssigned, res.NewStatus)

	require.Len(t, store.swaps, 2)
	assert.Equal(t, StatusReviewedByPCCAdmin, store.swaps[0].Next)
	assert.Equal(t, StatusAttorneyAssigned, store.swaps[1].Next)
}

func TestApplySubmittedToAttorneyAssignedRequiresReviewFirst(t *testing.T) {
	store := newFakeStore()
	store.put("app-1", StatusSubmitted)
	engine := newTestEngine(store)

	res, err := engine.Apply(context.Background(), "app-1", StatusAttorneyAssigned, director)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPolicyDenied)
	assert.False(t, res.Success)
	assert.Equal(t, ReasonNotAdjacent, res.Reason)
	assert.Equal(t, StatusSubmitted, res.NewStatus)
	assert.Empty(t, store.swaps)
	assert.Equal(t, StatusSubmitted, store.snapshot("app-1").Status)
}

func TestApplyFromAppliesWhenStatusMatches(t *testing.T) {
	store := newFakeStore()
	store.put("app-1", StatusReviewedByPCCAdmin)
	engine := newTestEngine(store)

	res, err := engine.ApplyFrom(context.Background(), "app-1", StatusReviewedByPCCAdmin, StatusAttorneyAssigned, director)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, StatusAttorneyAssigned, store.snapshot("app-1").Status)
}

func TestApplyFromConflictsWhenStatusMovedOn(t *testing.T) {
	store := newFakeStore()
	store.put("app-1", StatusForwardedToDirector)
	engine := newTestEngine(store)

	// Attorney Assigned is one step back from Forwarded, so a plain Apply
	// would succeed; the stale expectation must stop it.
	res, err := engine.ApplyFrom(context.Background(), "app-1", StatusReviewedByPCCAdmin, StatusAttorneyAssigned, director)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)
	assert.False(t, res.Success)
	assert.Equal(t, StatusForwardedToDirector, res.NewStatus)
	assert.Empty(t, store.swaps)
	assert.Equal(t, StatusForwardedToDirector, store.snapshot("app-1").Status)
}

func TestApplyDeniesSkippingStages(t *testing.T) {
	store := newFakeStore()
	store.put("app-1", StatusPatentabilityStarted)
	engine := newTestEngine(store)

	res, err := engine.Apply(context.Background(), "app-1", StatusPatentFiled, director)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPolicyDenied)
	assert.Equal(t, ReasonNotAdjacent, ReasonOf(err))
	assert.False(t, res.Success)
	assert.Equal(t, ReasonNotAdjacent, res.Reason)

	snap := store.snapshot("app-1")
	assert.Equal(t, StatusPatentabilityStarted, snap.Status)
	assert.Empty(t, store.swaps)
}

func TestApplySameStatusIsNoOp(t *testing.T) {
	for _, e := range All() {
		store := newFakeStore()
		store.put("app-1", e.Name)
		engine := newTestEngine(store)

		res, err := engine.Apply(context.Background(), "app-1", e.Name, director)
		require.NoError(t, err, "status %q", e.Name)
		assert.True(t, res.Success)
		assert.True(t, res.NoOp)
		assert.Empty(t, store.swaps)
	}
}

func TestApplyRejectIsIrreversible(t *testing.T) {
	store := newFakeStore()
	store.put("app-1", StatusDirectorApproval)
	engine := newTestEngine(store)
	admin := Actor{ID: "pcc-1", Role: RolePCCAdmin}
	ctx := context.Background()

	res, err := engine.Apply(ctx, "app-1", StatusRejected, admin)
	require.NoError(t, err)
	assert.Equal(t, DateDecision, res.StampedField)
	assert.Equal(t, DecisionRejected, store.snapshot("app-1").DecisionStatus)

	for _, e := range All() {
		if e.Name == StatusRejected {
			continue
		}
		_, err := engine.Apply(ctx, "app-1", e.Name, admin)
		require.Error(t, err)
		assert.Equal(t, ReasonTerminalLocked, ReasonOf(err), "to %q", e.Name)
	}
	assert.Equal(t, StatusRejected, store.snapshot("app-1").Status)
}

func TestApplyApplicantDenied(t *testing.T) {
	store := newFakeStore()
	store.put("app-1", StatusSubmitted)
	engine := newTestEngine(store)

	_, err := engine.Apply(context.Background(), "app-1", StatusReviewedByPCCAdmin, Actor{ID: "u1", Role: RoleApplicant})
	require.Error(t, err)
	assert.Equal(t, ReasonUnauthorizedRole, ReasonOf(err))
	assert.Equal(t, StatusSubmitted, store.snapshot("app-1").Status)
}

func TestApplyBackwardKeepsDates(t *testing.T) {
	store := newFakeStore()
	store.put("app-1", StatusSubmitted)
	engine := newTestEngine(store)
	ctx := context.Background()

	_, err := engine.Apply(ctx, "app-1", StatusReviewedByPCCAdmin, director)
	require.NoError(t, err)

	later := fixedNow.Add(time.Hour)
	engine.Now = func() time.Time { return later }

	res, err := engine.Apply(ctx, "app-1", StatusSubmitted, director)
	require.NoError(t, err)
	assert.Nil(t, res.StampedDate)

	res, err = engine.Apply(ctx, "app-1", StatusReviewedByPCCAdmin, director)
	require.NoError(t, err)
	assert.Nil(t, res.StampedDate, "milestone must not be re-stamped")

	snap := store.snapshot("app-1")
	assert.True(t, snap.Dates[DateReviewedByPCC].Equal(fixedNow))
}

func TestApplyConflictOnConcurrentUpdate(t *testing.T) {
	store := newFakeStore()
	store.put("app-1", StatusSubmitted)
	engine := newTestEngine(store)

	var barrier sync.WaitGroup
	barrier.Add(2)
	store.afterGet = func() {
		barrier.Done()
		barrier.Wait()
	}

	type outcome struct {
		res Result
		err error
	}
	results := make(chan outcome, 2)
	for i := 0; i < 2; i++ {
		go func() {
			res, err := engine.Apply(context.Background(), "app-1", StatusReviewedByPCCAdmin, director)
			results <- outcome{res, err}
		}()
	}

	var successes, conflicts int
	for i := 0; i < 2; i++ {
		o := <-results
		switch {
		case o.err == nil:
			successes++
		case errors.Is(o.err, ErrConflict):
			conflicts++
			var we *Error
			require.ErrorAs(t, o.err, &we)
			assert.True(t, we.Retryable())
		default:
			t.Fatalf("unexpected error: %v", o.err)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, conflicts)
	assert.Len(t, store.swaps, 1)
}

func TestApplyStoreUnavailable(t *testing.T) {
	store := newFakeStore()
	store.put("app-1", StatusSubmitted)
	store.swapErr = errors.New("connection reset")
	engine := newTestEngine(store)

	_, err := engine.Apply(context.Background(), "app-1", StatusReviewedByPCCAdmin, director)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	store.swapErr = nil
	store.getErr = errors.New("timeout")
	_, err = engine.Apply(context.Background(), "app-1", StatusReviewedByPCCAdmin, director)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestApplyNotFound(t *testing.T) {
	engine := newTestEngine(newFakeStore())
	_, err := engine.Apply(context.Background(), "missing", StatusReviewedByPCCAdmin, director)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = engine.Apply(context.Background(), "", StatusReviewedByPCCAdmin, director)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApplyUnknownStoredStatus(t *testing.T) {
	store := newFakeStore()
	store.put("app-1", "Pending Review")
	engine := newTestEngine(store)

	_, err := engine.Apply(context.Background(), "app-1", StatusSubmitted, director)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownStatus)
	var we *Error
	require.ErrorAs(t, err, &we)
	assert.Equal(t, CodeUnknownStatus, we.Code)
	assert.False(t, we.Retryable())
}

func TestNextAndPrevious(t *testing.T) {
	store := newFakeStore()
	store.put("app-1", StatusSubmitted)
	engine := newTestEngine(store)
	ctx := context.Background()

	res, err := engine.Next(ctx, "app-1", director)
	require.NoError(t, err)
	assert.Equal(t, StatusReviewedByPCCAdmin, res.NewStatus)

	res, err = engine.Previous(ctx, "app-1", director)
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, res.NewStatus)

	_, err = engine.Previous(ctx, "app-1", director)
	assert.Equal(t, ReasonNotAdjacent, ReasonOf(err))
}

func TestNextFromPublishedRequiresOutcome(t *testing.T) {
	store := newFakeStore()
	store.put("app-1", StatusPatentPublished)
	engine := newTestEngine(store)

	_, err := engine.Next(context.Background(), "app-1", director)
	assert.Equal(t, ReasonOutcomeRequired, ReasonOf(err))

	res, err := engine.Apply(context.Background(), "app-1", StatusPatentGranted, director)
	require.NoError(t, err)
	assert.Equal(t, DateFinalDecision, res.StampedField)
	assert.Equal(t, DecisionGranted, store.snapshot("app-1").DecisionStatus)
}

func TestNextFromTerminalAndForApplicant(t *testing.T) {
	store := newFakeStore()
	store.put("app-1", StatusRejected)
	store.put("app-2", StatusSubmitted)
	engine := newTestEngine(store)

	_, err := engine.Next(context.Background(), "app-1", director)
	assert.Equal(t, ReasonTerminalLocked, ReasonOf(err))

	_, err = engine.Next(context.Background(), "app-2", Actor{ID: "a", Role: RoleApplicant})
	assert.Equal(t, ReasonUnauthorizedRole, ReasonOf(err))
}
