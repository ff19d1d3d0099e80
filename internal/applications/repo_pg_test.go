package applications

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patent-backend/internal/workflow"
)

func newMockRepo(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &PGRepo{DB: db}, mock
}

func TestPGCreate(t *testing.T) {
	repo, mock := newMockRepo(t)
	app := Application{
		ID:             "app-1",
		TokenNo:        "PAT-1",
		Title:          "Purifier",
		ApplicantID:    "student-1",
		Status:         workflow.StatusSubmitted,
		DecisionStatus: workflow.DecisionPending,
		Dates:          map[string]time.Time{workflow.DateSubmitted: fixedNow},
		CreatedAt:      fixedNow,
		UpdatedAt:      fixedNow,
	}

	mock.ExpectExec("INSERT INTO applications").
		WithArgs("app-1", "PAT-1", "Purifier", "student-1", "", sqlmock.AnyArg(), "Submitted", "PENDING",
			[]byte(`{"submitted_date":"2024-03-01T10:00:00Z"}`), []byte("{}"), "", fixedNow, fixedNow).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Create(context.Background(), app))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGGetSnapshot(t *testing.T) {
	repo, mock := newMockRepo(t)
	rows := sqlmock.NewRows([]string{"status", "decision_status", "dates"}).
		AddRow("Attorney Assigned", "PENDING", []byte(`{"submitted_date":"2024-03-01T10:00:00+00:00","assigned_date":"2024-03-03T09:30:00.123456+00:00"}`))
	mock.ExpectQuery("SELECT status, decision_status, dates FROM applications").
		WithArgs("app-1").
		WillReturnRows(rows)

	snap, err := repo.Get(context.Background(), "app-1")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusAttorneyAssigned, snap.Status)
	assert.True(t, snap.Dates[workflow.DateSubmitted].Equal(fixedNow))
	assert.Len(t, snap.Dates, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGGetNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("SELECT status, decision_status, dates FROM applications").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, workflow.ErrNotFound)
}

func TestPGCompareAndSwapApplied(t *testing.T) {
	repo, mock := newMockRepo(t)
	stamp := fixedNow.Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE applications").
		WithArgs("app-1", "Submitted", "Reviewed by PCC Admin", workflow.DateReviewedByPCC,
			sql.NullTime{Time: stamp, Valid: true}, "", stamp).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO application_status_history").
		WithArgs("app-1", "Submitted", "Reviewed by PCC Admin", "pcc-1", "pccAdmin", stamp).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	ok, err := repo.CompareAndSwap(context.Background(), workflow.Swap{
		ApplicationID: "app-1",
		Expected:      workflow.StatusSubmitted,
		Next:          workflow.StatusReviewedByPCCAdmin,
		DateField:     workflow.DateReviewedByPCC,
		StampedAt:     &stamp,
		ActorID:       "pcc-1",
		Role:          workflow.RolePCCAdmin,
		At:            stamp,
	})
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGCompareAndSwapConflict(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE applications").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT 1 FROM applications").
		WithArgs("app-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectCommit()

	ok, err := repo.CompareAndSwap(context.Background(), workflow.Swap{
		ApplicationID: "app-1",
		Expected:      workflow.StatusSubmitted,
		Next:          workflow.StatusReviewedByPCCAdmin,
		At:            fixedNow,
	})
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGCompareAndSwapMissingRollsBack(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE applications").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT 1 FROM applications").WithArgs("gone").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.CompareAndSwap(context.Background(), workflow.Swap{ApplicationID: "gone", At: fixedNow})
	assert.ErrorIs(t, err, workflow.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGCompareAndSwapHistoryFailureRollsBack(t *testing.T) {
	repo, mock := newMockRepo(t)
	boom := errors.New("insert failed")

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE applications").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO application_status_history").WillReturnError(boom)
	mock.ExpectRollback()

	ok, err := repo.CompareAndSwap(context.Background(), workflow.Swap{
		ApplicationID: "app-1",
		Expected:      workflow.StatusSubmitted,
		Next:          workflow.StatusRejected,
		At:            fixedNow,
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGListBuildsStatusFilter(t *testing.T) {
	repo, mock := newMockRepo(t)
	cols := []string{"id", "token_no", "title", "applicant_id", "applicant_name", "attorney_id", "status", "decision_status", "dates", "sections", "comments", "created_at", "updated_at"}
	rows := sqlmock.NewRows(cols).
		AddRow("app-9", "PAT-9", "Rotor", "s-9", "S", nil, "Rejected", "REJECTED", []byte(`{}`), []byte(`{"title":"Rotor"}`), "", fixedNow, fixedNow)

	mock.ExpectQuery(`WHERE status IN \(\$1, \$2, \$3\)`).
		WithArgs("Patent Granted", "Patent Refused", "Rejected", 50, 0).
		WillReturnRows(rows)

	apps, err := repo.List(context.Background(), Filter{View: ViewPast})
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, workflow.StatusRejected, apps[0].Status)
	assert.Empty(t, apps[0].AttorneyID)
	assert.JSONEq(t, `{"title":"Rotor"}`, string(apps[0].Sections))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGSetAttorneyNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("UPDATE applications SET attorney_id").
		WithArgs("missing", "att-1", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetAttorney(context.Background(), "missing", "att-1", fixedNow)
	assert.ErrorIs(t, err, ErrNotFound)
}
