package applications

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"patent-backend/internal/shared/storage/db"
	"patent-backend/internal/workflow"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const selectColumns = `id, token_no, title, applicant_id, applicant_name, attorney_id, status, decision_status, dates, sections, comments, created_at, updated_at`

// Create inserts a new application.
func (r *PGRepo) Create(ctx context.Context, app Application) error {
	const query = `
INSERT INTO applications (
    id,
    token_no,
    title,
    applicant_id,
    applicant_name,
    attorney_id,
    status,
    decision_status,
    dates,
    sections,
    comments,
    created_at,
    updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	dates, err := json.Marshal(nonNilDates(app.Dates))
	if err != nil {
		return fmt.Errorf("encode dates: %w", err)
	}
	sections := []byte(app.Sections)
	if len(sections) == 0 {
		sections = []byte("{}")
	}

	_, err = r.DB.ExecContext(
		ctx,
		query,
		app.ID,
		app.TokenNo,
		app.Title,
		app.ApplicantID,
		app.ApplicantName,
		nullString(app.AttorneyID),
		string(app.Status),
		app.DecisionStatus,
		dates,
		sections,
		app.Comments,
		app.CreatedAt,
		app.UpdatedAt,
	)
	return err
}

// GetByID fetches an application by ID.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Application, error) {
	query := `SELECT ` + selectColumns + ` FROM applications WHERE id = $1`
	app, err := scanApplication(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Application{}, ErrNotFound
		}
		return Application{}, err
	}
	return app, nil
}

// Get returns the workflow snapshot of an application.
func (r *PGRepo) Get(ctx context.Context, id string) (workflow.Snapshot, error) {
	const query = `SELECT status, decision_status, dates FROM applications WHERE id = $1`
	var (
		status   string
		decision string
		rawDates []byte
	)
	err := r.DB.QueryRowContext(ctx, query, id).Scan(&status, &decision, &rawDates)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return workflow.Snapshot{}, ErrNotFound
		}
		return workflow.Snapshot{}, err
	}
	dates, err := decodeDates(rawDates)
	if err != nil {
		return workflow.Snapshot{}, err
	}
	return workflow.Snapshot{
		Status:         workflow.Status(status),
		Dates:          dates,
		DecisionStatus: decision,
	}, nil
}

// CompareAndSwap updates status, milestone date and decision in one
// transaction, guarded by the expected status, and appends a history row.
func (r *PGRepo) CompareAndSwap(ctx context.Context, swap workflow.Swap) (bool, error) {
	const update = `
UPDATE applications
SET status = $3,
    dates = CASE
        WHEN $5::timestamptz IS NULL THEN dates
        ELSE dates || jsonb_build_object($4::text, COALESCE(dates -> $4::text, to_jsonb($5::timestamptz)))
    END,
    decision_status = COALESCE(NULLIF($6, ''), decision_status),
    updated_at = $7
WHERE id = $1 AND status = $2`

	const exists = `SELECT 1 FROM applications WHERE id = $1`

	const insertHistory = `
INSERT INTO application_status_history (application_id, from_status, to_status, actor_id, role, changed_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	var stamped sql.NullTime
	if swap.StampedAt != nil && swap.DateField != "" {
		stamped = sql.NullTime{Time: *swap.StampedAt, Valid: true}
	}

	swapped := false
	err := db.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, update,
			swap.ApplicationID,
			string(swap.Expected),
			string(swap.Next),
			swap.DateField,
			stamped,
			swap.DecisionStatus,
			swap.At,
		)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			var one int
			if err := tx.QueryRowContext(ctx, exists, swap.ApplicationID).Scan(&one); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return ErrNotFound
				}
				return err
			}
			return nil
		}
		if _, err := tx.ExecContext(ctx, insertHistory,
			swap.ApplicationID,
			string(swap.Expected),
			string(swap.Next),
			swap.ActorID,
			string(swap.Role),
			swap.At,
		); err != nil {
			return err
		}
		swapped = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return swapped, nil
}

// ListByApplicant lists an applicant's applications, newest first.
func (r *PGRepo) ListByApplicant(ctx context.Context, applicantID string) ([]Application, error) {
	query := `SELECT ` + selectColumns + ` FROM applications WHERE applicant_id = $1 ORDER BY created_at DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, query, applicantID)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// List lists applications matching filter, newest first.
func (r *PGRepo) List(ctx context.Context, filter Filter) ([]Application, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	statuses := filter.Statuses()
	if len(statuses) == 0 {
		return []Application{}, nil
	}

	args := make([]any, 0, len(statuses)+2)
	placeholders := make([]string, 0, len(statuses))
	for _, s := range statuses {
		args = append(args, s)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}
	args = append(args, limit, offset)

	query := `SELECT ` + selectColumns + `
FROM applications
WHERE status IN (` + strings.Join(placeholders, ", ") + `)
ORDER BY created_at DESC, id DESC
LIMIT ` + fmt.Sprintf("$%d OFFSET $%d", len(args)-1, len(args))
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// CountByStatus counts applications per status.
func (r *PGRepo) CountByStatus(ctx context.Context) (map[workflow.Status]int, error) {
	const query = `SELECT status, COUNT(*) FROM applications GROUP BY status`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[workflow.Status]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		out[workflow.Status(status)] = count
	}
	return out, rows.Err()
}

// History returns the status changes of an application, oldest first.
func (r *PGRepo) History(ctx context.Context, id string) ([]HistoryEntry, error) {
	const query = `
SELECT application_id, from_status, to_status, actor_id, role, changed_at
FROM application_status_history
WHERE application_id = $1
ORDER BY changed_at ASC, id ASC`
	rows, err := r.DB.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]HistoryEntry, 0)
	for rows.Next() {
		var (
			entry    HistoryEntry
			from, to string
			role     string
		)
		if err := rows.Scan(&entry.ApplicationID, &from, &to, &entry.ActorID, &role, &entry.At); err != nil {
			return nil, err
		}
		entry.From = workflow.Status(from)
		entry.To = workflow.Status(to)
		entry.Role = workflow.Role(role)
		out = append(out, entry)
	}
	return out, rows.Err()
}

// SetAttorney records the attorney assigned to an application.
func (r *PGRepo) SetAttorney(ctx context.Context, id, attorneyID string, at time.Time) error {
	const query = `UPDATE applications SET attorney_id = $2, updated_at = $3 WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, id, attorneyID, at)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (Application, error) {
	var (
		app        Application
		attorneyID sql.NullString
		status     string
		rawDates   []byte
		sections   []byte
	)
	if err := row.Scan(
		&app.ID,
		&app.TokenNo,
		&app.Title,
		&app.ApplicantID,
		&app.ApplicantName,
		&attorneyID,
		&status,
		&app.DecisionStatus,
		&rawDates,
		&sections,
		&app.Comments,
		&app.CreatedAt,
		&app.UpdatedAt,
	); err != nil {
		return Application{}, err
	}
	if attorneyID.Valid {
		app.AttorneyID = attorneyID.String
	}
	app.Status = workflow.Status(status)
	dates, err := decodeDates(rawDates)
	if err != nil {
		return Application{}, err
	}
	app.Dates = dates
	if len(sections) > 0 {
		app.Sections = json.RawMessage(sections)
	}
	return app, nil
}

func collect(rows *sql.Rows) ([]Application, error) {
	defer rows.Close()
	out := make([]Application, 0)
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, app)
	}
	return out, rows.Err()
}

func decodeDates(raw []byte) (map[string]time.Time, error) {
	dates := make(map[string]time.Time)
	if len(raw) == 0 {
		return dates, nil
	}
	if err := json.Unmarshal(raw, &dates); err != nil {
		return nil, fmt.Errorf("decode dates: %w", err)
	}
	return dates, nil
}

func nonNilDates(dates map[string]time.Time) map[string]time.Time {
	if dates == nil {
		return map[string]time.Time{}
	}
	return dates
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

var _ Repo = (*PGRepo)(nil)
