package notifications

import (
	"context"
	"database/sql"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a notification.
func (r *PGRepo) Create(ctx context.Context, n Notification) error {
	const query = `
INSERT INTO notifications (id, user_id, application_id, message, from_status, to_status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO NOTHING`
	_, err := r.DB.ExecContext(ctx, query, n.ID, n.UserID, n.ApplicationID, n.Message, n.FromStatus, n.ToStatus, n.CreatedAt)
	return err
}

// ListByUser returns a user's notifications, newest first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	const query = `
SELECT id, user_id, application_id, message, from_status, to_status, read_at, created_at
FROM notifications
WHERE user_id = $1 AND ($2 = FALSE OR read_at IS NULL)
ORDER BY created_at DESC
LIMIT $3`
	rows, err := r.DB.QueryContext(ctx, query, userID, unreadOnly, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Notification, 0)
	for rows.Next() {
		var (
			n      Notification
			readAt sql.NullTime
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.ApplicationID, &n.Message, &n.FromStatus, &n.ToStatus, &readAt, &n.CreatedAt); err != nil {
			return nil, err
		}
		if readAt.Valid {
			n.ReadAt = &readAt.Time
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead marks a user's notification read.
func (r *PGRepo) MarkRead(ctx context.Context, userID, id string, at time.Time) error {
	const query = `
UPDATE notifications
SET read_at = COALESCE(read_at, $3)
WHERE id = $1 AND user_id = $2`
	res, err := r.DB.ExecContext(ctx, query, id, userID, at)
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

var _ Repo = (*PGRepo)(nil)
