package attorneys

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const uniqueViolation = "23505"

// Create inserts a new attorney.
func (r *PGRepo) Create(ctx context.Context, a Attorney) error {
	const query = `
INSERT INTO attorneys (id, name, email, phone, firm, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.DB.ExecContext(ctx, query, a.ID, a.Name, a.Email, a.Phone, a.Firm, a.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}

// GetByID fetches an attorney by ID.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Attorney, error) {
	const query = `SELECT id, name, email, phone, firm, created_at FROM attorneys WHERE id = $1`
	var a Attorney
	err := r.DB.QueryRowContext(ctx, query, id).Scan(&a.ID, &a.Name, &a.Email, &a.Phone, &a.Firm, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attorney{}, ErrNotFound
		}
		return Attorney{}, err
	}
	return a, nil
}

// List returns attorneys ordered by name.
func (r *PGRepo) List(ctx context.Context) ([]Attorney, error) {
	const query = `SELECT id, name, email, phone, firm, created_at FROM attorneys ORDER BY name ASC`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Attorney, 0)
	for rows.Next() {
		var a Attorney
		if err := rows.Scan(&a.ID, &a.Name, &a.Email, &a.Phone, &a.Firm, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

var _ Repo = (*PGRepo)(nil)
