package wishes

import (
	"context"
	"database/sql"
	"errors"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) Create(ctx context.Context, wish Wish) error {
	const query = `
INSERT INTO wishes (id, user_id, title, content, deity, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.DB.ExecContext(ctx, query,
		wish.ID,
		wish.UserID,
		wish.Title,
		wish.Content,
		wish.Deity,
		wish.Status,
		wish.CreatedAt,
		wish.UpdatedAt,
	)
	return err
}

func (r *PGRepo) GetByID(ctx context.Context, wishID string) (Wish, error) {
	const query = `
SELECT id, user_id, title, content, deity, status, created_at, updated_at
FROM wishes
WHERE id = $1
LIMIT 1`

	var w Wish
	var deity sql.NullString
	err := r.DB.QueryRowContext(ctx, query, wishID).Scan(
		&w.ID,
		&w.UserID,
		&w.Title,
		&w.Content,
		&deity,
		&w.Status,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Wish{}, ErrNotFound
		}
		return Wish{}, err
	}
	if deity.Valid {
		w.Deity = deity.String
	}
	return w, nil
}

func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Wish, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	const query = `
SELECT id, user_id, title, content, deity, status, created_at, updated_at
FROM wishes
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Wish
	for rows.Next() {
		var w Wish
		var deity sql.NullString
		if err := rows.Scan(
			&w.ID,
			&w.UserID,
			&w.Title,
			&w.Content,
			&deity,
			&w.Status,
			&w.CreatedAt,
			&w.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if deity.Valid {
			w.Deity = deity.String
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (r *PGRepo) Update(ctx context.Context, wish Wish) error {
	const query = `
UPDATE wishes
SET title = $2,
    content = $3,
    deity = $4,
    status = $5,
    updated_at = $6
WHERE id = $1`

	res, err := r.DB.ExecContext(ctx, query,
		wish.ID,
		wish.Title,
		wish.Content,
		wish.Deity,
		wish.Status,
		wish.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepo) Delete(ctx context.Context, wishID string) error {
	const query = `DELETE FROM wishes WHERE id = $1`

	res, err := r.DB.ExecContext(ctx, query, wishID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Repo = (*PGRepo)(nil)
