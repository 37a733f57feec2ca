package orders

import (
	"context"
	"database/sql"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) Create(ctx context.Context, order Order) error {
	const query = `
INSERT INTO orders (id, user_id, wish_id, product, amount_fen, status, created_at, updated_at)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8)`

	_, err := r.DB.ExecContext(ctx, query,
		order.ID,
		order.UserID,
		order.WishID,
		order.Product,
		order.AmountFen,
		order.Status,
		order.CreatedAt,
		order.UpdatedAt,
	)
	return err
}

func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error) {
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
SELECT id, user_id, wish_id, product, amount_fen, status, created_at, updated_at
FROM orders
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		var wishID sql.NullString
		if err := rows.Scan(
			&o.ID,
			&o.UserID,
			&wishID,
			&o.Product,
			&o.AmountFen,
			&o.Status,
			&o.CreatedAt,
			&o.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if wishID.Valid {
			o.WishID = wishID.String
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

var _ Repo = (*PGRepo)(nil)
