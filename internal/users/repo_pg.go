package users

import (
	"context"
	"database/sql"
	"errors"
)

type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) UpsertByOpenID(ctx context.Context, user User) (User, error) {
	const query = `
INSERT INTO users (id, open_id, nickname, avatar_url, created_at, updated_at)
VALUES ($1, $2, $3, $4, now(), now())
ON CONFLICT (open_id) DO UPDATE SET
  nickname = COALESCE(NULLIF(EXCLUDED.nickname, ''), users.nickname),
  avatar_url = COALESCE(NULLIF(EXCLUDED.avatar_url, ''), users.avatar_url),
  updated_at = now()
RETURNING id, open_id, nickname, avatar_url, created_at, updated_at`

	return scanUser(r.DB.QueryRowContext(ctx, query,
		user.ID,
		user.OpenID,
		nullableString(user.Nickname),
		nullableString(user.AvatarURL),
	))
}

func (r *PGRepo) GetByID(ctx context.Context, userID string) (User, error) {
	const query = `
SELECT id, open_id, nickname, avatar_url, created_at, updated_at
FROM users
WHERE id = $1
LIMIT 1`
	return r.get(ctx, query, userID)
}

func (r *PGRepo) GetByOpenID(ctx context.Context, openID string) (User, error) {
	const query = `
SELECT id, open_id, nickname, avatar_url, created_at, updated_at
FROM users
WHERE open_id = $1
LIMIT 1`
	return r.get(ctx, query, openID)
}

func (r *PGRepo) get(ctx context.Context, query, arg string) (User, error) {
	user, err := scanUser(r.DB.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return user, nil
}

func scanUser(row *sql.Row) (User, error) {
	var user User
	var nickname sql.NullString
	var avatarURL sql.NullString
	err := row.Scan(
		&user.ID,
		&user.OpenID,
		&nickname,
		&avatarURL,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return User{}, err
	}
	if nickname.Valid {
		user.Nickname = nickname.String
	}
	if avatarURL.Valid {
		user.AvatarURL = avatarURL.String
	}
	return user, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

var _ Repo = (*PGRepo)(nil)
