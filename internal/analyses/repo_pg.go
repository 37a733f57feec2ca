package analyses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new analysis.
func (r *PGRepo) Create(ctx context.Context, analysis Analysis) error {
	const query = `
INSERT INTO analyses (
	id, user_id, wish_id, wish_text, deity, diagnosis, full_result, provider,
	unlock_token, unlock_expires_at, unlock_state, unlocked_at, created_at, updated_at
)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	diagnosisPayload, err := json.Marshal(analysis.Diagnosis)
	if err != nil {
		return err
	}
	var resultPayload any
	if analysis.FullResult != nil {
		resultPayload, err = json.Marshal(analysis.FullResult)
		if err != nil {
			return err
		}
	}
	_, err = r.DB.ExecContext(ctx, query,
		analysis.ID,
		analysis.UserID,
		analysis.WishID,
		analysis.WishText,
		analysis.Deity,
		diagnosisPayload,
		resultPayload,
		analysis.Provider,
		analysis.UnlockToken,
		analysis.UnlockExpiresAt,
		analysis.UnlockState,
		analysis.UnlockedAt,
		analysis.CreatedAt,
		analysis.UpdatedAt,
	)
	return err
}

const analysisColumns = `
id, user_id, wish_id, wish_text, deity, diagnosis, full_result, provider,
unlock_token, unlock_expires_at, unlock_state, unlocked_at, created_at, updated_at`

// GetByID returns an analysis by ID.
func (r *PGRepo) GetByID(ctx context.Context, analysisID string) (Analysis, error) {
	const query = `
SELECT ` + analysisColumns + `
FROM analyses
WHERE id = $1
LIMIT 1`

	a, err := scanAnalysis(r.DB.QueryRowContext(ctx, query, analysisID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Analysis{}, ErrNotFound
		}
		return Analysis{}, err
	}
	return a, nil
}

// ListByUser lists analyses for a user ordered newest-first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Analysis, error) {
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
SELECT ` + analysisColumns + `
FROM analyses
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ClaimUnlock performs the conditional state flip. The WHERE clause carries
// the whole race: only one of N concurrent calls sees RowsAffected == 1.
func (r *PGRepo) ClaimUnlock(ctx context.Context, analysisID, token string, at time.Time) (bool, error) {
	const query = `
UPDATE analyses
SET unlock_state = 'unlocked',
    unlocked_at = $3,
    updated_at = $3
WHERE id = $1 AND unlock_token = $2 AND unlock_state = 'issued'`

	res, err := r.DB.ExecContext(ctx, query, analysisID, token, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ReleaseUnlock reverts a claim that never produced a cached result.
func (r *PGRepo) ReleaseUnlock(ctx context.Context, analysisID, token string) error {
	const query = `
UPDATE analyses
SET unlock_state = 'issued',
    unlocked_at = NULL,
    updated_at = now()
WHERE id = $1 AND unlock_token = $2 AND unlock_state = 'unlocked' AND full_result IS NULL`

	_, err := r.DB.ExecContext(ctx, query, analysisID, token)
	return err
}

// SetFullResult caches the gated result.
func (r *PGRepo) SetFullResult(ctx context.Context, analysisID string, result FullResult) error {
	const query = `
UPDATE analyses
SET full_result = $2::jsonb,
    updated_at = now()
WHERE id = $1`

	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, query, analysisID, payload)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Repo = (*PGRepo)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (Analysis, error) {
	var a Analysis
	var wishID sql.NullString
	var deity sql.NullString
	var diagnosis []byte
	var fullResult []byte
	var provider sql.NullString
	var unlockedAt sql.NullTime

	err := row.Scan(
		&a.ID,
		&a.UserID,
		&wishID,
		&a.WishText,
		&deity,
		&diagnosis,
		&fullResult,
		&provider,
		&a.UnlockToken,
		&a.UnlockExpiresAt,
		&a.UnlockState,
		&unlockedAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return Analysis{}, err
	}
	if wishID.Valid {
		a.WishID = wishID.String
	}
	if deity.Valid {
		a.Deity = deity.String
	}
	if provider.Valid {
		a.Provider = provider.String
	}
	if unlockedAt.Valid {
		a.UnlockedAt = &unlockedAt.Time
	}
	if len(diagnosis) > 0 {
		if err := json.Unmarshal(diagnosis, &a.Diagnosis); err != nil {
			return Analysis{}, err
		}
	}
	if len(fullResult) > 0 {
		var result FullResult
		if err := json.Unmarshal(fullResult, &result); err != nil {
			return Analysis{}, err
		}
		a.FullResult = &result
	}
	return a, nil
}

// PGAttemptLog implements AttemptLog using Postgres.
type PGAttemptLog struct {
	DB *sql.DB
}

// Record inserts one attempt.
func (l *PGAttemptLog) Record(ctx context.Context, attempt Attempt) error {
	const query = `
INSERT INTO unlock_attempts (id, user_id, analysis_id, kind, created_at)
VALUES ($1, $2, NULLIF($3, ''), $4, $5)`

	_, err := l.DB.ExecContext(ctx, query,
		attempt.ID,
		attempt.UserID,
		attempt.AnalysisID,
		attempt.Kind,
		attempt.CreatedAt,
	)
	return err
}

// CountRecent counts attempts of one kind by a user since the given time.
func (l *PGAttemptLog) CountRecent(ctx context.Context, userID, kind string, since time.Time) (int, error) {
	const query = `
SELECT count(*)
FROM unlock_attempts
WHERE user_id = $1 AND kind = $2 AND created_at >= $3`

	var count int
	if err := l.DB.QueryRowContext(ctx, query, userID, kind, since).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// PruneBefore deletes attempts older than the cutoff.
func (l *PGAttemptLog) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM unlock_attempts WHERE created_at < $1`

	res, err := l.DB.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

var _ AttemptLog = (*PGAttemptLog)(nil)
