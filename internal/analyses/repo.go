package analyses

import (
	"context"
	"time"
)

// Repo defines persistence operations for analyses. Mutations are
// field-scoped: ClaimUnlock is the conditional state flip, SetFullResult
// force-sets the cached result, nothing rewrites whole records.
type Repo interface {
	Create(ctx context.Context, analysis Analysis) error
	GetByID(ctx context.Context, analysisID string) (Analysis, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Analysis, error)
	// ClaimUnlock flips issued -> unlocked if and only if the stored token
	// matches and the record is still issued. It reports whether this call
	// performed the flip, so two concurrent redemptions can never both win.
	ClaimUnlock(ctx context.Context, analysisID, token string, at time.Time) (bool, error)
	// ReleaseUnlock reverts a claim whose full-result computation failed,
	// so a later redemption can retry. It only touches records that are
	// unlocked with no cached result.
	ReleaseUnlock(ctx context.Context, analysisID, token string) error
	SetFullResult(ctx context.Context, analysisID string, result FullResult) error
}

// AttemptLog records rate-limited actions and counts them over rolling windows.
type AttemptLog interface {
	Record(ctx context.Context, attempt Attempt) error
	CountRecent(ctx context.Context, userID, kind string, since time.Time) (int, error)
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
