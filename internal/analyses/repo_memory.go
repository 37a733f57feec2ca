package analyses

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores analyses in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu     sync.RWMutex
	byID   map[string]Analysis
	byUser map[string][]string
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID:   make(map[string]Analysis),
		byUser: make(map[string][]string),
	}
}

// Create stores the analysis.
func (r *MemoryRepo) Create(ctx context.Context, analysis Analysis) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[analysis.ID] = analysis
	r.byUser[analysis.UserID] = append(r.byUser[analysis.UserID], analysis.ID)
	return nil
}

// GetByID returns an analysis by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, analysisID string) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	analysis, ok := r.byID[analysisID]
	if !ok {
		return Analysis{}, ErrNotFound
	}
	return analysis, nil
}

// ListByUser returns analyses for a user, newest first, with limit/offset.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}

	r.mu.RLock()
	ids := r.byUser[userID]
	analyses := make([]Analysis, 0, len(ids))
	for _, id := range ids {
		if a, ok := r.byID[id]; ok {
			analyses = append(analyses, a)
		}
	}
	r.mu.RUnlock()

	if len(analyses) == 0 || offset >= len(analyses) {
		return []Analysis{}, nil
	}
	sort.Slice(analyses, func(i, j int) bool {
		return analyses[i].CreatedAt.After(analyses[j].CreatedAt)
	})

	end := len(analyses)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return analyses[offset:end], nil
}

// ClaimUnlock flips issued -> unlocked under the lock, so only one caller
// can observe the transition.
func (r *MemoryRepo) ClaimUnlock(ctx context.Context, analysisID, token string, at time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	analysis, ok := r.byID[analysisID]
	if !ok {
		return false, ErrNotFound
	}
	if analysis.UnlockState != UnlockStateIssued || analysis.UnlockToken != token {
		return false, nil
	}
	analysis.UnlockState = UnlockStateUnlocked
	analysis.UnlockedAt = &at
	analysis.UpdatedAt = at
	r.byID[analysisID] = analysis
	return true, nil
}

// ReleaseUnlock reverts a claim whose computation never produced a result.
func (r *MemoryRepo) ReleaseUnlock(ctx context.Context, analysisID, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	analysis, ok := r.byID[analysisID]
	if !ok {
		return ErrNotFound
	}
	if analysis.UnlockState != UnlockStateUnlocked || analysis.UnlockToken != token || analysis.FullResult != nil {
		return nil
	}
	analysis.UnlockState = UnlockStateIssued
	analysis.UnlockedAt = nil
	analysis.UpdatedAt = time.Now().UTC()
	r.byID[analysisID] = analysis
	return nil
}

// SetFullResult caches the gated result.
func (r *MemoryRepo) SetFullResult(ctx context.Context, analysisID string, result FullResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	analysis, ok := r.byID[analysisID]
	if !ok {
		return ErrNotFound
	}
	analysis.FullResult = &result
	analysis.UpdatedAt = time.Now().UTC()
	r.byID[analysisID] = analysis
	return nil
}

var _ Repo = (*MemoryRepo)(nil)

// MemoryAttemptLog keeps the rolling attempt window in memory.
type MemoryAttemptLog struct {
	mu       sync.Mutex
	attempts []Attempt
}

// NewMemoryAttemptLog constructs a MemoryAttemptLog.
func NewMemoryAttemptLog() *MemoryAttemptLog {
	return &MemoryAttemptLog{}
}

// Record appends one attempt.
func (l *MemoryAttemptLog) Record(ctx context.Context, attempt Attempt) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts = append(l.attempts, attempt)
	return nil
}

// CountRecent counts attempts of one kind by a user since the given time.
func (l *MemoryAttemptLog) CountRecent(ctx context.Context, userID, kind string, since time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	count := 0
	for _, a := range l.attempts {
		if a.UserID == userID && a.Kind == kind && !a.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// PruneBefore drops attempts older than the cutoff.
func (l *MemoryAttemptLog) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.attempts[:0]
	var pruned int64
	for _, a := range l.attempts {
		if a.CreatedAt.Before(cutoff) {
			pruned++
			continue
		}
		kept = append(kept, a)
	}
	l.attempts = kept
	return pruned, nil
}

var _ AttemptLog = (*MemoryAttemptLog)(nil)
