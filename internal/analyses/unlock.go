package analyses

import (
	"context"
	"errors"
	"fmt"

	"wish-backend/internal/llm"
	"wish-backend/internal/shared/metrics"
	"wish-backend/internal/shared/ownership"
	"wish-backend/internal/shared/telemetry"
)

// Redeem releases the gated full result for a presented unlock token.
//
// Validation order: rate limit, record existence, ownership, token equality,
// idempotent replay, expiry, then the atomic claim. Replaying an already
// consumed token returns the original payload instead of an error, so a
// share callback firing twice stays harmless. Two concurrent redemptions
// race on the conditional claim; exactly one computes the result.
func (s *Service) Redeem(ctx context.Context, analysisID, token, requesterID string) (FullResult, error) {
	if analysisID == "" || token == "" || requesterID == "" {
		return FullResult{}, ErrTokenInvalid
	}

	if err := s.enforceCap(ctx, requesterID, AttemptKindUnlock, s.unlockCap()); err != nil {
		return FullResult{}, err
	}
	s.recordAttempt(ctx, requesterID, analysisID, AttemptKindUnlock)

	analysis, err := s.Repo.GetByID(ctx, analysisID)
	if err != nil {
		return FullResult{}, err
	}
	// A foreign record must be indistinguishable from a missing one.
	if err := ownership.Require(analysis.UserID, requesterID); err != nil {
		return FullResult{}, ErrNotFound
	}
	if token != analysis.UnlockToken {
		metrics.IncUnlockRejected()
		return FullResult{}, ErrTokenInvalid
	}

	if analysis.Unlocked() {
		return s.replay(analysis)
	}

	now := s.clock().UTC()
	if !now.Before(analysis.UnlockExpiresAt) {
		metrics.IncUnlockRejected()
		return FullResult{}, ErrTokenExpired
	}

	claimed, err := s.Repo.ClaimUnlock(ctx, analysisID, token, now)
	if err != nil {
		return FullResult{}, err
	}
	if !claimed {
		// Lost the race: the winner either finished (return its result) or
		// is still computing.
		current, err := s.Repo.GetByID(ctx, analysisID)
		if err != nil {
			return FullResult{}, err
		}
		return s.replay(current)
	}

	result, err := s.computeFullResult(ctx, analysis)
	if err != nil {
		// Revert the claim so a later redemption can retry; the token was
		// never actually consumed for value.
		if relErr := s.Repo.ReleaseUnlock(ctx, analysisID, token); relErr != nil {
			telemetry.Error("unlock.release_failed", map[string]any{
				"analysis_id": analysisID,
				"error":       relErr.Error(),
			})
		}
		metrics.IncUnlockRejected()
		return FullResult{}, err
	}

	if err := s.Repo.SetFullResult(ctx, analysisID, result); err != nil {
		return FullResult{}, fmt.Errorf("persist full result: %w", err)
	}

	metrics.IncUnlockRedeemed()
	telemetry.Info("unlock.redeemed", map[string]any{
		"user_id":     requesterID,
		"analysis_id": analysisID,
	})
	return result, nil
}

func (s *Service) replay(analysis Analysis) (FullResult, error) {
	if !analysis.Unlocked() {
		return FullResult{}, ErrUnlockInProgress
	}
	if analysis.FullResult == nil {
		return FullResult{}, ErrUnlockInProgress
	}
	return *analysis.FullResult, nil
}

// computeFullResult runs the optimization completion, an independent second
// pass through the fallback orchestrator with its own prompt.
func (s *Service) computeFullResult(ctx context.Context, analysis Analysis) (FullResult, error) {
	if s.LLM == nil {
		return FullResult{}, errors.New("missing llm client")
	}
	completion, err := s.LLM.Complete(ctx, llm.Request{
		System:      optimizeSystemPrompt,
		User:        buildOptimizeUser(analysis),
		Temperature: optimizeTemperature,
		MaxTokens:   completionTokenBudget,
	})
	if err != nil {
		return FullResult{}, err
	}
	return parseFullResult(completion.Content)
}
