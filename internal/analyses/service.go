package analyses

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"wish-backend/internal/llm"
	"wish-backend/internal/safety"
	"wish-backend/internal/shared/metrics"
	"wish-backend/internal/shared/ownership"
	"wish-backend/internal/shared/telemetry"
)

const (
	defaultTokenTTL       = 5 * time.Minute
	defaultAnalyzeCap     = 20
	defaultUnlockCap      = 10
	rateLimitWindow       = time.Hour
	maxWishTextRunes      = 500
	diagnosisTemperature  = 0.4
	optimizeTemperature   = 0.7
	completionTokenBudget = 1200
)

// Service contains business logic for wish analyses and the unlock lifecycle.
type Service struct {
	Repo     Repo
	Attempts AttemptLog
	LLM      llm.Client
	Safety   safety.Checker

	TokenTTL   time.Duration
	AnalyzeCap int
	UnlockCap  int

	now func() time.Time
}

// NewService constructs a Service with defaults applied.
func NewService(repo Repo, attempts AttemptLog, llmClient llm.Client, checker safety.Checker) *Service {
	return &Service{
		Repo:       repo,
		Attempts:   attempts,
		LLM:        llmClient,
		Safety:     checker,
		TokenTTL:   defaultTokenTTL,
		AnalyzeCap: defaultAnalyzeCap,
		UnlockCap:  defaultUnlockCap,
		now:        time.Now,
	}
}

// AnalyzeInput carries one analyze request.
type AnalyzeInput struct {
	UserID   string
	OpenID   string
	WishText string
	Deity    string
	WishID   string
}

// Analyze runs the diagnosis path: rate limit, safety check, LLM diagnosis,
// normalization, then persists the record with a fresh unlock token.
func (s *Service) Analyze(ctx context.Context, input AnalyzeInput) (Analysis, error) {
	if input.UserID == "" {
		return Analysis{}, errors.New("userID is required")
	}
	text := strings.TrimSpace(input.WishText)
	if text == "" {
		return Analysis{}, ErrEmptyWish
	}
	if len([]rune(text)) > maxWishTextRunes {
		return Analysis{}, fmt.Errorf("wish text too long: %w", ErrEmptyWish)
	}

	if err := s.enforceCap(ctx, input.UserID, AttemptKindAnalyze, s.analyzeCap()); err != nil {
		return Analysis{}, err
	}
	s.recordAttempt(ctx, input.UserID, "", AttemptKindAnalyze)

	if s.Safety != nil {
		if err := s.Safety.Check(ctx, input.OpenID, text); err != nil {
			return Analysis{}, err
		}
	}

	metrics.IncAnalysisStarted()
	startedAt := s.clock().UTC()
	completion, err := s.LLM.Complete(ctx, llm.Request{
		System:      diagnosisSystemPrompt,
		User:        buildDiagnosisUser(text, input.Deity),
		Temperature: diagnosisTemperature,
		MaxTokens:   completionTokenBudget,
	})
	if err != nil {
		metrics.IncAnalysisFailed()
		return Analysis{}, err
	}

	diagnosis, err := parseDiagnosis(completion.Content, text, input.Deity)
	if err != nil {
		metrics.IncAnalysisFailed()
		return Analysis{}, err
	}

	now := s.clock().UTC()
	analysis := Analysis{
		ID:              uuid.NewString(),
		UserID:          input.UserID,
		WishID:          input.WishID,
		WishText:        text,
		Deity:           strings.TrimSpace(input.Deity),
		Diagnosis:       diagnosis,
		Provider:        completion.Provider,
		UnlockToken:     newUnlockToken(),
		UnlockExpiresAt: now.Add(s.tokenTTL()),
		UnlockState:     UnlockStateIssued,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.Repo.Create(ctx, analysis); err != nil {
		metrics.IncAnalysisFailed()
		return Analysis{}, err
	}

	metrics.IncAnalysisCompleted()
	metrics.ObserveAnalysisDurationMs(float64(s.clock().UTC().Sub(startedAt).Microseconds()) / 1000.0)
	telemetry.Info("analysis.created", map[string]any{
		"user_id":     input.UserID,
		"analysis_id": analysis.ID,
		"wish_id":     input.WishID,
		"provider":    completion.Provider,
		"gap_count":   len(diagnosis.Gaps),
	})
	return analysis, nil
}

// Get returns an analysis owned by the requester. Foreign records look like
// missing ones.
func (s *Service) Get(ctx context.Context, analysisID, requesterID string) (Analysis, error) {
	if analysisID == "" {
		return Analysis{}, errors.New("analysisID is required")
	}
	analysis, err := s.Repo.GetByID(ctx, analysisID)
	if err != nil {
		return Analysis{}, err
	}
	if err := ownership.Require(analysis.UserID, requesterID); err != nil {
		return Analysis{}, ErrNotFound
	}
	return analysis, nil
}

// List returns analyses for a user ordered newest-first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Analysis, error) {
	if userID == "" {
		return nil, errors.New("userID is required")
	}
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}

func (s *Service) enforceCap(ctx context.Context, userID, kind string, limit int) error {
	if s.Attempts == nil || limit <= 0 {
		return nil
	}
	since := s.clock().UTC().Add(-rateLimitWindow)
	count, err := s.Attempts.CountRecent(ctx, userID, kind, since)
	if err != nil {
		return err
	}
	if count >= limit {
		telemetry.Info("analysis.rate_limited", map[string]any{
			"user_id": userID,
			"kind":    kind,
			"count":   count,
		})
		return ErrRateLimited
	}
	return nil
}

func (s *Service) recordAttempt(ctx context.Context, userID, analysisID, kind string) {
	if s.Attempts == nil {
		return
	}
	err := s.Attempts.Record(ctx, Attempt{
		ID:         uuid.NewString(),
		UserID:     userID,
		AnalysisID: analysisID,
		Kind:       kind,
		CreatedAt:  s.clock().UTC(),
	})
	if err != nil {
		telemetry.Error("analysis.attempt_log", map[string]any{
			"user_id": userID,
			"kind":    kind,
			"error":   err.Error(),
		})
	}
}

func (s *Service) tokenTTL() time.Duration {
	if s.TokenTTL > 0 {
		return s.TokenTTL
	}
	return defaultTokenTTL
}

func (s *Service) analyzeCap() int {
	if s.AnalyzeCap > 0 {
		return s.AnalyzeCap
	}
	return defaultAnalyzeCap
}

func (s *Service) unlockCap() int {
	if s.UnlockCap > 0 {
		return s.UnlockCap
	}
	return defaultUnlockCap
}

func (s *Service) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// newUnlockToken returns an opaque single-use credential.
func newUnlockToken() string {
	var b [24]byte
	if _, err := rand.Read(b[:]); err != nil {
		return uuid.NewString()
	}
	return hex.EncodeToString(b[:])
}
