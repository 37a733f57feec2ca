package analyses

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"wish-backend/internal/llm"
	"wish-backend/internal/safety"
)

type fakeLLM struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     int
}

func (f *fakeLLM) Complete(ctx context.Context, req llm.Request) (llm.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return llm.Completion{}, f.err
	}
	idx := f.calls - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return llm.Completion{Content: f.responses[idx], Provider: "deepseek"}, nil
}

type rejectingChecker struct{}

func (rejectingChecker) Check(ctx context.Context, openID, text string) error {
	return safety.ErrUnsafeContent
}

const diagnosisJSON = `{"gaps":["缺少时间范围","没有还愿承诺"],"case":"某人补上时限后一年得偿。","tip":"写明时限。","suggested_deity":"财神"}`

const fullResultJSON = `{"optimized_text":"我许愿在2026年底前月入过万。","suggestion":{"incense":"三炷清香"},"steps":["净手","上香"],"warnings":["忌空许"]}`

func newTestService(llmClient llm.Client) (*Service, *MemoryRepo, *MemoryAttemptLog) {
	repo := NewMemoryRepo()
	attempts := NewMemoryAttemptLog()
	svc := NewService(repo, attempts, llmClient, safety.AllowAll{})
	return svc, repo, attempts
}

func TestAnalyzeCreatesIssuedRecord(t *testing.T) {
	svc, _, _ := newTestService(&fakeLLM{responses: []string{diagnosisJSON}})

	analysis, err := svc.Analyze(context.Background(), AnalyzeInput{
		UserID:   "user-1",
		WishText: "我要暴富",
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if analysis.UnlockState != UnlockStateIssued {
		t.Fatalf("state = %q, want issued", analysis.UnlockState)
	}
	if analysis.UnlockToken == "" {
		t.Fatal("want a non-empty unlock token")
	}
	ttl := analysis.UnlockExpiresAt.Sub(analysis.CreatedAt)
	if ttl != defaultTokenTTL {
		t.Fatalf("token ttl = %v, want %v", ttl, defaultTokenTTL)
	}
	if len(analysis.Diagnosis.Gaps) != 2 {
		t.Fatalf("gaps = %v", analysis.Diagnosis.Gaps)
	}
	if analysis.FullResult != nil {
		t.Fatal("full result must stay gated at creation")
	}
}

func TestAnalyzeValidation(t *testing.T) {
	svc, _, _ := newTestService(&fakeLLM{responses: []string{diagnosisJSON}})

	if _, err := svc.Analyze(context.Background(), AnalyzeInput{UserID: "user-1", WishText: "   "}); !errors.Is(err, ErrEmptyWish) {
		t.Fatalf("blank wish: err = %v, want ErrEmptyWish", err)
	}

	long := make([]rune, maxWishTextRunes+1)
	for i := range long {
		long[i] = '愿'
	}
	if _, err := svc.Analyze(context.Background(), AnalyzeInput{UserID: "user-1", WishText: string(long)}); !errors.Is(err, ErrEmptyWish) {
		t.Fatalf("oversized wish: err = %v, want ErrEmptyWish", err)
	}
}

func TestAnalyzeSafetyRejection(t *testing.T) {
	fake := &fakeLLM{responses: []string{diagnosisJSON}}
	svc, _, _ := newTestService(fake)
	svc.Safety = rejectingChecker{}

	_, err := svc.Analyze(context.Background(), AnalyzeInput{UserID: "user-1", WishText: "我要暴富"})
	if !errors.Is(err, safety.ErrUnsafeContent) {
		t.Fatalf("err = %v, want ErrUnsafeContent", err)
	}
	if fake.calls != 0 {
		t.Fatal("rejected content must never reach the model")
	}
}

func TestAnalyzeRateLimit(t *testing.T) {
	svc, _, _ := newTestService(&fakeLLM{responses: []string{diagnosisJSON}})
	svc.AnalyzeCap = 2

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := svc.Analyze(ctx, AnalyzeInput{UserID: "user-1", WishText: "我要暴富"}); err != nil {
			t.Fatalf("analyze %d: %v", i, err)
		}
	}
	if _, err := svc.Analyze(ctx, AnalyzeInput{UserID: "user-1", WishText: "我要暴富"}); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
	// A different user still has headroom.
	if _, err := svc.Analyze(ctx, AnalyzeInput{UserID: "user-2", WishText: "我要暴富"}); err != nil {
		t.Fatalf("other user: %v", err)
	}
}

func TestAnalyzeParseFailurePropagates(t *testing.T) {
	svc, repo, _ := newTestService(&fakeLLM{responses: []string{"抱歉，我拒绝回答。"}})

	_, err := svc.Analyze(context.Background(), AnalyzeInput{UserID: "user-1", WishText: "我要暴富"})
	if !errors.Is(err, ErrParse) {
		t.Fatalf("err = %v, want ErrParse", err)
	}
	analyses, _ := repo.ListByUser(context.Background(), "user-1", 10, 0)
	if len(analyses) != 0 {
		t.Fatal("a failed parse must not persist a record")
	}
}

func TestGetOwnershipHidesForeignRecords(t *testing.T) {
	svc, _, _ := newTestService(&fakeLLM{responses: []string{diagnosisJSON}})

	analysis, err := svc.Analyze(context.Background(), AnalyzeInput{UserID: "user-1", WishText: "我要暴富"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if _, err := svc.Get(context.Background(), analysis.ID, "user-2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign get: err = %v, want ErrNotFound", err)
	}
	if _, err := svc.Get(context.Background(), analysis.ID, "user-1"); err != nil {
		t.Fatalf("owner get: %v", err)
	}
}

func TestRedeemHappyPathAndReplay(t *testing.T) {
	fake := &fakeLLM{responses: []string{diagnosisJSON, fullResultJSON}}
	svc, _, _ := newTestService(fake)

	ctx := context.Background()
	analysis, err := svc.Analyze(ctx, AnalyzeInput{UserID: "user-1", WishText: "我要暴富"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	result, err := svc.Redeem(ctx, analysis.ID, analysis.UnlockToken, "user-1")
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	if result.OptimizedText == "" {
		t.Fatal("want an optimized text")
	}
	if fake.calls != 2 {
		t.Fatalf("llm calls = %d, want 2", fake.calls)
	}

	// Replaying the consumed token returns the cached result without a
	// third model call.
	replay, err := svc.Redeem(ctx, analysis.ID, analysis.UnlockToken, "user-1")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if replay.OptimizedText != result.OptimizedText {
		t.Fatalf("replay = %q, want %q", replay.OptimizedText, result.OptimizedText)
	}
	if fake.calls != 2 {
		t.Fatalf("llm calls after replay = %d, want 2", fake.calls)
	}
}

func TestRedeemForgedToken(t *testing.T) {
	svc, _, _ := newTestService(&fakeLLM{responses: []string{diagnosisJSON, fullResultJSON}})

	ctx := context.Background()
	analysis, err := svc.Analyze(ctx, AnalyzeInput{UserID: "user-1", WishText: "我要暴富"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if _, err := svc.Redeem(ctx, analysis.ID, "forged-token", "user-1"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("err = %v, want ErrTokenInvalid", err)
	}
	// The record stays redeemable with the real token.
	if _, err := svc.Redeem(ctx, analysis.ID, analysis.UnlockToken, "user-1"); err != nil {
		t.Fatalf("real token after forgery: %v", err)
	}
}

func TestRedeemExpiredToken(t *testing.T) {
	svc, _, _ := newTestService(&fakeLLM{responses: []string{diagnosisJSON, fullResultJSON}})

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	current := base
	svc.now = func() time.Time { return current }

	ctx := context.Background()
	analysis, err := svc.Analyze(ctx, AnalyzeInput{UserID: "user-1", WishText: "我要暴富"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	current = base.Add(defaultTokenTTL + time.Second)
	if _, err := svc.Redeem(ctx, analysis.ID, analysis.UnlockToken, "user-1"); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("err = %v, want ErrTokenExpired", err)
	}
}

func TestRedeemOwnership(t *testing.T) {
	svc, _, _ := newTestService(&fakeLLM{responses: []string{diagnosisJSON, fullResultJSON}})

	ctx := context.Background()
	analysis, err := svc.Analyze(ctx, AnalyzeInput{UserID: "user-1", WishText: "我要暴富"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	// Even with the right token a non-owner sees a missing record.
	if _, err := svc.Redeem(ctx, analysis.ID, analysis.UnlockToken, "user-2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRedeemComputeFailureReleasesClaim(t *testing.T) {
	fake := &fakeLLM{responses: []string{diagnosisJSON}}
	svc, repo, _ := newTestService(fake)

	ctx := context.Background()
	analysis, err := svc.Analyze(ctx, AnalyzeInput{UserID: "user-1", WishText: "我要暴富"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	fake.err = &llm.FallbackError{Attempted: []string{"deepseek"}, Last: errors.New("boom")}
	if _, err := svc.Redeem(ctx, analysis.ID, analysis.UnlockToken, "user-1"); err == nil {
		t.Fatal("want the compute failure to propagate")
	}

	got, err := repo.GetByID(ctx, analysis.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.UnlockState != UnlockStateIssued {
		t.Fatalf("state = %q, want issued after release", got.UnlockState)
	}

	// A retry with the same token succeeds once the model recovers.
	fake.err = nil
	fake.responses = []string{fullResultJSON}
	fake.calls = 0
	if _, err := svc.Redeem(ctx, analysis.ID, analysis.UnlockToken, "user-1"); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

func TestRedeemConcurrentSingleCompute(t *testing.T) {
	fake := &fakeLLM{responses: []string{diagnosisJSON, fullResultJSON}}
	svc, _, _ := newTestService(fake)
	svc.UnlockCap = 100

	ctx := context.Background()
	analysis, err := svc.Analyze(ctx, AnalyzeInput{UserID: "user-1", WishText: "我要暴富"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	const workers = 8
	var wg sync.WaitGroup
	results := make([]FullResult, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Redeem(ctx, analysis.ID, analysis.UnlockToken, "user-1")
		}(i)
	}
	wg.Wait()

	var succeeded int
	for i := 0; i < workers; i++ {
		switch {
		case errs[i] == nil:
			succeeded++
			if results[i].OptimizedText == "" {
				t.Errorf("worker %d: empty result", i)
			}
		case errors.Is(errs[i], ErrUnlockInProgress):
			// Losers that read before the winner cached the result.
		default:
			t.Errorf("worker %d: unexpected error %v", i, errs[i])
		}
	}
	if succeeded == 0 {
		t.Fatal("at least the claim winner must succeed")
	}
	// One diagnosis call plus exactly one optimization call.
	if fake.calls != 2 {
		t.Fatalf("llm calls = %d, want 2", fake.calls)
	}
}

func TestRedeemUnlockCap(t *testing.T) {
	svc, _, _ := newTestService(&fakeLLM{responses: []string{diagnosisJSON, fullResultJSON}})
	svc.UnlockCap = 2

	ctx := context.Background()
	analysis, err := svc.Analyze(ctx, AnalyzeInput{UserID: "user-1", WishText: "我要暴富"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	// Two failed attempts burn the cap even though nothing was unlocked.
	for i := 0; i < 2; i++ {
		if _, err := svc.Redeem(ctx, analysis.ID, "forged", "user-1"); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}
	if _, err := svc.Redeem(ctx, analysis.ID, analysis.UnlockToken, "user-1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
}
