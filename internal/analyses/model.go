package analyses

import "time"

// Unlock states. A record is created issued and flips to unlocked exactly
// once; there is no way back.
const (
	UnlockStateIssued   = "issued"
	UnlockStateUnlocked = "unlocked"
)

// Diagnosis is the free half of an analysis, returned immediately.
type Diagnosis struct {
	Gaps           []string `json:"gaps"`
	Case           string   `json:"case"`
	Tip            string   `json:"tip"`
	SuggestedDeity string   `json:"suggestedDeity"`
}

// FullResult is the gated half, computed lazily at first unlock.
type FullResult struct {
	OptimizedText string            `json:"optimizedText"`
	Suggestion    map[string]string `json:"suggestion"`
	Steps         []string          `json:"steps"`
	Warnings      []string          `json:"warnings"`
}

// Analysis represents one diagnostic + optimization cycle for a wish.
type Analysis struct {
	ID       string `json:"id"`
	UserID   string `json:"userId"`
	WishID   string `json:"wishId,omitempty"`
	WishText string `json:"wishText"`
	Deity    string `json:"deity,omitempty"`

	Diagnosis  Diagnosis   `json:"diagnosis"`
	FullResult *FullResult `json:"fullResult,omitempty"`
	Provider   string      `json:"provider,omitempty"`

	UnlockToken     string     `json:"-"`
	UnlockExpiresAt time.Time  `json:"-"`
	UnlockState     string     `json:"-"`
	UnlockedAt      *time.Time `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Unlocked reports whether the gated result has been released.
func (a Analysis) Unlocked() bool {
	return a.UnlockState == UnlockStateUnlocked
}

// Attempt kinds recorded in the attempt log.
const (
	AttemptKindAnalyze = "analyze"
	AttemptKindUnlock  = "unlock"
)

// Attempt is one rate-limited action by a user, used for rolling-window caps.
type Attempt struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	AnalysisID string    `json:"analysisId,omitempty"`
	Kind       string    `json:"kind"`
	CreatedAt  time.Time `json:"createdAt"`
}
