package llm

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoProviders means no provider has a usable credential configured.
	ErrNoProviders = errors.New("no llm provider configured")
	// ErrBudgetExhausted means the remaining deadline cannot support another attempt.
	ErrBudgetExhausted = errors.New("insufficient remaining time for another attempt")
	// ErrDeadlineTooSmall means the total deadline cannot fit even one attempt.
	ErrDeadlineTooSmall = errors.New("total deadline too small for any attempt")
)

// Failure kinds classified from one provider attempt.
const (
	FailureAuth        = "auth"
	FailureRateLimited = "rate_limited"
	FailureTimeout     = "timeout"
	FailureTransport   = "transport"
	FailureBadResponse = "bad_response"
)

// AttemptError wraps the failure of a single provider attempt.
type AttemptError struct {
	Provider string
	Kind     string
	Status   int
	Err      error
}

func (e *AttemptError) Error() string {
	switch e.Kind {
	case FailureAuth:
		return fmt.Sprintf("provider %s: credential invalid", e.Provider)
	case FailureRateLimited:
		return fmt.Sprintf("provider %s: too many requests", e.Provider)
	case FailureTimeout:
		return fmt.Sprintf("provider %s: request timeout", e.Provider)
	default:
		return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
	}
}

func (e *AttemptError) Unwrap() error { return e.Err }

// FallbackError aggregates the failure of an entire fallback sequence.
type FallbackError struct {
	Attempted []string
	Last      error
}

func (e *FallbackError) Error() string {
	return fmt.Sprintf("all providers failed [%s]: %v", strings.Join(e.Attempted, ", "), e.Last)
}

func (e *FallbackError) Unwrap() error { return e.Last }
