package llm

import "time"

const (
	// safetyMargin is held back from the total deadline so the caller can
	// still assemble a response after the last attempt resolves.
	safetyMargin = 1500 * time.Millisecond
	// minAttemptWindow is the smallest budget worth issuing a call for.
	minAttemptWindow = 3 * time.Second

	primaryBudget   = 40 * time.Second
	secondaryBudget = 20 * time.Second
)

// Attempt is one planned provider call with its timeout budget.
type Attempt struct {
	Provider Provider
	Timeout  time.Duration
}

// Plan allocates the total deadline across the ordered providers. Earlier
// providers receive fixed preferred budgets, the last provider takes the
// remainder. A provider whose slot falls below minAttemptWindow is excluded
// rather than given a doomed budget.
func Plan(providers []Provider, total time.Duration) ([]Attempt, error) {
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}
	if total <= 0 {
		return nil, ErrDeadlineTooSmall
	}

	remaining := total - safetyMargin
	plan := make([]Attempt, 0, len(providers))
	for i, p := range providers {
		var budget time.Duration
		switch {
		case p.Timeout > 0:
			budget = p.Timeout
		case len(providers) == 1:
			budget = remaining
		case i == len(providers)-1:
			budget = remaining
		case i == 0:
			budget = primaryBudget
		default:
			budget = secondaryBudget
		}
		if budget > remaining {
			budget = remaining
		}
		if budget < minAttemptWindow {
			continue
		}
		plan = append(plan, Attempt{Provider: p, Timeout: budget})
		remaining -= budget
	}
	if len(plan) == 0 {
		return nil, ErrDeadlineTooSmall
	}
	return plan, nil
}
