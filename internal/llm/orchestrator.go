package llm

import (
	"context"
	"errors"
	"time"

	"wish-backend/internal/shared/metrics"
	"wish-backend/internal/shared/telemetry"
)

const defaultTotalDeadline = 90 * time.Second

// Orchestrator walks the configured providers in order, giving each one
// bounded attempt, and returns the first successful completion. Attempts are
// strictly sequential: racing providers would double completion spend for a
// latency win the product does not need.
type Orchestrator struct {
	Registry      *Registry
	Caller        Caller
	TotalDeadline time.Duration

	now func() time.Time
}

// NewOrchestrator constructs an Orchestrator over the given registry.
func NewOrchestrator(registry *Registry, caller Caller, totalDeadline time.Duration) *Orchestrator {
	if totalDeadline <= 0 {
		totalDeadline = defaultTotalDeadline
	}
	if caller == nil {
		caller = NewHTTPCaller()
	}
	return &Orchestrator{
		Registry:      registry,
		Caller:        caller,
		TotalDeadline: totalDeadline,
		now:           time.Now,
	}
}

// Complete runs the fallback sequence for one completion request.
func (o *Orchestrator) Complete(ctx context.Context, req Request) (Completion, error) {
	if o.Registry == nil {
		return Completion{}, ErrNoProviders
	}
	providers := o.Registry.Ordered()
	plan, err := Plan(providers, o.TotalDeadline)
	if err != nil {
		return Completion{}, err
	}

	start := o.now()
	attempted := make([]string, 0, len(plan))
	var lastErr error

	for i, attempt := range plan {
		remaining := o.TotalDeadline - safetyMargin - o.now().Sub(start)
		if remaining < minAttemptWindow {
			// Stop cleanly instead of charging a doomed timeout to this
			// provider's account.
			telemetry.Info("llm.budget_exhausted", map[string]any{
				"attempted":    attempted,
				"skipped":      attempt.Provider.Name,
				"remaining_ms": remaining.Milliseconds(),
			})
			return Completion{}, &FallbackError{Attempted: attempted, Last: ErrBudgetExhausted}
		}
		timeout := attempt.Timeout
		if timeout > remaining {
			timeout = remaining
		}

		attemptStart := o.now()
		content, err := o.Caller.Call(ctx, attempt.Provider, req, timeout)
		attempted = append(attempted, attempt.Provider.Name)
		if err == nil {
			telemetry.Info("llm.attempt", map[string]any{
				"provider":    attempt.Provider.Name,
				"attempt":     i + 1,
				"duration_ms": float64(o.now().Sub(attemptStart).Microseconds()) / 1000.0,
				"outcome":     "success",
			})
			return Completion{Content: content, Provider: attempt.Provider.Name}, nil
		}

		lastErr = err
		metrics.IncLLMAttemptFailed()
		telemetry.Error("llm.attempt", map[string]any{
			"provider":    attempt.Provider.Name,
			"attempt":     i + 1,
			"duration_ms": float64(o.now().Sub(attemptStart).Microseconds()) / 1000.0,
			"outcome":     failureKind(err),
			"error":       err.Error(),
		})

		// A forced single-provider selection has no fallback. The plan also
		// collapses to one entry when only one provider is configured.
		if len(plan) == 1 {
			return Completion{}, err
		}
	}

	return Completion{}, &FallbackError{Attempted: attempted, Last: lastErr}
}

func failureKind(err error) string {
	var attemptErr *AttemptError
	if errors.As(err, &attemptErr) {
		return attemptErr.Kind
	}
	return "unknown"
}

var _ Client = (*Orchestrator)(nil)
