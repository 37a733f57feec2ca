package analyses

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"wish-backend/internal/shared/telemetry"
)

const attemptRetention = 24 * time.Hour

// Janitor prunes stale attempt-log rows on a schedule. The rolling rate
// window only ever looks back one hour, so anything older than a day is
// dead weight.
type Janitor struct {
	Attempts AttemptLog
	cron     *cron.Cron
}

// NewJanitor constructs a Janitor around the given attempt log.
func NewJanitor(attempts AttemptLog) *Janitor {
	return &Janitor{
		Attempts: attempts,
		cron:     cron.New(),
	}
}

// Start schedules the hourly prune and begins running it.
func (j *Janitor) Start() error {
	_, err := j.cron.AddFunc("@hourly", j.prune)
	if err != nil {
		return err
	}
	j.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a running prune to finish.
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
}

func (j *Janitor) prune() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().UTC().Add(-attemptRetention)
	pruned, err := j.Attempts.PruneBefore(ctx, cutoff)
	if err != nil {
		telemetry.Error("attempts.prune", map[string]any{"error": err.Error()})
		return
	}
	if pruned > 0 {
		telemetry.Info("attempts.pruned", map[string]any{"count": pruned})
	}
}
