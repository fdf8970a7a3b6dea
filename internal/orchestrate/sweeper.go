package orchestrate

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/vipplay/articleforge/internal/store"
	"github.com/vipplay/articleforge/pkg/models"
)

// Sweeper reconciles jobs stranded in processing, typically after a worker
// crash or an unresolvable transport failure. A stuck job whose artifact
// exists is completed; one without output is failed. Progress updates bump
// updated_at, so a bulk job actively producing units is never swept.
type Sweeper struct {
	svc      *Service
	interval time.Duration
	margin   time.Duration
}

// NewSweeper creates a Sweeper. The margin is slack past a job's own deadline
// before it is considered stuck, so a legitimately long generation is never
// swept mid-flight.
func NewSweeper(svc *Service, interval, margin time.Duration) *Sweeper {
	return &Sweeper{svc: svc, interval: interval, margin: margin}
}

// Start runs the sweep loop until ctx is cancelled.
func (w *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *Sweeper) sweep(ctx context.Context) {
	now := time.Now().UTC()
	stuck, err := w.svc.store.ListStuckProcessing(ctx, now.Add(-w.margin))
	if err != nil {
		slog.Error("listing stuck jobs", "error", err)
		return
	}

	for _, job := range stuck {
		// The listing cutoff is a coarse prefilter on updated_at. A job is
		// stuck only once its own execution deadline plus the margin has
		// passed, so a long bulk run between progress bumps stays untouched.
		if now.Before(w.deadlineFor(job).Add(w.margin)) {
			continue
		}
		w.reconcile(ctx, job)
	}
}

// deadlineFor returns the instant by which the job's backend work plus the
// settle delay should have resolved, mirroring the budget the worker runs
// under. Anchored at the claim time; a processing job somehow missing
// started_at falls back to its last update.
func (w *Sweeper) deadlineFor(job *models.GenerationJob) time.Time {
	anchor := job.UpdatedAt
	if job.StartedAt != nil {
		anchor = *job.StartedAt
	}
	allowance := time.Duration(job.UnitCount()) * w.svc.cfg.UnitDeadline
	if job.Kind == models.JobKindBulk && allowance > w.svc.cfg.BulkDeadlineCap {
		allowance = w.svc.cfg.BulkDeadlineCap
	}
	return anchor.Add(allowance + w.svc.cfg.SettleDelay)
}

// reconcile settles one stuck job by the same artifact-existence rule the
// worker uses after an ambiguous call.
func (w *Sweeper) reconcile(ctx context.Context, job *models.GenerationJob) {
	_, err := w.svc.store.GetResultByJobID(ctx, job.ID)
	switch {
	case err == nil:
		slog.Warn("sweeping stuck job with artifact to completed", "job_id", job.ID)
		w.svc.finish(ctx, job.ID, models.JobStatusCompleted)
	case errors.Is(err, store.ErrNotFound):
		slog.Warn("sweeping stuck job without artifact to failed", "job_id", job.ID)
		w.svc.finish(ctx, job.ID, models.JobStatusFailed,
			store.WithErrorMessage("processing timed out"))
	default:
		slog.Error("checking artifact for stuck job", "job_id", job.ID, "error", err)
	}
}
