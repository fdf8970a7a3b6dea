package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vipplay/articleforge/internal/store"
	"github.com/vipplay/articleforge/pkg/models"
)

// RunJob claims and executes one job to a terminal state. Safe to call more
// than once for the same job: the queued->processing claim is conditional,
// so every dispatch after the first is a no-op. Called directly by the
// dispatcher's fallback path and by the queue pollers.
func (s *Service) RunJob(jobID uuid.UUID) {
	ctx := context.Background()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in job worker", "job_id", jobID, "error", r)
			s.finish(ctx, jobID, models.JobStatusFailed,
				store.WithErrorMessage(fmt.Sprintf("panic: %v", r)))
		}
	}()

	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		slog.Error("loading job for execution", "job_id", jobID, "error", err)
		return
	}

	// The permit comes before the claim: the limiter bounds how many jobs
	// can be observed in processing, not just how many backend calls are in
	// flight. A job waiting for a permit still reads as queued.
	if err := s.limiter.Acquire(ctx); err != nil {
		slog.Error("acquiring generation permit", "job_id", jobID, "error", err)
		return
	}
	defer s.limiter.Release()

	// Claim the job. Losing here means another dispatch won, or the owner
	// cancelled while the job was still queued.
	err = s.store.UpdateJobStatus(ctx, jobID, models.JobStatusQueued, models.JobStatusProcessing)
	if errors.Is(err, store.ErrStaleStatus) {
		return
	}
	if err != nil {
		slog.Error("claiming job", "job_id", jobID, "error", err)
		return
	}
	_ = s.cache.SetJobStatus(ctx, jobID, models.JobStatusProcessing, statusCacheTTL)

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.cancels.register(jobID, cancel)
	defer s.cancels.unregister(jobID)

	slog.Info("job started", "job_id", jobID, "kind", job.Kind, "mode", job.Request.Mode)

	if job.Kind == models.JobKindBulk {
		s.runBulk(jobCtx, job)
	} else {
		s.runSingle(jobCtx, job)
	}
}

// runSingle executes a single-article job. A transport-level error from the
// backend proves nothing about whether output landed, so the job settles
// through reconciliation instead of being failed outright.
func (s *Service) runSingle(ctx context.Context, job *models.GenerationJob) {
	resp, err := s.generateUnit(ctx, job.Request, s.cfg.UnitDeadline)

	switch {
	case err == nil && resp.Success:
		meta := resp.Metadata
		if meta == nil {
			meta = map[string]any{}
		}
		meta["word_count"] = len(strings.Fields(resp.Content))
		meta["mode"] = job.Request.Mode

		result := &models.JobResult{
			JobID:          job.ID,
			Content:        resp.Content,
			CompletedCount: 1,
			Total:          1,
			Provider:       s.generator.Name(),
			Metadata:       meta,
			CreatedAt:      time.Now().UTC(),
		}
		if err := s.store.SaveResult(ctx, result); err != nil {
			slog.Error("saving result", "job_id", job.ID, "error", err)
			s.finish(ctx, job.ID, models.JobStatusFailed,
				store.WithErrorMessage(fmt.Sprintf("storing result: %v", err)))
			return
		}
		// The artifact is durable before the status flips. If the owner
		// cancelled mid-flight this write loses and the job stays cancelled
		// with its output preserved.
		s.finish(ctx, job.ID, models.JobStatusCompleted)

	case err == nil:
		// Backend answered cleanly and reported failure. Unambiguous.
		s.finish(ctx, job.ID, models.JobStatusFailed, store.WithErrorMessage(resp.Message))

	case ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded):
		// The owner cancelled; the status row already says cancelled.
		slog.Info("job interrupted by cancellation", "job_id", job.ID)

	default:
		s.settleAmbiguous(job.ID, err)
	}
}

// settleAmbiguous resolves a job whose backend call failed at the transport
// level. Output may have been persisted despite the error, so after a short
// settle delay the result table is checked before declaring failure.
func (s *Service) settleAmbiguous(jobID uuid.UUID, callErr error) {
	ctx := context.Background()
	slog.Warn("generation outcome ambiguous, reconciling",
		"job_id", jobID, "settle_delay", s.cfg.SettleDelay, "error", callErr)

	time.Sleep(s.cfg.SettleDelay)

	_, err := s.store.GetResultByJobID(ctx, jobID)
	switch {
	case err == nil:
		s.finish(ctx, jobID, models.JobStatusCompleted)
	case errors.Is(err, store.ErrNotFound):
		s.finish(ctx, jobID, models.JobStatusFailed,
			store.WithErrorMessage(fmt.Sprintf("generation failed: %v", callErr)))
	default:
		// Cannot tell either way. Leave the job processing for the sweeper
		// rather than risk failing a job that produced output.
		slog.Error("reconciliation check failed, leaving job to sweeper",
			"job_id", jobID, "error", err)
	}
}

// runBulk executes a bulk fan-out job: sequential units, each holding a
// limiter permit only for its own backend call. Partial output survives
// cancellation; the artifact is written with whatever units finished.
func (s *Service) runBulk(ctx context.Context, job *models.GenerationJob) {
	topics := job.Request.Topics
	total := len(topics)

	deadline := time.Duration(total) * s.cfg.UnitDeadline
	if deadline > s.cfg.BulkDeadlineCap {
		deadline = s.cfg.BulkDeadlineCap
	}
	bulkCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	units := make([]models.UnitOutcome, 0, total)
	cancelled := false

	for i, topic := range topics {
		if bulkCtx.Err() != nil {
			cancelled = !errors.Is(bulkCtx.Err(), context.DeadlineExceeded)
			break
		}

		resp, err := s.generateUnit(bulkCtx, job.Request.UnitRequest(topic), s.cfg.UnitDeadline)
		outcome := models.UnitOutcome{Topic: topic}
		switch {
		case err == nil && resp.Success:
			outcome.Success = true
			outcome.Content = resp.Content
			outcome.WordCount = len(strings.Fields(resp.Content))
		case err == nil:
			outcome.Error = resp.Message
		default:
			if bulkCtx.Err() != nil && !errors.Is(bulkCtx.Err(), context.DeadlineExceeded) {
				cancelled = true
			}
			outcome.Error = err.Error()
		}
		units = append(units, outcome)
		if cancelled {
			break
		}

		_ = s.store.UpdateJobProgress(context.Background(), job.ID, (i+1)*100/total)
	}

	completed := 0
	for _, u := range units {
		if u.Success {
			completed++
		}
	}

	result := &models.JobResult{
		JobID:          job.ID,
		Units:          units,
		CompletedCount: completed,
		FailedCount:    len(units) - completed,
		Total:          total,
		Provider:       s.generator.Name(),
		CreatedAt:      time.Now().UTC(),
	}
	// Persist whatever was produced, even for a cancelled or fully failed
	// run. Uses a fresh context so cancellation cannot lose finished units.
	if err := s.store.SaveResult(context.Background(), result); err != nil {
		slog.Error("saving bulk result", "job_id", job.ID, "error", err)
	}

	if cancelled {
		slog.Info("bulk job interrupted by cancellation",
			"job_id", job.ID, "completed_units", completed, "total", total)
		return
	}

	// One successful unit is enough to call the job completed; per-unit
	// failures are visible in the artifact.
	if completed > 0 {
		s.finish(context.Background(), job.ID, models.JobStatusCompleted)
	} else {
		s.finish(context.Background(), job.ID, models.JobStatusFailed,
			store.WithErrorMessage(fmt.Sprintf("all %d units failed", total)))
	}
}

// generateUnit performs one backend call under a unit deadline. The caller
// holds the job's limiter permit for the whole run, so units need no
// acquisition of their own.
func (s *Service) generateUnit(ctx context.Context, req models.GenerationRequest, deadline time.Duration) (models.GenerationResponse, error) {
	unitCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	return s.generator.Generate(unitCtx, req)
}

// finish applies a terminal transition conditioned on the job still being in
// processing. Losing the race (cancellation, sweeper) is normal and leaves
// the winner's status in place.
func (s *Service) finish(ctx context.Context, jobID uuid.UUID, status string, opts ...store.JobUpdateOption) {
	err := s.store.UpdateJobStatus(ctx, jobID, models.JobStatusProcessing, status, opts...)
	if errors.Is(err, store.ErrStaleStatus) {
		slog.Info("terminal transition lost race", "job_id", jobID, "attempted", status)
		return
	}
	if err != nil {
		slog.Error("writing terminal status", "job_id", jobID, "status", status, "error", err)
		return
	}
	_ = s.cache.SetJobStatus(ctx, jobID, status, statusCacheTTL)
	slog.Info("job finished", "job_id", jobID, "status", status)
}
