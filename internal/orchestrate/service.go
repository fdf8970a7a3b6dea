// Package orchestrate owns the generation job lifecycle: admission, durable
// dispatch, worker execution, cancellation, and reconciliation of ambiguous
// outcomes. The job row in the store is the single source of truth; every
// status transition is conditional on the expected prior status, so racing
// writers (worker, sweeper, cancellation) settle deterministically.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vipplay/articleforge/internal/cache"
	"github.com/vipplay/articleforge/internal/config"
	"github.com/vipplay/articleforge/internal/limiter"
	"github.com/vipplay/articleforge/internal/queue"
	"github.com/vipplay/articleforge/internal/store"
	"github.com/vipplay/articleforge/pkg/models"
)

var (
	// ErrInvalidRequest wraps a validation failure on a submission.
	ErrInvalidRequest = errors.New("invalid generation request")

	// ErrBudgetExhausted is returned when an owner already has the maximum
	// number of active jobs.
	ErrBudgetExhausted = errors.New("active job budget exhausted")

	// ErrNotCancellable is returned when cancelling a job that has already
	// reached a terminal state.
	ErrNotCancellable = errors.New("job already finished")
)

// statusCacheTTL bounds how long a cached status mirror can outlive the row.
const statusCacheTTL = 30 * time.Minute

// Service orchestrates generation jobs from submission to terminal state.
type Service struct {
	store     store.Store
	cache     cache.Cache
	queue     queue.Queue
	limiter   *limiter.Limiter
	generator models.Generator
	cfg       config.GenerationConfig
	cancels   *cancelRegistry
}

// NewService creates a Service. The limiter bounds concurrent job execution
// across every worker this process runs.
func NewService(st store.Store, ca cache.Cache, q queue.Queue, lim *limiter.Limiter, gen models.Generator, cfg config.GenerationConfig) *Service {
	return &Service{
		store:     st,
		cache:     ca,
		queue:     q,
		limiter:   lim,
		generator: gen,
		cfg:       cfg,
		cancels:   newCancelRegistry(),
	}
}

// Submit validates and admits a single-article job, persists it as queued,
// and dispatches it. Returns immediately; callers poll for completion.
func (s *Service) Submit(ctx context.Context, ownerID uuid.UUID, req models.GenerationRequest) (*models.GenerationJob, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	req.Topics = nil

	return s.admit(ctx, ownerID, models.JobKindSingle, req)
}

// SubmitBulk validates and admits a bulk fan-out job covering req.Topics.
// The topic list must already be resolved; expansion from a seed topic
// happens at the API layer.
func (s *Service) SubmitBulk(ctx context.Context, ownerID uuid.UUID, req models.GenerationRequest) (*models.GenerationJob, error) {
	if len(req.Topics) == 0 {
		return nil, fmt.Errorf("%w: bulk job requires at least one topic", ErrInvalidRequest)
	}
	if len(req.Topics) > s.cfg.MaxBulkTopics {
		return nil, fmt.Errorf("%w: bulk job exceeds maximum of %d topics", ErrInvalidRequest, s.cfg.MaxBulkTopics)
	}
	for _, topic := range req.Topics {
		if topic == "" {
			return nil, fmt.Errorf("%w: bulk topics must be non-empty", ErrInvalidRequest)
		}
	}
	if req.Mode == models.ModeSpin && req.SpinSource == "" {
		return nil, fmt.Errorf("%w: spin mode requires spin_source", ErrInvalidRequest)
	}
	if req.Mode == "" {
		req.Mode = models.ModeTopic
	}
	if err := validateShared(req); err != nil {
		return nil, err
	}

	return s.admit(ctx, ownerID, models.JobKindBulk, req)
}

// admit creates the queued row under the owner's budget, computes the
// advisory queue position, and hands the job to the dispatcher. The budget
// check and the insert are one atomic store operation so concurrent
// submissions at the limit cannot both slip through.
func (s *Service) admit(ctx context.Context, ownerID uuid.UUID, kind string, req models.GenerationRequest) (*models.GenerationJob, error) {
	budgetKind := kind
	if s.cfg.BudgetScope == config.BudgetScopeShared {
		budgetKind = ""
	}

	now := time.Now().UTC()
	job := &models.GenerationJob{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Kind:      kind,
		Status:    models.JobStatusQueued,
		Request:   req,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateJobBudgeted(ctx, job, budgetKind, s.cfg.MaxActivePerOwner); err != nil {
		if errors.Is(err, store.ErrBudgetExceeded) {
			return nil, fmt.Errorf("%w: owner at limit of %d active jobs", ErrBudgetExhausted, s.cfg.MaxActivePerOwner)
		}
		return nil, fmt.Errorf("creating job: %w", err)
	}

	// Advisory only: the count can drift by the time the caller reads it.
	if pos, err := s.store.CountQueuedBefore(ctx, job.CreatedAt); err == nil {
		job.QueuePosition = pos
	}

	_ = s.cache.SetJobStatus(ctx, job.ID, models.JobStatusQueued, statusCacheTTL)

	s.dispatch(ctx, job)
	return job, nil
}

// Get returns an owner's job, with its result attached once one exists.
// Queued jobs get their advisory queue position recomputed.
func (s *Service) Get(ctx context.Context, ownerID, jobID uuid.UUID) (*models.GenerationJob, *models.JobResult, error) {
	job, err := s.store.GetOwnedJob(ctx, jobID, ownerID)
	if err != nil {
		return nil, nil, err
	}

	if job.Status == models.JobStatusQueued {
		if pos, err := s.store.CountQueuedBefore(ctx, job.CreatedAt); err == nil {
			job.QueuePosition = pos
		}
	}

	result, err := s.store.GetResultByJobID(ctx, jobID)
	if errors.Is(err, store.ErrNotFound) {
		return job, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("loading result: %w", err)
	}
	return job, result, nil
}

// Status returns just the job's status string, served from the cache mirror
// when possible. Cheap enough for tight polling loops.
func (s *Service) Status(ctx context.Context, ownerID, jobID uuid.UUID) (string, error) {
	if status, found, err := s.cache.GetJobStatus(ctx, jobID); err == nil && found {
		// The cache is not owner-scoped; confirm ownership on a hit only
		// when the caller could not have created the job.
		if _, err := s.store.GetOwnedJob(ctx, jobID, ownerID); err != nil {
			return "", err
		}
		return status, nil
	}

	job, err := s.store.GetOwnedJob(ctx, jobID, ownerID)
	if err != nil {
		return "", err
	}
	return job.Status, nil
}

// List returns a page of the owner's jobs plus the total match count.
func (s *Service) List(ctx context.Context, filter store.JobFilter) ([]*models.GenerationJob, int, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	return s.store.ListJobs(ctx, filter)
}

// Cancel stops a job that has not yet finished. Queued jobs flip straight to
// cancelled; processing jobs get their in-flight work interrupted. Output
// that was already persisted stays available even though the job ends
// cancelled.
func (s *Service) Cancel(ctx context.Context, ownerID, jobID uuid.UUID) (*models.GenerationJob, error) {
	job, err := s.store.GetOwnedJob(ctx, jobID, ownerID)
	if err != nil {
		return nil, err
	}
	if models.IsTerminalStatus(job.Status) {
		return nil, fmt.Errorf("%w: status is %s", ErrNotCancellable, job.Status)
	}

	// Two attempts cover the queued->processing race: if the worker claims
	// the job between our read and our write, the second pass cancels it as
	// processing.
	for attempt := 0; attempt < 2; attempt++ {
		err = s.store.UpdateJobStatus(ctx, jobID, job.Status, models.JobStatusCancelled,
			store.WithErrorMessage("cancelled by owner"))
		if err == nil {
			if job.Status == models.JobStatusProcessing {
				s.cancels.cancel(jobID)
			}
			_ = s.cache.SetJobStatus(ctx, jobID, models.JobStatusCancelled, statusCacheTTL)
			return s.store.GetOwnedJob(ctx, jobID, ownerID)
		}
		if !errors.Is(err, store.ErrStaleStatus) {
			return nil, fmt.Errorf("cancelling job: %w", err)
		}
		job, err = s.store.GetOwnedJob(ctx, jobID, ownerID)
		if err != nil {
			return nil, err
		}
		if models.IsTerminalStatus(job.Status) {
			return nil, fmt.Errorf("%w: status is %s", ErrNotCancellable, job.Status)
		}
	}
	return nil, fmt.Errorf("cancelling job: %w", store.ErrStaleStatus)
}

// validateRequest checks a single-article submission.
func validateRequest(req models.GenerationRequest) error {
	switch req.Mode {
	case models.ModeTopic:
		if req.Topic == "" {
			return fmt.Errorf("%w: topic mode requires a topic", ErrInvalidRequest)
		}
	case models.ModeKeywords:
		if len(req.Keywords) == 0 {
			return fmt.Errorf("%w: keywords mode requires at least one keyword", ErrInvalidRequest)
		}
	case models.ModeTrends:
		if req.Topic == "" && (req.Trend == nil || req.Trend.Topic == "") {
			return fmt.Errorf("%w: trends mode requires a topic or trend", ErrInvalidRequest)
		}
	case models.ModeSpin:
		if req.SpinSource == "" {
			return fmt.Errorf("%w: spin mode requires spin_source", ErrInvalidRequest)
		}
	case "":
		return fmt.Errorf("%w: mode is required", ErrInvalidRequest)
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidRequest, req.Mode)
	}
	return validateShared(req)
}

// validateShared checks parameters common to both job kinds.
func validateShared(req models.GenerationRequest) error {
	if req.WordCount != 0 && (req.WordCount < 100 || req.WordCount > 5000) {
		return fmt.Errorf("%w: word_count must be between 100 and 5000", ErrInvalidRequest)
	}
	return nil
}
