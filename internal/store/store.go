package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/vipplay/articleforge/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// ErrStaleStatus is returned when a conditional status update finds the job
// in a different state than expected. Callers racing on the same job (worker,
// sweeper, cancellation) treat this as losing the race, never as a failure to
// retry unconditionally.
var ErrStaleStatus = errors.New("job status changed concurrently")

// ErrBudgetExceeded is returned by CreateJobBudgeted when the owner already
// holds the maximum number of active jobs.
var ErrBudgetExceeded = errors.New("active job budget exceeded")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error
	GetDefaultOwner(ctx context.Context) (*models.Owner, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, ownerID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) error

	CreateJob(ctx context.Context, job *models.GenerationJob) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.GenerationJob, error)
	GetOwnedJob(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) (*models.GenerationJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*models.GenerationJob, int, error)

	// CreateJobBudgeted inserts the job only while the owner's count of
	// non-terminal jobs is below max, atomically with respect to concurrent
	// submissions from the same owner. An empty kind counts across both kinds
	// (shared admission budget); otherwise only jobs of that kind count.
	// Returns ErrBudgetExceeded when the owner is at the limit.
	CreateJobBudgeted(ctx context.Context, job *models.GenerationJob, kind string, max int) error

	// CountQueuedBefore counts non-terminal jobs, for any owner, created
	// strictly before the given instant. Used for the advisory queue position.
	CountQueuedBefore(ctx context.Context, createdAt time.Time) (int, error)

	// UpdateJobStatus transitions a job from an expected prior status to a new
	// one. The write is conditioned on the job still being in fromStatus:
	// a concurrent transition yields ErrStaleStatus and writes nothing.
	UpdateJobStatus(ctx context.Context, id uuid.UUID, fromStatus, toStatus string, opts ...JobUpdateOption) error

	// UpdateJobProgress raises a processing job's progress. Progress is
	// monotonic; a lower value than the current one is a no-op.
	UpdateJobProgress(ctx context.Context, id uuid.UUID, progress int) error

	// ListStuckProcessing returns jobs still in processing whose last update
	// is older than cutoff. Input to the reconciliation sweep.
	ListStuckProcessing(ctx context.Context, cutoff time.Time) ([]*models.GenerationJob, error)

	// SaveResult persists the output artifact for a job. Idempotent per job
	// id: a second save for the same job leaves the first artifact in place.
	SaveResult(ctx context.Context, result *models.JobResult) error
	GetResultByJobID(ctx context.Context, jobID uuid.UUID) (*models.JobResult, error)
}

type JobFilter struct {
	OwnerID uuid.UUID
	Status  string
	Kind    string
	Page    int
	Limit   int
}

// JobUpdateParams collects the optional fields of a status transition.
// Exported so alternative Store implementations can apply options too.
type JobUpdateParams struct {
	ErrorMessage *string
	Progress     *int
}

type JobUpdateOption func(*JobUpdateParams)

// BuildJobUpdate folds options into a params struct.
func BuildJobUpdate(opts ...JobUpdateOption) JobUpdateParams {
	var p JobUpdateParams
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

func WithErrorMessage(msg string) JobUpdateOption {
	return func(p *JobUpdateParams) {
		p.ErrorMessage = &msg
	}
}

func WithProgress(progress int) JobUpdateOption {
	return func(p *JobUpdateParams) {
		p.Progress = &progress
	}
}
