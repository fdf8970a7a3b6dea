package orchestrate

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vipplay/articleforge/internal/store"
	"github.com/vipplay/articleforge/pkg/models"
)

// memStore is an in-memory Store with the same conditional-update semantics
// as the Postgres implementation. The orchestration tests lean on those
// semantics, so they are reproduced faithfully here.
type memStore struct {
	mu      sync.Mutex
	jobs    map[uuid.UUID]*models.GenerationJob
	results map[uuid.UUID]*models.JobResult

	saveResultErr error
	getResultErr  error
}

func newMemStore() *memStore {
	return &memStore{
		jobs:    make(map[uuid.UUID]*models.GenerationJob),
		results: make(map[uuid.UUID]*models.JobResult),
	}
}

func (s *memStore) Ping(context.Context) error { return nil }

func (s *memStore) GetDefaultOwner(context.Context) (*models.Owner, error) {
	return &models.Owner{ID: uuid.Nil, Name: "default"}, nil
}

func (s *memStore) GetAPIKeyByPrefix(context.Context, string) ([]*models.APIKey, error) {
	return nil, nil
}
func (s *memStore) UpdateAPIKeyLastUsed(context.Context, uuid.UUID) error { return nil }
func (s *memStore) CreateAPIKey(context.Context, *models.APIKey) error    { return nil }
func (s *memStore) ListAPIKeys(context.Context, uuid.UUID) ([]*models.APIKey, error) {
	return nil, nil
}
func (s *memStore) RevokeAPIKey(context.Context, uuid.UUID, uuid.UUID) error { return nil }

func (s *memStore) CreateJob(_ context.Context, job *models.GenerationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; ok {
		return store.ErrDuplicateKey
	}
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *memStore) GetJob(_ context.Context, id uuid.UUID) (*models.GenerationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (s *memStore) GetOwnedJob(_ context.Context, id, ownerID uuid.UUID) (*models.GenerationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (s *memStore) ListJobs(_ context.Context, filter store.JobFilter) ([]*models.GenerationJob, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []*models.GenerationJob
	for _, job := range s.jobs {
		if job.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		if filter.Kind != "" && job.Kind != filter.Kind {
			continue
		}
		cp := *job
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	total := len(matched)
	start := (filter.Page - 1) * filter.Limit
	if start > total {
		start = total
	}
	end := start + filter.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// CreateJobBudgeted counts and inserts under one lock acquisition, matching
// the atomicity the real store provides with a per-owner advisory lock.
func (s *memStore) CreateJobBudgeted(_ context.Context, job *models.GenerationJob, kind string, max int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	active := 0
	for _, j := range s.jobs {
		if j.OwnerID != job.OwnerID || models.IsTerminalStatus(j.Status) {
			continue
		}
		if kind != "" && j.Kind != kind {
			continue
		}
		active++
	}
	if active >= max {
		return store.ErrBudgetExceeded
	}
	if _, ok := s.jobs[job.ID]; ok {
		return store.ErrDuplicateKey
	}
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *memStore) CountQueuedBefore(_ context.Context, createdAt time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, job := range s.jobs {
		if !models.IsTerminalStatus(job.Status) && job.CreatedAt.Before(createdAt) {
			count++
		}
	}
	return count, nil
}

func (s *memStore) UpdateJobStatus(_ context.Context, id uuid.UUID, fromStatus, toStatus string, opts ...store.JobUpdateOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	if job.Status != fromStatus {
		return store.ErrStaleStatus
	}

	now := time.Now().UTC()
	job.Status = toStatus
	job.UpdatedAt = now
	if toStatus == models.JobStatusProcessing {
		job.StartedAt = &now
	}
	if models.IsTerminalStatus(toStatus) {
		job.CompletedAt = &now
	}
	if toStatus == models.JobStatusCompleted {
		job.Progress = 100
	}

	params := store.BuildJobUpdate(opts...)
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.Progress != nil && *params.Progress > job.Progress {
		job.Progress = *params.Progress
	}
	return nil
}

func (s *memStore) UpdateJobProgress(_ context.Context, id uuid.UUID, progress int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	if job.Status != models.JobStatusProcessing {
		return nil
	}
	if progress > job.Progress {
		job.Progress = progress
	}
	job.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memStore) ListStuckProcessing(_ context.Context, cutoff time.Time) ([]*models.GenerationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stuck []*models.GenerationJob
	for _, job := range s.jobs {
		if job.Status == models.JobStatusProcessing && job.UpdatedAt.Before(cutoff) {
			cp := *job
			stuck = append(stuck, &cp)
		}
	}
	return stuck, nil
}

func (s *memStore) SaveResult(_ context.Context, result *models.JobResult) error {
	if s.saveResultErr != nil {
		return s.saveResultErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.results[result.JobID]; ok {
		return nil
	}
	cp := *result
	s.results[result.JobID] = &cp
	return nil
}

func (s *memStore) GetResultByJobID(_ context.Context, jobID uuid.UUID) (*models.JobResult, error) {
	if s.getResultErr != nil {
		return nil, s.getResultErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	result, ok := s.results[jobID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *result
	return &cp, nil
}

var _ store.Store = (*memStore)(nil)

// memCache is a map-backed cache.Cache.
type memCache struct {
	mu     sync.Mutex
	values map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{values: make(map[string][]byte)}
}

func (c *memCache) Ping(context.Context) error { return nil }

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	val, ok := c.values[key]
	return val, ok, nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, key)
	return nil
}

func (c *memCache) SetJobStatus(ctx context.Context, jobID uuid.UUID, status string, ttl time.Duration) error {
	return c.Set(ctx, "job:"+jobID.String(), []byte(status), ttl)
}

func (c *memCache) GetJobStatus(ctx context.Context, jobID uuid.UUID) (string, bool, error) {
	val, ok, err := c.Get(ctx, "job:"+jobID.String())
	return string(val), ok, err
}

func (c *memCache) IncrWithExpiry(context.Context, string, time.Duration) (int64, error) {
	return 0, nil
}
