package orchestrate

import (
	"context"
	"log/slog"
	"time"

	"github.com/vipplay/articleforge/internal/queue"
	"github.com/vipplay/articleforge/pkg/models"
)

// dispatch hands a freshly admitted job to the execution side. The durable
// queue is preferred; when it is absent or the enqueue fails, the job runs
// directly in this process so a queue outage degrades throughput rather than
// availability. The conditional queued->processing claim makes a double
// dispatch harmless.
func (s *Service) dispatch(ctx context.Context, job *models.GenerationJob) {
	if s.queue.IsConfigured() {
		err := s.queue.Enqueue(ctx, queue.Message{
			JobID:      job.ID,
			OwnerID:    job.OwnerID,
			Kind:       job.Kind,
			EnqueuedAt: time.Now().UTC(),
		})
		if err == nil {
			return
		}
		slog.Warn("enqueue failed, falling back to direct dispatch",
			"job_id", job.ID, "error", err)
	}

	go s.RunJob(job.ID)
}
