package orchestrate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/vipplay/articleforge/internal/queue"
)

// Runner polls the durable queue and feeds jobs to the worker. One poller
// per limiter permit: more would only park goroutines on the limiter, fewer
// would leave paid-for capacity idle.
type Runner struct {
	svc          *Service
	queue        queue.Queue
	pollers      int
	pollInterval time.Duration
	wg           sync.WaitGroup
}

// NewRunner creates a Runner with the given poller count. A non-positive
// count falls back to 1.
func NewRunner(svc *Service, q queue.Queue, pollers int, pollInterval time.Duration) *Runner {
	if pollers < 1 {
		pollers = 1
	}
	return &Runner{
		svc:          svc,
		queue:        q,
		pollers:      pollers,
		pollInterval: pollInterval,
	}
}

// Start recovers orphaned deliveries and launches the pollers. Returns
// immediately; pollers run until ctx is cancelled. A nil queue backend means
// nothing to poll and Start is a no-op.
func (r *Runner) Start(ctx context.Context) {
	if !r.queue.IsConfigured() {
		slog.Info("queue not configured, skipping pollers")
		return
	}

	if n, err := r.queue.RecoverPending(ctx); err != nil {
		slog.Error("recovering pending queue messages", "error", err)
	} else if n > 0 {
		slog.Info("recovered pending queue messages", "count", n)
	}

	for i := 0; i < r.pollers; i++ {
		r.wg.Add(1)
		go r.poll(ctx, i)
	}
	slog.Info("queue pollers started", "count", r.pollers)
}

// Wait blocks until every poller has exited. Call after cancelling the
// context passed to Start.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) poll(ctx context.Context, id int) {
	defer r.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		msg, ack, err := r.queue.Receive(ctx, r.pollInterval)
		if errors.Is(err, queue.ErrEmpty) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("receiving queue message", "poller", id, "error", err)
			time.Sleep(r.pollInterval)
			continue
		}

		// RunJob always leaves the job in a state another pass can resolve,
		// so the message is acked regardless of outcome.
		r.svc.RunJob(msg.JobID)
		if err := ack(context.Background()); err != nil {
			slog.Error("acking queue message", "poller", id, "job_id", msg.JobID, "error", err)
		}
	}
}
