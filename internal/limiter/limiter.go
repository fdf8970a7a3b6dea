// Package limiter bounds the number of article generation jobs running at
// once. A job holds one permit from before it is marked processing until it
// reaches a terminal status; bulk jobs run their units sequentially under
// that single permit.
package limiter

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Limiter is a fixed-capacity admission gate over generation work.
type Limiter struct {
	sem      *semaphore.Weighted
	capacity int64
	inFlight atomic.Int64
}

// New creates a limiter with the given capacity. Capacity below 1 is raised
// to 1 so the system can always make progress.
func New(capacity int) *Limiter {
	if capacity < 1 {
		capacity = 1
	}
	return &Limiter{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: int64(capacity),
	}
}

// Acquire blocks until a permit is free or ctx is done. On success the caller
// must Release exactly once.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	l.inFlight.Add(1)
	return nil
}

// TryAcquire takes a permit without blocking. Returns false when the limiter
// is at capacity.
func (l *Limiter) TryAcquire() bool {
	if !l.sem.TryAcquire(1) {
		return false
	}
	l.inFlight.Add(1)
	return true
}

// Release returns a permit taken by Acquire or TryAcquire.
func (l *Limiter) Release() {
	l.inFlight.Add(-1)
	l.sem.Release(1)
}

// InFlight reports how many permits are currently held.
func (l *Limiter) InFlight() int {
	return int(l.inFlight.Load())
}

// Capacity reports the configured permit count.
func (l *Limiter) Capacity() int {
	return int(l.capacity)
}
