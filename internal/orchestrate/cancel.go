package orchestrate

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// cancelRegistry maps in-flight jobs to their cancel functions so Cancel can
// interrupt a processing job's backend call. Only jobs running in this
// process appear here; a job processing on another replica is cancelled
// through its conditional status write instead, and the other replica's
// terminal write loses the race.
type cancelRegistry struct {
	mu      sync.Mutex
	cancels map[uuid.UUID]context.CancelFunc
}

func newCancelRegistry() *cancelRegistry {
	return &cancelRegistry{cancels: make(map[uuid.UUID]context.CancelFunc)}
}

func (r *cancelRegistry) register(jobID uuid.UUID, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancels[jobID] = cancel
}

func (r *cancelRegistry) unregister(jobID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cancels, jobID)
}

func (r *cancelRegistry) cancel(jobID uuid.UUID) {
	r.mu.Lock()
	cancel := r.cancels[jobID]
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
