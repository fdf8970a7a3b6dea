// Package queue provides the durable dispatch channel between job submission
// and the generation workers. When no queue backend is configured the system
// degrades to direct in-process dispatch; the gateway in internal/orchestrate
// consults IsConfigured to decide which path to take.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrEmpty is returned by Receive when no message arrived within the poll
// window. Pollers treat it as a normal idle tick.
var ErrEmpty = errors.New("queue empty")

// Message is the dispatch envelope pushed at submission time. It carries only
// identifiers; the worker reloads the authoritative job row before running.
type Message struct {
	JobID      uuid.UUID `json:"job_id"`
	OwnerID    uuid.UUID `json:"owner_id"`
	Kind       string    `json:"kind"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// AckFunc removes a delivered message from the in-progress ledger. Called
// after the worker has written a terminal outcome for the job; a crash before
// ack leaves the message recoverable.
type AckFunc func(ctx context.Context) error

// Queue is the dispatch transport. Implementations must deliver each message
// to at most one poller at a time.
type Queue interface {
	// IsConfigured reports whether a real backend is attached. False means
	// Enqueue always fails and callers should dispatch directly.
	IsConfigured() bool

	// Enqueue pushes a message for later pickup.
	Enqueue(ctx context.Context, msg Message) error

	// Receive blocks up to the given timeout for the next message. Returns
	// ErrEmpty on an idle window. The returned ack must be called once the
	// message's job has reached a terminal state.
	Receive(ctx context.Context, timeout time.Duration) (*Message, AckFunc, error)

	// RecoverPending requeues messages that were delivered but never acked,
	// typically after a crash. Returns the number of messages recovered.
	RecoverPending(ctx context.Context) (int, error)

	Close() error
}

// Disabled is the null transport used when no queue URL is configured.
type Disabled struct{}

func NewDisabled() *Disabled { return &Disabled{} }

func (*Disabled) IsConfigured() bool { return false }

func (*Disabled) Enqueue(context.Context, Message) error {
	return errors.New("queue not configured")
}

func (*Disabled) Receive(context.Context, time.Duration) (*Message, AckFunc, error) {
	return nil, nil, ErrEmpty
}

func (*Disabled) RecoverPending(context.Context) (int, error) { return 0, nil }

func (*Disabled) Close() error { return nil }
