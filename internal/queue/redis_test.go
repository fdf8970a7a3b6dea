package queue_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/vipplay/articleforge/internal/queue"
)

// setupRedisQueue spins up a Redis container and returns a connected queue.
func setupRedisQueue(t *testing.T) *queue.RedisQueue {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	q, err := queue.NewRedisQueue(ctx, fmt.Sprintf("redis://%s:%s", host, port.Port()), "test:generation")
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })
	return q
}

func TestRedisQueue_EnqueueReceiveAck(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	q := setupRedisQueue(t)
	ctx := context.Background()

	sent := queue.Message{
		JobID:      uuid.New(),
		OwnerID:    uuid.New(),
		Kind:       "single",
		EnqueuedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, q.Enqueue(ctx, sent))

	got, ack, err := q.Receive(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, sent.JobID, got.JobID)
	assert.Equal(t, sent.OwnerID, got.OwnerID)
	assert.Equal(t, sent.Kind, got.Kind)

	require.NoError(t, ack(ctx))

	// Acked message stays gone: nothing to recover, nothing to receive.
	n, err := q.RecoverPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, _, err = q.Receive(ctx, 100*time.Millisecond)
	assert.ErrorIs(t, err, queue.ErrEmpty)
}

func TestRedisQueue_FIFOOrder(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	q := setupRedisQueue(t)
	ctx := context.Background()

	first := uuid.New()
	second := uuid.New()
	require.NoError(t, q.Enqueue(ctx, queue.Message{JobID: first, Kind: "single"}))
	require.NoError(t, q.Enqueue(ctx, queue.Message{JobID: second, Kind: "single"}))

	got, ack, err := q.Receive(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, first, got.JobID)
	require.NoError(t, ack(ctx))

	got, ack, err = q.Receive(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, second, got.JobID)
	require.NoError(t, ack(ctx))
}

func TestRedisQueue_RecoverPending_RequeuesUnacked(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	q := setupRedisQueue(t)
	ctx := context.Background()

	jobID := uuid.New()
	require.NoError(t, q.Enqueue(ctx, queue.Message{JobID: jobID, Kind: "bulk"}))

	// Deliver without acking, simulating a poller crash mid-job.
	_, _, err := q.Receive(ctx, time.Second)
	require.NoError(t, err)

	n, err := q.RecoverPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, ack, err := q.Receive(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, jobID, got.JobID)
	require.NoError(t, ack(ctx))
}

func TestRedisQueue_Receive_TimesOutEmpty(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	q := setupRedisQueue(t)

	_, _, err := q.Receive(context.Background(), 100*time.Millisecond)
	assert.ErrorIs(t, err, queue.ErrEmpty)
}
