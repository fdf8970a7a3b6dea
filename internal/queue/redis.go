package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue is a Redis list backed implementation. Messages wait on the
// pending list and are moved atomically to the processing list on delivery,
// so a poller crash between delivery and ack never loses a message.
type RedisQueue struct {
	client     *redis.Client
	pending    string
	processing string
}

// NewRedisQueue connects to Redis and returns a queue using the given list
// name. The connection is verified before returning.
func NewRedisQueue(ctx context.Context, url, name string) (*RedisQueue, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &RedisQueue{
		client:     client,
		pending:    name,
		processing: name + ":processing",
	}, nil
}

func (q *RedisQueue) IsConfigured() bool { return true }

func (q *RedisQueue) Enqueue(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding queue message: %w", err)
	}
	if err := q.client.LPush(ctx, q.pending, payload).Err(); err != nil {
		return fmt.Errorf("pushing queue message: %w", err)
	}
	return nil
}

func (q *RedisQueue) Receive(ctx context.Context, timeout time.Duration) (*Message, AckFunc, error) {
	raw, err := q.client.BLMove(ctx, q.pending, q.processing, "RIGHT", "LEFT", timeout).Result()
	if err == redis.Nil {
		return nil, nil, ErrEmpty
	}
	if err != nil {
		return nil, nil, fmt.Errorf("receiving queue message: %w", err)
	}

	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		// Drop the malformed entry from the processing list so it does not
		// get recovered and fail again forever.
		q.client.LRem(ctx, q.processing, 1, raw)
		return nil, nil, fmt.Errorf("decoding queue message: %w", err)
	}

	ack := func(ctx context.Context) error {
		return q.client.LRem(ctx, q.processing, 1, raw).Err()
	}
	return &msg, ack, nil
}

// RecoverPending moves every unacked message back to the pending list. Safe
// to call at startup; delivery idempotence is guaranteed by the conditional
// status transition the worker performs, not by the queue.
func (q *RedisQueue) RecoverPending(ctx context.Context) (int, error) {
	recovered := 0
	for {
		_, err := q.client.LMove(ctx, q.processing, q.pending, "RIGHT", "LEFT").Result()
		if err == redis.Nil {
			return recovered, nil
		}
		if err != nil {
			return recovered, fmt.Errorf("recovering queue message: %w", err)
		}
		recovered++
	}
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
