package limiter_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vipplay/articleforge/internal/limiter"
)

func TestAcquireRelease(t *testing.T) {
	l := limiter.New(2)

	require.NoError(t, l.Acquire(context.Background()))
	require.NoError(t, l.Acquire(context.Background()))
	assert.Equal(t, 2, l.InFlight())

	assert.False(t, l.TryAcquire())

	l.Release()
	assert.Equal(t, 1, l.InFlight())
	assert.True(t, l.TryAcquire())
}

func TestCapacityFloor(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		want     int
	}{
		{name: "zero raised to one", capacity: 0, want: 1},
		{name: "negative raised to one", capacity: -3, want: 1},
		{name: "positive kept", capacity: 5, want: 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, limiter.New(tt.capacity).Capacity())
		})
	}
}

func TestAcquireBlocksUntilRelease(t *testing.T) {
	l := limiter.New(1)
	require.NoError(t, l.Acquire(context.Background()))

	acquired := make(chan struct{})
	go func() {
		if err := l.Acquire(context.Background()); err == nil {
			close(acquired)
		}
	}()

	select {
	case <-acquired:
		t.Fatal("acquire succeeded while limiter was full")
	case <-time.After(50 * time.Millisecond):
	}

	l.Release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("acquire did not proceed after release")
	}
}

func TestAcquireHonorsContext(t *testing.T) {
	l := limiter.New(1)
	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, l.InFlight())
}

func TestConcurrencyBound(t *testing.T) {
	const capacity = 2
	const workers = 10
	l := limiter.New(capacity)

	var current, peak atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, l.Acquire(context.Background()))
			defer l.Release()

			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			current.Add(-1)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int64(capacity))
	assert.Equal(t, 0, l.InFlight())
}
