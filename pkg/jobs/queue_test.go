package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outcomeRecorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *outcomeRecorder) ObserveJob(_, _, outcome string) {
	r.mu.Lock()
	r.outcomes = append(r.outcomes, outcome)
	r.mu.Unlock()
}

func (r *outcomeRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.outcomes...)
}

func TestQueueRunsRegisteredHandler(t *testing.T) {
	recorder := &outcomeRecorder{}
	q := NewQueue("assets", QueueConfig{Workers: 2, Observer: recorder})
	var handled atomic.Int32
	q.Register("delete", func(ctx context.Context, job Job) error {
		handled.Add(1)
		return nil
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{Type: "delete", Payload: "key"}))
	require.NoError(t, q.Enqueue(Job{Type: "delete", Payload: "key-2"}))

	require.Eventually(t, func() bool { return handled.Load() == 2 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return len(recorder.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"done", "done"}, recorder.snapshot())
}

func TestQueueRetriesThenDrops(t *testing.T) {
	recorder := &outcomeRecorder{}
	q := NewQueue("assets", QueueConfig{MaxRetries: 2, RetryDelay: 5 * time.Millisecond, Observer: recorder})
	var attempts atomic.Int32
	q.Register("delete", func(ctx context.Context, job Job) error {
		attempts.Add(1)
		return errors.New("bucket unavailable")
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{Type: "delete"}))

	require.Eventually(t, func() bool { return attempts.Load() == 3 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return len(recorder.snapshot()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"retry", "retry", "dropped"}, recorder.snapshot())
}

func TestQueueRejectsWorkWhenStoppedOrUnknown(t *testing.T) {
	q := NewQueue("assets", QueueConfig{})
	q.Register("delete", func(context.Context, Job) error { return nil })

	assert.ErrorIs(t, q.Enqueue(Job{Type: "delete"}), ErrNotRunning)

	q.Start(context.Background())
	assert.ErrorIs(t, q.Enqueue(Job{Type: "resize"}), ErrUnknownType)

	q.Stop()
	q.Stop()
	assert.ErrorIs(t, q.Enqueue(Job{Type: "delete"}), ErrNotRunning)
}
