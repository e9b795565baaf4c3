package async

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestQueueProcessesEveryJob(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	var failed atomic.Int32

	boom := errors.New("boom")
	q := NewQueue(context.Background(), func(_ context.Context, j Job) error {
		if j.Path == "bad.pdf" {
			return boom
		}
		return nil
	}, quietLogger(), WithWorkers(2), WithQueueSize(1), WithDoneHook(func(j Job, err error) {
		mu.Lock()
		seen = append(seen, j.Path)
		mu.Unlock()
		if errors.Is(err, boom) {
			failed.Add(1)
		}
	}))

	for _, p := range []string{"a.pdf", "bad.pdf", "b.pdf", "c.pdf"} {
		require.NoError(t, q.Enqueue(context.Background(), Job{Path: p}))
	}
	require.NoError(t, q.Shutdown(context.Background()))

	assert.ElementsMatch(t, []string{"a.pdf", "bad.pdf", "b.pdf", "c.pdf"}, seen)
	assert.Equal(t, int32(1), failed.Load())
}

func TestEnqueueAfterShutdown(t *testing.T) {
	q := NewQueue(context.Background(), func(context.Context, Job) error { return nil }, quietLogger())
	require.NoError(t, q.Shutdown(context.Background()))
	assert.ErrorIs(t, q.Enqueue(context.Background(), Job{Path: "late.pdf"}), ErrClosed)
	assert.NoError(t, q.Shutdown(context.Background()), "second shutdown is a no-op")
}

func TestJobTimeout(t *testing.T) {
	var got error
	q := NewQueue(context.Background(), func(ctx context.Context, _ Job) error {
		<-ctx.Done()
		return ctx.Err()
	}, quietLogger(), WithJobTimeout(10*time.Millisecond), WithDoneHook(func(_ Job, err error) { got = err }))

	require.NoError(t, q.Enqueue(context.Background(), Job{Path: "slow.pdf"}))
	require.NoError(t, q.Shutdown(context.Background()))
	assert.ErrorIs(t, got, context.DeadlineExceeded)
}

func TestCancelledParentSkipsJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	q := NewQueue(ctx, func(context.Context, Job) error {
		calls.Add(1)
		return nil
	}, quietLogger())
	require.NoError(t, q.Enqueue(context.Background(), Job{Path: "x.pdf"}))
	require.NoError(t, q.Shutdown(context.Background()))
	assert.Zero(t, calls.Load())
}
