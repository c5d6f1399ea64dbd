package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptdeck/promptdeck-api/internal/domain"
	"github.com/promptdeck/promptdeck-api/internal/notify"
)

// recordingNotifier captures pushed events for assertions.
type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *recordingNotifier) Push(_ context.Context, _ uuid.UUID, event notify.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *recordingNotifier) all() []notify.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Event(nil), n.events...)
}

func newTestPool(t *testing.T, q *Queue, cfg WorkerPoolConfig, notifier notify.Notifier, handlers ...Handler) *WorkerPool {
	t.Helper()

	if cfg.PollInterval == 0 {
		cfg.PollInterval = 5 * time.Millisecond
	}
	pool := NewWorkerPool(q, cfg, notifier, slog.New(slog.NewTextHandler(io.Discard, nil)))
	for _, h := range handlers {
		pool.Register(h)
	}
	require.NoError(t, pool.Start())
	t.Cleanup(pool.Stop)
	return pool
}

func TestWorkerPoolStartRequiresHandler(t *testing.T) {
	t.Parallel()

	q := newTestQueue(t, QueueConfig{})
	pool := NewWorkerPool(q, WorkerPoolConfig{}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorIs(t, pool.Start(), ErrNoHandler)
}

func TestWorkerPoolCompletesJob(t *testing.T) {
	t.Parallel()

	q := newTestQueue(t, QueueConfig{})
	notifier := &recordingNotifier{}

	handler := HandlerFunc{
		JobType: domain.JobTypeEmbedding,
		Fn: func(_ context.Context, _ *domain.Job, report ProgressFunc) (any, error) {
			report(50)
			return map[string]string{"ok": "yes"}, nil
		},
	}
	newTestPool(t, q, WorkerPoolConfig{Concurrency: 1}, notifier, handler)

	j, err := q.AddJob(embeddingPayload(), uuid.New(), EnqueueOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	final, err := q.WaitForTerminal(ctx, j.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.JobStatusCompleted, final.Status)
	assert.Equal(t, 100, final.Progress)
	assert.JSONEq(t, `{"ok":"yes"}`, string(final.Result))

	events := notifier.all()
	require.Len(t, events, 1)
	assert.Equal(t, j.ID, events[0].JobID)
	assert.Equal(t, domain.JobStatusCompleted, events[0].Status)
}

func TestWorkerPoolRetriesTransientFailure(t *testing.T) {
	t.Parallel()

	q := newTestQueue(t, QueueConfig{
		RetryBaseDelay: time.Millisecond,
		RetryMaxDelay:  2 * time.Millisecond,
	})

	var mu sync.Mutex
	attempts := 0
	handler := HandlerFunc{
		JobType: domain.JobTypeEmbedding,
		Fn: func(_ context.Context, _ *domain.Job, _ ProgressFunc) (any, error) {
			mu.Lock()
			defer mu.Unlock()
			attempts++
			if attempts < 3 {
				return nil, errors.New("provider hiccup")
			}
			return "recovered", nil
		},
	}
	newTestPool(t, q, WorkerPoolConfig{Concurrency: 1}, nil, handler)

	j, err := q.AddJob(embeddingPayload(), uuid.New(), EnqueueOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	final, err := q.WaitForTerminal(ctx, j.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.JobStatusCompleted, final.Status)
	assert.Equal(t, 2, final.Attempts, "two failed attempts before the success")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, attempts)
}

func TestWorkerPoolExhaustsAttemptBudget(t *testing.T) {
	t.Parallel()

	q := newTestQueue(t, QueueConfig{
		RetryBaseDelay: time.Millisecond,
		RetryMaxDelay:  2 * time.Millisecond,
	})
	notifier := &recordingNotifier{}

	handler := HandlerFunc{
		JobType: domain.JobTypeEmbedding,
		Fn: func(_ context.Context, _ *domain.Job, _ ProgressFunc) (any, error) {
			return nil, errors.New("provider down")
		},
	}
	newTestPool(t, q, WorkerPoolConfig{Concurrency: 1}, notifier, handler)

	j, err := q.AddJob(embeddingPayload(), uuid.New(), EnqueueOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	final, err := q.WaitForTerminal(ctx, j.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.JobStatusFailed, final.Status)
	assert.Equal(t, domain.DefaultMaxAttempts, final.Attempts)
	assert.Contains(t, final.Error, "provider down")

	events := notifier.all()
	require.Len(t, events, 1, "only the terminal transition is pushed")
	assert.Equal(t, domain.JobStatusFailed, events[0].Status)
}

func TestWorkerPoolPermanentFailureSkipsRetry(t *testing.T) {
	t.Parallel()

	q := newTestQueue(t, QueueConfig{})

	handler := HandlerFunc{
		JobType: domain.JobTypeEmbedding,
		Fn: func(_ context.Context, _ *domain.Job, _ ProgressFunc) (any, error) {
			return nil, fmt.Errorf("%w: content rejected", ErrPermanent)
		},
	}
	newTestPool(t, q, WorkerPoolConfig{Concurrency: 1}, nil, handler)

	j, err := q.AddJob(embeddingPayload(), uuid.New(), EnqueueOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	final, err := q.WaitForTerminal(ctx, j.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.JobStatusFailed, final.Status)
	assert.Equal(t, 1, final.Attempts, "permanent failures must not be retried")
}

func TestWorkerPoolTimeoutIsTransient(t *testing.T) {
	t.Parallel()

	q := newTestQueue(t, QueueConfig{
		RetryBaseDelay: time.Millisecond,
		RetryMaxDelay:  2 * time.Millisecond,
	})

	var mu sync.Mutex
	attempts := 0
	handler := HandlerFunc{
		JobType: domain.JobTypeEmbedding,
		Fn: func(ctx context.Context, _ *domain.Job, _ ProgressFunc) (any, error) {
			mu.Lock()
			attempts++
			n := attempts
			mu.Unlock()

			if n == 1 {
				<-ctx.Done()
				return nil, ctx.Err()
			}
			return "done", nil
		},
	}
	newTestPool(t, q, WorkerPoolConfig{Concurrency: 1, JobTimeout: 20 * time.Millisecond}, nil, handler)

	j, err := q.AddJob(embeddingPayload(), uuid.New(), EnqueueOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	final, err := q.WaitForTerminal(ctx, j.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.JobStatusCompleted, final.Status,
		"a timed-out attempt must be retried, not fail the job")
	assert.Equal(t, 1, final.Attempts)
}

func TestWorkerPoolRecoversFromHandlerPanic(t *testing.T) {
	t.Parallel()

	q := newTestQueue(t, QueueConfig{})

	handler := HandlerFunc{
		JobType: domain.JobTypeEmbedding,
		Fn: func(_ context.Context, _ *domain.Job, _ ProgressFunc) (any, error) {
			panic("handler bug")
		},
	}
	newTestPool(t, q, WorkerPoolConfig{Concurrency: 1}, nil, handler)

	j, err := q.AddJob(embeddingPayload(), uuid.New(), EnqueueOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	final, err := q.WaitForTerminal(ctx, j.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.JobStatusFailed, final.Status)
	assert.Equal(t, 1, final.Attempts, "panics are permanent failures")
	assert.Contains(t, final.Error, "handler panic")

	// The worker loop survived; a healthy job still gets processed.
	next, err := q.AddJob(embeddingPayload(), uuid.New(), EnqueueOptions{})
	require.NoError(t, err)
	_, err = q.WaitForTerminal(ctx, next.ID)
	require.NoError(t, err)
}

func TestWorkerPoolConcurrentJobsAcrossTypes(t *testing.T) {
	t.Parallel()

	q := newTestQueue(t, QueueConfig{})

	var mu sync.Mutex
	handled := make(map[domain.JobType]int)
	record := func(t domain.JobType) HandlerFunc {
		return HandlerFunc{
			JobType: t,
			Fn: func(_ context.Context, _ *domain.Job, _ ProgressFunc) (any, error) {
				mu.Lock()
				handled[t]++
				mu.Unlock()
				return nil, nil
			},
		}
	}
	newTestPool(t, q, WorkerPoolConfig{Concurrency: 2}, nil,
		record(domain.JobTypeEmbedding),
		record(domain.JobTypeClassification),
	)

	userID := uuid.New()
	var ids []uuid.UUID
	for i := 0; i < 4; i++ {
		j, err := q.AddJob(embeddingPayload(), userID, EnqueueOptions{})
		require.NoError(t, err)
		ids = append(ids, j.ID)

		c, err := q.AddJob(domain.ClassificationPayload{ItemID: uuid.New(), Content: "c"}, userID, EnqueueOptions{})
		require.NoError(t, err)
		ids = append(ids, c.ID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, id := range ids {
		final, err := q.WaitForTerminal(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusCompleted, final.Status)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 4, handled[domain.JobTypeEmbedding])
	assert.Equal(t, 4, handled[domain.JobTypeClassification])
}
