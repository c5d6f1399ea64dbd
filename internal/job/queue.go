package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/promptdeck/promptdeck-api/internal/domain"
)

// QueueConfig holds tuning knobs for the queue's retry scheduling.
type QueueConfig struct {
	// RetryBaseDelay is the backoff delay before the second attempt.
	// Subsequent attempts double it, up to RetryMaxDelay.
	RetryBaseDelay time.Duration

	// RetryMaxDelay caps the backoff delay.
	RetryMaxDelay time.Duration
}

// DefaultQueueConfig returns a QueueConfig with reasonable defaults.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		RetryBaseDelay: 2 * time.Second,
		RetryMaxDelay:  5 * time.Minute,
	}
}

// EnqueueOptions customize a single AddJob call.
type EnqueueOptions struct {
	// Priority orders the job for dispatch. Callers that do not care pass
	// the pipeline's configured default.
	Priority domain.JobPriority

	// MaxAttempts overrides the attempt budget when > 0.
	MaxAttempts int
}

// TypeStats counts jobs of one type by status.
type TypeStats struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Retry      int `json:"retry"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Cancelled  int `json:"cancelled"`
}

// Queue is the single owner of job lifecycle state. It validates payloads at
// enqueue time, hands each pending job to exactly one claimer, schedules
// retry re-entry with exponential backoff, and serves status queries.
type Queue struct {
	store  *Store
	cfg    QueueConfig
	logger *slog.Logger

	// wake carries a per-type nudge so idle workers pick up new work
	// without busy-polling. Buffered size 1; a lost extra signal is fine
	// because workers re-scan after every claim.
	wake map[domain.JobType]chan struct{}

	timerMu sync.Mutex
	timers  map[uuid.UUID]*time.Timer
	closed  bool
}

// NewQueue creates a job queue over a fresh store.
func NewQueue(cfg QueueConfig, logger *slog.Logger) *Queue {
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = DefaultQueueConfig().RetryBaseDelay
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = DefaultQueueConfig().RetryMaxDelay
	}
	if logger == nil {
		logger = slog.Default()
	}

	wake := make(map[domain.JobType]chan struct{})
	for _, t := range domain.AllJobTypes() {
		wake[t] = make(chan struct{}, 1)
	}

	return &Queue{
		store:  NewStore(),
		cfg:    cfg,
		logger: logger.With("component", "job_queue"),
		wake:   wake,
		timers: make(map[uuid.UUID]*time.Timer),
	}
}

// AddJob validates the payload, creates a pending job owned by userID and
// inserts it into the queue. Returns a copy of the created job.
func (q *Queue) AddJob(payload domain.JobPayload, userID uuid.UUID, opts EnqueueOptions) (*domain.Job, error) {
	q.timerMu.Lock()
	closed := q.closed
	q.timerMu.Unlock()
	if closed {
		return nil, ErrQueueClosed
	}

	j, err := domain.NewJob(payload, userID, opts.Priority)
	if err != nil {
		return nil, err
	}
	if opts.MaxAttempts > 0 {
		j.MaxAttempts = opts.MaxAttempts
	}

	// Copy before insert: once the record is in the store and workers are
	// signalled, only the store lock may touch it.
	created := copyJob(j)
	q.store.insert(j)
	q.signal(j.Type)

	q.logger.Debug("job enqueued",
		"job_id", created.ID,
		"job_type", created.Type,
		"priority", created.Priority.String(),
		"user_id", created.UserID)

	return created, nil
}

// Claim atomically hands the next eligible job of the given type to the
// caller. Under concurrent claimers each pending job is returned exactly
// once; losers simply observe no eligible job.
func (q *Queue) Claim(t domain.JobType) (*domain.Job, bool) {
	return q.store.claimNext(t, time.Now().UTC())
}

// Wake returns the per-type channel that receives a nudge whenever a job of
// the type becomes claimable.
func (q *Queue) Wake(t domain.JobType) <-chan struct{} {
	return q.wake[t]
}

// GetJob returns a copy of the job with the given ID.
func (q *Queue) GetJob(id uuid.UUID) (*domain.Job, error) {
	return q.store.get(id)
}

// GetProgress returns the current progress of the job with the given ID.
func (q *Queue) GetProgress(id uuid.UUID) (int, error) {
	j, err := q.store.get(id)
	if err != nil {
		return 0, err
	}
	return j.Progress, nil
}

// GetUserJobs returns the user's jobs, most recent first, capped at limit
// when limit > 0.
func (q *Queue) GetUserJobs(userID uuid.UUID, limit int) []*domain.Job {
	return q.store.listByUser(userID, limit)
}

// UpdateProgress records handler progress for a processing job. Progress is
// monotonically non-decreasing and clamped to [0, 100]; writes against a job
// that is not processing return ErrInvalidTransition.
func (q *Queue) UpdateProgress(id uuid.UUID, progress int) error {
	return q.store.mutate(id, func(j *domain.Job) error {
		if j.Status != domain.JobStatusProcessing {
			return fmt.Errorf("%w: progress update on %s job", ErrInvalidTransition, j.Status)
		}
		if progress > 100 {
			progress = 100
		}
		if progress > j.Progress {
			j.Progress = progress
		}
		return nil
	})
}

// Complete records a successful execution: the job moves to completed with
// progress 100 and the marshalled result attached.
func (q *Queue) Complete(id uuid.UUID, result any) error {
	var raw json.RawMessage
	if result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("marshal job result: %w", err)
		}
		raw = data
	}

	return q.store.mutate(id, func(j *domain.Job) error {
		if !j.Status.CanTransition(domain.JobStatusCompleted) {
			return fmt.Errorf("%w: %s -> completed", ErrInvalidTransition, j.Status)
		}
		now := time.Now().UTC()
		j.Status = domain.JobStatusCompleted
		j.Progress = 100
		j.Result = raw
		j.Error = ""
		j.CompletedAt = &now
		return nil
	})
}

// Fail records a failed execution. Attempts are incremented; when the budget
// is exhausted or the failure is permanent the job moves to failed
// (terminal), otherwise it moves to retry and is re-queued to pending after
// an exponential backoff delay with jitter. Returns whether the failure was
// terminal.
func (q *Queue) Fail(id uuid.UUID, execErr error, permanent bool) (bool, error) {
	var terminal bool
	var delay time.Duration

	err := q.store.mutate(id, func(j *domain.Job) error {
		if j.Status != domain.JobStatusProcessing {
			return fmt.Errorf("%w: failure recorded on %s job", ErrInvalidTransition, j.Status)
		}

		j.Attempts++
		if execErr != nil {
			j.Error = execErr.Error()
		}

		if permanent || j.Attempts >= j.MaxAttempts {
			now := time.Now().UTC()
			j.Status = domain.JobStatusFailed
			j.CompletedAt = &now
			terminal = true
			return nil
		}

		j.Status = domain.JobStatusRetry
		delay = q.backoffDelay(j.Attempts)
		return nil
	})
	if err != nil {
		return false, err
	}

	if !terminal {
		q.scheduleRequeue(id, delay)
	}
	return terminal, nil
}

// Cancel transitions a pending or retry job to cancelled and reports whether
// it did. Jobs in any other state are left untouched and false is returned;
// an unknown ID returns ErrJobNotFound.
func (q *Queue) Cancel(id uuid.UUID) (bool, error) {
	cancelled := false
	err := q.store.mutate(id, func(j *domain.Job) error {
		if !j.Status.IsCancellable() {
			return nil
		}
		now := time.Now().UTC()
		j.Status = domain.JobStatusCancelled
		j.CompletedAt = &now
		cancelled = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if cancelled {
		q.stopTimer(id)
		q.logger.Info("job cancelled", "job_id", id)
	}
	return cancelled, nil
}

// Stats returns per-type job counts by status.
func (q *Queue) Stats() map[domain.JobType]TypeStats {
	counts := q.store.countByTypeAndStatus()

	stats := make(map[domain.JobType]TypeStats, len(counts))
	for t, byStatus := range counts {
		stats[t] = TypeStats{
			Pending:    byStatus[domain.JobStatusPending],
			Processing: byStatus[domain.JobStatusProcessing],
			Retry:      byStatus[domain.JobStatusRetry],
			Completed:  byStatus[domain.JobStatusCompleted],
			Failed:     byStatus[domain.JobStatusFailed],
			Cancelled:  byStatus[domain.JobStatusCancelled],
		}
	}
	return stats
}

// Close stops accepting new jobs and cancels pending retry timers. Jobs
// already claimed keep running; the worker pool drains them on shutdown.
func (q *Queue) Close() {
	q.timerMu.Lock()
	defer q.timerMu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	for id, timer := range q.timers {
		timer.Stop()
		delete(q.timers, id)
	}
	q.logger.Info("job queue closed")
}

// signal nudges workers of the given type. Non-blocking: a full buffer means
// a wake-up is already pending.
func (q *Queue) signal(t domain.JobType) {
	select {
	case q.wake[t] <- struct{}{}:
	default:
	}
}

// backoffDelay computes the delay before the next attempt:
// base * 2^(attempts-1), multiplied by a jitter factor in [0.5, 1.0) and
// capped at the configured maximum.
func (q *Queue) backoffDelay(attempts int) time.Duration {
	exp := float64(q.cfg.RetryBaseDelay) * math.Pow(2, float64(attempts-1))
	if capped := float64(q.cfg.RetryMaxDelay); exp > capped {
		exp = capped
	}
	jitter := 0.5 + rand.Float64()*0.5
	return time.Duration(exp * jitter)
}

// scheduleRequeue re-enters a retry job to pending after the backoff delay.
// The transition is a compare-and-swap on the retry status, so a cancel that
// lands during the delay wins and the requeue becomes a no-op.
func (q *Queue) scheduleRequeue(id uuid.UUID, delay time.Duration) {
	q.timerMu.Lock()
	defer q.timerMu.Unlock()

	if q.closed {
		return
	}

	q.timers[id] = time.AfterFunc(delay, func() {
		q.stopTimer(id)

		var jobType domain.JobType
		requeued := false
		err := q.store.mutate(id, func(j *domain.Job) error {
			if j.Status != domain.JobStatusRetry {
				return nil
			}
			j.Status = domain.JobStatusPending
			jobType = j.Type
			requeued = true
			return nil
		})
		if err != nil {
			q.logger.Error("failed to requeue retry job", "job_id", id, "error", err)
			return
		}
		if requeued {
			q.signal(jobType)
			q.logger.Debug("retry job re-entered pending", "job_id", id)
		}
	})

	q.logger.Debug("retry scheduled", "job_id", id, "delay", delay)
}

func (q *Queue) stopTimer(id uuid.UUID) {
	q.timerMu.Lock()
	defer q.timerMu.Unlock()
	if timer, ok := q.timers[id]; ok {
		timer.Stop()
		delete(q.timers, id)
	}
}

// WaitForTerminal blocks until the job reaches a terminal state or the
// context is done. Intended for tests and synchronous tooling, not for
// request handlers.
func (q *Queue) WaitForTerminal(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for {
		j, err := q.store.get(id)
		if err != nil {
			return nil, err
		}
		if j.IsTerminal() {
			return j, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// IsValidationError reports whether an enqueue failure was caused by a
// malformed payload rather than an infrastructure problem.
func IsValidationError(err error) bool {
	return errors.Is(err, domain.ErrInvalidPayload) ||
		errors.Is(err, domain.ErrNilJobPayload) ||
		errors.Is(err, domain.ErrPayloadTypeMismatch)
}
