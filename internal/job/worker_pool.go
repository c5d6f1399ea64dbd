package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/promptdeck/promptdeck-api/internal/domain"
	"github.com/promptdeck/promptdeck-api/internal/notify"
)

// WorkerPoolConfig holds configuration options for the worker pools.
type WorkerPoolConfig struct {
	// Concurrency is the number of worker goroutines per job type.
	// If zero or negative, defaults to 2.
	Concurrency int

	// JobTimeout bounds one execution attempt. A timed-out attempt is a
	// transient failure and consumes one attempt from the budget.
	JobTimeout time.Duration

	// PollInterval is the fallback re-scan interval for idle workers, a
	// safety net under the queue's wake signals.
	PollInterval time.Duration
}

// DefaultWorkerPoolConfig returns a WorkerPoolConfig with reasonable defaults.
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		Concurrency:  2,
		JobTimeout:   2 * time.Minute,
		PollInterval: time.Second,
	}
}

// WorkerPool runs one fixed-size pool of workers per registered job type.
// Workers claim jobs exclusively through the queue, execute the registered
// handler under a bounded timeout, and record the outcome; handler errors
// never crash a worker loop.
type WorkerPool struct {
	queue    *Queue
	cfg      WorkerPoolConfig
	logger   *slog.Logger
	notifier notify.Notifier

	handlers map[domain.JobType]Handler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorkerPool creates a worker pool over the given queue. The notifier
// receives an event per terminal job transition and may be nil.
func NewWorkerPool(queue *Queue, cfg WorkerPoolConfig, notifier notify.Notifier, logger *slog.Logger) *WorkerPool {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultWorkerPoolConfig().Concurrency
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = DefaultWorkerPoolConfig().JobTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultWorkerPoolConfig().PollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		queue:    queue,
		cfg:      cfg,
		logger:   logger.With("component", "worker_pool"),
		notifier: notifier,
		handlers: make(map[domain.JobType]Handler),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Register adds a handler. Must be called before Start; registering two
// handlers for the same type keeps the last one.
func (p *WorkerPool) Register(h Handler) {
	p.handlers[h.Type()] = h
}

// Start launches the per-type worker goroutines. Returns ErrNoHandler if no
// handler has been registered at all.
func (p *WorkerPool) Start() error {
	if len(p.handlers) == 0 {
		return ErrNoHandler
	}

	for t, h := range p.handlers {
		for i := 0; i < p.cfg.Concurrency; i++ {
			p.wg.Add(1)
			go p.worker(t, h, i)
		}
	}

	p.logger.Info("worker pools started",
		"job_types", len(p.handlers),
		"concurrency", p.cfg.Concurrency)
	return nil
}

// Stop signals all workers to finish their current job and waits for them.
func (p *WorkerPool) Stop() {
	p.cancel()
	p.wg.Wait()
	p.logger.Info("worker pools stopped")
}

// worker is one claim-execute loop for a single job type.
func (p *WorkerPool) worker(t domain.JobType, h Handler, id int) {
	defer p.wg.Done()

	logger := p.logger.With("job_type", t, "worker_id", id)
	logger.Debug("worker started")

	for {
		select {
		case <-p.ctx.Done():
			logger.Debug("worker stopping")
			return
		default:
		}

		j, ok := p.queue.Claim(t)
		if !ok {
			select {
			case <-p.ctx.Done():
				logger.Debug("worker stopping")
				return
			case <-p.queue.Wake(t):
			case <-time.After(p.cfg.PollInterval):
			}
			continue
		}

		p.execute(h, j, logger)
	}
}

// execute runs one attempt of a claimed job and records the outcome.
func (p *WorkerPool) execute(h Handler, j *domain.Job, logger *slog.Logger) {
	logger = logger.With("job_id", j.ID, "attempt", j.Attempts+1, "max_attempts", j.MaxAttempts)
	logger.Info("executing job")

	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.JobTimeout)
	defer cancel()

	report := func(progress int) {
		if err := p.queue.UpdateProgress(j.ID, progress); err != nil {
			logger.Warn("progress update rejected", "error", err)
		}
	}

	result, err := p.safeHandle(ctx, h, j, report)
	if err == nil {
		if cerr := p.queue.Complete(j.ID, result); cerr != nil {
			logger.Error("failed to record job completion", "error", cerr)
			return
		}
		logger.Info("job completed")
		p.push(j, domain.JobStatusCompleted, "")
		return
	}

	permanent := errors.Is(err, ErrPermanent)
	if errors.Is(err, context.DeadlineExceeded) {
		// A timed-out attempt is transient by contract.
		permanent = false
		err = fmt.Errorf("execution timed out after %s: %w", p.cfg.JobTimeout, err)
	}

	terminal, ferr := p.queue.Fail(j.ID, err, permanent)
	if ferr != nil {
		logger.Error("failed to record job failure", "error", ferr)
		return
	}

	if terminal {
		logger.Error("job failed permanently", "error", err)
		p.push(j, domain.JobStatusFailed, err.Error())
	} else {
		logger.Warn("job attempt failed, retry scheduled", "error", err)
	}
}

// safeHandle invokes the handler and converts panics into permanent errors
// so a misbehaving handler can never take down the worker loop.
func (p *WorkerPool) safeHandle(
	ctx context.Context,
	h Handler,
	j *domain.Job,
	report ProgressFunc,
) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: handler panic: %v", ErrPermanent, r)
		}
	}()

	return h.Handle(ctx, j, report)
}

// push delivers a terminal-state event to the notifier, if one is wired.
func (p *WorkerPool) push(j *domain.Job, status domain.JobStatus, errMsg string) {
	if p.notifier == nil {
		return
	}

	event := notify.Event{
		JobID:     j.ID,
		JobType:   j.Type,
		Status:    status,
		Error:     errMsg,
		CreatedAt: time.Now().UTC(),
	}
	if err := p.notifier.Push(context.Background(), j.UserID, event); err != nil {
		p.logger.Warn("failed to push job event", "job_id", j.ID, "error", err)
	}
}
