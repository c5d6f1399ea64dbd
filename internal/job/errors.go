package job

import "errors"

// Common errors returned by the queue and worker pool.
var (
	// ErrJobNotFound is returned when the referenced job does not exist.
	ErrJobNotFound = errors.New("job not found")

	// ErrQueueClosed is returned when enqueueing after shutdown has begun.
	ErrQueueClosed = errors.New("job queue is closed")

	// ErrInvalidTransition is returned when a lifecycle mutation is attempted
	// against a job whose current status does not permit it.
	ErrInvalidTransition = errors.New("invalid job status transition")

	// ErrNoHandler is returned when a pool is started for a job type with no
	// registered handler.
	ErrNoHandler = errors.New("no handler registered for job type")

	// ErrPermanent marks a handler failure that must not be retried. Handlers
	// wrap non-retryable provider errors with this sentinel; anything else is
	// treated as transient and retried within the attempt budget.
	ErrPermanent = errors.New("permanent job failure")
)
