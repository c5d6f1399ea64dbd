package job

import (
	"context"

	"github.com/promptdeck/promptdeck-api/internal/domain"
)

// ProgressFunc lets a handler report execution progress in percent. Writes
// go through the queue so concurrent status pollers observe them live; the
// queue clamps values to a monotonically non-decreasing [0, 100].
type ProgressFunc func(progress int)

// Handler executes jobs of one type. Implementations are thin adapters over
// the external AI/embedding services: they read the job's typed payload, do
// the work, and return a JSON-serializable result.
//
// A returned error wrapping ErrPermanent fails the job immediately; any
// other error is treated as transient and retried within the job's attempt
// budget. Handlers must honor ctx, which carries the per-attempt execution
// timeout.
type Handler interface {
	// Type returns the job type this handler executes.
	Type() domain.JobType

	// Handle runs one execution attempt.
	Handle(ctx context.Context, j *domain.Job, report ProgressFunc) (any, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc struct {
	JobType domain.JobType
	Fn      func(ctx context.Context, j *domain.Job, report ProgressFunc) (any, error)
}

// Type returns the job type this handler executes.
func (h HandlerFunc) Type() domain.JobType { return h.JobType }

// Handle runs one execution attempt.
func (h HandlerFunc) Handle(ctx context.Context, j *domain.Job, report ProgressFunc) (any, error) {
	return h.Fn(ctx, j, report)
}
