// Package notify carries job lifecycle events from the processing core to
// whatever transport pushes them to clients. The realtime transport itself
// (WebSocket/SSE) is a collaborator; this package only defines the event
// shape, the Notifier boundary, and an in-memory fan-out hub.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/promptdeck/promptdeck-api/internal/domain"
)

// Event describes one job reaching a terminal state.
type Event struct {
	JobID     uuid.UUID        `json:"job_id"`
	JobType   domain.JobType   `json:"job_type"`
	Status    domain.JobStatus `json:"status"`
	Error     string           `json:"error,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// Notifier delivers job events addressed to a single user.
type Notifier interface {
	// Push delivers the event to the user's subscribers. Implementations
	// must not block job processing; slow consumers lose events rather
	// than stalling workers.
	Push(ctx context.Context, userID uuid.UUID, event Event) error
}
