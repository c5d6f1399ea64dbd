package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// subscriberBuffer is the per-subscriber channel capacity. When a consumer
// falls this far behind, further events for it are dropped.
const subscriberBuffer = 16

// Hub is an in-memory Notifier that fans events out to per-user
// subscribers. The excluded realtime layer subscribes here and forwards
// events over its own transport.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[uuid.UUID][]chan Event
	logger      *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subscribers: make(map[uuid.UUID][]chan Event),
		logger:      logger.With("component", "notify_hub"),
	}
}

// Subscribe registers a consumer for one user's events. The returned cancel
// function removes the subscription and closes the channel.
func (h *Hub) Subscribe(userID uuid.UUID) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	h.subscribers[userID] = append(h.subscribers[userID], ch)
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()

		subs := h.subscribers[userID]
		for i, sub := range subs {
			if sub == ch {
				h.subscribers[userID] = append(subs[:i], subs[i+1:]...)
				close(ch)
				break
			}
		}
		if len(h.subscribers[userID]) == 0 {
			delete(h.subscribers, userID)
		}
	}

	return ch, cancel
}

// Push delivers the event to every subscriber of the user. Delivery is
// non-blocking: a full subscriber buffer drops the event for that
// subscriber only.
func (h *Hub) Push(ctx context.Context, userID uuid.UUID, event Event) error {
	h.mu.RLock()
	subs := h.subscribers[userID]
	h.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- event:
		default:
			h.logger.Warn("dropping event for slow subscriber",
				"user_id", userID,
				"job_id", event.JobID)
		}
	}
	return nil
}

var _ Notifier = (*Hub)(nil)

// LogNotifier is a Notifier that only logs events. Used when no realtime
// layer is attached, so terminal transitions still leave a trace.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger.With("component", "log_notifier")}
}

// Push logs the event.
func (n *LogNotifier) Push(ctx context.Context, userID uuid.UUID, event Event) error {
	n.logger.Info("job event",
		"user_id", userID,
		"job_id", event.JobID,
		"job_type", event.JobType,
		"status", event.Status,
		"error", event.Error)
	return nil
}

var _ Notifier = (*LogNotifier)(nil)
