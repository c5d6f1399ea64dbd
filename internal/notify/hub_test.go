package notify

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptdeck/promptdeck-api/internal/domain"
)

func testHub() *Hub {
	return NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testEvent(jobID uuid.UUID) Event {
	return Event{
		JobID:     jobID,
		JobType:   domain.JobTypeEmbedding,
		Status:    domain.JobStatusCompleted,
		CreatedAt: time.Now().UTC(),
	}
}

func TestHubDeliversToUserSubscribers(t *testing.T) {
	t.Parallel()

	hub := testHub()
	userID := uuid.New()

	ch1, cancel1 := hub.Subscribe(userID)
	defer cancel1()
	ch2, cancel2 := hub.Subscribe(userID)
	defer cancel2()

	// A different user's subscriber must not see the event.
	other, cancelOther := hub.Subscribe(uuid.New())
	defer cancelOther()

	event := testEvent(uuid.New())
	require.NoError(t, hub.Push(context.Background(), userID, event))

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case got := <-ch:
			assert.Equal(t, event.JobID, got.JobID)
		default:
			t.Fatal("expected event on subscriber channel")
		}
	}

	select {
	case <-other:
		t.Fatal("event leaked to another user's subscriber")
	default:
	}
}

func TestHubCancelClosesChannel(t *testing.T) {
	t.Parallel()

	hub := testHub()
	userID := uuid.New()

	ch, cancel := hub.Subscribe(userID)
	cancel()

	_, open := <-ch
	assert.False(t, open)

	// Pushing after cancel must not panic or block.
	require.NoError(t, hub.Push(context.Background(), userID, testEvent(uuid.New())))
}

func TestLogNotifierPush(t *testing.T) {
	t.Parallel()

	n := NewLogNotifier(slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, n.Push(context.Background(), uuid.New(), testEvent(uuid.New())))
}

func TestHubDropsWhenSubscriberIsFull(t *testing.T) {
	t.Parallel()

	hub := testHub()
	userID := uuid.New()

	ch, cancel := hub.Subscribe(userID)
	defer cancel()

	for i := 0; i < subscriberBuffer+5; i++ {
		require.NoError(t, hub.Push(context.Background(), userID, testEvent(uuid.New())))
	}

	assert.Len(t, ch, subscriberBuffer)
}
