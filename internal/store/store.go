// Package store defines the persistence boundaries the processing core
// depends on. Implementations live under internal/platform; tests use
// in-memory fakes. The job queue itself is deliberately not here: job
// lifecycle state is owned by the in-process queue (internal/job).
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/promptdeck/promptdeck-api/internal/domain"
)

// DBTX abstracts over *sql.DB and *sql.Tx so store implementations can run
// inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// ItemStore provides access to curated content items. Items returned by the
// read methods carry their OptimizationCount so pipeline policy can be
// decided without a second round trip.
type ItemStore interface {
	// GetByID retrieves an item by ID. Returns ErrItemNotFound if absent.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Item, error)

	// Create persists a new item.
	Create(ctx context.Context, item *domain.Item) error

	// ListByUser returns the user's items, newest first, capped at limit
	// when limit > 0.
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Item, error)

	// ListByCollection returns the user's items in one collection, newest
	// first, capped at limit when limit > 0.
	ListByCollection(ctx context.Context, userID, collectionID uuid.UUID, limit int) ([]*domain.Item, error)
}

// OptimizationStore persists model-specific optimizations produced by jobs.
type OptimizationStore interface {
	// Create persists a new optimization.
	Create(ctx context.Context, opt *domain.Optimization) error

	// CountByItem returns how many optimizations exist for an item.
	CountByItem(ctx context.Context, itemID uuid.UUID) (int, error)
}

// EmbeddingStore persists item embedding vectors.
type EmbeddingStore interface {
	// Save upserts the embedding vector for an item.
	Save(ctx context.Context, itemID uuid.UUID, vector []float32) error
}

// AuditEntry is one append-only audit log record.
type AuditEntry struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	Action    string          `json:"action"`
	Details   json.RawMessage `json:"details,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewAuditEntry builds an entry for the given actor and action, marshalling
// details to JSON. A nil details map is allowed.
func NewAuditEntry(userID uuid.UUID, action string, details map[string]any) (AuditEntry, error) {
	entry := AuditEntry{
		ID:        uuid.New(),
		UserID:    userID,
		Action:    action,
		CreatedAt: time.Now().UTC(),
	}

	if details != nil {
		data, err := json.Marshal(details)
		if err != nil {
			return AuditEntry{}, err
		}
		entry.Details = data
	}

	return entry, nil
}

// AuditLogStore appends audit records describing pipeline decisions.
type AuditLogStore interface {
	Append(ctx context.Context, entry AuditEntry) error
}
