package postgres

import (
	"context"
	"log/slog"

	"github.com/promptdeck/promptdeck-api/internal/store"
)

// AuditLogStore implements store.AuditLogStore using PostgreSQL. The table is
// append-only; nothing in the application updates or deletes entries.
type AuditLogStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewAuditLogStore creates a PostgreSQL implementation of
// store.AuditLogStore.
func NewAuditLogStore(db store.DBTX, logger *slog.Logger) *AuditLogStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogStore{
		db:     db,
		logger: logger.With(slog.String("component", "audit_log_store")),
	}
}

var _ store.AuditLogStore = (*AuditLogStore)(nil)

// Append persists one audit entry.
func (s *AuditLogStore) Append(ctx context.Context, entry store.AuditEntry) error {
	query := `
		INSERT INTO audit_log (id, user_id, action, details, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(ctx, query,
		entry.ID, entry.UserID, entry.Action, []byte(entry.Details), entry.CreatedAt)
	if err != nil {
		s.logger.Error("failed to append audit entry",
			slog.String("action", entry.Action),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return nil
}
