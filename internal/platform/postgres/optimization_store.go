package postgres

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/promptdeck/promptdeck-api/internal/domain"
	"github.com/promptdeck/promptdeck-api/internal/store"
)

// OptimizationStore implements store.OptimizationStore using PostgreSQL.
type OptimizationStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewOptimizationStore creates a PostgreSQL implementation of
// store.OptimizationStore.
func NewOptimizationStore(db store.DBTX, logger *slog.Logger) *OptimizationStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OptimizationStore{
		db:     db,
		logger: logger.With(slog.String("component", "optimization_store")),
	}
}

var _ store.OptimizationStore = (*OptimizationStore)(nil)

// Create persists a new optimization.
func (s *OptimizationStore) Create(ctx context.Context, opt *domain.Optimization) error {
	if err := opt.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO optimizations (id, item_id, target_model, content, confidence, tokens_used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		opt.ID, opt.ItemID, opt.TargetModel, opt.Content,
		opt.Confidence, opt.TokensUsed, opt.CreatedAt)
	if err != nil {
		s.logger.Error("failed to create optimization",
			slog.String("optimization_id", opt.ID.String()),
			slog.String("item_id", opt.ItemID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	s.logger.Debug("optimization created",
		slog.String("optimization_id", opt.ID.String()),
		slog.String("target_model", string(opt.TargetModel)))
	return nil
}

// CountByItem returns how many optimizations exist for an item.
func (s *OptimizationStore) CountByItem(ctx context.Context, itemID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM optimizations WHERE item_id = $1`, itemID).Scan(&count)
	if err != nil {
		return 0, MapError(err)
	}
	return count, nil
}
