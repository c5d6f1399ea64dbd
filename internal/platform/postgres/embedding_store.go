package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/promptdeck/promptdeck-api/internal/store"
)

// EmbeddingStore implements store.EmbeddingStore using PostgreSQL with the
// pgvector extension. One row per item; re-embedding overwrites in place.
type EmbeddingStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewEmbeddingStore creates a PostgreSQL implementation of
// store.EmbeddingStore.
func NewEmbeddingStore(db store.DBTX, logger *slog.Logger) *EmbeddingStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EmbeddingStore{
		db:     db,
		logger: logger.With(slog.String("component", "embedding_store")),
	}
}

var _ store.EmbeddingStore = (*EmbeddingStore)(nil)

// Save upserts the embedding vector for an item.
func (s *EmbeddingStore) Save(ctx context.Context, itemID uuid.UUID, vector []float32) error {
	query := `
		INSERT INTO item_embeddings (item_id, embedding, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (item_id) DO UPDATE
		SET embedding = EXCLUDED.embedding, updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query, itemID, pgvector.NewVector(vector), time.Now().UTC())
	if err != nil {
		s.logger.Error("failed to save embedding",
			slog.String("item_id", itemID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	s.logger.Debug("embedding saved",
		slog.String("item_id", itemID.String()),
		slog.Int("dimensions", len(vector)))
	return nil
}
