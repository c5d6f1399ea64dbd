package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/promptdeck/promptdeck-api/internal/ai"
	"github.com/promptdeck/promptdeck-api/internal/domain"
	"github.com/promptdeck/promptdeck-api/internal/job"
	"github.com/promptdeck/promptdeck-api/internal/store"
)

// EmbeddingResult is the stored result of an embedding job.
type EmbeddingResult struct {
	ItemID     string `json:"item_id"`
	Dimensions int    `json:"dimensions"`
}

// EmbeddingHandler computes an item's embedding vector and persists it.
type EmbeddingHandler struct {
	embedder   ai.Embedder
	embeddings store.EmbeddingStore
	logger     *slog.Logger
}

// NewEmbeddingHandler creates the handler.
func NewEmbeddingHandler(embedder ai.Embedder, embeddings store.EmbeddingStore, logger *slog.Logger) *EmbeddingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmbeddingHandler{
		embedder:   embedder,
		embeddings: embeddings,
		logger:     logger.With("handler", domain.JobTypeEmbedding),
	}
}

// Type returns the job type this handler executes.
func (h *EmbeddingHandler) Type() domain.JobType { return domain.JobTypeEmbedding }

// Handle runs one embedding attempt.
func (h *EmbeddingHandler) Handle(ctx context.Context, j *domain.Job, report job.ProgressFunc) (any, error) {
	payload, ok := j.Payload.(domain.EmbeddingPayload)
	if !ok {
		return nil, payloadError(j, domain.JobTypeEmbedding)
	}

	vec, err := h.embedder.Embed(ctx, payload.Content)
	if err != nil {
		return nil, classifyProviderError(fmt.Errorf("embed item %s: %w", payload.ItemID, err))
	}
	report(70)

	if err := h.embeddings.Save(ctx, payload.ItemID, vec); err != nil {
		return nil, fmt.Errorf("persist embedding: %w", err)
	}

	return EmbeddingResult{
		ItemID:     payload.ItemID.String(),
		Dimensions: len(vec),
	}, nil
}
