package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/promptdeck/promptdeck-api/internal/ai"
	"github.com/promptdeck/promptdeck-api/internal/domain"
	"github.com/promptdeck/promptdeck-api/internal/job"
)

// SimilarityResult is the stored result of a similarity scoring job.
type SimilarityResult struct {
	SourceItemID string  `json:"source_item_id"`
	TargetItemID string  `json:"target_item_id"`
	Score        float64 `json:"score"`
}

// SimilarityHandler scores one (source, target) content pair by embedding
// both sides and taking their cosine similarity.
type SimilarityHandler struct {
	embedder ai.Embedder
	logger   *slog.Logger
}

// NewSimilarityHandler creates the handler.
func NewSimilarityHandler(embedder ai.Embedder, logger *slog.Logger) *SimilarityHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SimilarityHandler{
		embedder: embedder,
		logger:   logger.With("handler", domain.JobTypeSimilarityScoring),
	}
}

// Type returns the job type this handler executes.
func (h *SimilarityHandler) Type() domain.JobType { return domain.JobTypeSimilarityScoring }

// Handle runs one scoring attempt.
func (h *SimilarityHandler) Handle(ctx context.Context, j *domain.Job, report job.ProgressFunc) (any, error) {
	payload, ok := j.Payload.(domain.SimilarityScoringPayload)
	if !ok {
		return nil, payloadError(j, domain.JobTypeSimilarityScoring)
	}

	source, err := h.embedder.Embed(ctx, payload.SourceContent)
	if err != nil {
		return nil, classifyProviderError(fmt.Errorf("embed source %s: %w", payload.SourceItemID, err))
	}
	report(40)

	target, err := h.embedder.Embed(ctx, payload.TargetContent)
	if err != nil {
		return nil, classifyProviderError(fmt.Errorf("embed target %s: %w", payload.TargetItemID, err))
	}
	report(80)

	score, err := ai.CosineSimilarity(source, target)
	if err != nil {
		return nil, fmt.Errorf("%w: score pair: %w", job.ErrPermanent, err)
	}

	return SimilarityResult{
		SourceItemID: payload.SourceItemID.String(),
		TargetItemID: payload.TargetItemID.String(),
		Score:        score,
	}, nil
}
