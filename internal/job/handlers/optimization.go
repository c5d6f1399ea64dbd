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

// OptimizationResult is the stored result of an optimization job.
type OptimizationResult struct {
	ItemID         string  `json:"item_id"`
	TargetModel    string  `json:"target_model"`
	OptimizationID string  `json:"optimization_id"`
	Content        string  `json:"content"`
	Confidence     float64 `json:"confidence"`
	TokensUsed     int     `json:"tokens_used"`
}

// OptimizationHandler rewrites item content for one target model using the
// provider registered for that model, and persists the result.
type OptimizationHandler struct {
	providers     map[domain.TargetModel]ai.Optimizer
	optimizations store.OptimizationStore
	logger        *slog.Logger
}

// NewOptimizationHandler creates the handler. providers maps each supported
// target model to its optimizer; a job targeting an unregistered model fails
// permanently.
func NewOptimizationHandler(
	providers map[domain.TargetModel]ai.Optimizer,
	optimizations store.OptimizationStore,
	logger *slog.Logger,
) *OptimizationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OptimizationHandler{
		providers:     providers,
		optimizations: optimizations,
		logger:        logger.With("handler", domain.JobTypeOptimization),
	}
}

// Type returns the job type this handler executes.
func (h *OptimizationHandler) Type() domain.JobType { return domain.JobTypeOptimization }

// Handle runs one optimization attempt.
func (h *OptimizationHandler) Handle(ctx context.Context, j *domain.Job, report job.ProgressFunc) (any, error) {
	payload, ok := j.Payload.(domain.OptimizationPayload)
	if !ok {
		return nil, payloadError(j, domain.JobTypeOptimization)
	}

	provider, ok := h.providers[payload.TargetModel]
	if !ok {
		return nil, fmt.Errorf("%w: no optimizer registered for model %q",
			job.ErrPermanent, payload.TargetModel)
	}

	report(10)

	res, err := provider.Optimize(ctx, payload.Content)
	if err != nil {
		return nil, classifyProviderError(fmt.Errorf("optimize for %s: %w", payload.TargetModel, err))
	}

	report(80)

	opt, err := domain.NewOptimization(payload.ItemID, payload.TargetModel, res.Content, res.Confidence, res.TokensUsed)
	if err != nil {
		return nil, fmt.Errorf("%w: build optimization record: %w", job.ErrPermanent, err)
	}

	// Store failures are infrastructure trouble, left transient.
	if err := h.optimizations.Create(ctx, opt); err != nil {
		return nil, fmt.Errorf("persist optimization: %w", err)
	}

	h.logger.Debug("optimization stored",
		"item_id", payload.ItemID,
		"target_model", payload.TargetModel,
		"tokens_used", res.TokensUsed)

	return OptimizationResult{
		ItemID:         payload.ItemID.String(),
		TargetModel:    string(payload.TargetModel),
		OptimizationID: opt.ID.String(),
		Content:        res.Content,
		Confidence:     res.Confidence,
		TokensUsed:     res.TokensUsed,
	}, nil
}
