package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/promptdeck/promptdeck-api/internal/ai"
	"github.com/promptdeck/promptdeck-api/internal/domain"
	"github.com/promptdeck/promptdeck-api/internal/job"
)

// QualityResult is the stored result of a quality assessment job.
type QualityResult struct {
	ItemID      string  `json:"item_id"`
	Overall     float64 `json:"overall"`
	Clarity     float64 `json:"clarity"`
	Specificity float64 `json:"specificity"`
	Feedback    string  `json:"feedback"`
}

// QualityHandler scores item content via the quality assessor service.
type QualityHandler struct {
	assessor ai.QualityAssessor
	logger   *slog.Logger
}

// NewQualityHandler creates the handler.
func NewQualityHandler(assessor ai.QualityAssessor, logger *slog.Logger) *QualityHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &QualityHandler{
		assessor: assessor,
		logger:   logger.With("handler", domain.JobTypeQualityAssessment),
	}
}

// Type returns the job type this handler executes.
func (h *QualityHandler) Type() domain.JobType { return domain.JobTypeQualityAssessment }

// Handle runs one assessment attempt.
func (h *QualityHandler) Handle(ctx context.Context, j *domain.Job, report job.ProgressFunc) (any, error) {
	payload, ok := j.Payload.(domain.QualityAssessmentPayload)
	if !ok {
		return nil, payloadError(j, domain.JobTypeQualityAssessment)
	}

	report(10)

	res, err := h.assessor.Assess(ctx, payload.Content)
	if err != nil {
		return nil, classifyProviderError(fmt.Errorf("assess quality: %w", err))
	}

	return QualityResult{
		ItemID:      payload.ItemID.String(),
		Overall:     res.Overall,
		Clarity:     res.Clarity,
		Specificity: res.Specificity,
		Feedback:    res.Feedback,
	}, nil
}
