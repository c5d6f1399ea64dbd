package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/promptdeck/promptdeck-api/internal/ai"
	"github.com/promptdeck/promptdeck-api/internal/domain"
	"github.com/promptdeck/promptdeck-api/internal/job"
)

// ClassificationResult is the stored result of a classification job.
type ClassificationResult struct {
	ItemID     string   `json:"item_id"`
	Category   string   `json:"category"`
	Tags       []string `json:"tags"`
	Confidence float64  `json:"confidence"`
}

// ClassificationHandler categorizes item content via the classifier service.
type ClassificationHandler struct {
	classifier ai.Classifier
	logger     *slog.Logger
}

// NewClassificationHandler creates the handler.
func NewClassificationHandler(classifier ai.Classifier, logger *slog.Logger) *ClassificationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ClassificationHandler{
		classifier: classifier,
		logger:     logger.With("handler", domain.JobTypeClassification),
	}
}

// Type returns the job type this handler executes.
func (h *ClassificationHandler) Type() domain.JobType { return domain.JobTypeClassification }

// Handle runs one classification attempt.
func (h *ClassificationHandler) Handle(ctx context.Context, j *domain.Job, report job.ProgressFunc) (any, error) {
	payload, ok := j.Payload.(domain.ClassificationPayload)
	if !ok {
		return nil, payloadError(j, domain.JobTypeClassification)
	}

	report(10)

	res, err := h.classifier.Classify(ctx, payload.Content)
	if err != nil {
		return nil, classifyProviderError(fmt.Errorf("classify item: %w", err))
	}

	return ClassificationResult{
		ItemID:     payload.ItemID.String(),
		Category:   res.Category,
		Tags:       res.Tags,
		Confidence: res.Confidence,
	}, nil
}
