package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// TargetModel identifies an LLM family an optimization targets.
type TargetModel string

// Supported target models.
const (
	TargetModelOpenAI    TargetModel = "openai"
	TargetModelAnthropic TargetModel = "anthropic"
	TargetModelGemini    TargetModel = "gemini"
)

// DefaultTargetModels returns the full set of supported target models, used
// when a caller does not narrow the optimization targets.
func DefaultTargetModels() []TargetModel {
	return []TargetModel{TargetModelOpenAI, TargetModelAnthropic, TargetModelGemini}
}

// IsValidTargetModel reports whether m names a supported target model.
func IsValidTargetModel(m TargetModel) bool {
	switch m {
	case TargetModelOpenAI, TargetModelAnthropic, TargetModelGemini:
		return true
	default:
		return false
	}
}

// Common payload validation errors.
var (
	ErrInvalidPayload      = errors.New("invalid job payload")
	ErrEmptyPayloadItemID  = fmt.Errorf("%w: item ID cannot be empty", ErrInvalidPayload)
	ErrEmptyPayloadContent = fmt.Errorf("%w: content cannot be empty", ErrInvalidPayload)
	ErrInvalidTargetModel  = fmt.Errorf("%w: unknown target model", ErrInvalidPayload)
	ErrTooFewCandidates    = fmt.Errorf("%w: deduplication requires at least two candidates", ErrInvalidPayload)
	ErrInvalidThreshold    = fmt.Errorf("%w: similarity threshold must be in (0, 1]", ErrInvalidPayload)
	ErrEmptyImportItems    = fmt.Errorf("%w: batch import requires at least one item", ErrInvalidPayload)
)

// JobPayload is the tagged union carried by a Job. Each job type has its own
// variant with a validated schema; validation happens at enqueue time, not
// inside the handler.
type JobPayload interface {
	// JobType returns the job type this payload belongs to.
	JobType() JobType

	// Validate checks the payload schema. Implementations return errors
	// wrapping ErrInvalidPayload so callers can classify them.
	Validate() error
}

// OptimizationPayload carries the data for one model-specific optimization
// of a single item.
type OptimizationPayload struct {
	ItemID      uuid.UUID   `json:"item_id"`
	Content     string      `json:"content"`
	TargetModel TargetModel `json:"target_model"`
}

func (p OptimizationPayload) JobType() JobType { return JobTypeOptimization }

func (p OptimizationPayload) Validate() error {
	if p.ItemID == uuid.Nil {
		return ErrEmptyPayloadItemID
	}
	if p.Content == "" {
		return ErrEmptyPayloadContent
	}
	if !IsValidTargetModel(p.TargetModel) {
		return ErrInvalidTargetModel
	}
	return nil
}

// ClassificationPayload carries the data for classifying one item into a
// category and tag set.
type ClassificationPayload struct {
	ItemID  uuid.UUID `json:"item_id"`
	Content string    `json:"content"`
}

func (p ClassificationPayload) JobType() JobType { return JobTypeClassification }

func (p ClassificationPayload) Validate() error {
	if p.ItemID == uuid.Nil {
		return ErrEmptyPayloadItemID
	}
	if p.Content == "" {
		return ErrEmptyPayloadContent
	}
	return nil
}

// QualityAssessmentPayload carries the data for scoring one item's quality.
type QualityAssessmentPayload struct {
	ItemID  uuid.UUID `json:"item_id"`
	Content string    `json:"content"`
}

func (p QualityAssessmentPayload) JobType() JobType { return JobTypeQualityAssessment }

func (p QualityAssessmentPayload) Validate() error {
	if p.ItemID == uuid.Nil {
		return ErrEmptyPayloadItemID
	}
	if p.Content == "" {
		return ErrEmptyPayloadContent
	}
	return nil
}

// DedupCandidate is one item considered during duplicate detection.
type DedupCandidate struct {
	ItemID  uuid.UUID `json:"item_id"`
	Content string    `json:"content"`
}

// DeduplicationPayload carries the full candidate set for one duplicate
// detection pass, along with the similarity threshold above which two items
// are considered duplicates.
type DeduplicationPayload struct {
	UserID     uuid.UUID        `json:"user_id"`
	Candidates []DedupCandidate `json:"candidates"`
	Threshold  float64          `json:"threshold"`
}

func (p DeduplicationPayload) JobType() JobType { return JobTypeDeduplication }

func (p DeduplicationPayload) Validate() error {
	if len(p.Candidates) < 2 {
		return ErrTooFewCandidates
	}
	if p.Threshold <= 0 || p.Threshold > 1 {
		return ErrInvalidThreshold
	}
	for _, c := range p.Candidates {
		if c.ItemID == uuid.Nil {
			return ErrEmptyPayloadItemID
		}
		if c.Content == "" {
			return ErrEmptyPayloadContent
		}
	}
	return nil
}

// SimilarityScoringPayload carries one (source, target) pair to score.
// A scoring run over N targets enqueues N of these.
type SimilarityScoringPayload struct {
	SourceItemID  uuid.UUID `json:"source_item_id"`
	TargetItemID  uuid.UUID `json:"target_item_id"`
	SourceContent string    `json:"source_content"`
	TargetContent string    `json:"target_content"`
}

func (p SimilarityScoringPayload) JobType() JobType { return JobTypeSimilarityScoring }

func (p SimilarityScoringPayload) Validate() error {
	if p.SourceItemID == uuid.Nil || p.TargetItemID == uuid.Nil {
		return ErrEmptyPayloadItemID
	}
	if p.SourceContent == "" || p.TargetContent == "" {
		return ErrEmptyPayloadContent
	}
	return nil
}

// ImportItem is one item to create during a batch import.
type ImportItem struct {
	Kind    ItemKind `json:"kind"`
	Title   string   `json:"title"`
	Content string   `json:"content"`
}

// BatchImportPayload carries a set of items to create on behalf of a user.
type BatchImportPayload struct {
	UserID uuid.UUID    `json:"user_id"`
	Items  []ImportItem `json:"items"`
}

func (p BatchImportPayload) JobType() JobType { return JobTypeBatchImport }

func (p BatchImportPayload) Validate() error {
	if len(p.Items) == 0 {
		return ErrEmptyImportItems
	}
	for _, it := range p.Items {
		if it.Content == "" {
			return ErrEmptyPayloadContent
		}
		if !isValidItemKind(it.Kind) {
			return ErrInvalidItemKind
		}
	}
	return nil
}

// EmbeddingPayload carries the data for computing and persisting one item's
// embedding vector.
type EmbeddingPayload struct {
	ItemID  uuid.UUID `json:"item_id"`
	Content string    `json:"content"`
}

func (p EmbeddingPayload) JobType() JobType { return JobTypeEmbedding }

func (p EmbeddingPayload) Validate() error {
	if p.ItemID == uuid.Nil {
		return ErrEmptyPayloadItemID
	}
	if p.Content == "" {
		return ErrEmptyPayloadContent
	}
	return nil
}
