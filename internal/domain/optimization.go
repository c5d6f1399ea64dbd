package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for Optimization
var (
	ErrEmptyOptimizationID     = errors.New("optimization ID cannot be empty")
	ErrEmptyOptimizationItemID = errors.New("optimization item ID cannot be empty")
	ErrEmptyOptimizedContent   = errors.New("optimized content cannot be empty")
)

// Optimization is one model-specific rewrite of an item, produced by an
// optimization job. An item with at least one stored optimization is subject
// to the skip-if-optimized pipeline policy.
type Optimization struct {
	ID          uuid.UUID   `json:"id"`
	ItemID      uuid.UUID   `json:"item_id"`
	TargetModel TargetModel `json:"target_model"`
	Content     string      `json:"content"`
	Confidence  float64     `json:"confidence"`
	TokensUsed  int         `json:"tokens_used"`
	CreatedAt   time.Time   `json:"created_at"`
}

// NewOptimization creates a validated Optimization record.
func NewOptimization(itemID uuid.UUID, model TargetModel, content string, confidence float64, tokensUsed int) (*Optimization, error) {
	opt := &Optimization{
		ID:          uuid.New(),
		ItemID:      itemID,
		TargetModel: model,
		Content:     content,
		Confidence:  confidence,
		TokensUsed:  tokensUsed,
		CreatedAt:   time.Now().UTC(),
	}

	if err := opt.Validate(); err != nil {
		return nil, err
	}

	return opt, nil
}

// Validate checks if the Optimization has valid data.
func (o *Optimization) Validate() error {
	if o.ID == uuid.Nil {
		return ErrEmptyOptimizationID
	}

	if o.ItemID == uuid.Nil {
		return ErrEmptyOptimizationItemID
	}

	if o.Content == "" {
		return ErrEmptyOptimizedContent
	}

	if !IsValidTargetModel(o.TargetModel) {
		return ErrInvalidTargetModel
	}

	return nil
}
