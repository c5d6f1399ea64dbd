package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ItemKind categorizes a curated content item.
type ItemKind string

// Possible item kinds.
const (
	ItemKindPrompt   ItemKind = "prompt"
	ItemKindAgent    ItemKind = "agent"
	ItemKindRule     ItemKind = "rule"
	ItemKindTemplate ItemKind = "template"
)

// Common validation errors for Item
var (
	ErrEmptyItemID      = errors.New("item ID cannot be empty")
	ErrEmptyItemUserID  = errors.New("item user ID cannot be empty")
	ErrEmptyItemContent = errors.New("item content cannot be empty")
	ErrInvalidItemKind  = errors.New("invalid item kind")
)

// Item represents a single curated content unit (a prompt, agent definition,
// rule, or template) owned by a user. OptimizationCount tracks how many
// model-specific optimizations have already been produced for the item and
// drives the skip-if-optimized pipeline policy.
type Item struct {
	ID                uuid.UUID  `json:"id"`
	UserID            uuid.UUID  `json:"user_id"`
	CollectionID      *uuid.UUID `json:"collection_id,omitempty"`
	Kind              ItemKind   `json:"kind"`
	Title             string     `json:"title"`
	Content           string     `json:"content"`
	OptimizationCount int        `json:"optimization_count"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// NewItem creates a new Item with the given owner, kind, title and content.
// It generates a new UUID for the item and sets the timestamps.
// Returns an error if validation fails.
func NewItem(userID uuid.UUID, kind ItemKind, title, content string) (*Item, error) {
	now := time.Now().UTC()
	item := &Item{
		ID:        uuid.New(),
		UserID:    userID,
		Kind:      kind,
		Title:     title,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := item.Validate(); err != nil {
		return nil, err
	}

	return item, nil
}

// Validate checks if the Item has valid data.
func (i *Item) Validate() error {
	if i.ID == uuid.Nil {
		return ErrEmptyItemID
	}

	if i.UserID == uuid.Nil {
		return ErrEmptyItemUserID
	}

	if i.Content == "" {
		return ErrEmptyItemContent
	}

	if !isValidItemKind(i.Kind) {
		return ErrInvalidItemKind
	}

	return nil
}

// HasOptimizations reports whether at least one optimization has been
// produced for this item.
func (i *Item) HasOptimizations() bool {
	return i.OptimizationCount > 0
}

func isValidItemKind(kind ItemKind) bool {
	switch kind {
	case ItemKindPrompt, ItemKindAgent, ItemKindRule, ItemKindTemplate:
		return true
	default:
		return false
	}
}
