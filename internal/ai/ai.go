// Package ai defines the boundary between the processing core and external
// LLM/embedding services. The interfaces here are implemented by the provider
// adapters under internal/platform and faked in tests; job handlers depend
// only on this package.
package ai

import "context"

// OptimizationResult is the outcome of rewriting a prompt for a target model.
type OptimizationResult struct {
	Content    string  `json:"content"`
	Model      string  `json:"model"`
	Confidence float64 `json:"confidence"`
	TokensUsed int     `json:"tokens_used"`
}

// Optimizer rewrites prompt content to perform better on one model family.
type Optimizer interface {
	Optimize(ctx context.Context, content string) (*OptimizationResult, error)
}

// ClassificationResult is the outcome of categorizing an item.
type ClassificationResult struct {
	Category   string   `json:"category"`
	Tags       []string `json:"tags"`
	Confidence float64  `json:"confidence"`
}

// Classifier assigns a category and tags to item content.
type Classifier interface {
	Classify(ctx context.Context, content string) (*ClassificationResult, error)
}

// QualityResult is the outcome of assessing item quality. Scores are in
// [0, 1]; Overall is the aggregate the dashboard surfaces.
type QualityResult struct {
	Overall     float64 `json:"overall"`
	Clarity     float64 `json:"clarity"`
	Specificity float64 `json:"specificity"`
	Feedback    string  `json:"feedback"`
	TokensUsed  int     `json:"tokens_used"`
}

// QualityAssessor scores item content quality.
type QualityAssessor interface {
	Assess(ctx context.Context, content string) (*QualityResult, error)
}

// Embedder computes a dense vector representation of text, used for
// duplicate detection and similarity scoring.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
