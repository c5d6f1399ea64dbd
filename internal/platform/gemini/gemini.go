// Package gemini adapts Google's Gemini API to the ai service interfaces.
// It serves as the optimizer for the gemini target model and as an
// alternative embedder.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"github.com/promptdeck/promptdeck-api/internal/ai"
)

// Config holds the Gemini adapter settings.
type Config struct {
	APIKey         string
	Model          string
	EmbeddingModel string
}

// Client implements ai.Optimizer and ai.Embedder over the Gemini API.
type Client struct {
	api            *genai.Client
	model          string
	embeddingModel string
	logger         *slog.Logger
}

// New creates a configured client.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", ai.ErrInvalidConfig)
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "gemini-embedding-001"
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create gemini client: %v", ai.ErrInvalidConfig, err)
	}

	return &Client{
		api:            client,
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		logger:         logger.With("component", "gemini_client"),
	}, nil
}

// Optimize rewrites prompt content for the Gemini model family.
func (c *Client) Optimize(ctx context.Context, content string) (*ai.OptimizationResult, error) {
	resp, err := c.api.Models.GenerateContent(ctx, c.model,
		genai.Text(optimizePrompt+"\n\n"+content),
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"})
	if err != nil {
		// The SDK does not expose a stable error taxonomy; treat API
		// failures as service trouble and let the caller retry.
		return nil, fmt.Errorf("%w: %v", ai.ErrUnavailable, err)
	}

	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates returned", ai.ErrInvalidResponse)
	}
	if resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return nil, fmt.Errorf("%w: blocked by safety filters", ai.ErrContentBlocked)
	}

	var parsed struct {
		Content    string  `json:"content"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(resp.Text()), &parsed); err != nil {
		return nil, fmt.Errorf("%w: parse completion: %v", ai.ErrInvalidResponse, err)
	}
	if parsed.Content == "" {
		return nil, fmt.Errorf("%w: empty optimized content", ai.ErrInvalidResponse)
	}

	tokens := 0
	if resp.UsageMetadata != nil {
		tokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	return &ai.OptimizationResult{
		Content:    parsed.Content,
		Model:      c.model,
		Confidence: parsed.Confidence,
		TokensUsed: tokens,
	}, nil
}

// Embed computes a dense vector for the text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.api.Models.EmbedContent(ctx, c.embeddingModel, genai.Text(text), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ai.ErrUnavailable, err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("%w: empty embedding", ai.ErrInvalidResponse)
	}
	return resp.Embeddings[0].Values, nil
}

const optimizePrompt = `You optimize prompts for Gemini models. Rewrite the prompt below to be clearer, more specific, and structured for best results on Gemini. Respond with a JSON object: {"content": "<optimized prompt>", "confidence": <0..1>}.`
