// Package openai adapts the OpenAI API to the ai service interfaces. One
// Client serves all four roles: optimizer, classifier, quality assessor and
// embedder.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/promptdeck/promptdeck-api/internal/ai"
)

// Config holds the OpenAI adapter settings.
type Config struct {
	APIKey         string
	Model          string
	EmbeddingModel openai.EmbeddingModel

	// BaseURL overrides the API endpoint, used by tests.
	BaseURL string
}

// Client implements ai.Optimizer, ai.Classifier, ai.QualityAssessor and
// ai.Embedder over the OpenAI chat and embeddings APIs.
type Client struct {
	api            *openai.Client
	model          string
	embeddingModel openai.EmbeddingModel
	logger         *slog.Logger
}

// New creates a configured client.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai API key cannot be empty", ai.ErrInvalidConfig)
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = openai.SmallEmbedding3
	}
	if logger == nil {
		logger = slog.Default()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Client{
		api:            openai.NewClientWithConfig(clientCfg),
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		logger:         logger.With("component", "openai_client"),
	}, nil
}

// complete sends one system+user chat exchange expecting a JSON object reply
// and unmarshals it into out. The token count of the exchange is returned.
func (c *Client) complete(ctx context.Context, system, user string, out any) (int, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return 0, mapAPIError(err)
	}

	if len(resp.Choices) == 0 {
		return 0, fmt.Errorf("%w: no choices returned", ai.ErrInvalidResponse)
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), out); err != nil {
		return 0, fmt.Errorf("%w: parse completion: %v", ai.ErrInvalidResponse, err)
	}

	return resp.Usage.TotalTokens, nil
}

// Optimize rewrites prompt content for the configured OpenAI model family.
func (c *Client) Optimize(ctx context.Context, content string) (*ai.OptimizationResult, error) {
	var parsed struct {
		Content    string  `json:"content"`
		Confidence float64 `json:"confidence"`
	}
	tokens, err := c.complete(ctx, optimizeSystemPrompt, content, &parsed)
	if err != nil {
		return nil, err
	}
	if parsed.Content == "" {
		return nil, fmt.Errorf("%w: empty optimized content", ai.ErrInvalidResponse)
	}

	return &ai.OptimizationResult{
		Content:    parsed.Content,
		Model:      c.model,
		Confidence: parsed.Confidence,
		TokensUsed: tokens,
	}, nil
}

// Classify assigns a category and tags to the content.
func (c *Client) Classify(ctx context.Context, content string) (*ai.ClassificationResult, error) {
	var parsed struct {
		Category   string   `json:"category"`
		Tags       []string `json:"tags"`
		Confidence float64  `json:"confidence"`
	}
	if _, err := c.complete(ctx, classifySystemPrompt, content, &parsed); err != nil {
		return nil, err
	}
	if parsed.Category == "" {
		return nil, fmt.Errorf("%w: empty category", ai.ErrInvalidResponse)
	}

	return &ai.ClassificationResult{
		Category:   parsed.Category,
		Tags:       parsed.Tags,
		Confidence: parsed.Confidence,
	}, nil
}

// Assess scores the content's quality.
func (c *Client) Assess(ctx context.Context, content string) (*ai.QualityResult, error) {
	var parsed struct {
		Overall     float64 `json:"overall"`
		Clarity     float64 `json:"clarity"`
		Specificity float64 `json:"specificity"`
		Feedback    string  `json:"feedback"`
	}
	tokens, err := c.complete(ctx, assessSystemPrompt, content, &parsed)
	if err != nil {
		return nil, err
	}

	return &ai.QualityResult{
		Overall:     parsed.Overall,
		Clarity:     parsed.Clarity,
		Specificity: parsed.Specificity,
		Feedback:    parsed.Feedback,
		TokensUsed:  tokens,
	}, nil
}

// Embed computes a dense vector for the text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: c.embeddingModel,
	})
	if err != nil {
		return nil, mapAPIError(err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding", ai.ErrInvalidResponse)
	}
	return resp.Data[0].Embedding, nil
}

// mapAPIError translates OpenAI API failures onto the ai error taxonomy so
// handlers can decide between retry and permanent failure.
func mapAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", ai.ErrRateLimited, err)
		case apiErr.HTTPStatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("%w: %v", ai.ErrUnavailable, err)
		case apiErr.Code == "content_filter" || apiErr.Code == "content_policy_violation":
			return fmt.Errorf("%w: %v", ai.ErrContentBlocked, err)
		case apiErr.HTTPStatusCode == http.StatusUnauthorized:
			return fmt.Errorf("%w: %v", ai.ErrInvalidConfig, err)
		}
	}
	return err
}

const (
	optimizeSystemPrompt = `You optimize prompts for OpenAI models. Rewrite the user's prompt to be clearer, more specific, and structured for best results on GPT-family models. Respond with a JSON object: {"content": "<optimized prompt>", "confidence": <0..1>}.`

	classifySystemPrompt = `You classify prompt-engineering content. Assign the user's text one category (e.g. "coding", "writing", "analysis", "agent", "other") and up to five short tags. Respond with a JSON object: {"category": "...", "tags": ["..."], "confidence": <0..1>}.`

	assessSystemPrompt = `You review prompt quality. Score the user's prompt on overall quality, clarity, and specificity, each in [0, 1], and give one sentence of actionable feedback. Respond with a JSON object: {"overall": <0..1>, "clarity": <0..1>, "specificity": <0..1>, "feedback": "..."}.`
)
