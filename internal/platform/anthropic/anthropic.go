// Package anthropic adapts the Anthropic Messages API to the ai service
// interfaces. The API is small enough that the adapter speaks HTTP directly.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/promptdeck/promptdeck-api/internal/ai"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	apiVersion     = "2023-06-01"
	maxTokens      = 2048
)

// Config holds the Anthropic adapter settings.
type Config struct {
	APIKey string
	Model  string

	// BaseURL overrides the API endpoint, used by tests.
	BaseURL string
}

// Client implements ai.Optimizer over the Anthropic Messages API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	logger     *slog.Logger
}

// New creates a configured client.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: anthropic API key cannot be empty", ai.ErrInvalidConfig)
	}
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-20250514"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		logger:     logger.With("component", "anthropic_client"),
	}, nil
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Optimize rewrites prompt content for the Claude model family.
func (c *Client) Optimize(ctx context.Context, content string) (*ai.OptimizationResult, error) {
	resp, err := c.send(ctx, messagesRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		System:    optimizeSystemPrompt,
		Messages:  []message{{Role: "user", Content: content}},
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Content) == 0 || resp.Content[0].Text == "" {
		return nil, fmt.Errorf("%w: empty completion", ai.ErrInvalidResponse)
	}

	var parsed struct {
		Content    string  `json:"content"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(resp.Content[0].Text), &parsed); err != nil {
		return nil, fmt.Errorf("%w: parse completion: %v", ai.ErrInvalidResponse, err)
	}
	if parsed.Content == "" {
		return nil, fmt.Errorf("%w: empty optimized content", ai.ErrInvalidResponse)
	}

	return &ai.OptimizationResult{
		Content:    parsed.Content,
		Model:      c.model,
		Confidence: parsed.Confidence,
		TokensUsed: resp.Usage.InputTokens + resp.Usage.OutputTokens,
	}, nil
}

// send posts one messages request and maps HTTP failures onto the ai error
// taxonomy.
func (c *Client) send(ctx context.Context, reqBody messagesRequest) (*messagesResponse, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ai.ErrUnavailable, err)
	}
	defer func() {
		_ = httpResp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ai.ErrUnavailable, err)
	}

	switch {
	case httpResp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: %s", ai.ErrRateLimited, body)
	case httpResp.StatusCode == http.StatusUnauthorized, httpResp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s", ai.ErrInvalidConfig, body)
	case httpResp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("%w: status %d", ai.ErrUnavailable, httpResp.StatusCode)
	case httpResp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d: %s", ai.ErrInvalidResponse, httpResp.StatusCode, body)
	}

	var resp messagesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ai.ErrInvalidResponse, err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("%w: %s: %s", ai.ErrInvalidResponse, resp.Error.Type, resp.Error.Message)
	}

	return &resp, nil
}

const optimizeSystemPrompt = `You optimize prompts for Claude models. Rewrite the user's prompt to be clearer, more specific, and structured for best results on Claude, using XML tags where they help. Respond with a JSON object: {"content": "<optimized prompt>", "confidence": <0..1>}.`
