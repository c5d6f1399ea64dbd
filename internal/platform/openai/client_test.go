package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptdeck/promptdeck-api/internal/ai"
)

func newStubClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(Config{
		APIKey:  "test-key",
		BaseURL: server.URL + "/v1",
	}, nil)
	require.NoError(t, err)
	return client
}

func chatResponse(t *testing.T, w http.ResponseWriter, content string, tokens int) {
	t.Helper()
	resp := openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
		Usage: openai.Usage{TotalTokens: tokens},
	}
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(resp))
}

func TestNewRequiresAPIKey(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}, nil)
	assert.ErrorIs(t, err, ai.ErrInvalidConfig)
}

func TestClientOptimize(t *testing.T) {
	t.Parallel()

	client := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		chatResponse(t, w, `{"content":"optimized prompt","confidence":0.91}`, 57)
	})

	res, err := client.Optimize(context.Background(), "raw prompt")
	require.NoError(t, err)
	assert.Equal(t, "optimized prompt", res.Content)
	assert.InDelta(t, 0.91, res.Confidence, 1e-9)
	assert.Equal(t, 57, res.TokensUsed)
}

func TestClientClassify(t *testing.T) {
	t.Parallel()

	client := newStubClient(t, func(w http.ResponseWriter, _ *http.Request) {
		chatResponse(t, w, `{"category":"coding","tags":["go"],"confidence":0.8}`, 20)
	})

	res, err := client.Classify(context.Background(), "some prompt")
	require.NoError(t, err)
	assert.Equal(t, "coding", res.Category)
	assert.Equal(t, []string{"go"}, res.Tags)
}

func TestClientRejectsMalformedCompletion(t *testing.T) {
	t.Parallel()

	client := newStubClient(t, func(w http.ResponseWriter, _ *http.Request) {
		chatResponse(t, w, `not json at all`, 5)
	})

	_, err := client.Optimize(context.Background(), "raw prompt")
	assert.ErrorIs(t, err, ai.ErrInvalidResponse)
}

func TestClientEmbed(t *testing.T) {
	t.Parallel()

	client := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		resp := openai.EmbeddingResponse{
			Data: []openai.Embedding{{Embedding: []float32{0.1, 0.2}}},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})

	vec, err := client.Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, vec)
}

func TestMapAPIError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   *openai.APIError
		want error
	}{
		{
			name: "rate limited",
			in:   &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests},
			want: ai.ErrRateLimited,
		},
		{
			name: "server error",
			in:   &openai.APIError{HTTPStatusCode: http.StatusBadGateway},
			want: ai.ErrUnavailable,
		},
		{
			name: "content filter",
			in:   &openai.APIError{HTTPStatusCode: http.StatusBadRequest, Code: "content_filter"},
			want: ai.ErrContentBlocked,
		},
		{
			name: "bad credentials",
			in:   &openai.APIError{HTTPStatusCode: http.StatusUnauthorized},
			want: ai.ErrInvalidConfig,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.ErrorIs(t, mapAPIError(tc.in), tc.want)
		})
	}
}
