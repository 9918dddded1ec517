package llm

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsScanner/internal/config"
	"NewsScanner/internal/domain"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenAIClientComplete(t *testing.T) {
	t.Parallel()

	var got struct {
		Model     string `json:"model"`
		MaxTokens int    `json:"max_tokens"`
		Messages  []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"  Community Initiatives & Local Developments \n"}}],"usage":{"prompt_tokens":5,"completion_tokens":4,"total_tokens":9}}`)
	}))
	defer srv.Close()

	c := NewOpenAIClient(config.LLMConfig{
		Endpoint:            srv.URL + "/v1/",
		APIKey:              "sk-test",
		ClassificationModel: "gpt-4o",
		RequestsPerSecond:   100,
		Timeout:             time.Second,
	}, srv.Client(), quietLogger())

	out, err := c.Complete(context.Background(), domain.CompletionRequest{
		System:    "system prompt",
		User:      "Text: '''hello'''",
		MaxTokens: 8,
	})
	require.NoError(t, err)
	assert.Equal(t, "Community Initiatives & Local Developments", out)

	assert.Equal(t, "gpt-4o", got.Model)
	assert.Equal(t, 8, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "Text: '''hello'''", got.Messages[1].Content)
}

func TestOpenAIClientErrors(t *testing.T) {
	t.Parallel()

	var failing atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !failing.Load() {
			_, _ = io.WriteString(w, `{"id":"1","choices":[]}`)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":{"message":"overloaded","type":"server_error"}}`)
	}))
	defer srv.Close()

	c := NewOpenAIClient(config.LLMConfig{Endpoint: srv.URL}, srv.Client(), quietLogger())

	_, err := c.Complete(context.Background(), domain.CompletionRequest{User: "x", Model: "mistral-nemo"})
	assert.ErrorIs(t, err, ErrEmptyCompletion)

	failing.Store(true)
	_, err = c.Complete(context.Background(), domain.CompletionRequest{User: "x", Model: "mistral-nemo"})
	assert.ErrorContains(t, err, "mistral-nemo")
}
