package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"NewsScanner/internal/config"
	"NewsScanner/internal/domain"
	"NewsScanner/internal/ports"
)

// ErrEmptyCompletion is returned when the service answers without choices.
var ErrEmptyCompletion = errors.New("completion returned no choices")

// OpenAIClient implements ports.CompletionClient for OpenAI and any
// OpenAI-compatible endpoint such as Ollama.
type OpenAIClient struct {
	client       *openai.Client
	defaultModel string
	limiter      *rate.Limiter
	timeout      time.Duration
	log          *slog.Logger
}

var _ ports.CompletionClient = (*OpenAIClient)(nil)

// NewOpenAIClient builds a client from configuration. httpClient may be nil.
func NewOpenAIClient(cfg config.LLMConfig, httpClient *http.Client, log *slog.Logger) *OpenAIClient {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		oc.BaseURL = strings.TrimRight(cfg.Endpoint, "/")
	}
	oc.OrgID = cfg.Organization
	if httpClient != nil {
		oc.HTTPClient = httpClient
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	if log == nil {
		log = slog.Default()
	}

	return &OpenAIClient{
		client:       openai.NewClientWithConfig(oc),
		defaultModel: cfg.ClassificationModel,
		limiter:      rate.NewLimiter(limit, 1),
		timeout:      cfg.Timeout,
		log:          log,
	}
}

// Complete sends one system+user exchange and returns the trimmed answer.
func (c *OpenAIClient) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	model := req.Model
	if model == "" {
		model = c.defaultModel
	}
	// temperature is omitempty in the request struct; zero would fall back
	// to the service default of 1
	temperature := req.Temperature
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.User})

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion (%s): %w", model, err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	c.log.Debug("completion done",
		"model", model,
		"duration", time.Since(start),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
