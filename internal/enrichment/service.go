// Package enrichment asks a completion service for a category and a summary
// of scraped article text.
package enrichment

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"NewsScanner/internal/domain"
	"NewsScanner/internal/ports"
)

const (
	categoryMaxTokens   = 8
	categoryMaxLength   = 200
	defaultSummaryLimit = 100
)

// Options selects models and limits for the two prompts.
type Options struct {
	ClassificationModel string
	SummarizationModel  string
	SummaryMaxTokens    int
}

// Service implements ports.Enricher. It never returns an error: every
// failure is reported as ok == false and logged.
type Service struct {
	client ports.CompletionClient
	opts   Options
	log    *slog.Logger
}

var _ ports.Enricher = (*Service)(nil)

// NewService wraps a completion client. SummaryMaxTokens defaults to
// defaultSummaryLimit when unset.
func NewService(client ports.CompletionClient, opts Options, log *slog.Logger) *Service {
	if opts.SummaryMaxTokens <= 0 {
		opts.SummaryMaxTokens = defaultSummaryLimit
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{client: client, opts: opts, log: log}
}

// AssignCategory returns the label chosen by the model. Labels outside
// domain.Categories, including domain.CategoryUnknown, are returned as given.
func (s *Service) AssignCategory(ctx context.Context, text string) (domain.Category, bool) {
	out, ok := s.complete(ctx, "category", domain.CompletionRequest{
		System:      categoryPrompt(),
		User:        userPrompt(text),
		Model:       s.opts.ClassificationModel,
		MaxTokens:   categoryMaxTokens,
		Temperature: 0,
	})
	if !ok {
		return "", false
	}
	if strings.ContainsAny(out, "\r\n") || len(out) > categoryMaxLength {
		s.log.Warn("category response rejected", "length", len(out))
		return "", false
	}

	category := domain.Category(out)
	if !category.Known() {
		s.log.Debug("category outside closed set", "category", out)
	}
	return category, true
}

// GenerateSummary returns a short summary of text.
func (s *Service) GenerateSummary(ctx context.Context, text string) (string, bool) {
	return s.complete(ctx, "summary", domain.CompletionRequest{
		System:    summaryPrompt,
		User:      userPrompt(text),
		Model:     s.opts.SummarizationModel,
		MaxTokens: s.opts.SummaryMaxTokens,
	})
}

func (s *Service) complete(ctx context.Context, kind string, req domain.CompletionRequest) (out string, ok bool) {
	if s.client == nil {
		return "", false
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("completion client panicked", "kind", kind, "panic", r)
			out, ok = "", false
		}
	}()

	out, err := s.client.Complete(ctx, req)
	if err != nil {
		s.log.Warn("completion failed", "kind", kind, "error", err)
		return "", false
	}
	out = strings.TrimSpace(out)
	if out == "" {
		s.log.Warn("completion empty", "kind", kind)
		return "", false
	}
	return out, true
}

const summaryPrompt = "You are a strict summarization assistant. You will be given text delimited by triple quotes. " +
	"Your task is to summarize the text in a concise manner."

func categoryPrompt() string {
	labels := make([]string, len(domain.Categories))
	for i, c := range domain.Categories {
		labels[i] = c.String()
	}
	return fmt.Sprintf("You are a strict categorization assistant. You will be given text delimited by triple quotes. "+
		"Using the given text, your task is to either return ONLY ONE category from the following list: %s or respond with %s. "+
		"Do not explain your choice. Do not include any other text or punctuation.",
		strings.Join(labels, "; "), domain.CategoryUnknown)
}

func userPrompt(text string) string {
	return "Text: '''" + text + "'''"
}
