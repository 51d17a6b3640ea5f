package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"NewsIngestor/internal/config"
	"NewsIngestor/internal/domain"
	"NewsIngestor/internal/ports"
)

const openAIRequestTimeout = 60 * time.Second

// OpenAIAnalyzer issues one JSON-mode chat completion per call. It never
// retries and returns every failure to the caller.
type OpenAIAnalyzer struct {
	promptTasks

	client      *openai.Client
	model       string
	temperature float32
	logger      *slog.Logger
}

var _ ports.Analyzer = (*OpenAIAnalyzer)(nil)

// NewOpenAIAnalyzer builds a client from configuration. Without an API key
// every Enrich call fails.
func NewOpenAIAnalyzer(cfg config.OpenAIConfig, log *slog.Logger) *OpenAIAnalyzer {
	a := &OpenAIAnalyzer{
		model:       cfg.Model,
		temperature: cfg.Temperature,
		logger:      log,
	}
	if a.model == "" {
		a.model = openai.GPT3Dot5Turbo
	}
	if cfg.APIKey != "" {
		clientCfg := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientCfg.BaseURL = cfg.BaseURL
		}
		clientCfg.HTTPClient = &http.Client{Timeout: openAIRequestTimeout}
		a.client = openai.NewClientWithConfig(clientCfg)
	} else {
		log.Warn("openai api key missing, enrichment calls will fail")
	}
	a.promptTasks = promptTasks{complete: a.complete, logger: log}
	return a
}

// Name reports the provider name.
func (a *OpenAIAnalyzer) Name() string {
	return config.ProviderOpenAI
}

// Enrich sends the enrichment prompt and parses the JSON answer.
func (a *OpenAIAnalyzer) Enrich(ctx context.Context, title, content string) (domain.Enrichment, error) {
	response, err := a.complete(ctx, enrichPrompt(title, content))
	if err != nil {
		return domain.Enrichment{}, err
	}
	return parseEnrichment(response)
}

func (a *OpenAIAnalyzer) complete(ctx context.Context, prompt string) (string, error) {
	if a == nil || a.client == nil {
		return "", errors.New("openai client misconfigured")
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		Temperature: a.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}

	a.logger.Debug("openai response received", "model", a.model, "finish_reason", string(resp.Choices[0].FinishReason))
	return resp.Choices[0].Message.Content, nil
}
