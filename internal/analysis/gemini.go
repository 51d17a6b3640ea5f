package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"google.golang.org/genai"

	"NewsIngestor/internal/config"
	"NewsIngestor/internal/domain"
	"NewsIngestor/internal/ports"
)

// textGenerator sends one prompt to one named model.
type textGenerator func(ctx context.Context, model, prompt string) (string, error)

// GeminiAnalyzer walks an ordered list of Gemini models. Each model is retried
// only when it reports a rate limit, waiting backoff x attempt between tries.
// When every model gives up Enrich returns a zero-score placeholder instead of an error.
type GeminiAnalyzer struct {
	promptTasks

	generate    textGenerator
	models      []string
	backoff     time.Duration
	maxAttempts int
	logger      *slog.Logger
}

var _ ports.Analyzer = (*GeminiAnalyzer)(nil)

// NewGeminiAnalyzer connects to the Gemini API. A missing API key is not an
// error: the analyzer then marks every item as skipped.
func NewGeminiAnalyzer(ctx context.Context, cfg config.GeminiConfig, log *slog.Logger) (*GeminiAnalyzer, error) {
	if cfg.APIKey == "" {
		log.Warn("gemini api key missing, enrichment will be skipped")
		return newGeminiAnalyzer(nil, cfg, log), nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return newGeminiAnalyzer(genaiGenerator(client), cfg, log), nil
}

func newGeminiAnalyzer(generate textGenerator, cfg config.GeminiConfig, log *slog.Logger) *GeminiAnalyzer {
	g := &GeminiAnalyzer{
		generate:    generate,
		models:      cfg.Models,
		backoff:     cfg.RateLimitBackoff,
		maxAttempts: cfg.MaxAttempts,
		logger:      log,
	}
	if g.maxAttempts <= 0 {
		g.maxAttempts = 3
	}
	g.promptTasks = promptTasks{logger: log}
	if generate != nil {
		g.promptTasks.complete = func(ctx context.Context, prompt string) (string, error) {
			return g.run(ctx, prompt, nil)
		}
	}
	return g
}

func genaiGenerator(client *genai.Client) textGenerator {
	return func(ctx context.Context, model, prompt string) (string, error) {
		resp, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
		if err != nil {
			if isRateLimit(err) {
				return "", fmt.Errorf("%w: %v", ErrRateLimited, err)
			}
			return "", err
		}
		return resp.Text(), nil
	}
}

func isRateLimit(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == 429 {
		return true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr.Code == 429 {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}

// Name reports the provider name.
func (g *GeminiAnalyzer) Name() string {
	return config.ProviderGemini
}

// Enrich returns the parsed model answer, or a zero-score placeholder when the
// key is missing or every model failed. Only context cancellation is returned as error.
func (g *GeminiAnalyzer) Enrich(ctx context.Context, title, content string) (domain.Enrichment, error) {
	if g.generate == nil {
		return skipped("Gemini Key Missing"), nil
	}

	var result domain.Enrichment
	_, err := g.run(ctx, enrichPrompt(title, content), func(response string) error {
		parsed, err := parseEnrichment(response)
		if err != nil {
			return err
		}
		result = parsed
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.Enrichment{}, ctxErr
		}
		g.logger.Error("gemini enrichment failed", "title", title, "error", err)
		reason := strings.TrimPrefix(err.Error(), ErrAllModelsFailed.Error()+": ")
		return skipped("All Gemini Models Failed: " + reason), nil
	}
	return result, nil
}

// run tries each model in order; accept may reject an answer, which moves on to the next model.
func (g *GeminiAnalyzer) run(ctx context.Context, prompt string, accept func(string) error) (string, error) {
	var lastErr error
	for _, model := range g.models {
		attempt := 0
		response, err := failsafe.With(g.retryPolicy()).WithContext(ctx).Get(func() (string, error) {
			attempt++
			text, err := g.generate(ctx, model, prompt)
			if errors.Is(err, ErrRateLimited) {
				g.logger.Warn("gemini rate limit hit", "model", model, "attempt", attempt, "max_attempts", g.maxAttempts)
			}
			return text, err
		})
		if err == nil && accept != nil {
			err = accept(response)
		}
		if err == nil {
			return response, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		g.logger.Warn("gemini model failed", "model", model, "error", err)
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("no gemini models configured")
	}
	return "", fmt.Errorf("%w: %w", ErrAllModelsFailed, lastErr)
}

func (g *GeminiAnalyzer) retryPolicy() retrypolicy.RetryPolicy[string] {
	backoff := g.backoff
	return retrypolicy.NewBuilder[string]().
		HandleIf(func(_ string, err error) bool {
			return errors.Is(err, ErrRateLimited)
		}).
		WithMaxAttempts(g.maxAttempts).
		WithDelayFunc(func(exec failsafe.ExecutionAttempt[string]) time.Duration {
			return backoff * time.Duration(exec.Attempts())
		}).
		ReturnLastFailure().
		Build()
}
