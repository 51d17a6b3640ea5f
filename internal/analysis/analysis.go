// Package analysis implements the text-analysis backends that enrich raw items
// with a summary, a category and a viability score.
package analysis

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"NewsIngestor/internal/config"
	"NewsIngestor/internal/ports"
)

var (
	// ErrRateLimited marks a provider response that asked the caller to slow down.
	ErrRateLimited = errors.New("rate limited")
	// ErrAllModelsFailed is returned when every model of the fallback chain gave up.
	ErrAllModelsFailed = errors.New("all models failed")
)

// New builds the analyzer selected by cfg.Provider. Unknown names fall back to Gemini.
func New(ctx context.Context, cfg config.AnalysisConfig, log *slog.Logger) (ports.Analyzer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case config.ProviderSimple:
		return NewKeywordAnalyzer(), nil
	case config.ProviderOpenAI:
		return NewOpenAIAnalyzer(cfg.OpenAI, log.With("component", "analysis.openai")), nil
	case config.ProviderGemini:
	default:
		log.Warn("unknown analysis provider, using gemini", "provider", cfg.Provider)
	}
	return NewGeminiAnalyzer(ctx, cfg.Gemini, log.With("component", "analysis.gemini"))
}
