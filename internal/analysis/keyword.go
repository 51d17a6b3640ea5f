package analysis

import (
	"context"
	"strings"

	"NewsIngestor/internal/config"
	"NewsIngestor/internal/domain"
	"NewsIngestor/internal/ports"
)

const (
	keywordScore        = 80
	keywordSummaryLimit = 200
	keywordWhyItMatters = "Relevant for tech industry trends."
)

// keywordRules are checked in order; the first list with a hit wins.
var keywordRules = []struct {
	category domain.Category
	words    []string
}{
	{domain.CategoryAI, []string{"ai", "llm", "gpt", "model", "transformer", "neural", "robot"}},
	{domain.CategorySoftwareEngineering, []string{"software", "code", "dev", "api", "framework", "react", "python"}},
	{domain.CategoryComputerScience, []string{"computer", "algorithm", "system", "database", "network"}},
}

// KeywordAnalyzer classifies by substring matches and never leaves the process.
type KeywordAnalyzer struct{}

var _ ports.Analyzer = KeywordAnalyzer{}

// NewKeywordAnalyzer returns the offline analyzer.
func NewKeywordAnalyzer() KeywordAnalyzer {
	return KeywordAnalyzer{}
}

// Name reports the provider name.
func (KeywordAnalyzer) Name() string {
	return config.ProviderSimple
}

// Enrich always succeeds with a fixed score of 80.
func (KeywordAnalyzer) Enrich(_ context.Context, title, content string) (domain.Enrichment, error) {
	text := strings.ToLower(title + " " + content)

	category := domain.CategoryResearch
	for _, rule := range keywordRules {
		if containsAny(text, rule.words) {
			category = rule.category
			break
		}
	}

	summary := strings.ReplaceAll(truncate(content, keywordSummaryLimit), "\n", " ") + "..."
	return domain.Enrichment{
		Summary:        summary + "\n\n**Why this matters:** " + keywordWhyItMatters,
		Category:       category,
		ViabilityScore: keywordScore,
	}, nil
}

// ExtractQuote finds nothing; quote mining needs a language model.
func (KeywordAnalyzer) ExtractQuote(context.Context, string) (*domain.QuoteCandidate, error) {
	return nil, nil
}

// GeneratePoll returns the default poll.
func (KeywordAnalyzer) GeneratePoll(context.Context, string) (domain.PollDraft, error) {
	return domain.DefaultPollDraft(), nil
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
