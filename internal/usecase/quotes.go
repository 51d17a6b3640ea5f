package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"NewsIngestor/internal/domain"
	"NewsIngestor/internal/ports"
)

// quoteKeywords pre-filter titles so only likely statements reach the analyzer.
var quoteKeywords = []string{"interview", "speech", "talk", "says", "warns", "predicts", "statement", "keynote"}

// QuoteMiner extracts speaker/quote pairs from the raw batch.
type QuoteMiner struct {
	analyzer ports.Analyzer
	repo     ports.QuoteRepository
	metrics  ports.RunMetrics
	logger   *slog.Logger
}

// NewQuoteMiner wires the analyzer with quote storage.
func NewQuoteMiner(analyzer ports.Analyzer, repo ports.QuoteRepository, metrics ports.RunMetrics, log *slog.Logger) *QuoteMiner {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &QuoteMiner{analyzer: analyzer, repo: repo, metrics: metrics, logger: log}
}

// Mine scans every item with a quote keyword in its title. summaries maps
// item url to the summary produced in this run and is used when an item has no content.
// Failures are logged per item; only a finished context stops the pass.
func (m *QuoteMiner) Mine(ctx context.Context, items []domain.RawItem, summaries map[string]string) error {
	for _, item := range items {
		if !hasQuoteKeyword(item.Title) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		text := item.Content
		if text == "" {
			text = summaries[item.URL]
		}
		if text == "" {
			text = item.Title
		}

		err := guard(func() error { return m.mineOne(ctx, item, text) })
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			m.logger.Error("quote extraction failed", "title", item.Title, "error", err)
		}
	}
	return nil
}

func (m *QuoteMiner) mineOne(ctx context.Context, item domain.RawItem, text string) error {
	candidate, err := m.analyzer.ExtractQuote(ctx, text)
	if err != nil {
		return fmt.Errorf("extract quote: %w", err)
	}
	if candidate == nil {
		return nil
	}

	exists, err := m.repo.QuoteExists(ctx, candidate.Text)
	if err != nil {
		return fmt.Errorf("check quote: %w", err)
	}
	if exists {
		return nil
	}

	quote := domain.Quote{
		Text:      candidate.Text,
		Author:    candidate.Author,
		SourceURL: item.URL,
	}
	if candidate.Role != "" {
		role := candidate.Role
		quote.Role = &role
	}
	if err := m.repo.InsertQuote(ctx, quote); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil
		}
		return fmt.Errorf("insert quote: %w", err)
	}

	m.metrics.QuoteAdded()
	m.logger.Info("extracted quote", "author", candidate.Author, "url", item.URL)
	return nil
}

func hasQuoteKeyword(title string) bool {
	lower := strings.ToLower(title)
	for _, k := range quoteKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
