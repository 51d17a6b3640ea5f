package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"NewsIngestor/internal/domain"
	"NewsIngestor/internal/ports"
)

const (
	pollContextItems   = 5
	pollSnippetLimit   = 100
	minimumPollOptions = 2
)

// PollGenerator replaces the active poll with one inspired by the freshest items.
type PollGenerator struct {
	analyzer ports.Analyzer
	repo     ports.PollRepository
	metrics  ports.RunMetrics
	logger   *slog.Logger
}

// NewPollGenerator wires the analyzer with poll storage.
func NewPollGenerator(analyzer ports.Analyzer, repo ports.PollRepository, metrics ports.RunMetrics, log *slog.Logger) *PollGenerator {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &PollGenerator{analyzer: analyzer, repo: repo, metrics: metrics, logger: log}
}

// Generate builds a poll from the first items of the batch and makes it the only active one.
func (g *PollGenerator) Generate(ctx context.Context, items []domain.RawItem) error {
	draft, err := g.analyzer.GeneratePoll(ctx, BuildPollContext(items))
	if err != nil {
		return fmt.Errorf("generate poll: %w", err)
	}
	if strings.TrimSpace(draft.Question) == "" || len(draft.Options) < minimumPollOptions {
		draft = domain.DefaultPollDraft()
	}

	options := make([]domain.PollOption, len(draft.Options))
	for i, opt := range draft.Options {
		options[i] = domain.PollOption{ID: opt.ID, Text: opt.Text, Votes: 0}
	}

	poll := domain.Poll{
		ID:       uuid.NewString(),
		Question: draft.Question,
		Options:  options,
		IsActive: true,
	}
	if err := g.repo.ReplaceActivePoll(ctx, poll); err != nil {
		return fmt.Errorf("store poll: %w", err)
	}

	g.metrics.PollGenerated()
	g.logger.Info("created new daily poll", "question", poll.Question)
	return nil
}

// BuildPollContext lists the first five items as "- title: snippet..." lines.
func BuildPollContext(items []domain.RawItem) string {
	if len(items) > pollContextItems {
		items = items[:pollContextItems]
	}
	lines := make([]string, 0, len(items))
	for _, item := range items {
		snippet := []rune(item.Content)
		if len(snippet) > pollSnippetLimit {
			snippet = snippet[:pollSnippetLimit]
		}
		lines = append(lines, fmt.Sprintf("- %s: %s...", item.Title, string(snippet)))
	}
	return strings.Join(lines, "\n")
}
