package analysis

import (
	"context"
	"log/slog"
	"strings"

	"NewsIngestor/internal/domain"
)

// completion sends one prompt to a remote model and returns its raw text answer.
type completion func(ctx context.Context, prompt string) (string, error)

// promptTasks implements quote extraction and poll generation on top of a completion.
// Failures never surface: a quote becomes nil, a poll becomes the default draft.
// Only a finished context is reported so the caller can stop the run.
type promptTasks struct {
	complete completion
	logger   *slog.Logger
}

func (p promptTasks) ExtractQuote(ctx context.Context, text string) (*domain.QuoteCandidate, error) {
	if p.complete == nil || strings.TrimSpace(text) == "" {
		return nil, nil
	}
	response, err := p.complete(ctx, quotePrompt(text))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		p.logger.Warn("quote extraction failed", "error", err)
		return nil, nil
	}
	return parseQuote(response), nil
}

func (p promptTasks) GeneratePoll(ctx context.Context, contextText string) (domain.PollDraft, error) {
	if p.complete == nil {
		return domain.DefaultPollDraft(), nil
	}
	response, err := p.complete(ctx, pollPrompt(contextText))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.PollDraft{}, ctxErr
		}
		p.logger.Warn("poll generation failed, using default poll", "error", err)
		return domain.DefaultPollDraft(), nil
	}
	draft, err := parsePoll(response)
	if err != nil {
		p.logger.Warn("poll response unusable, using default poll", "error", err)
		return domain.DefaultPollDraft(), nil
	}
	return draft, nil
}
