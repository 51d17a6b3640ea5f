package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"NewsIngestor/internal/ports"
	"NewsIngestor/internal/slug"
)

const (
	backfillBatchSize = 100
	backfillMaxTries  = 1000
)

// SlugBackfill assigns slugs to articles stored before slugs existed.
type SlugBackfill struct {
	repo   ports.ArticleRepository
	logger *slog.Logger
}

// NewSlugBackfill wires the article repository.
func NewSlugBackfill(repo ports.ArticleRepository, log *slog.Logger) *SlugBackfill {
	return &SlugBackfill{repo: repo, logger: log}
}

// Run processes articles without slug in batches until none are left or a
// batch makes no progress. It returns the number of updated articles.
func (b *SlugBackfill) Run(ctx context.Context) (int, error) {
	updated := 0
	for {
		articles, err := b.repo.ArticlesWithoutSlug(ctx, backfillBatchSize)
		if err != nil {
			return updated, fmt.Errorf("list articles without slug: %w", err)
		}
		if len(articles) == 0 {
			break
		}

		progress := 0
		for _, article := range articles {
			err := b.repo.InArticleTx(ctx, func(tx ports.ArticleTx) error {
				s, err := slug.ResolveSequential(ctx, tx, article.Title, backfillMaxTries)
				if err != nil {
					return err
				}
				return tx.SetSlug(ctx, article.ID, s)
			})
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return updated, ctxErr
				}
				b.logger.Error("slug backfill failed", "article_id", article.ID, "title", article.Title, "error", err)
				continue
			}
			progress++
		}

		updated += progress
		if progress == 0 {
			b.logger.Warn("slug backfill stalled", "remaining", len(articles))
			break
		}
	}

	b.logger.Info("slug backfill complete", "updated", updated)
	return updated, nil
}
