package sources

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"NewsIngestor/internal/domain"
	"NewsIngestor/internal/ports"
)

// Collector fetches every registered source concurrently and isolates their failures.
type Collector struct {
	registry *Registry
	logger   *slog.Logger
}

var _ ports.ItemSource = (*Collector)(nil)

// NewCollector wires the registry with a logger.
func NewCollector(reg *Registry, log *slog.Logger) *Collector {
	return &Collector{registry: reg, logger: log}
}

// FetchAll runs all fetchers in parallel and concatenates their items in
// registration order. A failing source contributes nothing; only a cancelled
// context fails the whole batch.
func (c *Collector) FetchAll(ctx context.Context) ([]domain.RawItem, error) {
	if c.registry == nil {
		return nil, fmt.Errorf("fetcher registry is not configured")
	}

	fetchers := c.registry.All()
	results := make([][]domain.RawItem, len(fetchers))

	g, gctx := errgroup.WithContext(ctx)
	for i, fetcher := range fetchers {
		g.Go(func() error {
			results[i] = c.fetchOne(gctx, fetcher)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fetch sources: %w", err)
	}

	var batch []domain.RawItem
	for i, items := range results {
		c.logger.Debug("source produced items", "source", fetchers[i].Name(), "count", len(items))
		batch = append(batch, items...)
	}
	c.logger.Info("sources fetched", "sources", len(fetchers), "items", len(batch))
	return batch, nil
}

func (c *Collector) fetchOne(ctx context.Context, fetcher ports.Fetcher) (items []domain.RawItem) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("source panicked", "source", fetcher.Name(), "panic", r)
			items = nil
		}
	}()

	items, err := fetcher.Fetch(ctx)
	if err != nil {
		c.logger.Warn("source fetch failed", "source", fetcher.Name(), "error", err)
		return nil
	}
	return items
}
