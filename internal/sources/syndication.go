package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mmcdole/gofeed"

	"NewsIngestor/internal/domain"
	"NewsIngestor/internal/ports"
)

// DefaultFeedSource labels items whose feed has no title.
const DefaultFeedSource = "RSS Feed"

// SyndicationFetcher walks a fixed list of RSS/Atom feeds one after another.
type SyndicationFetcher struct {
	client    *http.Client
	feeds     []string
	perFeed   int
	userAgent string
	logger    *slog.Logger
}

var _ ports.Fetcher = (*SyndicationFetcher)(nil)

// NewSyndicationFetcher wires the feed list, per-feed cap and user agent.
func NewSyndicationFetcher(client *http.Client, feeds []string, perFeed int, userAgent string, log *slog.Logger) *SyndicationFetcher {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &SyndicationFetcher{
		client:    defaultClient(client),
		feeds:     feeds,
		perFeed:   perFeed,
		userAgent: userAgent,
		logger:    log,
	}
}

// Name identifies the fetcher inside the registry.
func (s *SyndicationFetcher) Name() string {
	return "syndication"
}

// Fetch reads every feed sequentially; a broken feed is logged and skipped.
func (s *SyndicationFetcher) Fetch(ctx context.Context) ([]domain.RawItem, error) {
	var items []domain.RawItem
	for _, feedURL := range s.feeds {
		if err := ctx.Err(); err != nil {
			return items, err
		}

		feedItems, err := s.fetchFeed(ctx, feedURL)
		if err != nil {
			s.logger.Warn("feed fetch failed", "feed", feedURL, "error", err)
			continue
		}
		items = append(items, feedItems...)
	}
	return items, nil
}

func (s *SyndicationFetcher) fetchFeed(ctx context.Context, feedURL string) ([]domain.RawItem, error) {
	body, err := get(ctx, s.client, feedURL, s.userAgent)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	feed, err := gofeed.NewParser().Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", feedURL, err)
	}

	source := strings.TrimSpace(feed.Title)
	if source == "" {
		source = DefaultFeedSource
	}

	entries := feed.Items
	if len(entries) > s.perFeed {
		entries = entries[:s.perFeed]
	}

	items := make([]domain.RawItem, 0, len(entries))
	for _, entry := range entries {
		if entry.Link == "" {
			continue
		}
		content := entry.Description
		if content == "" {
			content = entry.Content
		}
		items = append(items, domain.RawItem{
			Title:       plainText(entry.Title),
			URL:         entry.Link,
			Source:      source,
			Content:     plainText(content),
			PublishedAt: domain.TextPublished(entry.Published),
		})
	}
	return items, nil
}
