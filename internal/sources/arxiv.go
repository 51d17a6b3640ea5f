package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed"

	"NewsIngestor/internal/domain"
	"NewsIngestor/internal/ports"
)

// ArxivSource is the source label of academic items.
const ArxivSource = "Arxiv"

// ArxivFetcher queries the arXiv export API for the newest submissions of a category filter.
type ArxivFetcher struct {
	client     *http.Client
	endpoint   string
	query      string
	maxResults int
	logger     *slog.Logger
}

var _ ports.Fetcher = (*ArxivFetcher)(nil)

// NewArxivFetcher wires an HTTP client; nil falls back to a 10s-timeout client.
func NewArxivFetcher(client *http.Client, endpoint, query string, maxResults int, log *slog.Logger) *ArxivFetcher {
	return &ArxivFetcher{
		client:     defaultClient(client),
		endpoint:   endpoint,
		query:      query,
		maxResults: maxResults,
		logger:     log,
	}
}

// Name identifies the fetcher inside the registry.
func (a *ArxivFetcher) Name() string {
	return "arxiv"
}

// Fetch returns at most maxResults entries sorted by newest submission.
func (a *ArxivFetcher) Fetch(ctx context.Context) ([]domain.RawItem, error) {
	queryURL, err := buildQueryURL(a.endpoint, a.query, a.maxResults)
	if err != nil {
		return nil, err
	}

	body, err := get(ctx, a.client, queryURL, defaultUserAgent)
	if err != nil {
		return nil, fmt.Errorf("arxiv: %w", err)
	}
	defer body.Close()

	feed, err := gofeed.NewParser().Parse(body)
	if err != nil {
		return nil, fmt.Errorf("arxiv: parse feed: %w", err)
	}

	items := make([]domain.RawItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		link := entry.GUID
		if link == "" {
			link = entry.Link
		}
		if link == "" {
			continue
		}
		items = append(items, domain.RawItem{
			Title:       collapseSpace(entry.Title),
			URL:         strings.TrimSpace(link),
			Source:      ArxivSource,
			Content:     collapseSpace(entry.Description),
			PublishedAt: domain.TextPublished(entry.Published),
		})
	}

	a.logger.Debug("arxiv entries parsed", "count", len(items))
	return items, nil
}

func buildQueryURL(base, query string, maxResults int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid arxiv endpoint %s: %w", base, err)
	}

	q := parsed.Query()
	q.Set("search_query", query)
	q.Set("start", "0")
	q.Set("max_results", strconv.Itoa(maxResults))
	q.Set("sortBy", "submittedDate")
	q.Set("sortOrder", "descending")
	parsed.RawQuery = q.Encode()
	return parsed.String(), nil
}
