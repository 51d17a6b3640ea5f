package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"NewsIngestor/internal/domain"
	"NewsIngestor/internal/ports"
)

// HackerNewsSource is the source label of aggregator items.
const HackerNewsSource = "Hacker News"

const hnItemTimeout = 5 * time.Second

type hnItem struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`
	URL   string `json:"url"`
	Time  int64  `json:"time"`
}

// HackerNewsFetcher reads the top stories list and then each story's detail.
type HackerNewsFetcher struct {
	client  *http.Client
	baseURL string
	limit   int
	logger  *slog.Logger
}

var _ ports.Fetcher = (*HackerNewsFetcher)(nil)

// NewHackerNewsFetcher wires an HTTP client against the Firebase API base url.
func NewHackerNewsFetcher(client *http.Client, baseURL string, limit int, log *slog.Logger) *HackerNewsFetcher {
	return &HackerNewsFetcher{
		client:  defaultClient(client),
		baseURL: strings.TrimRight(baseURL, "/"),
		limit:   limit,
		logger:  log,
	}
}

// Name identifies the fetcher inside the registry.
func (h *HackerNewsFetcher) Name() string {
	return "hackernews"
}

// Fetch returns the top stories that link outside the site. Self-posts are dropped.
func (h *HackerNewsFetcher) Fetch(ctx context.Context) ([]domain.RawItem, error) {
	var ids []int64
	if err := h.getJSON(ctx, h.baseURL+"/topstories.json", &ids); err != nil {
		return nil, fmt.Errorf("hackernews: top stories: %w", err)
	}
	if len(ids) > h.limit {
		ids = ids[:h.limit]
	}

	items := make([]domain.RawItem, 0, len(ids))
	for _, id := range ids {
		story, err := h.fetchItem(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("hackernews: item %d: %w", id, err)
		}
		if story == nil || story.URL == "" {
			continue
		}
		items = append(items, domain.RawItem{
			Title:       story.Title,
			URL:         story.URL,
			Source:      HackerNewsSource,
			Content:     "Hacker News discussion on: " + story.Title,
			PublishedAt: domain.EpochPublished(story.Time),
		})
	}

	h.logger.Debug("hackernews stories fetched", "ids", len(ids), "kept", len(items))
	return items, nil
}

func (h *HackerNewsFetcher) fetchItem(ctx context.Context, id int64) (*hnItem, error) {
	itemCtx, cancel := context.WithTimeout(ctx, hnItemTimeout)
	defer cancel()

	var story *hnItem
	if err := h.getJSON(itemCtx, fmt.Sprintf("%s/item/%d.json", h.baseURL, id), &story); err != nil {
		return nil, err
	}
	return story, nil
}

func (h *HackerNewsFetcher) getJSON(ctx context.Context, rawURL string, v any) error {
	body, err := get(ctx, h.client, rawURL, defaultUserAgent)
	if err != nil {
		return err
	}
	defer body.Close()

	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return nil
}
