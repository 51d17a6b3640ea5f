package usecase

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"NewsIngestor/internal/analysis"
	"NewsIngestor/internal/domain"
	"NewsIngestor/internal/infrastructure/lock"
	"NewsIngestor/internal/infrastructure/storage"
	"NewsIngestor/internal/logging"
	"NewsIngestor/internal/slug"
	"NewsIngestor/internal/sources"
)

func TestRunSkipsDuplicatesBeforeEnrichment(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	require.NoError(t, seedArticle(store, "https://x/1", "old"))

	analyzer := &fakeAnalyzer{}
	metrics := newCountingMetrics()
	p := NewPipeline(PipelineDeps{
		Source: staticSource{items: []domain.RawItem{
			{Title: "Old news", URL: "https://x/1", Source: "Arxiv"},
			{Title: "Fresh news", URL: "https://x/2", Source: "Arxiv", Content: "body"},
		}},
		Store:    store,
		Analyzer: analyzer,
		Metrics:  metrics,
	})

	entry, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, domain.RunSuccess, entry.Status)
	require.Equal(t, 1, entry.ArticlesAdded)
	require.Equal(t, []string{"Fresh news"}, analyzer.enriched())
	require.Equal(t, 1, metrics.skipped[SkipDuplicate])
	require.Equal(t, []domain.RunStatus{domain.RunSuccess}, metrics.statuses)
}

func TestRunPersistsEnrichedArticle(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	content := strings.Repeat("a", 600)
	p := newTestPipeline(staticSource{items: []domain.RawItem{
		{Title: "GPT-5 Launches!!", URL: "https://x/1", Source: "Hacker News", Content: content, PublishedAt: domain.EpochPublished(1700000000)},
	}}, store, &fakeAnalyzer{})

	_, err := p.Run(context.Background())
	require.NoError(t, err)

	articles := store.Articles()
	require.Len(t, articles, 1)
	a := articles[0]
	require.Equal(t, "gpt-5-launches", *a.Slug)
	require.Equal(t, "summary of GPT-5 Launches!!", *a.Summary)
	require.Equal(t, domain.CategoryAI, a.Category)
	require.Equal(t, 75, a.ViabilityScore)
	require.True(t, a.IsProcessed)
	require.Len(t, *a.OriginalSnippet, 500)
	require.Equal(t, time.Unix(1700000000, 0).UTC(), a.PublishedAt)
}

func TestRunPublishedAtFallbacks(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	p := newTestPipeline(staticSource{items: []domain.RawItem{
		{Title: "rfc", URL: "https://x/rfc", PublishedAt: domain.TextPublished("Tue, 14 Nov 2023 22:13:20 +0000")},
		{Title: "garbage", URL: "https://x/garbage", PublishedAt: domain.TextPublished("yesterday-ish")},
		{Title: "missing", URL: "https://x/missing"},
	}}, store, &fakeAnalyzer{})

	_, err := p.Run(context.Background())
	require.NoError(t, err)

	got := map[string]time.Time{}
	for _, a := range store.Articles() {
		got[a.Title] = a.PublishedAt
	}
	require.Equal(t, time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC), got["rfc"])
	require.Equal(t, fixedNow, got["garbage"])
	require.Equal(t, fixedNow, got["missing"])
}

func TestRunSlugCollisionUsesURLHash(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	require.NoError(t, seedArticle(store, "https://x/old", "foo"))

	url := "https://x/new"
	p := newTestPipeline(staticSource{items: []domain.RawItem{{Title: "Foo", URL: url}}}, store, &fakeAnalyzer{})
	_, err := p.Run(context.Background())
	require.NoError(t, err)

	articles := store.Articles()
	require.Len(t, articles, 2)
	require.Equal(t, slug.Disambiguate("foo", url), *articles[1].Slug)
	require.Regexp(t, `^foo-\d{1,4}$`, *articles[1].Slug)
}

func TestRunResidualSlugCollisionSkipsItem(t *testing.T) {
	t.Parallel()

	url := "https://x/new"
	store := storage.NewMemoryStore()
	require.NoError(t, seedArticle(store, "https://x/a", "foo"))
	require.NoError(t, seedArticle(store, "https://x/b", slug.Disambiguate("foo", url)))

	metrics := newCountingMetrics()
	p := NewPipeline(PipelineDeps{
		Source: staticSource{items: []domain.RawItem{
			{Title: "Foo", URL: url},
			{Title: "Bar", URL: "https://x/bar"},
		}},
		Store:    store,
		Analyzer: &fakeAnalyzer{},
		Metrics:  metrics,
		Logger:   logging.Discard(),
	})

	entry, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, domain.RunSuccess, entry.Status)
	require.Equal(t, 1, entry.ArticlesAdded)
	require.Equal(t, 1, metrics.skipped[SkipFailed])
}

func TestRunWithFailingSourceStillSucceeds(t *testing.T) {
	t.Parallel()

	reg := sources.NewRegistry()
	reg.Register(stubFetcher{name: "arxiv", items: []domain.RawItem{{Title: "A", URL: "https://a/1"}, {Title: "B", URL: "https://a/2"}}})
	reg.Register(stubFetcher{name: "hackernews", err: errors.New("timeout")})
	reg.Register(stubFetcher{name: "syndication", items: []domain.RawItem{{Title: "C", URL: "https://c/1"}, {Title: "dup", URL: "https://seen/1"}}})

	store := storage.NewMemoryStore()
	require.NoError(t, seedArticle(store, "https://seen/1", ""))

	p := newTestPipeline(sources.NewCollector(reg, logging.Discard()), store, &fakeAnalyzer{})
	entry, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, domain.RunSuccess, entry.Status)
	require.Equal(t, 3, entry.ArticlesAdded)

	logs := store.Logs()
	require.Len(t, logs, 1)
	require.Equal(t, domain.RunSuccess, logs[0].Status)
	require.Equal(t, 3, logs[0].ArticlesAdded)
}

func TestRunEnrichmentFailureIsPerItem(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	analyzer := &fakeAnalyzer{enrichErr: errors.New("openai: 500")}
	p := newTestPipeline(staticSource{items: []domain.RawItem{
		{Title: "one", URL: "https://x/1"},
		{Title: "two", URL: "https://x/2"},
	}}, store, analyzer)

	entry, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, domain.RunSuccess, entry.Status)
	require.Equal(t, 0, entry.ArticlesAdded)
	require.Len(t, analyzer.enriched(), 2)
	require.Empty(t, store.Articles())
	require.Equal(t, domain.RunSuccess, store.Logs()[0].Status)
}

func TestRunFetchFailureMarksFailure(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	metrics := newCountingMetrics()
	p := NewPipeline(PipelineDeps{
		Source:   staticSource{err: errors.New("registry not configured")},
		Store:    store,
		Analyzer: &fakeAnalyzer{},
		Metrics:  metrics,
	})

	entry, err := p.Run(context.Background())
	require.Error(t, err)
	require.Equal(t, domain.RunFailure, entry.Status)

	logs := store.Logs()
	require.Len(t, logs, 1)
	require.Equal(t, domain.RunFailure, logs[0].Status)
	require.Contains(t, logs[0].Errors, "registry not configured")
	require.Equal(t, []domain.RunStatus{domain.RunFailure}, metrics.statuses)
}

func TestRunStorageFailureMarksFailure(t *testing.T) {
	t.Parallel()

	store := &failingStore{MemoryStore: storage.NewMemoryStore(), urlErr: errors.New("connection refused")}
	p := newTestPipeline(staticSource{items: []domain.RawItem{{Title: "one", URL: "https://x/1"}}}, store, &fakeAnalyzer{})

	entry, err := p.Run(context.Background())
	require.Error(t, err)
	require.Equal(t, domain.RunFailure, entry.Status)
	require.Contains(t, store.Logs()[0].Errors, "connection refused")
}

func TestRunCancelledContextRecordsFailure(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newTestPipeline(staticSource{items: []domain.RawItem{{Title: "one", URL: "https://x/1"}}}, store, &fakeAnalyzer{})
	_, err := p.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, domain.RunFailure, store.Logs()[0].Status)
}

func TestRunLockHeldWritesNoLog(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	p := NewPipeline(PipelineDeps{
		Source:   staticSource{},
		Store:    store,
		Analyzer: &fakeAnalyzer{},
		Lock:     heldLock{},
	})

	_, err := p.Run(context.Background())
	require.ErrorIs(t, err, ErrRunInProgress)
	require.Empty(t, store.Logs())

	p.lock = brokenLock{}
	_, err = p.Run(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrRunInProgress)
	require.Empty(t, store.Logs())
}

func TestRunReleasesLock(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	p := NewPipeline(PipelineDeps{
		Source:   staticSource{},
		Store:    store,
		Analyzer: &fakeAnalyzer{},
		Lock:     lock.NewMemoryLock(),
	})

	for range 2 {
		_, err := p.Run(context.Background())
		require.NoError(t, err)
	}
	require.Len(t, store.Logs(), 2)
}

func TestRunEmptyBatchKeepsSeedPoll(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	analyzer := &fakeAnalyzer{}
	p := newTestPipeline(staticSource{}, store, analyzer)

	entry, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, domain.RunSuccess, entry.Status)
	require.Empty(t, analyzer.pollCalls)
	require.Len(t, store.Polls(), 1)
}

func TestRunTwiceLeavesOneActivePoll(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	analyzer := &fakeAnalyzer{poll: domain.PollDraft{
		Question: "Is Rust the new C?",
		Options:  []domain.PollOption{{ID: "y", Text: "Yes", Votes: 10}, {ID: "n", Text: "No"}},
	}}
	p := newTestPipeline(staticSource{items: []domain.RawItem{{Title: "Rust 2.0", URL: "https://x/1"}}}, store, analyzer)

	for range 2 {
		_, err := p.Run(context.Background())
		require.NoError(t, err)
	}

	polls := store.Polls()
	require.Len(t, polls, 3)
	var active []domain.Poll
	for _, poll := range polls {
		if poll.IsActive {
			active = append(active, poll)
		}
	}
	require.Len(t, active, 1)
	require.Equal(t, polls[len(polls)-1].ID, active[0].ID)
	require.Equal(t, 0, active[0].Options[0].Votes)
}

func TestRunPollFailureDoesNotFailRun(t *testing.T) {
	t.Parallel()

	store := &failingStore{MemoryStore: storage.NewMemoryStore(), pollErr: errors.New("deadlock")}
	p := newTestPipeline(staticSource{items: []domain.RawItem{{Title: "one", URL: "https://x/1"}}}, store, &fakeAnalyzer{})

	entry, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, domain.RunSuccess, entry.Status)
	require.Equal(t, 1, entry.ArticlesAdded)
}

func TestRunMinesQuoteEndToEnd(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	analyzer := &fakeAnalyzer{quote: &domain.QuoteCandidate{Text: "AGI is near", Author: "Sam Altman"}}
	items := []domain.RawItem{
		{Title: "OpenAI CEO says AGI is near", URL: "https://x/1", Content: "..."},
		{Title: "Kernel 7.0 released", URL: "https://x/2", Content: "changelog"},
	}
	p := newTestPipeline(staticSource{items: items}, store, analyzer)

	for range 2 {
		_, err := p.Run(context.Background())
		require.NoError(t, err)
	}

	quotes := store.Quotes()
	require.Len(t, quotes, 1)
	require.Equal(t, "AGI is near", quotes[0].Text)
	require.Equal(t, "Sam Altman", quotes[0].Author)
	require.Equal(t, "https://x/1", quotes[0].SourceURL)
	require.Nil(t, quotes[0].Role)
	require.Equal(t, []string{"...", "..."}, analyzer.quoteCalls)
}

func TestRunPublishesDigest(t *testing.T) {
	t.Parallel()

	notifier := &recordingNotifier{}
	p := NewPipeline(PipelineDeps{
		Source:   staticSource{items: []domain.RawItem{{Title: "Fresh", URL: "https://x/1"}}},
		Store:    storage.NewMemoryStore(),
		Analyzer: &fakeAnalyzer{},
		Notifier: notifier,
	})

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, notifier.messages, 1)
	require.Contains(t, notifier.messages[0], "*1 new articles*")
	require.Contains(t, notifier.messages[0], "https://x/1")

	_, err = p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, notifier.messages, 1, "no digest without new articles")
}

func TestRunWithKeywordAnalyzer(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	p := newTestPipeline(staticSource{items: []domain.RawItem{
		{Title: "A new neural network", URL: "https://x/1", Content: "deep learning"},
	}}, store, analysis.NewKeywordAnalyzer())

	entry, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, entry.ArticlesAdded)
	require.Equal(t, 80, store.Articles()[0].ViabilityScore)
	require.Equal(t, domain.DefaultPollDraft().Question, store.Polls()[1].Question)
}

type stubFetcher struct {
	name  string
	items []domain.RawItem
	err   error
}

func (s stubFetcher) Name() string { return s.name }

func (s stubFetcher) Fetch(context.Context) ([]domain.RawItem, error) {
	return s.items, s.err
}

func TestRunWarnsAboutHiddenArticles(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	store := storage.NewMemoryStore()
	p := NewPipeline(PipelineDeps{
		Source: staticSource{items: []domain.RawItem{{Title: "Rate limited", URL: "https://x/hidden"}}},
		Store:  store,
		Analyzer: &fakeAnalyzer{enrichment: &domain.Enrichment{
			Summary:  "AI Processing Skipped: All Gemini Models Failed: 429",
			Category: domain.CategoryResearch,
		}},
		Logger: logging.NewWithWriter(&buf, "debug", "json"),
	})

	entry, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, entry.ArticlesAdded)
	require.Equal(t, 0, store.Articles()[0].ViabilityScore)
	require.Contains(t, buf.String(), "enrichment scored article as hidden")
	require.Contains(t, buf.String(), "https://x/hidden")
}
