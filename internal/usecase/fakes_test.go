package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"NewsIngestor/internal/domain"
	"NewsIngestor/internal/infrastructure/storage"
	"NewsIngestor/internal/ports"
)

type staticSource struct {
	items []domain.RawItem
	err   error
}

func (s staticSource) FetchAll(context.Context) ([]domain.RawItem, error) {
	return s.items, s.err
}

type fakeAnalyzer struct {
	mu          sync.Mutex
	enrichCalls []string
	enrichErr   error
	enrichment  *domain.Enrichment
	quoteCalls  []string
	quote       *domain.QuoteCandidate
	pollCalls   []string
	poll        domain.PollDraft
	pollErr     error
}

func (f *fakeAnalyzer) Name() string { return "fake" }

func (f *fakeAnalyzer) Enrich(_ context.Context, title, _ string) (domain.Enrichment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enrichCalls = append(f.enrichCalls, title)
	if f.enrichErr != nil {
		return domain.Enrichment{}, f.enrichErr
	}
	if f.enrichment != nil {
		return *f.enrichment, nil
	}
	return domain.Enrichment{Summary: "summary of " + title, Category: domain.CategoryAI, ViabilityScore: 75}, nil
}

func (f *fakeAnalyzer) ExtractQuote(_ context.Context, text string) (*domain.QuoteCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quoteCalls = append(f.quoteCalls, text)
	return f.quote, nil
}

func (f *fakeAnalyzer) GeneratePoll(_ context.Context, contextText string) (domain.PollDraft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pollCalls = append(f.pollCalls, contextText)
	if f.pollErr != nil {
		return domain.PollDraft{}, f.pollErr
	}
	if f.poll.Question != "" {
		return f.poll, nil
	}
	return domain.DefaultPollDraft(), nil
}

func (f *fakeAnalyzer) enriched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.enrichCalls...)
}

// failingStore wraps a MemoryStore and fails selected operations.
type failingStore struct {
	*storage.MemoryStore
	urlErr  error
	pollErr error
}

func (s *failingStore) URLExists(ctx context.Context, url string) (bool, error) {
	if s.urlErr != nil {
		return false, s.urlErr
	}
	return s.MemoryStore.URLExists(ctx, url)
}

func (s *failingStore) ReplaceActivePoll(ctx context.Context, poll domain.Poll) error {
	if s.pollErr != nil {
		return s.pollErr
	}
	return s.MemoryStore.ReplaceActivePoll(ctx, poll)
}

type heldLock struct{}

func (heldLock) TryAcquire(context.Context) (func(), bool, error) { return nil, false, nil }

type brokenLock struct{}

func (brokenLock) TryAcquire(context.Context) (func(), bool, error) {
	return nil, false, errors.New("valkey down")
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) PublishDigest(_ context.Context, digest string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, digest)
	return nil
}

type countingMetrics struct {
	mu       sync.Mutex
	statuses []domain.RunStatus
	skipped  map[string]int
	quotes   int
	polls    int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{skipped: map[string]int{}}
}

func (m *countingMetrics) RunFinished(status domain.RunStatus, _ int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, status)
}

func (m *countingMetrics) ItemSkipped(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skipped[reason]++
}

func (m *countingMetrics) QuoteAdded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotes++
}

func (m *countingMetrics) PollGenerated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.polls++
}

func seedArticle(store *storage.MemoryStore, url, slugValue string) error {
	return store.InArticleTx(context.Background(), func(tx ports.ArticleTx) error {
		a := domain.Article{Title: "seed", URL: url, Category: domain.CategoryResearch}
		if slugValue != "" {
			a.Slug = &slugValue
		}
		return tx.InsertArticle(context.Background(), a)
	})
}

var fixedNow = time.Date(2025, 11, 8, 12, 0, 0, 0, time.UTC)

func newTestPipeline(source ports.ItemSource, store ports.Store, analyzer ports.Analyzer) *Pipeline {
	return NewPipeline(PipelineDeps{
		Source:   source,
		Store:    store,
		Analyzer: analyzer,
		Clock:    func() time.Time { return fixedNow },
	})
}
