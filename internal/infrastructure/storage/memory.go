package storage

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"NewsIngestor/internal/domain"
	"NewsIngestor/internal/ports"
)

// MemoryStore keeps everything in process memory with the same uniqueness
// rules as the Postgres schema. Used by the "memory" driver and by tests.
type MemoryStore struct {
	mu       sync.RWMutex
	articles []domain.Article
	logs     []domain.IngestionLog
	quotes   []domain.Quote
	polls    []domain.Poll
	now      func() time.Time
}

var _ ports.Store = (*MemoryStore)(nil)

// NewMemoryStore returns a store seeded with the default active poll.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{now: func() time.Time { return time.Now().UTC() }}
	seed := SeedPoll()
	seed.ID = uuid.NewString()
	seed.CreatedAt = s.now()
	s.polls = append(s.polls, seed)
	return s
}

// SeedPoll is the poll installed on an empty database.
func SeedPoll() domain.Poll {
	return domain.Poll{
		Question: "Will AI replace software engineers completely by 2030?",
		Options: []domain.PollOption{
			{ID: "yes", Text: "Yes, completely"},
			{ID: "partial", Text: "Partially (Copilots)"},
			{ID: "no", Text: "No, demand will grow"},
		},
		IsActive: true,
	}
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

func (s *MemoryStore) URLExists(_ context.Context, url string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.urlTaken(url), nil
}

// InArticleTx holds the write lock for the whole of fn; fn must not call back into the store.
func (s *MemoryStore) InArticleTx(ctx context.Context, fn func(tx ports.ArticleTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{store: s, slugs: map[string]string{}}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for i := range s.articles {
		if slug, ok := tx.slugs[s.articles[i].ID]; ok {
			s.articles[i].Slug = &slug
		}
	}
	s.articles = append(s.articles, tx.inserted...)
	return nil
}

func (s *MemoryStore) ArticlesWithoutSlug(_ context.Context, limit int) ([]domain.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Article
	for _, a := range s.articles {
		if a.Slug != nil {
			continue
		}
		out = append(out, a)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) StartRun(context.Context) (domain.IngestionLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := domain.IngestionLog{ID: uuid.NewString(), RunAt: s.now(), Status: domain.RunPartial}
	s.logs = append(s.logs, entry)
	return entry, nil
}

func (s *MemoryStore) FinishRun(_ context.Context, entry domain.IngestionLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.logs {
		if s.logs[i].ID == entry.ID {
			entry.RunAt = s.logs[i].RunAt
			s.logs[i] = entry
			return nil
		}
	}
	return fmt.Errorf("ingestion log %s not found", entry.ID)
}

func (s *MemoryStore) QuoteExists(_ context.Context, text string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.quoteTaken(text), nil
}

func (s *MemoryStore) InsertQuote(_ context.Context, quote domain.Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.quoteTaken(quote.Text) {
		return fmt.Errorf("%w: quotes_text_key", domain.ErrDuplicate)
	}
	if quote.ID == "" {
		quote.ID = uuid.NewString()
	}
	quote.CreatedAt = s.now()
	s.quotes = append(s.quotes, quote)
	return nil
}

func (s *MemoryStore) ReplaceActivePoll(_ context.Context, poll domain.Poll) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.polls {
		s.polls[i].IsActive = false
	}
	if poll.ID == "" {
		poll.ID = uuid.NewString()
	}
	poll.IsActive = true
	poll.CreatedAt = s.now()
	poll.Options = slices.Clone(poll.Options)
	s.polls = append(s.polls, poll)
	return nil
}

// Articles returns a snapshot of stored articles in insertion order.
func (s *MemoryStore) Articles() []domain.Article {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.articles)
}

// Logs returns a snapshot of ingestion logs in run order.
func (s *MemoryStore) Logs() []domain.IngestionLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.logs)
}

// Quotes returns a snapshot of stored quotes.
func (s *MemoryStore) Quotes() []domain.Quote {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.quotes)
}

// Polls returns a snapshot of stored polls, oldest first.
func (s *MemoryStore) Polls() []domain.Poll {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.polls)
}

func (s *MemoryStore) urlTaken(url string) bool {
	return slices.ContainsFunc(s.articles, func(a domain.Article) bool { return a.URL == url })
}

func (s *MemoryStore) slugTaken(slug string) bool {
	return slices.ContainsFunc(s.articles, func(a domain.Article) bool { return a.Slug != nil && *a.Slug == slug })
}

func (s *MemoryStore) quoteTaken(text string) bool {
	return slices.ContainsFunc(s.quotes, func(q domain.Quote) bool { return q.Text == text })
}

// memoryTx buffers writes until InArticleTx commits them.
type memoryTx struct {
	store    *MemoryStore
	inserted []domain.Article
	slugs    map[string]string
}

func (t *memoryTx) SlugExists(_ context.Context, slug string) (bool, error) {
	return t.slugInUse(slug), nil
}

func (t *memoryTx) InsertArticle(_ context.Context, a domain.Article) error {
	if t.store.urlTaken(a.URL) || slices.ContainsFunc(t.inserted, func(p domain.Article) bool { return p.URL == a.URL }) {
		return fmt.Errorf("%w: articles_url_key", domain.ErrDuplicate)
	}
	if a.Slug != nil && t.slugInUse(*a.Slug) {
		return fmt.Errorf("%w: articles_slug_key", domain.ErrDuplicate)
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = t.store.now()
	if a.Slug != nil {
		slug := *a.Slug
		a.Slug = &slug
	}
	t.inserted = append(t.inserted, a)
	return nil
}

func (t *memoryTx) SetSlug(_ context.Context, articleID, slug string) error {
	if t.slugInUse(slug) {
		return fmt.Errorf("%w: articles_slug_key", domain.ErrDuplicate)
	}
	for i := range t.inserted {
		if t.inserted[i].ID == articleID {
			t.inserted[i].Slug = &slug
			return nil
		}
	}
	if !slices.ContainsFunc(t.store.articles, func(a domain.Article) bool { return a.ID == articleID }) {
		return fmt.Errorf("article %s not found", articleID)
	}
	t.slugs[articleID] = slug
	return nil
}

func (t *memoryTx) slugInUse(slug string) bool {
	if t.store.slugTaken(slug) {
		return true
	}
	for _, pending := range t.slugs {
		if pending == slug {
			return true
		}
	}
	return slices.ContainsFunc(t.inserted, func(a domain.Article) bool { return a.Slug != nil && *a.Slug == slug })
}
