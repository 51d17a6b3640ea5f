package storage

import (
	"context"
	"errors"
	"testing"

	"NewsIngestor/internal/domain"
	"NewsIngestor/internal/ports"
)

func strPtr(s string) *string { return &s }

func insertArticle(t *testing.T, s *MemoryStore, a domain.Article) error {
	t.Helper()
	return s.InArticleTx(context.Background(), func(tx ports.ArticleTx) error {
		return tx.InsertArticle(context.Background(), a)
	})
}

func TestMemoryStoreSeedsActivePoll(t *testing.T) {
	t.Parallel()

	polls := NewMemoryStore().Polls()
	if len(polls) != 1 || !polls[0].IsActive {
		t.Fatalf("expected one active seed poll, got %+v", polls)
	}
}

func TestMemoryStoreUniqueness(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	if err := insertArticle(t, s, domain.Article{URL: "https://x/1", Slug: strPtr("foo")}); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	if err := insertArticle(t, s, domain.Article{URL: "https://x/1", Slug: strPtr("bar")}); !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("duplicate url must fail, got %v", err)
	}
	if err := insertArticle(t, s, domain.Article{URL: "https://x/2", Slug: strPtr("foo")}); !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("duplicate slug must fail, got %v", err)
	}
	if got := len(s.Articles()); got != 1 {
		t.Fatalf("failed inserts must not be stored, have %d", got)
	}

	ok, _ := s.URLExists(context.Background(), "https://x/1")
	if !ok {
		t.Fatalf("url should exist")
	}
}

func TestMemoryStoreRollbackOnError(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	boom := errors.New("boom")
	err := s.InArticleTx(context.Background(), func(tx ports.ArticleTx) error {
		if err := tx.InsertArticle(context.Background(), domain.Article{URL: "https://x/1"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if len(s.Articles()) != 0 {
		t.Fatalf("rolled back insert must not persist")
	}
}

func TestMemoryStoreSetSlug(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	if err := insertArticle(t, s, domain.Article{ID: "a", URL: "https://x/1"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := insertArticle(t, s, domain.Article{ID: "b", URL: "https://x/2", Slug: strPtr("taken")}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	missing, _ := s.ArticlesWithoutSlug(context.Background(), 10)
	if len(missing) != 1 || missing[0].ID != "a" {
		t.Fatalf("unexpected articles without slug %+v", missing)
	}

	err := s.InArticleTx(context.Background(), func(tx ports.ArticleTx) error {
		return tx.SetSlug(context.Background(), "a", "taken")
	})
	if !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	err = s.InArticleTx(context.Background(), func(tx ports.ArticleTx) error {
		return tx.SetSlug(context.Background(), "a", "fresh")
	})
	if err != nil {
		t.Fatalf("SetSlug: %v", err)
	}
	missing, _ = s.ArticlesWithoutSlug(context.Background(), 10)
	if len(missing) != 0 {
		t.Fatalf("slug not applied")
	}
}

func TestMemoryStoreRunLog(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	entry, err := s.StartRun(context.Background())
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if entry.Status != domain.RunPartial || entry.RunAt.IsZero() {
		t.Fatalf("unexpected start entry %+v", entry)
	}

	entry.Status = domain.RunSuccess
	entry.ArticlesAdded = 4
	if err := s.FinishRun(context.Background(), entry); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	logs := s.Logs()
	if len(logs) != 1 || logs[0].Status != domain.RunSuccess || logs[0].ArticlesAdded != 4 {
		t.Fatalf("unexpected logs %+v", logs)
	}

	if err := s.FinishRun(context.Background(), domain.IngestionLog{ID: "nope"}); err == nil {
		t.Fatalf("expected error for unknown run")
	}
}

func TestMemoryStoreQuotesAndPolls(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	q := domain.Quote{Text: "AGI is near", Author: "Sam Altman", SourceURL: "https://x/1"}
	if err := s.InsertQuote(context.Background(), q); err != nil {
		t.Fatalf("InsertQuote: %v", err)
	}
	if err := s.InsertQuote(context.Background(), q); !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	for _, question := range []string{"first?", "second?"} {
		if err := s.ReplaceActivePoll(context.Background(), domain.Poll{Question: question}); err != nil {
			t.Fatalf("ReplaceActivePoll: %v", err)
		}
	}
	var active []domain.Poll
	for _, p := range s.Polls() {
		if p.IsActive {
			active = append(active, p)
		}
	}
	if len(active) != 1 || active[0].Question != "second?" {
		t.Fatalf("expected only the newest poll active, got %+v", active)
	}
}
