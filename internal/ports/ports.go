package ports

import (
	"context"
	"time"

	"NewsIngestor/internal/domain"
)

// Fetcher pulls raw items from one upstream source.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context) ([]domain.RawItem, error)
}

// ItemSource produces the merged raw-item batch for one run.
type ItemSource interface {
	FetchAll(ctx context.Context) ([]domain.RawItem, error)
}

// Analyzer is the text-analysis backend. Implementations are chosen once at startup.
type Analyzer interface {
	Name() string
	Enrich(ctx context.Context, title, content string) (domain.Enrichment, error)
	// ExtractQuote returns nil when no quote was found or the response was unusable.
	ExtractQuote(ctx context.Context, text string) (*domain.QuoteCandidate, error)
	// GeneratePoll always yields a usable draft; it falls back to domain.DefaultPollDraft.
	GeneratePoll(ctx context.Context, contextText string) (domain.PollDraft, error)
}

// ArticleRepository persists articles for deduplication and downstream readers.
type ArticleRepository interface {
	URLExists(ctx context.Context, url string) (bool, error)
	// InArticleTx runs fn inside one storage transaction; a returned error rolls it back.
	InArticleTx(ctx context.Context, fn func(tx ArticleTx) error) error
	ArticlesWithoutSlug(ctx context.Context, limit int) ([]domain.Article, error)
}

// ArticleTx is the transactional view used while inserting one article.
type ArticleTx interface {
	SlugExists(ctx context.Context, slug string) (bool, error)
	InsertArticle(ctx context.Context, article domain.Article) error
	SetSlug(ctx context.Context, articleID, slug string) error
}

// IngestionLogRepository records run outcomes.
type IngestionLogRepository interface {
	StartRun(ctx context.Context) (domain.IngestionLog, error)
	FinishRun(ctx context.Context, entry domain.IngestionLog) error
}

// QuoteRepository stores mined quotes; text is unique.
type QuoteRepository interface {
	QuoteExists(ctx context.Context, text string) (bool, error)
	InsertQuote(ctx context.Context, quote domain.Quote) error
}

// PollRepository stores polls; at most one is active.
type PollRepository interface {
	// ReplaceActivePoll deactivates every poll and inserts poll as the active one atomically.
	ReplaceActivePoll(ctx context.Context, poll domain.Poll) error
}

// Store bundles every repository the pipeline needs.
type Store interface {
	ArticleRepository
	IngestionLogRepository
	QuoteRepository
	PollRepository
	Ping(ctx context.Context) error
}

// RunLock enforces a single pipeline run in flight.
type RunLock interface {
	// TryAcquire never blocks; ok is false when another run holds the lock.
	TryAcquire(ctx context.Context) (release func(), ok bool, err error)
}

// Notifier streams run digests to chat channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// RunMetrics observes pipeline outcomes.
type RunMetrics interface {
	RunFinished(status domain.RunStatus, articlesAdded int, elapsed time.Duration)
	ItemSkipped(reason string)
	QuoteAdded()
	PollGenerated()
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
