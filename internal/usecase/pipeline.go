package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"NewsIngestor/internal/domain"
	"NewsIngestor/internal/ports"
	"NewsIngestor/internal/slug"
)

// ErrRunInProgress is returned when another run holds the run lock.
var ErrRunInProgress = errors.New("pipeline run already in progress")

// Skip reasons reported to ports.RunMetrics.
const (
	SkipDuplicate = "duplicate"
	SkipFailed    = "failed"
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source   ports.ItemSource
	Store    ports.Store
	Analyzer ports.Analyzer
	Lock     ports.RunLock
	Notifier ports.Notifier
	Metrics  ports.RunMetrics
	Logger   *slog.Logger
	Clock    func() time.Time
}

// Pipeline implements one ingestion run: fetch, dedup, enrich, persist,
// then mine quotes and refresh the active poll.
type Pipeline struct {
	source   ports.ItemSource
	store    ports.Store
	analyzer ports.Analyzer
	lock     ports.RunLock
	notifier ports.Notifier
	metrics  ports.RunMetrics
	logger   *slog.Logger
	now      func() time.Time

	quotes *QuoteMiner
	polls  *PollGenerator
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	p := &Pipeline{
		source:   deps.Source,
		store:    deps.Store,
		analyzer: deps.Analyzer,
		lock:     deps.Lock,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		now:      deps.Clock,
	}
	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}
	if p.metrics == nil {
		p.metrics = noopMetrics{}
	}
	if p.now == nil {
		p.now = func() time.Time { return time.Now().UTC() }
	}
	p.quotes = NewQuoteMiner(deps.Analyzer, deps.Store, p.metrics, p.logger)
	p.polls = NewPollGenerator(deps.Analyzer, deps.Store, p.metrics, p.logger)
	return p
}

// Run executes one ingestion run and returns its final log entry.
// Per-item, quote and poll failures are absorbed; only run-level failures
// produce a FAILURE entry and a non-nil error.
func (p *Pipeline) Run(ctx context.Context) (domain.IngestionLog, error) {
	if p.lock != nil {
		release, ok, err := p.lock.TryAcquire(ctx)
		if err != nil {
			return domain.IngestionLog{}, fmt.Errorf("acquire run lock: %w", err)
		}
		if !ok {
			p.logger.Warn("skipping run, another run is in progress")
			return domain.IngestionLog{}, ErrRunInProgress
		}
		defer release()
	}

	started := time.Now()
	entry, err := p.store.StartRun(ctx)
	if err != nil {
		return domain.IngestionLog{}, fmt.Errorf("start run log: %w", err)
	}
	log := p.logger.With("run_id", entry.ID)
	log.Info("ingestion run started")

	added, runErr := p.execute(ctx, log)

	entry.ArticlesAdded = len(added)
	if runErr != nil {
		entry.Status = domain.RunFailure
		entry.Errors = runErr.Error()
		log.Error("ingestion run failed", "error", runErr, "articles_added", entry.ArticlesAdded)
	} else {
		entry.Status = domain.RunSuccess
		log.Info("ingestion run complete", "articles_added", entry.ArticlesAdded)
	}

	// The run may have been cancelled by shutdown; the outcome is still recorded.
	finishCtx := context.WithoutCancel(ctx)
	if err := p.store.FinishRun(finishCtx, entry); err != nil {
		log.Error("finalize run log failed", "error", err)
		if runErr == nil {
			runErr = fmt.Errorf("finish run log: %w", err)
		}
	}
	p.metrics.RunFinished(entry.Status, entry.ArticlesAdded, time.Since(started))

	if entry.Status == domain.RunSuccess && len(added) > 0 && p.notifier != nil {
		if err := p.notifier.PublishDigest(finishCtx, buildDigestMessage(added)); err != nil {
			log.Warn("publish digest failed", "error", err)
		}
	}

	return entry, runErr
}

func (p *Pipeline) execute(ctx context.Context, log *slog.Logger) ([]domain.Article, error) {
	items, err := p.source.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch sources: %w", err)
	}
	log.Info("batch fetched", "items", len(items))

	var added []domain.Article
	summaries := make(map[string]string)
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return added, fmt.Errorf("run interrupted: %w", err)
		}

		exists, err := p.store.URLExists(ctx, item.URL)
		if err != nil {
			return added, fmt.Errorf("check url %s: %w", item.URL, err)
		}
		if exists {
			p.metrics.ItemSkipped(SkipDuplicate)
			continue
		}

		var article domain.Article
		err = guard(func() error {
			var err error
			article, err = p.ingest(ctx, item, log)
			return err
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return added, fmt.Errorf("run interrupted: %w", ctxErr)
			}
			log.Error("failed to process article", "title", item.Title, "url", item.URL, "error", err)
			p.metrics.ItemSkipped(SkipFailed)
			continue
		}

		added = append(added, article)
		if article.Summary != nil {
			summaries[item.URL] = *article.Summary
		}
	}

	log.Info("scanning for quotes")
	if err := p.quotes.Mine(ctx, items, summaries); err != nil {
		log.Error("quote pass aborted", "error", err)
	}

	if len(items) > 0 {
		log.Info("generating poll")
		if err := guard(func() error { return p.polls.Generate(ctx, items) }); err != nil {
			log.Error("failed to generate poll", "error", err)
		}
	}

	if err := ctx.Err(); err != nil {
		return added, fmt.Errorf("run interrupted: %w", err)
	}
	return added, nil
}

// ingest enriches one new item and stores it in its own transaction.
func (p *Pipeline) ingest(ctx context.Context, item domain.RawItem, log *slog.Logger) (domain.Article, error) {
	log.Info("processing new article", "title", item.Title)

	enrichment, err := p.analyzer.Enrich(ctx, item.Title, item.Content)
	if err != nil {
		return domain.Article{}, fmt.Errorf("enrich: %w", err)
	}
	if enrichment.Hidden() {
		log.Warn("enrichment scored article as hidden", "title", item.Title, "url", item.URL, "summary", enrichment.Summary)
	}

	publishedAt, parsed := item.PublishedAt.Resolve(p.now())
	if !parsed {
		log.Debug("unparsed published_at, using ingestion time", "url", item.URL, "published_at", item.PublishedAt.Text)
	}

	article := domain.Article{
		Title:           item.Title,
		URL:             item.URL,
		Source:          item.Source,
		OriginalSnippet: domain.Snippet(item.Content),
		Category:        enrichment.Category,
		ViabilityScore:  enrichment.ViabilityScore,
		PublishedAt:     publishedAt,
		IsProcessed:     true,
	}
	if enrichment.Summary != "" {
		summary := enrichment.Summary
		article.Summary = &summary
	}

	err = p.store.InArticleTx(ctx, func(tx ports.ArticleTx) error {
		s, err := slug.Resolve(ctx, tx, item.Title, item.URL)
		if err != nil {
			return err
		}
		article.Slug = &s
		return tx.InsertArticle(ctx, article)
	})
	if err != nil {
		return domain.Article{}, fmt.Errorf("persist: %w", err)
	}
	return article, nil
}

// guard turns a panic inside fn into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

type noopMetrics struct{}

func (noopMetrics) RunFinished(domain.RunStatus, int, time.Duration) {}
func (noopMetrics) ItemSkipped(string)                               {}
func (noopMetrics) QuoteAdded()                                      {}
func (noopMetrics) PollGenerated()                                   {}
