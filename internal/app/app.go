package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"NewsIngestor/internal/analysis"
	"NewsIngestor/internal/config"
	"NewsIngestor/internal/domain"
	"NewsIngestor/internal/infrastructure/httpserver"
	"NewsIngestor/internal/infrastructure/lock"
	"NewsIngestor/internal/infrastructure/metrics"
	"NewsIngestor/internal/infrastructure/scheduler"
	"NewsIngestor/internal/infrastructure/storage"
	"NewsIngestor/internal/infrastructure/telegram"
	"NewsIngestor/internal/logging"
	"NewsIngestor/internal/ports"
	"NewsIngestor/internal/sources"
	"NewsIngestor/internal/usecase"
)

const (
	driverMemory   = "memory"
	driverPostgres = "postgres"
	lockValkey     = "valkey"

	shutdownTimeout = 15 * time.Second
	fetchTimeout    = 10 * time.Second
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	store     ports.Store
	pipeline  *usecase.Pipeline
	backfill  *usecase.SlugBackfill
	scheduler *usecase.Scheduler
	server    *httpserver.Server
	closers   []func() error
}

// New builds the application: storage, analyzer, sources, lock, metrics and
// the pipeline on top of them. Close releases what New opened.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	a := &Application{cfg: cfg, logger: baseLogger}

	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	a.store = store

	analyzer, err := analysis.New(ctx, cfg.Analysis, baseLogger)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("init analyzer: %w", err)
	}

	runLock, err := a.openLock(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	recorder := metrics.NewRecorder()

	deps := usecase.PipelineDeps{
		Source:   sources.NewCollector(buildRegistry(cfg.Sources, baseLogger), baseLogger.With("component", "sources")),
		Store:    store,
		Analyzer: analyzer,
		Lock:     runLock,
		Metrics:  recorder,
		Logger:   baseLogger.With("component", "pipeline"),
	}
	if cfg.Notifications.Telegram.Enabled() {
		deps.Notifier = telegram.NewNotifier(cfg.Notifications.Telegram)
	}
	a.pipeline = usecase.NewPipeline(deps)
	a.backfill = usecase.NewSlugBackfill(store, baseLogger.With("component", "backfill"))

	driver := scheduler.NewIntervalScheduler(cfg.Scheduler.Interval, cfg.Scheduler.RunOnStart, cfg.Scheduler.Location())
	a.scheduler = usecase.NewScheduler(driver, a.pipeline, baseLogger.With("component", "scheduler"))

	router := httpserver.NewRouter(store, recorder, baseLogger.With("component", "http"))
	a.server = httpserver.New(cfg.HTTP.Address, router, baseLogger.With("component", "http"))

	baseLogger.Info("application initialised",
		"storage", cfg.Database.Driver,
		"analyzer", analyzer.Name(),
		"lock", cfg.Lock.Backend,
		"interval", cfg.Scheduler.Interval,
		"telegram", deps.Notifier != nil)
	return a, nil
}

func (a *Application) openStore(ctx context.Context) (ports.Store, error) {
	switch strings.ToLower(a.cfg.Database.Driver) {
	case driverMemory:
		a.logger.Warn("using in-memory storage, data is lost on exit")
		return storage.NewMemoryStore(), nil
	case driverPostgres, "":
		db, err := storage.OpenPostgres(ctx, a.cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		if a.cfg.Database.AutoMigrate {
			if err := storage.Migrate(db, a.logger.With("component", "migrate")); err != nil {
				_ = a.Close()
				return nil, err
			}
		}
		return storage.NewPostgresRepository(db), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", a.cfg.Database.Driver)
	}
}

func (a *Application) openLock(ctx context.Context) (ports.RunLock, error) {
	if strings.ToLower(a.cfg.Lock.Backend) != lockValkey {
		return lock.NewMemoryLock(), nil
	}

	client, err := lock.NewValkeyClient(ctx, a.cfg.Lock.Valkey)
	if err != nil {
		return nil, fmt.Errorf("connect valkey: %w", err)
	}
	a.closers = append(a.closers, func() error {
		client.Close()
		return nil
	})
	valkeyCfg := a.cfg.Lock.Valkey
	return lock.NewValkeyLock(client, valkeyCfg.Key, valkeyCfg.TTL, a.logger.With("component", "lock")), nil
}

// newFetchClient bounds every upstream request issued by the fetchers.
func newFetchClient() *http.Client {
	return &http.Client{Timeout: fetchTimeout}
}

func buildRegistry(cfg config.SourcesConfig, log *slog.Logger) *sources.Registry {
	client := newFetchClient()
	registry := sources.NewRegistry()

	if !cfg.Arxiv.Disabled {
		registry.Register(sources.NewArxivFetcher(client, cfg.Arxiv.Endpoint, cfg.Arxiv.Query, cfg.Arxiv.MaxResults,
			log.With("component", "sources.arxiv")))
	}
	if !cfg.HackerNews.Disabled {
		registry.Register(sources.NewHackerNewsFetcher(client, cfg.HackerNews.BaseURL, cfg.HackerNews.Limit,
			log.With("component", "sources.hackernews")))
	}
	if !cfg.Syndication.Disabled {
		registry.Register(sources.NewSyndicationFetcher(client, cfg.Syndication.Feeds, cfg.Syndication.PerFeedLimit,
			cfg.Syndication.UserAgent, log.With("component", "sources.syndication")))
	}
	return registry
}

// RunOnce performs a single ingestion run.
func (a *Application) RunOnce(ctx context.Context) (domain.IngestionLog, error) {
	return a.pipeline.Run(ctx)
}

// BackfillSlugs assigns slugs to stored articles that have none.
func (a *Application) BackfillSlugs(ctx context.Context) (int, error) {
	return a.backfill.Run(ctx)
}

// Serve starts the ops server and the recurring runs, then blocks until ctx is done.
func (a *Application) Serve(ctx context.Context) error {
	if err := a.server.Start(); err != nil {
		return err
	}
	if err := a.scheduler.Start(ctx); err != nil {
		a.shutdownServer()
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("serving", "address", a.cfg.HTTP.Address)

	<-ctx.Done()
	a.logger.Info("shutting down")

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.scheduler.Stop(stopCtx); err != nil {
		errs = append(errs, fmt.Errorf("stop scheduler: %w", err))
	}
	if err := a.server.Shutdown(stopCtx); err != nil {
		errs = append(errs, fmt.Errorf("stop http server: %w", err))
	}
	return errors.Join(errs...)
}

func (a *Application) shutdownServer() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Error("http server shutdown failed", "error", err)
	}
}

// Close releases connections in reverse order of opening.
func (a *Application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Migrate applies the embedded schema migrations to the configured database.
func Migrate(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	if strings.ToLower(cfg.Database.Driver) == driverMemory {
		return errors.New("migrations require the postgres driver")
	}
	db, err := storage.OpenPostgres(ctx, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	return storage.Migrate(db, log.With("component", "migrate"))
}
