// Package storage persists articles, run logs, quotes and polls.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"NewsIngestor/internal/domain"
	"NewsIngestor/internal/ports"
)

const uniqueViolation = "23505"

// PostgresRepository implements ports.Store on top of database/sql and lib/pq.
type PostgresRepository struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var _ ports.Store = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// OpenPostgres opens and pings a connection pool for dsn.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Ping checks the connection.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// URLExists reports whether an article with url is stored.
func (r *PostgresRepository) URLExists(ctx context.Context, url string) (bool, error) {
	return exists(ctx, r.db, r.sb.Select("1").From("articles").Where(sq.Eq{"url": url}).Limit(1))
}

// InArticleTx runs fn in a transaction, committing only when fn succeeds.
func (r *PostgresRepository) InArticleTx(ctx context.Context, fn func(tx ports.ArticleTx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&articleTx{tx: tx, sb: r.sb}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", mapError(err))
	}
	return nil
}

// ArticlesWithoutSlug lists the oldest articles still missing a slug.
func (r *PostgresRepository) ArticlesWithoutSlug(ctx context.Context, limit int) ([]domain.Article, error) {
	query, args, err := r.sb.Select("id", "title", "url").
		From("articles").
		Where(sq.Eq{"slug": nil}).
		OrderBy("created_at").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles without slug: %w", err)
	}
	defer rows.Close()

	var out []domain.Article
	for rows.Next() {
		var a domain.Article
		if err := rows.Scan(&a.ID, &a.Title, &a.URL); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// StartRun writes a PARTIAL ingestion log and returns it with its id and server timestamp.
func (r *PostgresRepository) StartRun(ctx context.Context) (domain.IngestionLog, error) {
	entry := domain.IngestionLog{ID: uuid.NewString(), Status: domain.RunPartial}

	query, args, err := r.sb.Insert("ingestion_logs").
		Columns("id", "status", "articles_added").
		Values(entry.ID, string(entry.Status), 0).
		Suffix("RETURNING run_at").
		ToSql()
	if err != nil {
		return domain.IngestionLog{}, fmt.Errorf("build insert: %w", err)
	}
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&entry.RunAt); err != nil {
		return domain.IngestionLog{}, fmt.Errorf("insert ingestion log: %w", err)
	}
	return entry, nil
}

// FinishRun stores the final status of a run.
func (r *PostgresRepository) FinishRun(ctx context.Context, entry domain.IngestionLog) error {
	var metadata any
	if entry.Metadata != nil {
		raw, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		metadata = raw
	}

	query, args, err := r.sb.Update("ingestion_logs").
		Set("status", string(entry.Status)).
		Set("articles_added", entry.ArticlesAdded).
		Set("errors", nullString(entry.Errors)).
		Set("metadata", metadata).
		Where(sq.Eq{"id": entry.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update ingestion log: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("ingestion log %s not found", entry.ID)
	}
	return nil
}

// QuoteExists reports whether a quote with exactly this text is stored.
func (r *PostgresRepository) QuoteExists(ctx context.Context, text string) (bool, error) {
	return exists(ctx, r.db, r.sb.Select("1").From("quotes").Where(sq.Eq{"text": text}).Limit(1))
}

// InsertQuote appends a quote; a duplicate text yields domain.ErrDuplicate.
func (r *PostgresRepository) InsertQuote(ctx context.Context, quote domain.Quote) error {
	if quote.ID == "" {
		quote.ID = uuid.NewString()
	}
	query, args, err := r.sb.Insert("quotes").
		Columns("id", "text", "author", "role", "avatar_url", "source_url").
		Values(quote.ID, quote.Text, quote.Author, quote.Role, quote.AvatarURL, quote.SourceURL).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert quote: %w", mapError(err))
	}
	return nil
}

// ReplaceActivePoll deactivates all polls and inserts poll as the only active one.
func (r *PostgresRepository) ReplaceActivePoll(ctx context.Context, poll domain.Poll) error {
	if poll.ID == "" {
		poll.ID = uuid.NewString()
	}
	options, err := json.Marshal(poll.Options)
	if err != nil {
		return fmt.Errorf("marshal poll options: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	deactivate, args, err := r.sb.Update("polls").Set("is_active", false).Where(sq.Eq{"is_active": true}).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	if _, err := tx.ExecContext(ctx, deactivate, args...); err != nil {
		return fmt.Errorf("deactivate polls: %w", err)
	}

	insert, args, err := r.sb.Insert("polls").
		Columns("id", "question", "options", "is_active").
		Values(poll.ID, poll.Question, options, true).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, insert, args...); err != nil {
		return fmt.Errorf("insert poll: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type articleTx struct {
	tx *sql.Tx
	sb sq.StatementBuilderType
}

func (t *articleTx) SlugExists(ctx context.Context, slug string) (bool, error) {
	return exists(ctx, t.tx, t.sb.Select("1").From("articles").Where(sq.Eq{"slug": slug}).Limit(1))
}

func (t *articleTx) InsertArticle(ctx context.Context, a domain.Article) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	tags := a.Tags
	if tags == nil {
		tags = []string{}
	}

	query, args, err := t.sb.Insert("articles").
		Columns("id", "title", "slug", "url", "source", "summary", "original_snippet",
			"category", "tags", "viability_score", "published_at", "is_processed").
		Values(a.ID, a.Title, a.Slug, a.URL, a.Source, a.Summary, a.OriginalSnippet,
			string(a.Category), pq.StringArray(tags), a.ViabilityScore, a.PublishedAt.UTC(), a.IsProcessed).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert article: %w", mapError(err))
	}
	return nil
}

func (t *articleTx) SetSlug(ctx context.Context, articleID, slug string) error {
	query, args, err := t.sb.Update("articles").Set("slug", slug).Where(sq.Eq{"id": articleID}).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("set slug: %w", mapError(err))
	}
	return nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func exists(ctx context.Context, q queryRower, builder sq.SelectBuilder) (bool, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}
	var one int
	switch err := q.QueryRowContext(ctx, query, args...).Scan(&one); {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("exists query: %w", err)
	}
	return true, nil
}

// mapError turns unique violations into domain.ErrDuplicate.
func mapError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", domain.ErrDuplicate, pqErr.Constraint)
	}
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
