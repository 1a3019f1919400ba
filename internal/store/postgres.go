// Package store provides the Postgres-backed news repository.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"routerwatch/internal/news"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection used for news rows.
type Config struct {
	DSN           string
	Table         string
	FailThreshold int
}

type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Repository persists news items. It assumes a table schema like:
//
//	CREATE TABLE news (
//	    id BIGSERIAL PRIMARY KEY,
//	    title TEXT NOT NULL,
//	    url TEXT NOT NULL,
//	    publish_date TEXT NOT NULL,
//	    source TEXT NOT NULL,
//	    description TEXT NOT NULL DEFAULT '',
//	    status CHAR(1) NOT NULL DEFAULT 'N',
//	    fail_count INT NOT NULL DEFAULT 0,
//	    UNIQUE (title, url)
//	);
//
// Serial ids make the pending order's tie-break follow insertion order.
type Repository struct {
	pool      pgxPool
	table     string
	threshold int
	builder   sq.StatementBuilderType
}

// New connects a Repository using the provided config.
func New(ctx context.Context, cfg Config) (*Repository, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	repo, err := NewWithPool(pool, cfg.Table, cfg.FailThreshold)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return repo, nil
}

// NewWithPool constructs a Repository from an existing pool (primarily
// for testing).
func NewWithPool(pool pgxPool, table string, failThreshold int) (*Repository, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "news"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if failThreshold <= 0 {
		failThreshold = 3
	}
	return &Repository{
		pool:      pool,
		table:     table,
		threshold: failThreshold,
		builder:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}, nil
}

// Close releases the underlying pool resources.
func (r *Repository) Close() {
	if r == nil || r.pool == nil {
		return
	}
	r.pool.Close()
}

// Insert stores the batch inside one transaction. Rows whose
// (title, url) pair already exists are silently skipped; a failure of
// any other kind rolls the whole batch back with zero net effect.
func (r *Repository) Insert(ctx context.Context, items []news.Item) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin insert batch: %w", err)
	}

	inserted := 0
	for _, item := range items {
		query, args, err := r.builder.
			Insert(r.table).
			Columns("title", "url", "publish_date", "source", "description", "status", "fail_count").
			Values(item.Title, item.URL, item.PublishDate, item.Source, item.Description, string(news.StatusNew), 0).
			Suffix("ON CONFLICT (title, url) DO NOTHING").
			ToSql()
		if err != nil {
			_ = tx.Rollback(ctx)
			return 0, fmt.Errorf("build insert: %w", err)
		}
		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			_ = tx.Rollback(ctx)
			return 0, fmt.Errorf("insert news item: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit insert batch: %w", err)
	}
	return inserted, nil
}

// Pending returns all items awaiting submission, oldest publish date
// first; ties follow insertion order.
func (r *Repository) Pending(ctx context.Context) ([]news.Item, error) {
	query, args, err := r.builder.
		Select("id", "title", "url", "publish_date", "source", "description", "status", "fail_count").
		From(r.table).
		Where(sq.Eq{"status": string(news.StatusNew)}).
		OrderBy("publish_date ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build pending query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pending: %w", err)
	}
	defer rows.Close()

	var items []news.Item
	for rows.Next() {
		var item news.Item
		var status string
		if err := rows.Scan(
			&item.ID, &item.Title, &item.URL, &item.PublishDate,
			&item.Source, &item.Description, &status, &item.FailCount,
		); err != nil {
			return nil, fmt.Errorf("scan pending row: %w", err)
		}
		item.Status = news.Status(status)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending rows: %w", err)
	}
	return items, nil
}

// MarkSubmitted transitions an item from New to Submitted. Items
// already in a terminal state are left untouched.
func (r *Repository) MarkSubmitted(ctx context.Context, id int64) error {
	query, args, err := r.builder.
		Update(r.table).
		Set("status", string(news.StatusSubmitted)).
		Where(sq.Eq{"id": id, "status": string(news.StatusNew)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build submitted update: %w", err)
	}
	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("mark submitted: %w", err)
	}
	return nil
}

// RecordFailure increments the item's failure count and, when the
// count reaches the threshold, escalates to Error in the same
// statement, so the escalation can never race the increment.
func (r *Repository) RecordFailure(ctx context.Context, id int64) (news.FailureResult, error) {
	query, args, err := r.builder.
		Update(r.table).
		Set("fail_count", sq.Expr("fail_count + 1")).
		Set("status", sq.Expr(
			"CASE WHEN fail_count + 1 >= ? THEN ? ELSE status END",
			r.threshold, string(news.StatusError),
		)).
		Where(sq.Eq{"id": id, "status": string(news.StatusNew)}).
		Suffix("RETURNING fail_count, status").
		ToSql()
	if err != nil {
		return news.FailureResult{}, fmt.Errorf("build failure update: %w", err)
	}

	var result news.FailureResult
	var status string
	row := r.pool.QueryRow(ctx, query, args...)
	if err := row.Scan(&result.FailCount, &status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Already terminal: the transition is a no-op.
			return news.FailureResult{}, nil
		}
		return news.FailureResult{}, fmt.Errorf("record failure: %w", err)
	}
	result.Status = news.Status(status)
	return result, nil
}
