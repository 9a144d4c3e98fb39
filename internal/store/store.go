// Package store owns the relational schema for users, revisions and posts and
// exposes the single read the blog needs: the published-post join.
package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/conneroisu/folio/internal/config"
	"github.com/conneroisu/folio/internal/content"
	"github.com/conneroisu/folio/internal/errors"
)

// Store is a pooled database handle. It is safe for concurrent use; all
// serialization is left to the pool.
type Store struct {
	db        *sqlx.DB
	dialect   Dialect
	obs       *observability
	closeOnce sync.Once
	closeErr  error
}

// Open connects to the configured database, applies the pool limits and
// verifies the connection with a ping.
func Open(ctx context.Context, cfg config.DatabaseConfig, opts ...Option) (*Store, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, errors.NewStoreError(errors.ErrCodeStoreConnect, "cannot select dialect", err)
	}

	if dialect == SQLite && !isMemoryDSN(cfg.DSN) {
		if err := os.MkdirAll(filepath.Dir(sqlitePath(cfg.DSN)), 0o755); err != nil {
			return nil, errors.NewStoreError(errors.ErrCodeStoreConnect, "cannot create database directory", err).
				WithContext("dsn", cfg.DSN)
		}
	}

	db, err := sqlx.Open(dialect.Name(), cfg.DSN)
	if err != nil {
		return nil, errors.NewStoreError(errors.ErrCodeStoreConnect, "cannot open database", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	if cfg.InMemory {
		// the shared in-memory database disappears with its last connection
		db.SetMaxIdleConns(max(cfg.MaxIdleConns, 1))
		db.SetConnMaxLifetime(0)
	}

	s := New(db, dialect, opts...)
	if err := s.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, errors.NewStoreError(errors.ErrCodeStoreConnect, "cannot reach database", err)
	}

	return s, nil
}

// New wraps an already opened handle.
func New(db *sqlx.DB, dialect Dialect, opts ...Option) *Store {
	s := &Store{
		db:      db,
		dialect: dialect,
		obs:     defaultObservability(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dialect reports the dialect the store was opened with.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Ping checks that a connection can be borrowed and used.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the pool. Calling it more than once is harmless.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}

func (s *Store) builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(s.dialect.Placeholder())
}

// publishedPosts joins each published post with its author and current
// revision. No ordering is imposed.
func (s *Store) publishedPosts() sq.SelectBuilder {
	return s.builder().
		Select(
			"u.tag AS author_tag",
			"p.state AS state",
			"r.title AS title",
			"r.content AS content",
			"r.tags AS tags",
			"r.description AS description",
			"r.keywords AS keywords",
		).
		From("post p").
		Join(`"user" u ON u.id = p.author_id`).
		Join("revision r ON r.id = p.current_revision").
		Where(sq.Eq{"p.state": content.Published.String()})
}

// FetchPublishedPosts returns every published post with its author tag and
// current revision. An empty result is a non-nil empty slice. The state
// column is returned raw so callers can detect corrupt rows.
func (s *Store) FetchPublishedPosts(ctx context.Context) ([]content.PostRow, error) {
	const operation = "fetch_published_posts"

	query, args, err := s.publishedPosts().ToSql()
	if err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeInternalError, "cannot build published posts query", err)
	}

	ctx, span := s.startSpan(ctx, operation)
	defer span.End()

	start := time.Now()
	rows := []content.PostRow{}
	err = s.db.SelectContext(ctx, &rows, query, args...)
	s.observe(ctx, operation, query, time.Since(start), err)

	if err != nil {
		span.fail(err)
		return nil, errors.WrapStore(err, errors.ErrCodeStoreQuery, "cannot fetch published posts")
	}

	span.SetAttributes(rowCount(len(rows)))
	return rows, nil
}

// transaction runs fn in a transaction, rolling back on error or panic.
func (s *Store) transaction(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}

// sqlitePath strips the URI form ("file:path?opts") down to the file path.
func sqlitePath(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return path
}
