package store

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/conneroisu/folio/internal/config"
	"github.com/conneroisu/folio/internal/content"
	ferrors "github.com/conneroisu/folio/internal/errors"
)

func testConfig(t *testing.T) config.DatabaseConfig {
	t.Helper()
	return config.DatabaseConfig{
		Driver:       config.DriverSQLite,
		DSN:          filepath.Join(t.TempDir(), "data", "folio.db"),
		MaxOpenConns: 4,
		MaxIdleConns: 2,
	}
}

func openTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	ctx := context.Background()

	s, err := Open(ctx, testConfig(t), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.Migrate(ctx)
	require.NoError(t, err)
	return s
}

type fixture struct {
	author      string
	state       string
	title       string
	content     string
	tags        string
	description string
	keywords    string
}

func insertPost(t *testing.T, s *Store, f fixture) int64 {
	t.Helper()
	ctx := context.Background()

	var authorID int64
	err := s.db.GetContext(ctx, &authorID, `SELECT id FROM "user" WHERE tag = ?`, f.author)
	if err != nil {
		res, err := s.db.ExecContext(ctx, `INSERT INTO "user" (tag) VALUES (?)`, f.author)
		require.NoError(t, err)
		authorID, err = res.LastInsertId()
		require.NoError(t, err)
	}

	revisionID := insertRevision(t, s, f)

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO post (author_id, current_revision, state) VALUES (?, ?, ?)`,
		authorID, revisionID, f.state)
	require.NoError(t, err)
	postID, err := res.LastInsertId()
	require.NoError(t, err)
	return postID
}

func insertRevision(t *testing.T, s *Store, f fixture) int64 {
	t.Helper()
	res, err := s.db.ExecContext(context.Background(),
		`INSERT INTO revision (title, content, tags, description, keywords) VALUES (?, ?, ?, ?, ?)`,
		f.title, f.content, f.tags, f.description, f.keywords)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func TestFetchPublishedPostsFiltersByState(t *testing.T) {
	s := openTestStore(t)

	insertPost(t, s, fixture{author: "@ada", state: "published", title: "one", content: "body one",
		tags: "go,sql", description: "first", keywords: "a,b"})
	insertPost(t, s, fixture{author: "@ada", state: "draft", title: "hidden draft", content: "x"})
	insertPost(t, s, fixture{author: "@bob", state: "trashed", title: "binned", content: "y"})
	insertPost(t, s, fixture{author: "@bob", state: "published", title: "two", content: "body two"})

	rows, err := s.FetchPublishedPosts(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byTitle := map[string]content.PostRow{}
	for _, row := range rows {
		assert.Equal(t, "published", row.State)
		byTitle[row.Title] = row
	}

	assert.Equal(t, content.PostRow{
		AuthorTag:   "@ada",
		State:       "published",
		Title:       "one",
		Content:     "body one",
		Tags:        "go,sql",
		Description: "first",
		Keywords:    "a,b",
	}, byTitle["one"])
	assert.Equal(t, "@bob", byTitle["two"].AuthorTag)
	assert.Empty(t, byTitle["two"].Tags)
}

func TestFetchPublishedPostsEmpty(t *testing.T) {
	s := openTestStore(t)
	insertPost(t, s, fixture{author: "@ada", state: "draft", title: "unfinished"})

	rows, err := s.FetchPublishedPosts(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestFetchPublishedPostsUsesCurrentRevision(t *testing.T) {
	s := openTestStore(t)
	postID := insertPost(t, s, fixture{author: "@ada", state: "published", title: "old title", content: "old"})
	newRevision := insertRevision(t, s, fixture{title: "new title", content: "new"})

	_, err := s.db.Exec(`UPDATE post SET current_revision = ? WHERE id = ?`, newRevision, postID)
	require.NoError(t, err)

	rows, err := s.FetchPublishedPosts(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "new title", rows[0].Title)
	assert.Equal(t, "new", rows[0].Content)
}

func TestFetchPublishedPostsStoreErrors(t *testing.T) {
	t.Run("closed pool", func(t *testing.T) {
		s := openTestStore(t)
		require.NoError(t, s.Close())
		require.NoError(t, s.Close())

		rows, err := s.FetchPublishedPosts(context.Background())
		require.Error(t, err)
		assert.Nil(t, rows)
		assert.True(t, ferrors.IsStoreError(err))
		assert.Equal(t, ferrors.ErrorTypeStore, ferrors.TypeOf(err))
		assert.ErrorIs(t, err, &ferrors.FolioError{Type: ferrors.ErrorTypeStore, Code: ferrors.ErrCodeStoreQuery})
	})

	t.Run("cancelled context", func(t *testing.T) {
		s := openTestStore(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := s.FetchPublishedPosts(ctx)
		require.Error(t, err)
		assert.True(t, ferrors.IsStoreError(err))
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("missing schema", func(t *testing.T) {
		s, err := Open(context.Background(), testConfig(t))
		require.NoError(t, err)
		defer s.Close()

		_, err = s.FetchPublishedPosts(context.Background())
		require.Error(t, err)
		assert.True(t, ferrors.IsStoreError(err))
	})
}

func TestPublishedPostsQuery(t *testing.T) {
	sqliteQuery, args, err := New(nil, SQLite).publishedPosts().ToSql()
	require.NoError(t, err)
	assert.Contains(t, sqliteQuery, `JOIN "user" u ON u.id = p.author_id`)
	assert.Contains(t, sqliteQuery, "JOIN revision r ON r.id = p.current_revision")
	assert.Contains(t, sqliteQuery, "p.state = ?")
	assert.NotContains(t, strings.ToUpper(sqliteQuery), "ORDER BY")
	assert.Equal(t, []interface{}{"published"}, args)

	pgQuery, _, err := New(nil, PostgreSQL).publishedPosts().ToSql()
	require.NoError(t, err)
	assert.Contains(t, pgQuery, "p.state = $1")
}

func TestOpen(t *testing.T) {
	t.Run("creates parent directory", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.DSN = filepath.Join(t.TempDir(), "a", "b", "folio.db")

		s, err := Open(context.Background(), cfg)
		require.NoError(t, err)
		defer s.Close()
		assert.DirExists(t, filepath.Dir(cfg.DSN))
		assert.Equal(t, SQLite, s.Dialect())
	})

	t.Run("in-memory database", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.InMemory = true
		cfg.DSN = "file:store_test?mode=memory&cache=shared"

		s, err := Open(context.Background(), cfg)
		require.NoError(t, err)
		defer s.Close()

		_, err = s.Migrate(context.Background())
		require.NoError(t, err)
		rows, err := s.FetchPublishedPosts(context.Background())
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("unsupported driver", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Driver = "mysql"

		_, err := Open(context.Background(), cfg)
		require.Error(t, err)
		assert.ErrorIs(t, err, &ferrors.FolioError{Type: ferrors.ErrorTypeStore, Code: ferrors.ErrCodeStoreConnect})
	})
}

func TestSqlitePath(t *testing.T) {
	assert.Equal(t, "/var/lib/folio.db", sqlitePath("/var/lib/folio.db"))
	assert.Equal(t, "/var/lib/folio.db", sqlitePath("file:/var/lib/folio.db?_busy_timeout=5000"))
	assert.True(t, isMemoryDSN(":memory:"))
	assert.True(t, isMemoryDSN(config.InMemoryDSN))
	assert.False(t, isMemoryDSN("folio.db"))
}

func TestObservability(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	s := openTestStore(t,
		WithLogger(logger),
		WithTracer(tracenoop.NewTracerProvider().Tracer("test")),
		WithMeter(metricnoop.NewMeterProvider().Meter("test")),
		WithSlowQueryThreshold(time.Hour),
		WithQueryLogging(true),
	)
	buf.Reset()

	_, err := s.FetchPublishedPosts(context.Background())
	require.NoError(t, err)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(firstLine(buf.Bytes()), &entry))
	assert.Equal(t, "query executed", entry["msg"])
	assert.Equal(t, "fetch_published_posts", entry["operation"])
	assert.Contains(t, entry["query"], "FROM post p")

	buf.Reset()
	require.NoError(t, s.Close())
	_, err = s.FetchPublishedPosts(context.Background())
	require.Error(t, err)

	require.NoError(t, json.Unmarshal(firstLine(buf.Bytes()), &entry))
	assert.Equal(t, "query failed", entry["msg"])
	assert.Equal(t, "ERROR", entry["level"])
}

func TestSlowQueryLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	s := openTestStore(t, WithLogger(logger), WithSlowQueryThreshold(-1))
	buf.Reset()

	_, err := s.FetchPublishedPosts(context.Background())
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"msg":"slow query"`)
	assert.NotContains(t, buf.String(), `"query":`)
}

func firstLine(b []byte) []byte {
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		return b[:i]
	}
	return b
}
