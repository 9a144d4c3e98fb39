package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/conneroisu/folio/internal/content"
	"github.com/conneroisu/folio/internal/errors"
)

// InsertPosts writes each row as a post with a single revision, creating
// authors by tag as needed. All rows are written in one transaction; on
// failure nothing is kept. It returns the new post ids in input order.
func (s *Store) InsertPosts(ctx context.Context, rows []content.PostRow) ([]int64, error) {
	const operation = "insert_posts"

	ctx, span := s.startSpan(ctx, operation)
	defer span.End()

	ids := make([]int64, 0, len(rows))
	start := time.Now()
	err := s.transaction(ctx, func(tx *sqlx.Tx) error {
		authors := map[string]int64{}
		for _, row := range rows {
			authorID, ok := authors[row.AuthorTag]
			if !ok {
				var err error
				if authorID, err = s.ensureAuthor(ctx, tx, row.AuthorTag); err != nil {
					return err
				}
				authors[row.AuthorTag] = authorID
			}

			revisionID, err := s.insertReturningID(ctx, tx, s.builder().
				Insert("revision").
				Columns("title", "content", "tags", "description", "keywords").
				Values(row.Title, row.Content, row.Tags, row.Description, row.Keywords))
			if err != nil {
				return err
			}

			postID, err := s.insertReturningID(ctx, tx, s.builder().
				Insert("post").
				Columns("author_id", "current_revision", "state").
				Values(authorID, revisionID, row.State))
			if err != nil {
				return err
			}
			ids = append(ids, postID)
		}
		return nil
	})
	s.observe(ctx, operation, "", time.Since(start), err)

	if err != nil {
		span.fail(err)
		return nil, errors.WrapStore(err, errors.ErrCodeStoreWrite, "cannot insert posts")
	}

	span.SetAttributes(rowCount(len(ids)))
	return ids, nil
}

func (s *Store) ensureAuthor(ctx context.Context, tx *sqlx.Tx, tag string) (int64, error) {
	query, args, err := s.builder().Select("id").From(`"user"`).Where(sq.Eq{"tag": tag}).ToSql()
	if err != nil {
		return 0, err
	}

	var id int64
	err = tx.GetContext(ctx, &id, query, args...)
	if stderrors.Is(err, sql.ErrNoRows) {
		return s.insertReturningID(ctx, tx, s.builder().Insert(`"user"`).Columns("tag").Values(tag))
	}
	return id, err
}

// insertReturningID runs an INSERT with a RETURNING clause, which both
// sqlite (3.35+) and PostgreSQL accept.
func (s *Store) insertReturningID(ctx context.Context, tx *sqlx.Tx, insert sq.InsertBuilder) (int64, error) {
	query, args, err := insert.Suffix("RETURNING id").ToSql()
	if err != nil {
		return 0, err
	}

	var id int64
	if err := tx.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}
