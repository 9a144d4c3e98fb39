package store

import (
	"cmp"
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/conneroisu/folio/internal/errors"
)

//go:embed migrations
var migrationFiles embed.FS

const createMigrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
    version    INTEGER PRIMARY KEY,
    name       TEXT NOT NULL,
    applied_at TIMESTAMP NOT NULL
)`

// Migration is one schema file, named NNNN_name.sql.
type Migration struct {
	Version int
	Name    string
	File    string
}

// Migrate applies the embedded schema for the store's dialect.
func (s *Store) Migrate(ctx context.Context) ([]Migration, error) {
	return s.MigrateFS(ctx, migrationFiles, s.dialect.MigrationDir())
}

// MigrateFS applies every migration in dir that has not been recorded in
// schema_migrations, in version order. Each file runs in its own
// transaction together with its bookkeeping row. It returns the migrations
// applied by this call.
func (s *Store) MigrateFS(ctx context.Context, fsys fs.FS, dir string) ([]Migration, error) {
	ctx, span := s.startSpan(ctx, "migrate")
	defer span.End()

	migrations, err := loadMigrations(fsys, dir)
	if err != nil {
		span.fail(err)
		return nil, err
	}

	if _, err := s.db.ExecContext(ctx, createMigrationsTable); err != nil {
		span.fail(err)
		return nil, errors.NewMigrationError(errors.ErrCodeMigrationFailed, "cannot create schema_migrations", err)
	}

	applied, err := s.appliedVersions(ctx)
	if err != nil {
		span.fail(err)
		return nil, errors.NewMigrationError(errors.ErrCodeMigrationFailed, "cannot read applied migrations", err)
	}

	var done []Migration
	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}

		if err := s.apply(ctx, fsys, m); err != nil {
			span.fail(err)
			return done, errors.WrapMigration(err, m.File, "cannot apply migration")
		}
		done = append(done, m)
	}

	return done, nil
}

// AppliedMigrations lists the recorded versions in ascending order.
func (s *Store) AppliedMigrations(ctx context.Context) ([]Migration, error) {
	query, args, err := s.builder().
		Select("version", "name").
		From("schema_migrations").
		OrderBy("version").
		ToSql()
	if err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeInternalError, "cannot build migrations query", err)
	}

	var rows []struct {
		Version int    `db:"version"`
		Name    string `db:"name"`
	}
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.NewMigrationError(errors.ErrCodeMigrationFailed, "cannot read applied migrations", err)
	}

	out := make([]Migration, 0, len(rows))
	for _, r := range rows {
		out = append(out, Migration{Version: r.Version, Name: r.Name, File: migrationFile(r.Version, r.Name)})
	}
	return out, nil
}

func (s *Store) appliedVersions(ctx context.Context) (map[int]bool, error) {
	var versions []int
	if err := s.db.SelectContext(ctx, &versions, "SELECT version FROM schema_migrations"); err != nil {
		return nil, err
	}

	applied := make(map[int]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}
	return applied, nil
}

func (s *Store) apply(ctx context.Context, fsys fs.FS, m Migration) error {
	body, err := fs.ReadFile(fsys, m.File)
	if err != nil {
		return err
	}

	record, args, err := s.builder().
		Insert("schema_migrations").
		Columns("version", "name", "applied_at").
		Values(m.Version, m.Name, time.Now().UTC()).
		ToSql()
	if err != nil {
		return err
	}

	start := time.Now()
	err = s.transaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, string(body)); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, record, args...)
		return err
	})
	s.observe(ctx, "migrate", m.File, time.Since(start), err)
	return err
}

// loadMigrations reads dir and returns its .sql files sorted by version.
func loadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, errors.NewMigrationError(errors.ErrCodeMigrationSource, "cannot read migration directory", err).
			WithContext("dir", dir)
	}

	seen := make(map[int]string)
	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".sql" {
			continue
		}

		version, name, err := parseMigrationName(entry.Name())
		if err != nil {
			return nil, errors.NewMigrationError(errors.ErrCodeMigrationSource, "invalid migration file name", err).
				WithContext("migration", entry.Name())
		}
		if prev, ok := seen[version]; ok {
			return nil, errors.NewMigrationError(errors.ErrCodeMigrationSource, "duplicate migration version",
				fmt.Errorf("%s and %s share version %d", prev, entry.Name(), version))
		}
		seen[version] = entry.Name()

		migrations = append(migrations, Migration{
			Version: version,
			Name:    name,
			File:    path.Join(dir, entry.Name()),
		})
	}

	// fs.ReadDir sorts by file name, which misorders unpadded versions
	slices.SortFunc(migrations, func(a, b Migration) int {
		return cmp.Compare(a.Version, b.Version)
	})
	return migrations, nil
}

func parseMigrationName(file string) (int, string, error) {
	base := strings.TrimSuffix(file, ".sql")
	prefix, name, ok := strings.Cut(base, "_")
	if !ok || name == "" {
		return 0, "", fmt.Errorf("%q is not of the form NNNN_name.sql", file)
	}

	version, err := strconv.Atoi(prefix)
	if err != nil || version <= 0 {
		return 0, "", fmt.Errorf("%q has no positive version prefix", file)
	}
	return version, name, nil
}

func migrationFile(version int, name string) string {
	return fmt.Sprintf("%04d_%s.sql", version, name)
}
