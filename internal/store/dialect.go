package store

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/conneroisu/folio/internal/config"
)

var (
	SQLite     = SQLiteDialect{}
	PostgreSQL = PostgreSQLDialect{}
)

// Dialect abstracts the differences between the supported databases:
// the driver name, the placeholder format and where the schema lives.
type Dialect interface {
	// Name returns the database/sql driver name ("sqlite3", "pgx").
	Name() string
	// System returns the otel db.system value.
	System() string
	Placeholder() sq.PlaceholderFormat
	// MigrationDir is the directory of the embedded migration set.
	MigrationDir() string
}

type SQLiteDialect struct{}

func (SQLiteDialect) Name() string                      { return config.DriverSQLite }
func (SQLiteDialect) System() string                    { return "sqlite" }
func (SQLiteDialect) Placeholder() sq.PlaceholderFormat { return sq.Question }
func (SQLiteDialect) MigrationDir() string              { return "migrations/sqlite" }

type PostgreSQLDialect struct{}

func (PostgreSQLDialect) Name() string                      { return config.DriverPostgres }
func (PostgreSQLDialect) System() string                    { return "postgresql" }
func (PostgreSQLDialect) Placeholder() sq.PlaceholderFormat { return sq.Dollar }
func (PostgreSQLDialect) MigrationDir() string              { return "migrations/postgres" }

// DialectFor resolves a configured driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case config.DriverSQLite:
		return SQLite, nil
	case config.DriverPostgres:
		return PostgreSQL, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}
