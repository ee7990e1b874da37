// Package dbadapter defines the capability set the Planner and Executor
// need from a concrete database, and dispatches a connection URL to the
// matching concrete adapter (Postgres or SQLite).
package dbadapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/termapps/crude/internal/migration"
)

// Adapter is the capability set a concrete database must provide. The
// Planner never references a concrete implementation, only this
// interface.
type Adapter interface {
	// InitUpSQL returns the DDL that creates the migrations tracking
	// table/schema.
	InitUpSQL() string

	// LoadMigrations returns remote migrations in ascending id order (=
	// apply order). Returns an empty slice if the tracking table does
	// not exist.
	LoadMigrations(ctx context.Context) ([]migration.Migration, error)

	// RunUpMigration applies m.UpSQL, inserts the tracking row, and
	// (if present) applies m.SeedSQL in its own transaction.
	RunUpMigration(ctx context.Context, m migration.Migration) error

	// RunDownMigration applies m.DownSQL and deletes the tracking row.
	RunDownMigration(ctx context.Context, m migration.Migration) error

	// UpdateMigrationHash updates the recorded hash for the named row.
	UpdateMigrationHash(ctx context.Context, compoundName, hash string) error

	// ClearMigrations deletes all tracking rows except the one with the
	// lowest id (the baseline).
	ClearMigrations(ctx context.Context) error

	// RecordBaseline inserts a tracking row without executing any SQL.
	RecordBaseline(ctx context.Context, compoundName, hash string) error

	// DumpSchema shells out to the database's native dump tool and
	// returns the schema-only output, optionally excluding the
	// migrations tracking table/schema.
	DumpSchema(ctx context.Context, excludeMigrations bool) ([]byte, error)

	// DumpData shells out to the database's native dump tool and returns
	// data-only output (used to build a rollup's seed.sql).
	DumpData(ctx context.Context, excludeMigrations bool) ([]byte, error)

	// Close releases any underlying connection.
	Close() error
}

// Opener is the shape of a constructor that connects to url and returns
// an Adapter. wait, when true, enables the bounded Postgres connect-retry
// loop (up to 60 attempts, 1 second apart).
//
// The concrete constructors live in the postgres/sqlite subpackages;
// dbadapter itself only classifies a URL by scheme (ParseScheme), to avoid
// a dependency cycle between the concrete adapters and this package's
// Adapter interface. internal/cli's openAdapter routes a URL to the
// matching constructor.
type Opener func(ctx context.Context, url string, wait bool) (Adapter, error)

// Scheme classifies a database URL.
type Scheme int

const (
	// SchemeUnsupported is returned for any URL whose scheme this tool
	// doesn't understand.
	SchemeUnsupported Scheme = iota
	SchemePostgres
	SchemeSQLite
)

// ParseScheme classifies url by its prefix, per spec: "postgres://" or
// "postgresql://" routes to Postgres, "sqlite://" routes to SQLite,
// anything else is unsupported.
func ParseScheme(url string) Scheme {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return SchemePostgres
	case strings.HasPrefix(url, "sqlite://"):
		return SchemeSQLite
	default:
		return SchemeUnsupported
	}
}

// ErrUnsupportedURL is returned by callers that classify a URL themselves
// and find SchemeUnsupported.
func ErrUnsupportedURL(url string) error {
	return fmt.Errorf("unsupported database URL: %s", url)
}
