// Package sqlite implements dbadapter.Adapter backed by a SQLite database,
// using the pure-Go modernc.org/sqlite driver (the teacher's own driver
// choice — no cgo).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os/exec"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/termapps/crude/internal/dbadapter"
	"github.com/termapps/crude/internal/dump"
	"github.com/termapps/crude/internal/migration"
)

// initUpSQL is the DDL creating the SQLite migrations tracking table.
const initUpSQL = `CREATE TABLE crude_migrations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    name TEXT NOT NULL UNIQUE,
    hash TEXT NOT NULL,
    down_sql TEXT
);
`

// Adapter is the SQLite-backed dbadapter.Adapter.
type Adapter struct {
	db   *sql.DB
	path string
}

var _ dbadapter.Adapter = (*Adapter)(nil)

// Open opens a SQLite database at the "sqlite://" URL. wait is accepted
// for interface symmetry with the Postgres adapter but unused: SQLite has
// no connect-retry semantics to wait on.
func Open(ctx context.Context, url string, wait bool) (*Adapter, error) {
	path := strings.TrimPrefix(url, "sqlite://")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to sqlite database: %w", err)
	}

	return &Adapter{db: db, path: path}, nil
}

// InitUpSQL returns the DDL creating the tracking table.
func (a *Adapter) InitUpSQL() string { return initUpSQL }

func (a *Adapter) tableExists(ctx context.Context) (bool, error) {
	var count int
	err := a.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'crude_migrations'`,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking for migrations table: %w", err)
	}
	return count > 0, nil
}

// LoadMigrations returns remote migrations in ascending id order.
func (a *Adapter) LoadMigrations(ctx context.Context) ([]migration.Migration, error) {
	exists, err := a.tableExists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	rows, err := a.db.QueryContext(ctx, `SELECT name, hash, down_sql FROM crude_migrations ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("loading migrations: %w", err)
	}
	defer rows.Close()

	var migrations []migration.Migration
	for rows.Next() {
		var name, hash string
		var downSQL sql.NullString
		if err := rows.Scan(&name, &hash, &downSQL); err != nil {
			return nil, fmt.Errorf("scanning migration row: %w", err)
		}

		m, err := migration.FromDB(name, hash, downSQL.String, downSQL.Valid && downSQL.String != "")
		if err != nil {
			return nil, err
		}
		migrations = append(migrations, m)
	}

	return migrations, rows.Err()
}

// RunUpMigration applies m.UpSQL, inserts the tracking row, then runs
// m.SeedSQL (if present) in its own transaction.
func (a *Adapter) RunUpMigration(ctx context.Context, m migration.Migration) error {
	disableTx := migration.DisableTransaction(m.UpSQL)

	var downSQL any
	if m.HasDownSQL {
		downSQL = m.DownSQL
	}

	if disableTx {
		if _, err := a.db.ExecContext(ctx, m.UpSQL); err != nil {
			return fmt.Errorf("applying up migration %s: %w", m.CompoundName, err)
		}
		if _, err := a.db.ExecContext(ctx,
			`INSERT INTO crude_migrations (name, hash, down_sql) VALUES (?, ?, ?)`,
			m.CompoundName, m.Hash, downSQL,
		); err != nil {
			return fmt.Errorf("recording up migration %s: %w", m.CompoundName, err)
		}
	} else {
		tx, err := a.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning transaction for %s: %w", m.CompoundName, err)
		}

		if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying up migration %s: %w", m.CompoundName, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO crude_migrations (name, hash, down_sql) VALUES (?, ?, ?)`,
			m.CompoundName, m.Hash, downSQL,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording up migration %s: %w", m.CompoundName, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing up migration %s: %w", m.CompoundName, err)
		}
	}

	if m.HasSeedSQL {
		tx, err := a.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning seed transaction for %s: %w", m.CompoundName, err)
		}
		if _, err := tx.ExecContext(ctx, m.SeedSQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying seed for %s: %w", m.CompoundName, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing seed for %s: %w", m.CompoundName, err)
		}
	}

	return nil
}

// RunDownMigration applies m.DownSQL and deletes the tracking row.
func (a *Adapter) RunDownMigration(ctx context.Context, m migration.Migration) error {
	disableTx := migration.DisableTransaction(m.DownSQL)

	if disableTx {
		if _, err := a.db.ExecContext(ctx, m.DownSQL); err != nil {
			return fmt.Errorf("applying down migration %s: %w", m.CompoundName, err)
		}
		if _, err := a.db.ExecContext(ctx, `DELETE FROM crude_migrations WHERE name = ?`, m.CompoundName); err != nil {
			return fmt.Errorf("removing tracking row for %s: %w", m.CompoundName, err)
		}
		return nil
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction for %s: %w", m.CompoundName, err)
	}
	if _, err := tx.ExecContext(ctx, m.DownSQL); err != nil {
		tx.Rollback()
		return fmt.Errorf("applying down migration %s: %w", m.CompoundName, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM crude_migrations WHERE name = ?`, m.CompoundName); err != nil {
		tx.Rollback()
		return fmt.Errorf("removing tracking row for %s: %w", m.CompoundName, err)
	}
	return tx.Commit()
}

// UpdateMigrationHash updates the recorded hash for the named row.
func (a *Adapter) UpdateMigrationHash(ctx context.Context, compoundName, hash string) error {
	_, err := a.db.ExecContext(ctx, `UPDATE crude_migrations SET hash = ? WHERE name = ?`, hash, compoundName)
	if err != nil {
		return fmt.Errorf("updating hash for %s: %w", compoundName, err)
	}
	return nil
}

// ClearMigrations deletes all tracking rows except the one with the
// lowest id (the baseline). Unlike the original Rust SQLite adapter (which
// mistakenly referenced the Postgres-qualified "crude.migrations" table
// name here), this targets crude_migrations directly.
func (a *Adapter) ClearMigrations(ctx context.Context) error {
	_, err := a.db.ExecContext(ctx,
		`DELETE FROM crude_migrations WHERE id > (SELECT MIN(id) FROM crude_migrations)`,
	)
	if err != nil {
		return fmt.Errorf("clearing migrations: %w", err)
	}
	return nil
}

// RecordBaseline inserts a tracking row without executing any SQL.
func (a *Adapter) RecordBaseline(ctx context.Context, compoundName, hash string) error {
	_, err := a.db.ExecContext(ctx, `INSERT INTO crude_migrations (name, hash) VALUES (?, ?)`, compoundName, hash)
	if err != nil {
		return fmt.Errorf("recording baseline %s: %w", compoundName, err)
	}
	return nil
}

// DumpSchema shells out to `sqlite3 <path> .schema`.
func (a *Adapter) DumpSchema(ctx context.Context, excludeMigrations bool) ([]byte, error) {
	if err := dump.RequireBinary("sqlite3"); err != nil {
		return nil, err
	}

	out, err := exec.CommandContext(ctx, "sqlite3", a.path, ".schema").Output()
	if err != nil {
		return nil, fmt.Errorf("dumping sqlite schema: %w", err)
	}
	if excludeMigrations {
		out = dump.FilterOutLinesContaining(out, "crude_migrations")
	}
	return out, nil
}

// DumpData shells out to `sqlite3 <path> .dump` for a data-only rollup
// seed. SQLite's .dump intermixes schema and data, but rollup only needs
// the data (INSERT) statements with the tracking table's own rows
// excluded.
func (a *Adapter) DumpData(ctx context.Context, excludeMigrations bool) ([]byte, error) {
	if err := dump.RequireBinary("sqlite3"); err != nil {
		return nil, err
	}

	out, err := exec.CommandContext(ctx, "sqlite3", a.path, ".dump").Output()
	if err != nil {
		return nil, fmt.Errorf("dumping sqlite data: %w", err)
	}
	if excludeMigrations {
		out = dump.FilterOutLinesContaining(out, "crude_migrations")
	}
	return dump.KeepOnlyLinesWithPrefix(out, "INSERT INTO"), nil
}

// Close releases the underlying *sql.DB.
func (a *Adapter) Close() error {
	return a.db.Close()
}
