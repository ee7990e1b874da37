// Package postgres implements dbadapter.Adapter backed by PostgreSQL,
// using database/sql with the lib/pq driver — the same
// database/sql-first approach the wider migration-tooling corpus
// (xataio/pgroll, acronis/go-dbkit) uses for Postgres access.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"os/exec"
	"time"

	_ "github.com/lib/pq"

	"github.com/termapps/crude/internal/dbadapter"
	"github.com/termapps/crude/internal/dump"
	"github.com/termapps/crude/internal/migration"
)

// initUpSQL is the DDL creating the crude schema and migrations table.
const initUpSQL = `CREATE SCHEMA crude;

CREATE TABLE crude.migrations (
    id INTEGER GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW(),
    name VARCHAR(255) NOT NULL,
    hash VARCHAR(255) NOT NULL,
    down_sql TEXT,
    UNIQUE (name)
);
`

// maxConnectAttempts bounds the connect-retry loop (§5): ~60 attempts at
// ~1-second intervals.
const maxConnectAttempts = 60

// Adapter is the Postgres-backed dbadapter.Adapter.
type Adapter struct {
	db  *sql.DB
	url string
}

var _ dbadapter.Adapter = (*Adapter)(nil)

// Open connects to the "postgres://" or "postgresql://" URL. If wait is
// true, connect failures are retried up to maxConnectAttempts times, one
// second apart, until ctx is done. sslmode=require selects native TLS
// transport via the driver's own DSN parsing — lib/pq honors sslmode in
// the connection string directly, so no separate TLS wiring is needed
// here.
func Open(ctx context.Context, url string, wait bool) (*Adapter, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}

	attempts := 0
	for {
		attempts++
		pingErr := db.PingContext(ctx)
		if pingErr == nil {
			break
		}

		if !wait || attempts >= maxConnectAttempts {
			db.Close()
			return nil, fmt.Errorf("connecting to postgres: %w", pingErr)
		}

		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}

	return &Adapter{db: db, url: url}, nil
}

// InitUpSQL returns the DDL creating the crude schema and tracking table.
func (a *Adapter) InitUpSQL() string { return initUpSQL }

func (a *Adapter) tableExists(ctx context.Context) (bool, error) {
	var exists bool
	err := a.db.QueryRowContext(ctx, `SELECT EXISTS (
		SELECT FROM information_schema.tables
		WHERE table_schema = 'crude' AND table_name = 'migrations'
	)`).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking for migrations table: %w", err)
	}
	return exists, nil
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

	rows, err := a.db.QueryContext(ctx, `SELECT name, hash, down_sql FROM crude.migrations ORDER BY id ASC`)
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
			`INSERT INTO crude.migrations (name, hash, down_sql) VALUES ($1, $2, $3)`,
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
			`INSERT INTO crude.migrations (name, hash, down_sql) VALUES ($1, $2, $3)`,
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
		if _, err := a.db.ExecContext(ctx, `DELETE FROM crude.migrations WHERE name = $1`, m.CompoundName); err != nil {
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
	if _, err := tx.ExecContext(ctx, `DELETE FROM crude.migrations WHERE name = $1`, m.CompoundName); err != nil {
		tx.Rollback()
		return fmt.Errorf("removing tracking row for %s: %w", m.CompoundName, err)
	}
	return tx.Commit()
}

// UpdateMigrationHash updates the recorded hash for the named row.
func (a *Adapter) UpdateMigrationHash(ctx context.Context, compoundName, hash string) error {
	_, err := a.db.ExecContext(ctx, `UPDATE crude.migrations SET hash = $1 WHERE name = $2`, hash, compoundName)
	if err != nil {
		return fmt.Errorf("updating hash for %s: %w", compoundName, err)
	}
	return nil
}

// ClearMigrations deletes all tracking rows except the one with the
// lowest id (the baseline) — the authoritative semantics per spec §9.
func (a *Adapter) ClearMigrations(ctx context.Context) error {
	_, err := a.db.ExecContext(ctx,
		`DELETE FROM crude.migrations WHERE id > (SELECT MIN(id) FROM crude.migrations)`,
	)
	if err != nil {
		return fmt.Errorf("clearing migrations: %w", err)
	}
	return nil
}

// RecordBaseline inserts a tracking row without executing any SQL.
func (a *Adapter) RecordBaseline(ctx context.Context, compoundName, hash string) error {
	_, err := a.db.ExecContext(ctx, `INSERT INTO crude.migrations (name, hash) VALUES ($1, $2)`, compoundName, hash)
	if err != nil {
		return fmt.Errorf("recording baseline %s: %w", compoundName, err)
	}
	return nil
}

// DumpSchema shells out to `pg_dump --schema-only`.
func (a *Adapter) DumpSchema(ctx context.Context, excludeMigrations bool) ([]byte, error) {
	if err := dump.RequireBinary("pg_dump"); err != nil {
		return nil, err
	}

	args := []string{"--schema-only", "--no-owner", "--no-privileges", "--dbname=" + a.url}
	if excludeMigrations {
		args = append(args, "--exclude-schema=crude")
	}

	out, err := exec.CommandContext(ctx, "pg_dump", args...).Output()
	if err != nil {
		return nil, fmt.Errorf("pg_dump failed: %w", err)
	}

	return dump.CleanPgDumpOutput(out), nil
}

// DumpData shells out to `pg_dump --data-only --inserts`.
func (a *Adapter) DumpData(ctx context.Context, excludeMigrations bool) ([]byte, error) {
	if err := dump.RequireBinary("pg_dump"); err != nil {
		return nil, err
	}

	args := []string{"--data-only", "--inserts", "--no-owner", "--no-privileges", "--dbname=" + a.url}
	if excludeMigrations {
		args = append(args, "--exclude-schema=crude")
	}

	out, err := exec.CommandContext(ctx, "pg_dump", args...).Output()
	if err != nil {
		return nil, fmt.Errorf("pg_dump failed: %w", err)
	}

	return dump.CleanPgDumpOutput(out), nil
}

// Close releases the underlying *sql.DB.
func (a *Adapter) Close() error {
	return a.db.Close()
}
