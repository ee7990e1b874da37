// Package migration defines the Migration record and the filesystem-backed
// loader that produces it from a migrations directory.
package migration

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// timestampLayout is the fixed-width "%Y%m%d%H%M%S" layout used in the
// compound name prefix.
const timestampLayout = "20060102150405"

// NoTransactionMarker disables the implicit transaction wrapping a
// migration body when it appears (case-insensitively, after leading
// whitespace only) at the start of the body.
const NoTransactionMarker = "-- no-transaction"

// Migration is an immutable value describing one migration, either loaded
// from disk (local) or reconstructed from tracking-table metadata (remote).
type Migration struct {
	// Name is the short identifier, e.g. "create_users".
	Name string
	// CompoundName is "<YYYYMMDDHHMMSS>_<name>", the primary key across
	// local and remote universes.
	CompoundName string
	// Timestamp is parsed from CompoundName; used only for validation.
	Timestamp time.Time
	// UpSQL is the up.sql contents. Present for local migrations, empty
	// (with UpSQL.Valid == false conceptually — see HasUpSQL) for remote
	// records.
	UpSQL string
	// HasUpSQL reports whether UpSQL was actually loaded (false for
	// migrations reconstructed from the database).
	HasUpSQL bool
	// DownSQL is the down.sql contents, if any. Empty string + HasDownSQL
	// false means "irreversible".
	DownSQL      string
	HasDownSQL   bool
	// SeedSQL is the seed.sql contents, local-only.
	SeedSQL    string
	HasSeedSQL bool
	// Hash is the lowercase hex SHA-256 of UpSQL; for remote records it is
	// whatever was recorded at apply time.
	Hash string
}

// DisableTransaction reports whether body begins (after leading
// whitespace, case-insensitively) with NoTransactionMarker.
func DisableTransaction(body string) bool {
	trimmed := strings.TrimLeft(body, " \t\r\n")
	return strings.HasPrefix(strings.ToLower(trimmed), NoTransactionMarker)
}

// splitCompoundName splits "<timestamp>_<name>" on the first underscore
// and validates the timestamp prefix.
func splitCompoundName(compoundName string) (name string, ts time.Time, err error) {
	idx := strings.IndexByte(compoundName, '_')
	if idx < 0 {
		return "", time.Time{}, fmt.Errorf("invalid migration name (missing '_'): %s", compoundName)
	}

	tsStr := compoundName[:idx]
	name = compoundName[idx+1:]

	ts, err = time.Parse(timestampLayout, tsStr)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to parse timestamp %s: %w", tsStr, err)
	}

	return name, ts.UTC(), nil
}

// FromDir loads a local migration from a migration directory. The final
// path segment must be a valid compound name.
func FromDir(path string) (Migration, error) {
	compoundName := filepath.Base(path)

	name, ts, err := splitCompoundName(compoundName)
	if err != nil {
		return Migration{}, err
	}

	upPath := filepath.Join(path, "up.sql")
	upBytes, err := os.ReadFile(upPath)
	if err != nil {
		return Migration{}, fmt.Errorf("unable to read migration %s: %w", upPath, err)
	}

	sum := sha256.Sum256(upBytes)
	hash := hex.EncodeToString(sum[:])

	downSQL, hasDown := readOptional(filepath.Join(path, "down.sql"))
	seedSQL, hasSeed := readOptional(filepath.Join(path, "seed.sql"))

	return Migration{
		Name:         name,
		CompoundName: compoundName,
		Timestamp:    ts,
		UpSQL:        string(upBytes),
		HasUpSQL:     true,
		DownSQL:      downSQL,
		HasDownSQL:   hasDown,
		SeedSQL:      seedSQL,
		HasSeedSQL:   hasSeed,
		Hash:         hash,
	}, nil
}

// readOptional reads a file, treating both a missing file and an empty
// one as "absent".
func readOptional(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		return "", false
	}
	return string(data), true
}

// FromDB reconstructs a remote Migration from tracking-table metadata.
func FromDB(compoundName, hash string, downSQL string, hasDownSQL bool) (Migration, error) {
	name, ts, err := splitCompoundName(compoundName)
	if err != nil {
		return Migration{}, err
	}

	return Migration{
		Name:         name,
		CompoundName: compoundName,
		Timestamp:    ts,
		Hash:         hash,
		DownSQL:      downSQL,
		HasDownSQL:   hasDownSQL,
	}, nil
}

// Store manages filesystem operations for local migrations rooted at Dir.
type Store struct {
	Dir string
}

// NewStore creates a handler rooted at the given migrations directory.
func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

// Check ensures the migrations directory exists.
func (s *Store) Check() error {
	if _, err := os.Stat(s.Dir); os.IsNotExist(err) {
		return fmt.Errorf("migrations directory does not exist: %s, use `crude init` to create it", s.Dir)
	} else if err != nil {
		return err
	}
	return nil
}

// Create creates the migrations directory for the first time.
func (s *Store) Create() error {
	if _, err := os.Stat(s.Dir); err == nil {
		return fmt.Errorf("migrations directory already exists: %s", s.Dir)
	}
	return os.MkdirAll(s.Dir, 0o750)
}

// Load loads local migrations from subdirectories, ascending by
// compound name (lexicographic order, which coincides with chronological
// order by construction).
func (s *Store) Load() ([]Migration, error) {
	if err := s.Check(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	var dirs []os.DirEntry
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e)
		}
	}

	sort.Slice(dirs, func(i, j int) bool { return dirs[i].Name() < dirs[j].Name() })

	migrations := make([]Migration, 0, len(dirs))
	for _, d := range dirs {
		m, err := FromDir(filepath.Join(s.Dir, d.Name()))
		if err != nil {
			return nil, err
		}
		migrations = append(migrations, m)
	}

	return migrations, nil
}

// CreateMigration writes a new migration folder with up.sql (defaulting to
// empty), an empty down.sql, and seed.sql (defaulting to empty, or the
// given contents).
func (s *Store) CreateMigration(compoundName string, upSQL, seedSQL string) error {
	path := filepath.Join(s.Dir, compoundName)

	if err := os.MkdirAll(path, 0o750); err != nil {
		return err
	}

	if err := os.WriteFile(filepath.Join(path, "up.sql"), []byte(upSQL), 0o640); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(path, "down.sql"), nil, 0o640); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(path, "seed.sql"), []byte(seedSQL), 0o640); err != nil {
		return err
	}

	return nil
}

// RemoveMigration removes a migration directory by its compound name.
func (s *Store) RemoveMigration(compoundName string) error {
	return os.RemoveAll(filepath.Join(s.Dir, compoundName))
}

// RenameMigration renames a migration directory.
func (s *Store) RenameMigration(from, to string) error {
	return os.Rename(filepath.Join(s.Dir, from), filepath.Join(s.Dir, to))
}

// String renders the store's root directory.
func (s *Store) String() string {
	return s.Dir
}
