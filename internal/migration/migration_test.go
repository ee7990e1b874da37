package migration

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
)

func writeMigrationDir(t *testing.T, root, compoundName, upSQL, downSQL, seedSQL string) string {
	t.Helper()

	dir := filepath.Join(root, compoundName)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "up.sql"), []byte(upSQL), 0o640); err != nil {
		t.Fatalf("write up.sql: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "down.sql"), []byte(downSQL), 0o640); err != nil {
		t.Fatalf("write down.sql: %v", err)
	}
	if seedSQL != "" {
		if err := os.WriteFile(filepath.Join(dir, "seed.sql"), []byte(seedSQL), 0o640); err != nil {
			t.Fatalf("write seed.sql: %v", err)
		}
	}
	return dir
}

func TestFromDir(t *testing.T) {
	tmp := t.TempDir()
	dir := writeMigrationDir(t, tmp, "20240101000000_create_users", "CREATE TABLE users;", "DROP TABLE users;", "")

	m, err := FromDir(dir)
	if err != nil {
		t.Fatalf("FromDir: %v", err)
	}

	if m.Name != "create_users" {
		t.Errorf("Name = %q, want create_users", m.Name)
	}
	if m.CompoundName != "20240101000000_create_users" {
		t.Errorf("CompoundName = %q", m.CompoundName)
	}
	if !m.HasUpSQL || m.UpSQL != "CREATE TABLE users;" {
		t.Errorf("UpSQL = %q", m.UpSQL)
	}
	if !m.HasDownSQL || m.DownSQL != "DROP TABLE users;" {
		t.Errorf("DownSQL = %q", m.DownSQL)
	}
	if m.HasSeedSQL {
		t.Errorf("expected no seed.sql")
	}

	sum := sha256.Sum256([]byte("CREATE TABLE users;"))
	want := hex.EncodeToString(sum[:])
	if m.Hash != want {
		t.Errorf("Hash = %s, want %s", m.Hash, want)
	}
}

func TestFromDir_EmptyDownIsAbsent(t *testing.T) {
	tmp := t.TempDir()
	dir := writeMigrationDir(t, tmp, "20240101000000_a", "SELECT 1;", "", "")

	m, err := FromDir(dir)
	if err != nil {
		t.Fatalf("FromDir: %v", err)
	}
	if m.HasDownSQL {
		t.Errorf("expected empty down.sql to be treated as absent")
	}
}

func TestFromDir_MissingUpSQLIsFatal(t *testing.T) {
	tmp := t.TempDir()
	dir := filepath.Join(tmp, "20240101000000_broken")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	if _, err := FromDir(dir); err == nil {
		t.Fatalf("expected error for missing up.sql")
	}
}

func TestFromDir_InvalidCompoundName(t *testing.T) {
	tmp := t.TempDir()
	dir := filepath.Join(tmp, "not-a-timestamp")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "up.sql"), []byte("SELECT 1;"), 0o640); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := FromDir(dir); err == nil {
		t.Fatalf("expected error for invalid compound name")
	}
}

func TestFromDB(t *testing.T) {
	m, err := FromDB("20240101000000_create_users", "deadbeef", "DROP TABLE users;", true)
	if err != nil {
		t.Fatalf("FromDB: %v", err)
	}
	if m.HasUpSQL {
		t.Errorf("remote migration must not have up sql")
	}
	if m.Name != "create_users" || m.Hash != "deadbeef" {
		t.Errorf("unexpected migration: %+v", m)
	}
}

func TestStore_LoadOrdering(t *testing.T) {
	root := filepath.Join(t.TempDir(), "migrations")
	store := NewStore(root)
	if err := store.Create(); err != nil {
		t.Fatalf("Create: %v", err)
	}

	writeMigrationDir(t, root, "20240102000000_b", "SELECT 1;", "", "")
	writeMigrationDir(t, root, "20240101000000_a", "SELECT 1;", "", "")

	// Non-directory entries are ignored.
	if err := os.WriteFile(filepath.Join(root, "README.md"), []byte("hi"), 0o640); err != nil {
		t.Fatalf("write: %v", err)
	}

	migrations, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(migrations) != 2 {
		t.Fatalf("len(migrations) = %d, want 2", len(migrations))
	}
	if migrations[0].CompoundName != "20240101000000_a" || migrations[1].CompoundName != "20240102000000_b" {
		t.Errorf("unexpected order: %+v", migrations)
	}
}

func TestStore_CreateTwiceFails(t *testing.T) {
	tmp := t.TempDir()
	store := NewStore(filepath.Join(tmp, "migrations"))

	if err := store.Create(); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	if err := store.Create(); err == nil {
		t.Fatalf("expected second Create to fail")
	}
}

func TestDisableTransaction(t *testing.T) {
	cases := []struct {
		body string
		want bool
	}{
		{"-- no-transaction\nCREATE INDEX CONCURRENTLY x ON y(z);", true},
		{"  -- No-Transaction\nSELECT 1;", true},
		{"\t\n -- NO-TRANSACTION\nSELECT 1;", true},
		{"SELECT 1; -- no-transaction", false},
		{"CREATE TABLE x();", false},
	}

	for _, c := range cases {
		if got := DisableTransaction(c.body); got != c.want {
			t.Errorf("DisableTransaction(%q) = %v, want %v", c.body, got, c.want)
		}
	}
}
