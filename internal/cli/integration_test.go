package cli

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// sqliteURL builds a "sqlite://" URL pointing at a fresh file inside dir.
func sqliteURL(dir string) string {
	return "sqlite://" + filepath.Join(dir, "crude.db")
}

func TestCLI_InitUpStatusDown(t *testing.T) {
	resetFlags()
	dir := t.TempDir()
	migrationsDir := filepath.Join(dir, "migrations")
	url := sqliteURL(dir)

	if _, err := executeCommandCapture(t, "init", "--url", url, "-d", migrationsDir, "--no-color"); err != nil {
		t.Fatalf("init: %v", err)
	}

	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		t.Fatalf("reading migrations dir: %v", err)
	}
	if len(entries) != 1 || !strings.HasSuffix(entries[0].Name(), "_init") {
		t.Fatalf("expected exactly one init migration directory, got %v", entries)
	}

	resetFlags()
	stdout, err := executeCommandCapture(t, "status", "--url", url, "-d", migrationsDir, "--no-color")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(stdout, "Applied") || !strings.Contains(stdout, "_init") {
		t.Fatalf("expected init to show Applied, got %q", stdout)
	}

	resetFlags()
	newOut, err := executeCommandCapture(t, "new", "create_widgets", "--url", url, "-d", migrationsDir, "--no-color")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	compoundName := strings.TrimSpace(newOut)
	if !strings.HasSuffix(compoundName, "_create_widgets") {
		t.Fatalf("unexpected new migration name: %q", compoundName)
	}

	upPath := filepath.Join(migrationsDir, compoundName, "up.sql")
	if err := os.WriteFile(upPath, []byte("CREATE TABLE widgets (id INTEGER PRIMARY KEY);"), 0o640); err != nil {
		t.Fatalf("writing up.sql: %v", err)
	}
	downPath := filepath.Join(migrationsDir, compoundName, "down.sql")
	if err := os.WriteFile(downPath, []byte("DROP TABLE widgets;"), 0o640); err != nil {
		t.Fatalf("writing down.sql: %v", err)
	}

	resetFlags()
	upOut, err := executeCommandCapture(t, "up", "--url", url, "-d", migrationsDir, "--no-color")
	if err != nil {
		t.Fatalf("up: %v", err)
	}
	if !strings.Contains(upOut, compoundName) {
		t.Fatalf("expected up output to mention %s, got %q", compoundName, upOut)
	}

	resetFlags()
	stdout, err = executeCommandCapture(t, "status", "--url", url, "-d", migrationsDir, "--no-color")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if strings.Count(stdout, "Applied") != 2 {
		t.Fatalf("expected two applied migrations, got %q", stdout)
	}

	resetFlags()
	downOut, err := executeCommandCapture(t, "down", "--url", url, "-d", migrationsDir, "--no-color")
	if err != nil {
		t.Fatalf("down: %v", err)
	}
	if !strings.Contains(downOut, compoundName) {
		t.Fatalf("expected down output to mention %s, got %q", compoundName, downOut)
	}

	resetFlags()
	stdout, err = executeCommandCapture(t, "status", "--url", url, "-d", migrationsDir, "--no-color")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(stdout, "Pending") {
		t.Fatalf("expected the rolled-back migration to show Pending, got %q", stdout)
	}
}

func TestCLI_RequiresURL(t *testing.T) {
	resetFlags()
	dir := t.TempDir()
	migrationsDir := filepath.Join(dir, "migrations")

	if err := os.MkdirAll(migrationsDir, 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	_, err := executeCommandCapture(t, "status", "-d", migrationsDir, "--no-color")
	if err == nil {
		t.Fatal("expected error when no database URL is configured")
	}
	if !strings.Contains(err.Error(), "no database URL configured") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCLI_RedoReappliesMigration(t *testing.T) {
	resetFlags()
	dir := t.TempDir()
	migrationsDir := filepath.Join(dir, "migrations")
	url := sqliteURL(dir)

	if _, err := executeCommandCapture(t, "init", "--url", url, "-d", migrationsDir, "--no-color"); err != nil {
		t.Fatalf("init: %v", err)
	}

	resetFlags()
	newOut, err := executeCommandCapture(t, "new", "create_widgets", "--url", url, "-d", migrationsDir, "--no-color")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	compoundName := strings.TrimSpace(newOut)
	os.WriteFile(filepath.Join(migrationsDir, compoundName, "up.sql"), []byte("CREATE TABLE widgets (id INTEGER PRIMARY KEY);"), 0o640)
	os.WriteFile(filepath.Join(migrationsDir, compoundName, "down.sql"), []byte("DROP TABLE widgets;"), 0o640)

	resetFlags()
	if _, err := executeCommandCapture(t, "up", "--url", url, "-d", migrationsDir, "--no-color"); err != nil {
		t.Fatalf("up: %v", err)
	}

	resetFlags()
	redoOut, err := executeCommandCapture(t, "redo", "--url", url, "-d", migrationsDir, "--no-color")
	if err != nil {
		t.Fatalf("redo: %v", err)
	}
	if strings.Count(redoOut, compoundName) != 2 {
		t.Fatalf("expected redo to print the migration twice (down, up), got %q", redoOut)
	}

	resetFlags()
	stdout, err := executeCommandCapture(t, "status", "--url", url, "-d", migrationsDir, "--no-color")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if strings.Count(stdout, "Applied") != 2 {
		t.Fatalf("expected both migrations applied after redo, got %q", stdout)
	}
}

func TestCLI_Rollup(t *testing.T) {
	if _, err := exec.LookPath("sqlite3"); err != nil {
		t.Skip("sqlite3 binary not on PATH, skipping rollup test")
	}

	resetFlags()
	dir := t.TempDir()
	migrationsDir := filepath.Join(dir, "migrations")
	url := sqliteURL(dir)

	if _, err := executeCommandCapture(t, "init", "--url", url, "-d", migrationsDir, "--no-color"); err != nil {
		t.Fatalf("init: %v", err)
	}

	resetFlags()
	newOut, err := executeCommandCapture(t, "new", "create_widgets", "--url", url, "-d", migrationsDir, "--no-color")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	compoundName := strings.TrimSpace(newOut)
	os.WriteFile(filepath.Join(migrationsDir, compoundName, "up.sql"), []byte("CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT);"), 0o640)

	resetFlags()
	if _, err := executeCommandCapture(t, "up", "--url", url, "-d", migrationsDir, "--no-color"); err != nil {
		t.Fatalf("up: %v", err)
	}

	resetFlags()
	rollupOut, err := executeCommandCapture(t, "rollup", "--url", url, "-d", migrationsDir, "--no-color")
	if err != nil {
		t.Fatalf("rollup: %v", err)
	}
	if !strings.Contains(rollupOut, compoundName) {
		t.Fatalf("expected rollup to mention the squashed migration, got %q", rollupOut)
	}

	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		t.Fatalf("reading migrations dir: %v", err)
	}
	if len(entries) != 2 || !strings.HasSuffix(entries[0].Name(), "_init") || !strings.HasSuffix(entries[1].Name(), "_rollup") {
		t.Fatalf("expected only the init and rollup migration directories to remain, got %v", entries)
	}

	resetFlags()
	stdout, err := executeCommandCapture(t, "status", "--url", url, "-d", migrationsDir, "--no-color")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(stdout, "Applied") || !strings.Contains(stdout, "_rollup") {
		t.Fatalf("expected the rollup baseline to show Applied, got %q", stdout)
	}
}

func TestCLI_VerifyRunsUpDownUp(t *testing.T) {
	resetFlags()
	dir := t.TempDir()
	migrationsDir := filepath.Join(dir, "migrations")
	url := sqliteURL(dir)

	if _, err := executeCommandCapture(t, "init", "--url", url, "-d", migrationsDir, "--no-color"); err != nil {
		t.Fatalf("init: %v", err)
	}

	resetFlags()
	newOut, err := executeCommandCapture(t, "new", "create_widgets", "--url", url, "-d", migrationsDir, "--no-color")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	compoundName := strings.TrimSpace(newOut)
	os.WriteFile(filepath.Join(migrationsDir, compoundName, "up.sql"), []byte("CREATE TABLE widgets (id INTEGER PRIMARY KEY);"), 0o640)
	os.WriteFile(filepath.Join(migrationsDir, compoundName, "down.sql"), []byte("DROP TABLE widgets;"), 0o640)

	resetFlags()
	verifyOut, err := executeCommandCapture(t, "verify", compoundName, "--url", url, "-d", migrationsDir, "--no-color")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !strings.Contains(verifyOut, "Verifying "+compoundName) || !strings.Contains(verifyOut, "OK") {
		t.Fatalf("unexpected verify output: %q", verifyOut)
	}

	resetFlags()
	stdout, err := executeCommandCapture(t, "status", "--url", url, "-d", migrationsDir, "--no-color")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(stdout, "Applied") || strings.Count(stdout, "Applied") != 2 {
		t.Fatalf("expected verify to leave the migration applied, got %q", stdout)
	}
}

func TestCLI_RepairUpdatesRecordedHash(t *testing.T) {
	resetFlags()
	dir := t.TempDir()
	migrationsDir := filepath.Join(dir, "migrations")
	url := sqliteURL(dir)

	if _, err := executeCommandCapture(t, "init", "--url", url, "-d", migrationsDir, "--no-color"); err != nil {
		t.Fatalf("init: %v", err)
	}

	resetFlags()
	newOut, err := executeCommandCapture(t, "new", "create_widgets", "--url", url, "-d", migrationsDir, "--no-color")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	compoundName := strings.TrimSpace(newOut)
	os.WriteFile(filepath.Join(migrationsDir, compoundName, "up.sql"), []byte("CREATE TABLE widgets (id INTEGER PRIMARY KEY);"), 0o640)

	resetFlags()
	if _, err := executeCommandCapture(t, "up", "--url", url, "-d", migrationsDir, "--no-color"); err != nil {
		t.Fatalf("up: %v", err)
	}

	// Edit the migration body after it's already applied: status should
	// now report it Variant.
	os.WriteFile(filepath.Join(migrationsDir, compoundName, "up.sql"),
		[]byte("CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT);"), 0o640)

	resetFlags()
	stdout, err := executeCommandCapture(t, "status", "--url", url, "-d", migrationsDir, "--no-color")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(stdout, "Variant") {
		t.Fatalf("expected the edited migration to show Variant, got %q", stdout)
	}

	resetFlags()
	if _, err := executeCommandCapture(t, "repair", compoundName, "--url", url, "-d", migrationsDir, "--no-color"); err != nil {
		t.Fatalf("repair: %v", err)
	}

	resetFlags()
	stdout, err = executeCommandCapture(t, "status", "--url", url, "-d", migrationsDir, "--no-color")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if strings.Contains(stdout, "Variant") || strings.Count(stdout, "Applied") != 2 {
		t.Fatalf("expected repair to reconcile the hash, got %q", stdout)
	}
}
