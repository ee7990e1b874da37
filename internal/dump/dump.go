// Package dump provides the subprocess-wrapping and output-sanitizing
// helpers shared by the two database adapters' schema/data dumping
// (`pg_dump` for Postgres, the `sqlite3` CLI for SQLite). Spec.md treats
// dumping as an external collaborator; a complete repository wires it to
// something, so it lives here as a small internal package rather than a
// source-less dependency.
package dump

import (
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// RequireBinary fails fast with a clear message if name isn't on PATH,
// instead of letting exec.Command surface a cryptic "file not found"
// once the dump is already underway.
func RequireBinary(name string) error {
	if _, err := exec.LookPath(name); err != nil {
		return fmt.Errorf("%s not found on PATH: %w", name, err)
	}
	return nil
}

var (
	reDumpVersion = regexp.MustCompile(`(?m)^-- Dumped by pg_dump version.*$\n?`)
	reRestrict    = regexp.MustCompile(`(?m)^\\restrict \S+.*$\n?`)
	reUnrestrict  = regexp.MustCompile(`(?m)^\\unrestrict \S+.*$\n?`)
)

// CleanPgDumpOutput strips lines that vary across pg_dump environments
// (the version banner, and the \restrict / \unrestrict directives newer
// pg_dump releases wrap output in) so two dumps of the same schema
// compare equal byte-for-byte.
func CleanPgDumpOutput(output []byte) []byte {
	out := reDumpVersion.ReplaceAll(output, nil)
	out = reRestrict.ReplaceAll(out, nil)
	out = reUnrestrict.ReplaceAll(out, nil)
	return out
}

// FilterOutLinesContaining drops every line of data containing substr.
// Used to scrub the migrations tracking table out of a schema/data dump.
func FilterOutLinesContaining(data []byte, substr string) []byte {
	lines := strings.Split(string(data), "\n")
	kept := lines[:0]
	for _, l := range lines {
		if !strings.Contains(l, substr) {
			kept = append(kept, l)
		}
	}
	return []byte(strings.Join(kept, "\n"))
}

// KeepOnlyLinesWithPrefix retains only lines whose trimmed form starts
// with prefix. Used to reduce a SQLite `.dump` (which intermixes schema
// and data) down to just its INSERT statements for a rollup seed.sql.
func KeepOnlyLinesWithPrefix(data []byte, prefix string) []byte {
	lines := strings.Split(string(data), "\n")
	var kept []string
	for _, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), prefix) {
			kept = append(kept, l)
		}
	}
	return []byte(strings.Join(kept, "\n"))
}
