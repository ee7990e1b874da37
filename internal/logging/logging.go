// Package logging wires up the charmbracelet/log logger used throughout
// the CLI, mapping a repeatable -v flag to a log level.
package logging

import (
	"os"

	"github.com/charmbracelet/log"
)

// New builds a logger writing to stderr. verbosity follows the common
// "-v, -vv" repeatable-flag convention: 0 is Warn, 1 is Info, 2+ is
// Debug.
func New(verbosity int) *log.Logger {
	level := log.WarnLevel
	switch {
	case verbosity >= 2:
		level = log.DebugLevel
	case verbosity == 1:
		level = log.InfoLevel
	}

	return log.NewWithOptions(os.Stderr, log.Options{
		Level:           level,
		ReportTimestamp: false,
	})
}
