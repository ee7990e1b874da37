// Package cli implements crude's command-line interface: a cobra command
// tree wired to the migration/dbadapter/planner/executor packages.
package cli

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/termapps/crude/internal/config"
	"github.com/termapps/crude/internal/dbadapter"
	"github.com/termapps/crude/internal/dbadapter/postgres"
	"github.com/termapps/crude/internal/dbadapter/sqlite"
	"github.com/termapps/crude/internal/logging"
	"github.com/termapps/crude/internal/migration"
	"github.com/termapps/crude/internal/render"
)

var (
	flagURL           string
	flagMigrationsDir string
	flagSchema        string
	flagConfigFile    string
	flagVerbosity     int
	flagNoColor       bool

	v      = config.New()
	logger *log.Logger
	out    *render.Renderer
)

var rootCmd = &cobra.Command{
	Use:           "crude",
	Short:         "A schema-migration toolkit for Postgres and SQLite",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = logging.New(flagVerbosity)
		out = render.New(flagNoColor)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagURL, "url", "", "database URL (env DATABASE_URL)")
	rootCmd.PersistentFlags().StringVarP(&flagMigrationsDir, "migrations-dir", "d", "", "migrations directory (env MIGRATIONS_DIR, default ./db/migrations)")
	rootCmd.PersistentFlags().StringVarP(&flagSchema, "schema", "s", "", "schema dump file path (env SCHEMA_FILE)")
	rootCmd.PersistentFlags().StringVarP(&flagConfigFile, "config", "c", ".crude.toml", "path to an optional TOML config file")
	rootCmd.PersistentFlags().CountVarP(&flagVerbosity, "verbose", "v", "increase logging verbosity (-v, -vv)")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "disable colored output")

	v.BindPFlag("url", rootCmd.PersistentFlags().Lookup("url"))
	v.BindPFlag("migrations-dir", rootCmd.PersistentFlags().Lookup("migrations-dir"))
	v.BindPFlag("schema", rootCmd.PersistentFlags().Lookup("schema"))
}

// Execute runs the root command; its error (if any) is already a
// human-readable message ready to print to stderr.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig resolves the global Config from flags/env/.crude.toml.
func loadConfig() (config.Config, error) {
	return config.Load(v, flagConfigFile)
}

// store builds the migration.Store rooted at the resolved migrations
// directory.
func store(cfg config.Config) *migration.Store {
	return migration.NewStore(cfg.MigrationsDir)
}

// openAdapter dispatches cfg.URL's scheme to the matching concrete
// dbadapter.Adapter. wait enables Postgres's bounded connect-retry loop.
func openAdapter(ctx context.Context, cfg config.Config, wait bool) (dbadapter.Adapter, error) {
	switch dbadapter.ParseScheme(cfg.URL) {
	case dbadapter.SchemePostgres:
		logger.Debug("opening postgres adapter", "wait", wait)
		return postgres.Open(ctx, cfg.URL, wait)
	case dbadapter.SchemeSQLite:
		logger.Debug("opening sqlite adapter", "wait", wait)
		return sqlite.Open(ctx, cfg.URL, wait)
	default:
		return nil, dbadapter.ErrUnsupportedURL(cfg.URL)
	}
}

// requireURL fails fast when no database URL was supplied anywhere in
// the flag/env/config layering.
func requireURL(cfg config.Config) error {
	if cfg.URL == "" {
		return fmt.Errorf("no database URL configured: pass --url, set DATABASE_URL, or add url to %s", flagConfigFile)
	}
	return nil
}

// findMigration resolves a user-supplied <name> argument against local,
// accepting either the bare migration name or the full compound name.
func findMigration(local []migration.Migration, name string) (migration.Migration, bool) {
	for _, m := range local {
		if m.CompoundName == name || m.Name == name {
			return m, true
		}
	}
	return migration.Migration{}, false
}
