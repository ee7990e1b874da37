package cli

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/termapps/crude/internal/planner"
)

var rollupCmd = &cobra.Command{
	Use:   "rollup",
	Short: "Squash all applied migrations into a single baseline migration",
	RunE:  runRollup,
}

func init() {
	rootCmd.AddCommand(rollupCmd)
}

func runRollup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := requireURL(cfg); err != nil {
		return err
	}

	s := store(cfg)

	local, err := s.Load()
	if err != nil {
		return err
	}

	ctx := context.Background()

	db, err := openAdapter(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer db.Close()

	remote, err := db.LoadMigrations(ctx)
	if err != nil {
		return err
	}

	for _, st := range planner.New(local, remote, planner.Options{}).Status() {
		if st.State != planner.Applied {
			return fmt.Errorf("cannot rollup when there are pending, variant, or divergent migrations")
		}
	}

	upSQL, err := db.DumpSchema(ctx, true)
	if err != nil {
		return fmt.Errorf("dumping schema: %w", err)
	}

	seedSQL, err := db.DumpData(ctx, true)
	if err != nil {
		return fmt.Errorf("dumping data: %w", err)
	}

	logger.Debug("dumped schema and data for rollup", "schema_bytes", len(upSQL), "data_bytes", len(seedSQL))

	compoundName := fmt.Sprintf("%s_rollup", time.Now().UTC().Format("20060102150405"))

	sum := sha256.Sum256(upSQL)
	hash := hex.EncodeToString(sum[:])

	// Order matters: write the new rollup to disk before touching remote
	// history, so a crash mid-rollup never loses the old migrations
	// without having recorded their replacement.
	if err := s.CreateMigration(compoundName, string(upSQL), string(seedSQL)); err != nil {
		return fmt.Errorf("writing rollup migration: %w", err)
	}

	if err := db.ClearMigrations(ctx); err != nil {
		return err
	}
	if err := db.RecordBaseline(ctx, compoundName, hash); err != nil {
		return err
	}

	for _, m := range local {
		if m.Name == "init" {
			continue
		}

		fmt.Println(out.RolledUp(m.CompoundName))

		if err := s.RemoveMigration(m.CompoundName); err != nil {
			return err
		}
	}

	return nil
}
