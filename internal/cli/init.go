package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// initCompoundName is the reserved first migration every database gets:
// its up.sql is the adapter's own tracking-table DDL.
const initCompoundName = "20000101000000_init"

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the migrations directory and apply the tracking table",
	RunE:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := requireURL(cfg); err != nil {
		return err
	}

	s := store(cfg)
	if err := s.Create(); err != nil {
		return err
	}

	ctx := context.Background()

	db, err := openAdapter(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := s.CreateMigration(initCompoundName, db.InitUpSQL(), ""); err != nil {
		return fmt.Errorf("writing init migration: %w", err)
	}

	return runUpWith(ctx, cfg, db, upParams{})
}
