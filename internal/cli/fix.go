package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/termapps/crude/internal/executor"
	"github.com/termapps/crude/internal/planner"
)

var (
	flagFixPlanOnly bool
	flagFixSeed     bool
)

var fixCmd = &cobra.Command{
	Use:   "fix",
	Short: "Roll back variant/divergent migrations and reapply pending ones",
	RunE:  runFix,
}

func init() {
	fixCmd.Flags().BoolVar(&flagFixPlanOnly, "plan-only", false, "print the plan without applying it")
	fixCmd.Flags().BoolVar(&flagFixSeed, "seed", false, "run seed.sql after applying each migration")
	rootCmd.AddCommand(fixCmd)
}

func runFix(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := requireURL(cfg); err != nil {
		return err
	}

	ctx := context.Background()

	db, err := openAdapter(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer db.Close()

	local, err := store(cfg).Load()
	if err != nil {
		return err
	}

	remote, err := db.LoadMigrations(ctx)
	if err != nil {
		return err
	}

	plan, err := planner.New(local, remote, planner.Options{}).Fix()
	if err != nil {
		return err
	}

	return executor.Run(ctx, db, plan, out, os.Stdout, executor.Options{Seed: flagFixSeed, PlanOnly: flagFixPlanOnly})
}
