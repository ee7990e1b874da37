package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/termapps/crude/internal/executor"
	"github.com/termapps/crude/internal/planner"
)

var (
	flagDownNumber             int
	flagDownAll                bool
	flagDownPlanOnly           bool
	flagDownIgnoreDivergent    bool
	flagDownIgnoreUnreversible bool
)

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recently applied migrations",
	RunE:  runDown,
}

func init() {
	downCmd.Flags().IntVarP(&flagDownNumber, "number", "n", 1, "number of migrations to roll back")
	downCmd.Flags().BoolVar(&flagDownAll, "all", false, "roll back every applied migration")
	downCmd.Flags().BoolVar(&flagDownPlanOnly, "plan-only", false, "print the plan without applying it")
	downCmd.Flags().BoolVar(&flagDownIgnoreDivergent, "ignore-divergent", false, "also roll back remote migrations that no longer exist locally")
	downCmd.Flags().BoolVar(&flagDownIgnoreUnreversible, "ignore-unreversible", false, "plan migrations with no down.sql instead of failing")
	rootCmd.AddCommand(downCmd)
}

func runDown(cmd *cobra.Command, args []string) error {
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

	var number *int
	if !flagDownAll {
		number = &flagDownNumber
	}

	p := planner.New(local, remote, planner.Options{
		Count:              number,
		IgnoreDivergent:    flagDownIgnoreDivergent,
		IgnoreUnreversible: flagDownIgnoreUnreversible,
	})

	plan, err := p.Down()
	if err != nil {
		return err
	}

	return executor.Run(ctx, db, plan, out, os.Stdout, executor.Options{PlanOnly: flagDownPlanOnly})
}
