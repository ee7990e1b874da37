package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/termapps/crude/internal/executor"
	"github.com/termapps/crude/internal/planner"
)

var (
	flagRedoNumber             int
	flagRedoAll                bool
	flagRedoPlanOnly           bool
	flagRedoSeed               bool
	flagRedoIgnoreDivergent    bool
	flagRedoIgnoreUnreversible bool
)

var redoCmd = &cobra.Command{
	Use:   "redo",
	Short: "Roll back and reapply the most recently applied migrations",
	RunE:  runRedo,
}

func init() {
	redoCmd.Flags().IntVarP(&flagRedoNumber, "number", "n", 1, "number of migrations to redo")
	redoCmd.Flags().BoolVar(&flagRedoAll, "all", false, "redo every applied migration")
	redoCmd.Flags().BoolVar(&flagRedoPlanOnly, "plan-only", false, "print the plan without applying it")
	redoCmd.Flags().BoolVar(&flagRedoSeed, "seed", false, "run seed.sql after reapplying each migration")
	redoCmd.Flags().BoolVar(&flagRedoIgnoreDivergent, "ignore-divergent", false, "skip remote migrations that no longer exist locally")
	redoCmd.Flags().BoolVar(&flagRedoIgnoreUnreversible, "ignore-unreversible", false, "skip migrations with no down.sql instead of failing")
	rootCmd.AddCommand(redoCmd)
}

func runRedo(cmd *cobra.Command, args []string) error {
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
	if !flagRedoAll {
		number = &flagRedoNumber
	}

	p := planner.New(local, remote, planner.Options{
		Count:              number,
		IgnoreDivergent:    flagRedoIgnoreDivergent,
		IgnoreUnreversible: flagRedoIgnoreUnreversible,
	})

	plan, err := p.Redo()
	if err != nil {
		return err
	}

	return executor.Run(ctx, db, plan, out, os.Stdout, executor.Options{Seed: flagRedoSeed, PlanOnly: flagRedoPlanOnly})
}
