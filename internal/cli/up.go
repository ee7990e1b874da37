package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/termapps/crude/internal/config"
	"github.com/termapps/crude/internal/dbadapter"
	"github.com/termapps/crude/internal/executor"
	"github.com/termapps/crude/internal/migration"
	"github.com/termapps/crude/internal/planner"
)

var (
	flagUpNumber   int
	flagUpPlanOnly bool
	flagUpSeed     bool
)

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	RunE:  runUp,
}

func init() {
	upCmd.Flags().IntVarP(&flagUpNumber, "number", "n", -1, "number of migrations to apply (default: all)")
	upCmd.Flags().BoolVar(&flagUpPlanOnly, "plan-only", false, "print the plan without applying it")
	upCmd.Flags().BoolVar(&flagUpSeed, "seed", false, "run seed.sql after applying each migration")
	rootCmd.AddCommand(upCmd)
}

// upParams carries the subset of the `up` flags that init also needs to
// pass through (init always wants the full unseeded plan applied).
type upParams struct {
	number   *int
	planOnly bool
	seed     bool
}

func runUp(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := requireURL(cfg); err != nil {
		return err
	}

	ctx := context.Background()

	db, err := openAdapter(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer db.Close()

	var number *int
	if flagUpNumber >= 0 {
		number = &flagUpNumber
	}

	return runUpWith(ctx, cfg, db, upParams{number: number, planOnly: flagUpPlanOnly, seed: flagUpSeed})
}

func runUpWith(ctx context.Context, cfg config.Config, db dbadapter.Adapter, params upParams) error {
	local, err := store(cfg).Load()
	if err != nil {
		return err
	}

	remote, err := db.LoadMigrations(ctx)
	if err != nil {
		return err
	}

	p := planner.New(local, remote, planner.Options{Count: params.number})

	plan, synced, err := p.Up(ctx, db)
	if err != nil {
		return err
	}
	logger.Debug("planned up migrations", "steps", len(plan.Steps), "synced_rollup", synced)

	if synced {
		fmt.Fprintln(os.Stdout, out.Sync(rollupSyncName(local)))
	}

	return executor.Run(ctx, db, plan, out, os.Stdout, executor.Options{Seed: params.seed, PlanOnly: params.planOnly})
}

// rollupSyncName finds the name of the rollup migration that was just
// synced, for the Sync notice. Up's caller only finds out synced
// happened at all after the fact, so this re-scans local for the one
// migration named "rollup" rather than threading its name back out.
func rollupSyncName(local []migration.Migration) string {
	for _, m := range local {
		if m.Name == "rollup" {
			return m.CompoundName
		}
	}
	return ""
}
