// Package executor applies a Plan built by internal/planner against a
// concrete dbadapter.Adapter, printing each step as it runs.
package executor

import (
	"context"
	"fmt"
	"io"

	"github.com/termapps/crude/internal/dbadapter"
	"github.com/termapps/crude/internal/planner"
	"github.com/termapps/crude/internal/render"
)

// Options controls how a plan is run.
type Options struct {
	// Seed runs each applied migration's seed.sql. Off by default: a
	// plan's seed data is only wanted when explicitly requested.
	Seed bool
	// PlanOnly prints the plan without executing any step.
	PlanOnly bool
}

// Run executes plan's steps in order against db, printing each one to w
// via r as it completes. With Options.PlanOnly set, it only prints the
// plan and performs no database work.
func Run(ctx context.Context, db dbadapter.Adapter, plan *planner.Plan, r *render.Renderer, w io.Writer, opts Options) error {
	if opts.PlanOnly {
		fmt.Fprint(w, r.Plan(plan))
		return nil
	}

	for _, step := range plan.Steps {
		switch step.Kind {
		case planner.StepDown:
			if err := db.RunDownMigration(ctx, step.Migration); err != nil {
				return err
			}
		case planner.StepUp:
			m := step.Migration
			if !opts.Seed {
				m.SeedSQL = ""
				m.HasSeedSQL = false
			}
			if err := db.RunUpMigration(ctx, m); err != nil {
				return err
			}
		}

		fmt.Fprintln(w, r.Step(step))
	}

	return nil
}
