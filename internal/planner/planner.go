// Package planner reconciles the local migrations directory against the
// remote tracking table and produces the ordered list of steps each
// command (up, down, redo, fix, status) needs to apply.
package planner

import (
	"context"
	"errors"
	"fmt"

	"github.com/termapps/crude/internal/dbadapter"
	"github.com/termapps/crude/internal/migration"
)

// Sentinel errors let the CLI layer distinguish planner refusals from
// plain adapter I/O failures without string-matching.
var (
	// ErrRollupOutOfSync means a local rollup migration can't be synced:
	// either a remote migration still has a local counterpart (the old
	// migration directories weren't deleted), or a command other than Up
	// found a local rollup migration that isn't recorded remotely yet.
	ErrRollupOutOfSync = errors.New("unable to sync the rollup, please reset the database")
	// ErrRollupPendingBefore means a pending, non-rollup local migration
	// sorts before the pending rollup migration.
	ErrRollupPendingBefore = errors.New("pending migrations before the rollup, please re-order them to the end")
	// ErrUnreversible means a plan needs to roll back a migration with no
	// down.sql and the caller didn't opt into skipping it.
	ErrUnreversible = errors.New("unable to rollback unreversible migration")
	// ErrDivergentMigration means Redo was asked to reapply a migration
	// that was applied remotely but no longer exists locally.
	ErrDivergentMigration = errors.New("unable to redo divergent migration")
)

// State classifies a migration by comparing its local and remote
// presence/hash.
type State int

const (
	// Applied means the migration exists locally and remotely with a
	// matching hash.
	Applied State = iota
	// Pending means the migration exists locally but not remotely.
	Pending
	// Variant means the migration exists in both places but the local
	// hash no longer matches what was recorded at apply time.
	Variant
	// Divergent means the migration was applied remotely but no longer
	// exists locally.
	Divergent
)

// String renders the state the way `crude status` prints it.
func (s State) String() string {
	switch s {
	case Applied:
		return "Applied"
	case Pending:
		return "Pending"
	case Variant:
		return "Variant"
	case Divergent:
		return "Divergent"
	default:
		return "Unknown"
	}
}

// Status pairs a migration with its reconciled state.
type Status struct {
	State     State
	Migration migration.Migration
}

// StepKind distinguishes the two directions a PlanStep can run.
type StepKind int

const (
	StepUp StepKind = iota
	StepDown
)

// PlanStep is one migration to apply or roll back.
type PlanStep struct {
	Kind      StepKind
	Migration migration.Migration
}

// String renders a step the way `crude ... --plan-only` prints it.
func (s PlanStep) String() string {
	switch s.Kind {
	case StepUp:
		return fmt.Sprintf(" Up  - %s", s.Migration.CompoundName)
	case StepDown:
		return fmt.Sprintf("Down - %s", s.Migration.CompoundName)
	default:
		return s.Migration.CompoundName
	}
}

// Plan is an ordered sequence of steps produced by one of the Planner's
// build methods.
type Plan struct {
	Steps []PlanStep
}

// String renders the whole plan, one numbered line per step.
func (p *Plan) String() string {
	out := ""
	for i, step := range p.Steps {
		out += fmt.Sprintf("%2d. %s\n", i+1, step)
	}
	return out
}

// Options configures a Planner's tunables. Set upfront, before plan
// synthesis, as an explicit struct rather than a fluent chain: count and
// the two ignore flags are all known at CLI-parse time and never change
// mid-reconciliation.
type Options struct {
	// Count bounds the number of migrations Up/Down/Redo plan (Redo emits
	// a down and an up step for each). Nil means "as many as apply"; a
	// pointer (rather than -1) lets a caller express an explicit 0, which
	// yields an empty plan.
	Count *int
	// IgnoreDivergent makes Down also roll back remote migrations that no
	// longer exist locally (by default Down leaves them out), and makes
	// Redo leave them out (by default Redo refuses them).
	IgnoreDivergent bool
	// IgnoreUnreversible lets Down plan migrations with no down.sql
	// instead of erroring out, and makes Redo leave them out.
	IgnoreUnreversible bool
}

// Planner builds Plans by comparing local and remote migration lists.
// Zero value is not usable; construct with New.
type Planner struct {
	local  []migration.Migration
	remote []migration.Migration

	opts Options

	localMap  map[string]migration.Migration
	remoteMap map[string]migration.Migration
}

// New builds a Planner from the local (on-disk) and remote (tracking
// table) migration lists, both already sorted by compound name.
func New(local, remote []migration.Migration, opts Options) *Planner {
	p := &Planner{
		local:     local,
		remote:    remote,
		opts:      opts,
		localMap:  make(map[string]migration.Migration, len(local)),
		remoteMap: make(map[string]migration.Migration, len(remote)),
	}

	for _, m := range local {
		p.localMap[m.CompoundName] = m
	}
	for _, m := range remote {
		p.remoteMap[m.CompoundName] = m
	}

	return p
}

// Status merge-walks the local and remote lists (both sorted by compound
// name) and classifies every migration found in either.
func (p *Planner) Status() []Status {
	var res []Status
	i, j := 0, 0

	for i < len(p.local) || j < len(p.remote) {
		switch {
		case i < len(p.local) && j < len(p.remote):
			local := p.local[i]
			remote := p.remote[j]

			switch {
			case local.CompoundName == remote.CompoundName:
				state := Applied
				if local.Hash != remote.Hash {
					state = Variant
				}
				res = append(res, Status{State: state, Migration: local})
				i++
				j++
			case local.CompoundName < remote.CompoundName:
				res = append(res, Status{State: Pending, Migration: local})
				i++
			default:
				res = append(res, Status{State: Divergent, Migration: remote})
				j++
			}
		case i < len(p.local):
			res = append(res, Status{State: Pending, Migration: p.local[i]})
			i++
		default:
			res = append(res, Status{State: Divergent, Migration: p.remote[j]})
			j++
		}
	}

	return res
}

// checkRollup refuses to proceed if a local rollup migration hasn't been
// synced to the remote yet — callers other than Up must reset the
// database first.
func (p *Planner) checkRollup() error {
	for _, m := range p.local {
		if m.Name == "rollup" {
			if _, ok := p.remoteMap[m.CompoundName]; !ok {
				return ErrRollupOutOfSync
			}
		}
	}
	return nil
}

// syncRollup detects a pending local rollup migration and, if safe,
// squashes remote history down to a single baseline row before Up
// proceeds. Safety requires: no pending non-rollup migrations ordered
// before the rollup, and no remote migration (other than "init") that
// still exists locally, i.e. the squashed migration directories are gone.
func (p *Planner) syncRollup(ctx context.Context, db dbadapter.Adapter) (synced bool, err error) {
	var rollup *migration.Migration
	for i := range p.local {
		m := p.local[i]
		if m.Name == "rollup" {
			if _, ok := p.remoteMap[m.CompoundName]; !ok {
				rollup = &p.local[i]
				break
			}
		}
	}
	if rollup == nil {
		return false, nil
	}

	for _, m := range p.local {
		if m.Name == "init" || m.Name == "rollup" {
			continue
		}
		if _, ok := p.remoteMap[m.CompoundName]; ok {
			continue
		}
		if m.CompoundName < rollup.CompoundName {
			return false, ErrRollupPendingBefore
		}
	}

	for _, m := range p.remote {
		if m.Name == "init" {
			continue
		}
		if _, ok := p.localMap[m.CompoundName]; ok {
			return false, ErrRollupOutOfSync
		}
	}

	if len(p.remote) == 0 {
		return false, nil
	}

	if err := db.ClearMigrations(ctx); err != nil {
		return false, err
	}
	if err := db.RecordBaseline(ctx, rollup.CompoundName, rollup.Hash); err != nil {
		return false, err
	}

	remote, err := db.LoadMigrations(ctx)
	if err != nil {
		return false, err
	}

	p.remote = remote
	p.remoteMap = make(map[string]migration.Migration, len(remote))
	for _, m := range remote {
		p.remoteMap[m.CompoundName] = m
	}

	return true, nil
}

// Up plans applying pending local migrations, syncing a pending rollup
// first if one exists. Synced reports whether a rollup baseline was just
// recorded, so callers can print the Sync notice ahead of the plan.
func (p *Planner) Up(ctx context.Context, db dbadapter.Adapter) (plan *Plan, synced bool, err error) {
	synced, err = p.syncRollup(ctx, db)
	if err != nil {
		return nil, false, err
	}

	var pending []migration.Migration
	for _, m := range p.local {
		if _, ok := p.remoteMap[m.CompoundName]; !ok {
			pending = append(pending, m)
		}
	}

	take := len(pending)
	if p.opts.Count != nil && *p.opts.Count < take {
		take = *p.opts.Count
	}

	steps := make([]PlanStep, take)
	for i := 0; i < take; i++ {
		steps[i] = PlanStep{Kind: StepUp, Migration: pending[i]}
	}

	return &Plan{Steps: steps}, synced, nil
}

// Down plans rolling back the most recently applied remote migrations.
func (p *Planner) Down() (*Plan, error) {
	if err := p.checkRollup(); err != nil {
		return nil, err
	}

	var applied []migration.Migration
	for i := len(p.remote) - 1; i >= 0; i-- {
		m := p.remote[i]
		if !p.opts.IgnoreDivergent {
			if _, ok := p.localMap[m.CompoundName]; !ok {
				continue
			}
		}
		applied = append(applied, m)
	}

	take := len(applied)
	if p.opts.Count != nil && *p.opts.Count < take {
		take = *p.opts.Count
	}
	applied = applied[:take]

	for _, m := range applied {
		if !p.opts.IgnoreUnreversible && !m.HasDownSQL {
			return nil, fmt.Errorf("%w: %s", ErrUnreversible, m.CompoundName)
		}
	}

	steps := make([]PlanStep, len(applied))
	for i, m := range applied {
		steps[i] = PlanStep{Kind: StepDown, Migration: m}
	}

	return &Plan{Steps: steps}, nil
}

// Redo plans rolling back and immediately reapplying the most recently
// applied migrations, using each migration's current local definition.
func (p *Planner) Redo() (*Plan, error) {
	if err := p.checkRollup(); err != nil {
		return nil, err
	}

	var applied []migration.Migration
	for _, m := range p.remote {
		if m.Name == "init" || m.Name == "rollup" {
			continue
		}
		if p.opts.IgnoreDivergent {
			if _, ok := p.localMap[m.CompoundName]; !ok {
				continue
			}
		}
		if p.opts.IgnoreUnreversible && !m.HasDownSQL {
			continue
		}
		applied = append(applied, m)
	}

	count := len(applied)
	if p.opts.Count != nil && *p.opts.Count < count {
		count = *p.opts.Count
	}

	var recent []migration.Migration
	for i := len(applied) - 1; i >= 0 && len(recent) < count; i-- {
		recent = append(recent, applied[i])
	}

	var downSteps, upSteps []PlanStep
	for _, m := range recent {
		if !m.HasDownSQL {
			return nil, fmt.Errorf("%w: %s", ErrUnreversible, m.CompoundName)
		}

		local, ok := p.localMap[m.CompoundName]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrDivergentMigration, m.CompoundName)
		}

		downSteps = append(downSteps, PlanStep{Kind: StepDown, Migration: m})
		upSteps = append(upSteps, PlanStep{Kind: StepUp, Migration: local})
	}

	// upSteps were accumulated in the same newest-first order as
	// downSteps; reverse them so the oldest-of-the-recent-batch is
	// reapplied first.
	for i, j := 0, len(upSteps)-1; i < j; i, j = i+1, j-1 {
		upSteps[i], upSteps[j] = upSteps[j], upSteps[i]
	}

	return &Plan{Steps: append(downSteps, upSteps...)}, nil
}

// Fix plans rolling back every remote migration from the oldest
// variant/divergent one onward, then reapplying every local migration
// that isn't already applied earlier than that point.
func (p *Planner) Fix() (*Plan, error) {
	if err := p.checkRollup(); err != nil {
		return nil, err
	}

	index := len(p.remote)
	for i, m := range p.remote {
		local, ok := p.localMap[m.CompoundName]
		if !ok || local.Hash != m.Hash {
			index = i
			break
		}
	}

	var steps []PlanStep
	for i := len(p.remote) - 1; i >= index; i-- {
		m := p.remote[i]
		if !m.HasDownSQL {
			return nil, fmt.Errorf("%w: %s", ErrUnreversible, m.CompoundName)
		}
		steps = append(steps, PlanStep{Kind: StepDown, Migration: m})
	}

	before := p.remote[:index]
	for _, m := range p.local {
		found := false
		for _, d := range before {
			if d.CompoundName == m.CompoundName {
				found = true
				break
			}
		}
		if !found {
			steps = append(steps, PlanStep{Kind: StepUp, Migration: m})
		}
	}

	return &Plan{Steps: steps}, nil
}
