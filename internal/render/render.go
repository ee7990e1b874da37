// Package render formats plans and status listings for the terminal,
// using lipgloss for coloring the way the teacher's CLI colors its own
// diagnostic output.
package render

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/termapps/crude/internal/planner"
)

var (
	green  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	red    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	cyan   = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
)

// Renderer formats plans and statuses, honoring a color on/off decision
// made once at construction time.
type Renderer struct {
	color bool
}

// New decides whether to color output: forced off by noColor, otherwise
// on only when stdout is an actual terminal.
func New(noColor bool) *Renderer {
	if noColor {
		return &Renderer{color: false}
	}
	return &Renderer{color: term.IsTerminal(int(os.Stdout.Fd()))}
}

func (r *Renderer) style(s lipgloss.Style, text string) string {
	if !r.color {
		return text
	}
	return s.Render(text)
}

// Step renders a single plan step the way it's printed as it executes.
func (r *Renderer) Step(step planner.PlanStep) string {
	switch step.Kind {
	case planner.StepUp:
		return fmt.Sprintf("%4s - %s", r.style(green, "Up"), step.Migration.CompoundName)
	case planner.StepDown:
		return fmt.Sprintf("%4s - %s", r.style(red, "Down"), step.Migration.CompoundName)
	default:
		return step.Migration.CompoundName
	}
}

// Sync renders the rollup-sync notice that precedes an `up` plan when a
// rollup baseline was just recorded.
func (r *Renderer) Sync(compoundName string) string {
	return fmt.Sprintf("%s - %s", r.style(cyan, "Sync"), compoundName)
}

// RolledUp renders the per-migration notice `rollup` prints as it
// deletes each squashed migration directory.
func (r *Renderer) RolledUp(compoundName string) string {
	return fmt.Sprintf("%s - %s", r.style(cyan, "Rolled up"), compoundName)
}

// Plan renders every step of a plan, numbered, for --plan-only output.
func (r *Renderer) Plan(plan *planner.Plan) string {
	var b strings.Builder
	for i, step := range plan.Steps {
		fmt.Fprintf(&b, "%2d. %s\n", i+1, r.Step(step))
	}
	return b.String()
}

// Status renders a status listing, one line per migration.
func (r *Renderer) Status(statuses []planner.Status) string {
	var b strings.Builder
	for _, s := range statuses {
		var label string
		switch s.State {
		case planner.Applied:
			label = r.style(green, "Applied")
		case planner.Pending:
			label = r.style(yellow, "Pending")
		case planner.Variant:
			label = r.style(red, "Variant")
		case planner.Divergent:
			label = r.style(red, "Divergent")
		default:
			label = s.State.String()
		}
		fmt.Fprintf(&b, "%9s - %s\n", label, s.Migration.CompoundName)
	}
	return b.String()
}
