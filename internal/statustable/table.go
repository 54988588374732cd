// Package statustable renders an orchestrator.Plan as a box-drawn
// status table, in the teacher codebase's own section-writer style
// (see src/output/section.go in the retrieved reference material).
package statustable

import (
	"fmt"
	"io"
	"strings"

	"github.com/sofmeright/depupdate/internal/orchestrator"
)

const tableWidth = 61

// Section renders a box-drawing framed output section, one row per
// considered package.
type Section struct {
	w     io.Writer
	color bool
}

// New creates a section and writes its header.
func New(w io.Writer, title string, color bool) *Section {
	s := &Section{w: w, color: color}
	s.writeHeader(title)
	return s
}

func (s *Section) writeHeader(title string) {
	label := fmt.Sprintf("── %s ", title)
	fill := tableWidth + 4 - len(label) - 2
	if fill < 1 {
		fill = 1
	}
	if s.color {
		fmt.Fprintf(s.w, "\n    \033[2;36m%s%s──\033[0m\n", label, strings.Repeat("─", fill))
	} else {
		fmt.Fprintf(s.w, "\n    %s%s──\n", label, strings.Repeat("─", fill))
	}
}

// Separator writes a mid-section divider.
func (s *Section) Separator() {
	fmt.Fprintf(s.w, "    ├%s\n", strings.Repeat("─", tableWidth))
}

// Close writes the section footer.
func (s *Section) Close() {
	fmt.Fprintf(s.w, "    └%s\n", strings.Repeat("─", tableWidth))
}

// icon returns a colored status icon for a plan row.
func (s *Section) icon(d orchestrator.PackageDecision) string {
	switch {
	case d.Err != nil:
		return s.colorize("✗", "\033[31m")
	case d.NeedsUpdate:
		return s.colorize("↑", "\033[33m")
	default:
		return s.colorize("✓", "\033[32m")
	}
}

func (s *Section) colorize(text, color string) string {
	if !s.color {
		return text
	}
	return color + text + "\033[0m"
}

// Render writes the full table body: one row per decision, in the
// order already sorted by orchestrator.Run (needs_update descending,
// name ascending — spec.md §5).
func (s *Section) Render(plan orchestrator.Plan) {
	fmt.Fprintf(s.w, "    │ %-22s%-12s%-12s%-12s%s\n", "package", "installed", "candidate", "update to", "")
	s.Separator()
	for _, d := range plan.Decisions {
		if d.Err != nil {
			fmt.Fprintf(s.w, "    │ %-22s%-12s%s  %s\n", d.Name, d.Installed, s.icon(d), d.Err.Error())
			continue
		}
		updateTo := d.UpdateTo
		if updateTo == "" {
			updateTo = "-"
		}
		reason := d.Reason
		if d.IsGit {
			reason = "git: " + reason
		}
		fmt.Fprintf(s.w, "    │ %-22s%-12s%-12s%-12s%s  %s\n", d.Name, d.Installed, "", updateTo, s.icon(d), reason)
	}
}

// Summary writes the final counts line.
func (s *Section) Summary(plan orchestrator.Plan) {
	updates, failures := 0, 0
	for _, d := range plan.Decisions {
		if d.Err != nil {
			failures++
		} else if d.NeedsUpdate {
			updates++
		}
	}
	s.Separator()
	fmt.Fprintf(s.w, "    │ %d package(s) considered, %d update(s) pending, %d failure(s)\n",
		len(plan.Decisions), updates, failures)
}
