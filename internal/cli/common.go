package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sofmeright/depupdate/internal/orchestrator"
	"github.com/sofmeright/depupdate/internal/statustable"
)

var (
	flagAll             bool
	flagAllowPrerelease bool
	flagDowndate        bool
	flagForceGit        bool
	flagNoForceGit       bool
	flagNoVerify        bool
	flagOutput          string
	flagNoGit           bool
)

// addCommonFlags registers the flags shared by check and update.
func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&flagAll, "all", true, "consider every installed package")
	cmd.Flags().BoolVar(&flagAllowPrerelease, "allow-prerelease", false, "accept prerelease candidates")
	cmd.Flags().BoolVar(&flagDowndate, "downdate", false, "permit moving to a lower non-yanked version")
	cmd.Flags().BoolVar(&flagForceGit, "force-git", false, "fork an external git binary instead of the in-process transport")
	cmd.Flags().BoolVar(&flagNoForceGit, "no-force-git", false, "use the in-process git transport instead of forking git")
	cmd.Flags().BoolVar(&flagNoGit, "no-git", false, "skip resolving git-sourced packages")
	cmd.Flags().StringVar(&flagOutput, "output", "table", "output format: table or json")
}

func resolveManifestPath(cargoHomeDir string) string {
	return filepath.Join(cargoHomeDir, ".crates.toml")
}

func effectiveCargoHome() string {
	if cargoHome != "" {
		return cargoHome
	}
	if v := os.Getenv("CARGO_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".cargo")
}

// buildOptions assembles orchestrator.Options from the persistent and
// per-command flags, plus any positional package-name args (which
// restrict scope whenever any are given; with none, every installed
// package is considered). An explicitly-passed flag always
// overrides the tool's YAML config; an unset flag falls back to it.
func buildOptions(cmd *cobra.Command, args []string, progress io.Writer) orchestrator.Options {
	forkGit := toolCfgBool(toolCfg.ForceGit, false)
	if cmd.Flags().Changed("force-git") {
		forkGit = flagForceGit
	} else if cmd.Flags().Changed("no-force-git") {
		forkGit = !flagNoForceGit
	}

	downdate := toolCfg.Downdate
	if cmd.Flags().Changed("downdate") {
		downdate = flagDowndate
	}

	allowPrerelease := toolCfg.AllowPrerelease
	if cmd.Flags().Changed("allow-prerelease") {
		allowPrerelease = flagAllowPrerelease
	}

	only := args
	if flagAll && len(args) == 0 {
		only = nil
	}

	return orchestrator.Options{
		CargoDir:           effectiveCargoHome(),
		ManifestPath:       resolveManifestPath(effectiveCargoHome()),
		ForkGit:            forkGit,
		ResolveGitPackages: !flagNoGit,
		Downdate:           downdate,
		AllowPrerelease:    allowPrerelease,
		Only:               only,
		Progress:           progress,
	}
}

func toolCfgBool(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func runPlan(ctx context.Context, cmd *cobra.Command, args []string) (orchestrator.Plan, error) {
	var progress io.Writer = io.Discard
	if verbose {
		progress = os.Stderr
	}
	plan, err := orchestrator.Run(ctx, buildOptions(cmd, args, progress))
	if err != nil {
		return orchestrator.Plan{}, &ExitError{Code: exitPlanFailed, Err: err}
	}
	return plan, nil
}

func printPlan(w io.Writer, plan orchestrator.Plan, title string) {
	if flagOutput == "json" {
		printPlanJSON(w, plan)
		return
	}
	sec := statustable.New(w, title, useColor())
	sec.Render(plan)
	sec.Summary(plan)
	sec.Close()
}

// useColor mirrors the teacher codebase's own color-detection idiom
// (src/output/output.go's UseColor): respect NO_COLOR/TERM=dumb and
// fall back to terminal detection, plus an explicit config override.
func useColor() bool {
	if toolCfg != nil && toolCfg.Color != nil {
		return *toolCfg.Color
	}
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func printPlanJSON(w io.Writer, plan orchestrator.Plan) {
	fmt.Fprintln(w, "[")
	for i, d := range plan.Decisions {
		comma := ","
		if i == len(plan.Decisions)-1 {
			comma = ""
		}
		errStr := ""
		if d.Err != nil {
			errStr = d.Err.Error()
		}
		fmt.Fprintf(w, "  {\"name\": %q, \"needs_update\": %t, \"installed\": %q, \"update_to\": %q, \"reason\": %q, \"git\": %t, \"error\": %q}%s\n",
			d.Name, d.NeedsUpdate, d.Installed, d.UpdateTo, d.Reason, d.IsGit, errStr, comma)
	}
	fmt.Fprintln(w, "]")
}

// planHasFailures reports whether any package in the plan failed
// resolution, for the exit-code convention in spec.md §7.
func planHasFailures(plan orchestrator.Plan) bool {
	for _, d := range plan.Decisions {
		if d.Err != nil {
			return true
		}
	}
	return false
}

// planHasUpdates reports whether any package needs an update.
func planHasUpdates(plan orchestrator.Plan) bool {
	for _, d := range plan.Decisions {
		if d.NeedsUpdate {
			return true
		}
	}
	return false
}
