package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sofmeright/depupdate/internal/orchestrator"
)

var updateCmd = &cobra.Command{
	Use:   "update [package...]",
	Short: "Apply pending updates by reinvoking cargo install",
	Long: `Computes the update plan exactly as check does, then reinvokes
"cargo install" for each package that needs updating. Collects failures
across packages and exits with the first failing package's exit code.`,
	RunE: runUpdate,
}

func init() {
	addCommonFlags(updateCmd)
	updateCmd.Flags().BoolVar(&flagNoVerify, "no-verify", false, "skip the post-update installed-version verification hook")
	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	plan, err := runPlan(cmd.Context(), cmd, args)
	if err != nil {
		return err
	}

	printPlan(os.Stdout, plan, "Plan")

	var firstErr *ExitError
	for _, d := range plan.Decisions {
		if d.Err != nil || !d.NeedsUpdate {
			continue
		}
		if err := applyUpdate(cmd.Context(), d); err != nil {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", d.Name, err)
			if firstErr == nil {
				code := exitUpdateFail
				var ee *exec.ExitError
				if errors.As(err, &ee) && ee.ExitCode() > 0 {
					code = ee.ExitCode()
				}
				firstErr = &ExitError{Code: code, Err: fmt.Errorf("%s: %w", d.Name, err)}
			}
		}
	}

	if firstErr != nil {
		return firstErr
	}
	return nil
}

// applyUpdate invokes the host build tool to install the decided
// target and, unless --no-verify is set, confirms the installed version
// now matches it. Invoking the host tool subprocess is explicitly out
// of this module's core (spec.md §1); this is the CLI-layer
// collaborator that performs it.
func applyUpdate(ctx context.Context, d orchestrator.PackageDecision) error {
	args := []string{"install"}
	if d.IsGit {
		args = append(args, "--git", d.Name)
	} else {
		args = append(args, d.Name, "--version", d.UpdateTo)
	}

	cmd := exec.CommandContext(ctx, "cargo", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("cargo install failed: %w", err)
	}

	if flagNoVerify {
		return nil
	}
	return verifyInstalled(ctx, d)
}

// verifyInstalled shells out to "cargo install --list" and confirms the
// package now reports the decided target version or commit, per
// SPEC_FULL.md's supplemental verification hook.
func verifyInstalled(ctx context.Context, d orchestrator.PackageDecision) error {
	out, err := exec.CommandContext(ctx, "cargo", "install", "--list").Output()
	if err != nil {
		return fmt.Errorf("verifying install: %w", err)
	}
	if d.UpdateTo == "" || strings.Contains(string(out), d.Name+" "+d.UpdateTo) {
		return nil
	}
	return fmt.Errorf("verification failed: %s not reported at %s after install", d.Name, d.UpdateTo)
}
