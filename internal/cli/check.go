package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check [package...]",
	Short: "Print the update plan without invoking cargo",
	Long: `Resolves the latest satisfiable version (or commit) for each
installed package and prints a status table. Never invokes cargo; exits
non-zero if at least one update is pending.`,
	RunE: runCheck,
}

func init() {
	addCommonFlags(checkCmd)
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	plan, err := runPlan(cmd.Context(), cmd, args)
	if err != nil {
		return err
	}

	printPlan(os.Stdout, plan, "Check")

	if planHasFailures(plan) {
		return &ExitError{Code: exitPlanFailed, Err: fmt.Errorf("one or more packages failed to resolve")}
	}
	if planHasUpdates(plan) {
		return &ExitError{Code: exitPlanFailed, Err: fmt.Errorf("updates are pending")}
	}
	return nil
}
