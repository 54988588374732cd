// Package cli implements the depupdate command tree: the root command
// plus its check and update subcommands, in the teacher codebase's own
// Cobra-plus-ExitError idiom (see src/cli/cmd/root.go and
// src/cli/cmd/dependency_update.go in the retrieved reference material).
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sofmeright/depupdate/internal/toolconfig"
)

// ExitError wraps an error with a process exit code, so the first
// package-level failure's code is what the process ultimately returns
// (spec.md §7: "first failing exit code wins").
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }
func (e *ExitError) Unwrap() error { return e.Err }

// Exit codes.
const (
	exitOK         = 0
	exitPlanFailed = 1
	exitUpdateFail = 2
)

var (
	cfgFile   string
	verbose   bool
	cargoHome string
	toolCfg   *toolconfig.Config
)

var rootCmd = &cobra.Command{
	Use:   "depupdate",
	Short: "Check for and apply updates to cargo-installed executables",
	Long: `depupdate inspects a cargo installation manifest, determines which
installed packages (registry crates or git checkouts) have newer
versions available, and reinvokes cargo install for the ones selected.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		toolCfg, err = toolconfig.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if cargoHome == "" {
			cargoHome = toolCfg.CargoHome
		}
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/depupdate/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&cargoHome, "cargo-home", "", "cargo home directory (default: $CARGO_HOME or ~/.cargo)")
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}

// ExitCode extracts the process exit code carried by err, defaulting to
// 1 for any other non-nil error.
func ExitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ee *ExitError
	if ok := asExitError(err, &ee); ok {
		return ee.Code
	}
	return 1
}

func asExitError(err error, target **ExitError) bool {
	for err != nil {
		if ee, ok := err.(*ExitError); ok {
			*target = ee
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
