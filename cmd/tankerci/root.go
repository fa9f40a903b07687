// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/tankerhq/tankerci/internal/issue"
	"github.com/tankerhq/tankerci/pkg/types"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the tankerci command tree on top of app.
func NewRootCommand(app *App) *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "tankerci",
		Short: "Build, test and release the Ruby SDK",
		Long: TitleStyle.Render("tankerci") + SubtitleStyle.Render(" - build and release orchestrator for the Ruby SDK") + `

tankerci resolves where the native library comes from, installs it with
conan for every requested profile, runs the binding toolchain and guards
releases: every native artifact must be present before a version is bumped,
committed and published.

` + SubtitleStyle.Render("Examples:") + `
  tankerci build-and-test --use-tanker local --profile default
  tankerci build-and-test --use-tanker deployed --tanker-ref tanker/2.4.2@tanker/stable
  tankerci deploy --version 1.2.3
  tankerci reset-branch feature-x`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return nil
			}
			_ = cmd.Usage()
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true
			err := fmt.Errorf("unknown command %q for %q", args[0], cmd.CommandPath())
			fmt.Fprintln(cmd.ErrOrStderr(), ErrorStyle.Render("✗ ")+err.Error())
			return &ExitError{Code: types.ExitFailure, Err: err}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = cmd.Help()
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true
			return &ExitError{Code: types.ExitFailure}
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.BoolVar(&flags.isolateHome, "isolate-conan-user-home", false, "use a conan home private to this invocation")
	pf.StringVar(&flags.remote, "remote", "", "conan remote to install packages from")
	pf.StringVar(&flags.configFile, "config", "", "config file (default is ./tankerci.cue or the user config directory)")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "enable verbose output")
	pf.StringVar(&flags.metricsFile, "metrics-file", "", "write per-stage metrics in Prometheus text format to this file")

	rootCmd.AddCommand(
		newBuildAndTestCommand(app, flags),
		newPrepareCommand(app, flags),
		newLintCommand(app, flags),
		newDeployCommand(app, flags),
		newResetBranchCommand(app, flags),
		newDownloadArtifactsCommand(app, flags),
		newMirrorCommand(app, flags),
		newConfigCommand(app, flags),
	)
	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the command tree. This is called by main.main().
func Execute() {
	app, err := NewApp(Dependencies{})
	if err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("✗ ")+formatErrorForDisplay(err, false))
		os.Exit(int(types.ExitFailure))
	}

	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(int(exitCode(err)))
	}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}

// run builds a session and invokes fn with it. Failures are rendered and
// returned as *ExitError; metrics are flushed either way.
func (a *App) run(cmd *cobra.Command, flags *rootFlags, operation string, fn func(ctx context.Context, s *session) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := a.newSession(ctx, flags)
	if err != nil {
		return handleError(cmd, err, operation, flags.verbose)
	}
	err = fn(ctx, s)
	s.flushMetrics(flags.metricsFile)
	return handleError(cmd, err, operation, s.verbose)
}
