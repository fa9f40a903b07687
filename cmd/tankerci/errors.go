// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tankerhq/tankerci/internal/artifacts"
	"github.com/tankerhq/tankerci/internal/issue"
	"github.com/tankerhq/tankerci/internal/release"
	"github.com/tankerhq/tankerci/internal/runner"
	"github.com/tankerhq/tankerci/internal/source"
	"github.com/tankerhq/tankerci/internal/vcs"
	"github.com/tankerhq/tankerci/pkg/types"

	"github.com/spf13/cobra"
)

// classify turns err into an ActionableError pointing at the catalog entry
// that explains it. Errors that already carry context are kept as they are.
func classify(err error, operation string) *issue.ActionableError {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae
	}

	ec := issue.NewErrorContext().WithOperation(operation).Wrap(err)

	var (
		missing  *release.MissingArtifactError
		cmdErr   *runner.CommandError
		notFound *vcs.BranchNotFoundError
	)
	switch {
	case errors.As(err, &missing):
		ec.WithResource(missing.Path).
			WithSuggestion("Download the native builds with 'tankerci download-artifacts'").
			WithIssue(issue.ArtifactMissingId)
	case errors.Is(err, source.ErrInvalidMode), errors.Is(err, source.ErrUnknownSource):
		ec.WithSuggestion("Valid sources: " + joinModes()).
			WithIssue(issue.InvalidSourceId)
	case errors.Is(err, release.ErrNoVersion), errors.Is(err, release.ErrInvalidVersion):
		ec.WithSuggestion("Pass --version or run from a tag pipeline").
			WithIssue(issue.VersionMissingId)
	case errors.As(err, &notFound):
		ec.WithResource(strings.Join(notFound.Tried, ", ")).
			WithIssue(issue.BranchNotFoundId)
	case errors.Is(err, source.ErrWorkspaceOverlapsRoot):
		ec.WithSuggestion("Point workspace.dir at a directory outside the current checkout")
	case errors.Is(err, source.ErrDeployedRefRequired):
		ec.WithSuggestion("Pass --tanker-ref").
			WithIssue(issue.DeployedRefMissingId)
	case errors.Is(err, release.ErrCredentialsMissing):
		ec.WithIssue(issue.CredentialsMissingId)
	case errors.Is(err, artifacts.ErrJobNotFound), errors.Is(err, artifacts.ErrUnexpectedStatus):
		ec.WithIssue(issue.ArtifactDownloadFailedId)
	case errors.As(err, &cmdErr):
		ec.WithResource(cmdErr.Command.String()).
			WithIssue(issue.CommandFailedId)
	}
	return ec.Build()
}

func joinModes() string {
	modes := source.Modes()
	names := make([]string, 0, len(modes))
	for _, m := range modes {
		names = append(names, m.String())
	}
	return strings.Join(names, ", ")
}

// failureCode keeps the status of a failed external command so CI logs show
// the tool's own exit code.
func failureCode(err error) types.ExitCode {
	var cmdErr *runner.CommandError
	if errors.As(err, &cmdErr) && cmdErr.ExitCode > types.ExitSuccess {
		return cmdErr.ExitCode.Normalize()
	}
	return types.ExitFailure
}

// renderFailure prints the error, the failed stage and the catalog entry.
func renderFailure(w io.Writer, ae *issue.ActionableError, verbose bool) {
	fmt.Fprintln(w, ErrorStyle.Render("✗ ")+ae.Format(verbose))

	var stageErr *release.StageError
	if errors.As(ae, &stageErr) {
		fmt.Fprintf(w, "  %s %s\n", failureLabelStyle.Render("stage:"), stageErr.Stage)
	}

	if ae.IssueID == 0 {
		return
	}
	if entry := issue.Get(ae.IssueID); entry != nil {
		if rendered, err := entry.Render("dark"); err == nil {
			fmt.Fprint(w, rendered)
			return
		}
	}
	fmt.Fprintln(w, failureHintStyle.Render("Run with --verbose for details."))
}

// handleError renders err once and converts it into an ExitError so cobra
// and fang stay silent.
func handleError(cmd *cobra.Command, err error, operation string, verbose bool) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		cmd.SilenceErrors = true
		cmd.SilenceUsage = true
		return &ExitError{Code: types.ExitFailure, Err: err}
	}
	ae := classify(err, operation)
	renderFailure(cmd.ErrOrStderr(), ae, verbose)
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	return &ExitError{Code: failureCode(err), Err: ae}
}
