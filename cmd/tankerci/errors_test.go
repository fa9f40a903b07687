// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/tankerhq/tankerci/internal/artifacts"
	"github.com/tankerhq/tankerci/internal/issue"
	"github.com/tankerhq/tankerci/internal/release"
	"github.com/tankerhq/tankerci/internal/runner"
	"github.com/tankerhq/tankerci/internal/source"
	"github.com/tankerhq/tankerci/internal/vcs"
	"github.com/tankerhq/tankerci/pkg/types"

	"github.com/spf13/cobra"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	cmdErr := &runner.CommandError{
		Command:  runner.Command{Name: "bundle", Args: []string{"exec", "rake", "push"}},
		ExitCode: 3,
	}

	tests := []struct {
		name     string
		err      error
		wantID   issue.Id
		resource string
	}{
		{
			name:     "missing artifact",
			err:      &release.StageError{Stage: release.StageVerifyArtifacts, Err: &release.MissingArtifactError{Path: "vendor/a.so"}},
			wantID:   issue.ArtifactMissingId,
			resource: "vendor/a.so",
		},
		{name: "invalid mode", err: &source.InvalidModeError{Value: "nightly"}, wantID: issue.InvalidSourceId},
		{name: "no version", err: release.ErrNoVersion, wantID: issue.VersionMissingId},
		{name: "bad version", err: &release.InvalidVersionError{Value: "x"}, wantID: issue.VersionMissingId},
		{
			name:     "branch not found",
			err:      &vcs.BranchNotFoundError{Remote: "origin", Tried: []string{"feature-x", "master"}},
			wantID:   issue.BranchNotFoundId,
			resource: "feature-x, master",
		},
		{name: "deployed ref", err: fmt.Errorf("resolve: %w", source.ErrDeployedRefRequired), wantID: issue.DeployedRefMissingId},
		{name: "credentials", err: release.ErrCredentialsMissing, wantID: issue.CredentialsMissingId},
		{name: "job not found", err: &artifacts.JobNotFoundError{JobName: "build/linux"}, wantID: issue.ArtifactDownloadFailedId},
		{
			name:     "command failed",
			err:      &release.StageError{Stage: release.StagePublish, Err: cmdErr},
			wantID:   issue.CommandFailedId,
			resource: "bundle exec rake push",
		},
		{name: "other", err: errors.New("disk full")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ae := classify(tt.err, "deploy")
			if ae.IssueID != tt.wantID {
				t.Errorf("IssueID = %v, want %v", ae.IssueID, tt.wantID)
			}
			if ae.Resource != tt.resource {
				t.Errorf("Resource = %q, want %q", ae.Resource, tt.resource)
			}
			if !errors.Is(ae, tt.err) {
				t.Error("classified error does not wrap the original")
			}
		})
	}
}

func TestClassifyKeepsActionableErrors(t *testing.T) {
	t.Parallel()

	orig := issue.NewErrorContext().WithOperation("load configuration").WithIssue(issue.ConfigLoadFailedId).Build()
	if got := classify(fmt.Errorf("wrapped: %w", orig), "lint"); got != orig {
		t.Errorf("classify() = %v, want the original ActionableError", got)
	}
}

func TestFailureCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want types.ExitCode
	}{
		{name: "tool status", err: &runner.CommandError{ExitCode: 3}, want: 3},
		{name: "not started", err: &runner.CommandError{ExitCode: -1}, want: types.ExitFailure},
		{name: "gate", err: &release.MissingArtifactError{Path: "x"}, want: types.ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := failureCode(tt.err); got != tt.want {
				t.Errorf("failureCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want types.ExitCode
	}{
		{name: "nil", want: types.ExitSuccess},
		{name: "plain error", err: errors.New("boom"), want: types.ExitFailure},
		{name: "exit error", err: &ExitError{Code: 42}, want: 42},
		{name: "wrapped exit error", err: fmt.Errorf("run: %w", &ExitError{Code: 7}), want: 7},
		{name: "zero code", err: &ExitError{Code: 0, Err: errors.New("x")}, want: types.ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRenderFailureNamesStage(t *testing.T) {
	t.Parallel()

	err := &release.StageError{Stage: release.StageVerifyArtifacts, Err: &release.MissingArtifactError{Path: "vendor/a.so"}}
	var buf bytes.Buffer
	renderFailure(&buf, classify(err, "deploy"), false)

	out := buf.String()
	for _, want := range []string{"failed to deploy: vendor/a.so", "stage:", "verify-artifacts"} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
}

func TestHandleErrorInterruptedCommand(t *testing.T) {
	t.Parallel()

	err := &release.StageError{
		Stage: release.StageTest,
		Err: &runner.CommandError{
			Command:  runner.Command{Name: "bundle", Args: []string{"exec", "rake", "spec"}},
			ExitCode: types.ExitFailure,
			Err:      context.Canceled,
		},
	}

	var stderr bytes.Buffer
	cmd := &cobra.Command{Use: "build-and-test"}
	cmd.SetErr(&stderr)

	got := handleError(cmd, err, "build and test", false)
	var exitErr *ExitError
	if !errors.As(got, &exitErr) || exitErr.Code != types.ExitFailure {
		t.Fatalf("handleError() = %v, want ExitError with code 1", got)
	}
	var ae *issue.ActionableError
	if errors.As(got, &ae) || stderr.Len() != 0 {
		t.Errorf("interrupted run rendered a failure report:\n%s", stderr.String())
	}
	if !cmd.SilenceErrors || !cmd.SilenceUsage {
		t.Error("cobra output was not silenced")
	}
}
