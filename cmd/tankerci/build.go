// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/tankerhq/tankerci/internal/release"
	"github.com/tankerhq/tankerci/internal/source"

	"github.com/spf13/cobra"
)

// RefNameEnv is the CI variable holding the branch or tag being built.
const RefNameEnv = "CI_COMMIT_REF_NAME"

// sourceFlags are the flags selecting and installing the native dependency.
type sourceFlags struct {
	useTanker string
	profiles  []string
	tankerRef string
	branch    string
	update    bool
}

func (f *sourceFlags) register(cmd *cobra.Command, updateDefault bool) {
	fl := cmd.Flags()
	fl.StringVar(&f.useTanker, "use-tanker", string(source.ModeLocal), "native dependency source: "+joinModes())
	fl.StringSliceVar(&f.profiles, "profile", []string{source.DefaultProfile}, "conan profile to install for (repeatable)")
	fl.StringVar(&f.tankerRef, "tanker-ref", "", "package reference used by the deployed source")
	fl.StringVar(&f.branch, "branch", "", "branch checked out by the same-as-branch source (default $"+RefNameEnv+")")
	fl.BoolVar(&f.update, "update", updateDefault, "check remotes for newer recipes and packages")
}

// request validates the flags and builds the prepare request.
func (f *sourceFlags) request(getenv func(string) string) (release.PrepareRequest, error) {
	mode, err := source.ParseMode(f.useTanker)
	if err != nil {
		return release.PrepareRequest{}, err
	}
	branch := f.branch
	if branch == "" {
		branch = getenv(RefNameEnv)
	}
	src, err := source.New(mode, source.Options{Ref: f.tankerRef, Branch: branch})
	if err != nil {
		return release.PrepareRequest{}, err
	}
	if mode == source.ModeSameAsBranch && branch == "" {
		return release.PrepareRequest{}, fmt.Errorf("same-as-branch needs --branch or $%s", RefNameEnv)
	}
	return release.PrepareRequest{Source: src, Profiles: f.profiles, Update: f.update}, nil
}

func newBuildAndTestCommand(app *App, flags *rootFlags) *cobra.Command {
	sf := &sourceFlags{}
	cmd := &cobra.Command{
		Use:   "build-and-test",
		Short: "Install the native library, then build and test the binding",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.run(cmd, flags, "build and test", func(ctx context.Context, s *session) error {
				req, err := sf.request(app.Getenv)
				if err != nil {
					return err
				}
				if err := s.pipeline.BuildAndTest(ctx, req); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("✓")+" build and test passed")
				return nil
			})
		},
	}
	// Installs always check remotes unless told otherwise.
	sf.register(cmd, true)
	return cmd
}

func newPrepareCommand(app *App, flags *rootFlags) *cobra.Command {
	sf := &sourceFlags{}
	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Resolve and install the native library without building",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.run(cmd, flags, "prepare native dependency", func(ctx context.Context, s *session) error {
				req, err := sf.request(app.Getenv)
				if err != nil {
					return err
				}
				res, err := s.pipeline.Prepare(ctx, req)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, t := range res.Targets {
					fmt.Fprintf(out, "%s %s %s %s\n", SuccessStyle.Render("✓"), t.Profile, SubtitleStyle.Render("→"), CmdStyle.Render(t.Dir))
				}
				return nil
			})
		},
	}
	sf.register(cmd, false)
	return cmd
}

func newLintCommand(app *App, flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "lint",
		Short: "Install the binding dependencies and run the linter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.run(cmd, flags, "lint", func(ctx context.Context, s *session) error {
				return s.pipeline.Lint(ctx)
			})
		},
	}
}
