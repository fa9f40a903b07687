// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/tankerhq/tankerci/internal/release"

	"github.com/spf13/cobra"
)

func newDeployCommand(app *App, flags *rootFlags) *cobra.Command {
	var version string
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Verify artifacts, bump the version, commit, package and publish",
		Long: `Verify that every expected native artifact exists, write the release
version into the version files, regenerate the lock file, commit the result
and publish the package.

The version comes from --version, else from $` + release.TagEnv + `.
Nothing is modified when an artifact is missing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.run(cmd, flags, "deploy", func(ctx context.Context, s *session) error {
				v, err := release.ResolveVersion(version, app.Getenv)
				if err != nil {
					return err
				}
				repo, err := s.openRepo()
				if err != nil {
					return err
				}
				s.pipeline.Repo = repo

				res, err := s.pipeline.Deploy(ctx, v)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s published %s (commit %s)\n",
					SuccessStyle.Render("✓"), CmdStyle.Render(res.Version), res.Commit.String()[:12])
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&version, "version", "", "release version (default from $"+release.TagEnv+")")
	return cmd
}
