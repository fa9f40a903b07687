// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/tankerhq/tankerci/internal/vcs"

	"github.com/spf13/cobra"
)

func newResetBranchCommand(app *App, flags *rootFlags) *cobra.Command {
	var fallback string
	cmd := &cobra.Command{
		Use:   "reset-branch [BRANCH]",
		Short: "Hard-reset the checkout to origin/BRANCH, or to the fallback branch",
		Long: `Hard-reset the working tree to origin/BRANCH. BRANCH defaults to
$` + RefNameEnv + `. When the remote has no such branch the fallback
(master by default) is used instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.run(cmd, flags, "reset branch", func(ctx context.Context, s *session) error {
				name := app.Getenv(RefNameEnv)
				if len(args) == 1 {
					name = args[0]
				}
				if name == "" {
					name = fallback
				}
				repo, err := s.openRepo()
				if err != nil {
					return err
				}
				branch, err := repo.ResetBranch(ctx, name, fallback)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s reset to %s\n", SuccessStyle.Render("✓"), CmdStyle.Render(vcs.DefaultRemote+"/"+branch))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&fallback, "fallback", vcs.DefaultFallback, "branch used when BRANCH does not exist")
	return cmd
}

func newMirrorCommand(app *App, flags *rootFlags) *cobra.Command {
	var url string
	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Push every branch and tag to the mirror repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.run(cmd, flags, "mirror repository", func(ctx context.Context, s *session) error {
				target := url
				if target == "" {
					target = s.cfg.MirrorURL
				}
				repo, err := s.openRepo()
				if err != nil {
					return err
				}
				if err := repo.Mirror(ctx, target); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s mirrored to %s\n", SuccessStyle.Render("✓"), CmdStyle.Render(target))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "mirror URL (default from mirror_url)")
	return cmd
}
