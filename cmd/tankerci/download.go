// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/tankerhq/tankerci/internal/artifacts"

	"github.com/spf13/cobra"
)

const (
	projectIDEnv  = "CI_PROJECT_ID"
	pipelineIDEnv = "CI_PIPELINE_ID"
)

func newDownloadArtifactsCommand(app *App, flags *rootFlags) *cobra.Command {
	var req artifacts.Request
	cmd := &cobra.Command{
		Use:   "download-artifacts",
		Short: "Download and unpack the artifacts of a CI job",
		Long: `Find the latest job named --job-name in a GitLab pipeline, download its
artifact archive and unpack it into --dest.

Authentication uses $` + artifacts.TokenEnv + `, else $` + artifacts.JobTokenEnv + `.
Project and pipeline default to $` + projectIDEnv + ` and $` + pipelineIDEnv + `.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.run(cmd, flags, "download artifacts", func(ctx context.Context, s *session) error {
				r := req
				if r.ProjectID == "" {
					r.ProjectID = app.Getenv(projectIDEnv)
				}
				if r.PipelineID == "" {
					r.PipelineID = app.Getenv(pipelineIDEnv)
				}
				if !filepath.IsAbs(r.Dest) {
					r.Dest = filepath.Join(s.root, r.Dest)
				}

				baseURL := app.Getenv(artifacts.APIURLEnv)
				if baseURL == "" {
					baseURL = s.cfg.GitLab.URL
				}
				client, err := artifacts.NewGitLabClient(
					artifacts.WithHTTPClient(app.HTTPClient),
					artifacts.WithBaseURL(baseURL),
					artifacts.WithToken(artifacts.TokenFromEnv(app.Getenv)),
					artifacts.WithLogger(s.logger),
				)
				if err != nil {
					return err
				}
				res, err := artifacts.NewFetcher(client, s.logger).Download(ctx, r)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %d files from job %s (#%d) into %s\n",
					SuccessStyle.Render("✓"), len(res.Files), CmdStyle.Render(res.Job.Name), res.Job.ID, r.Dest)
				s.logger.Debug("archive digest", "blake3", res.Digest)
				return nil
			})
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&req.ProjectID, "project-id", "", "GitLab project id or path")
	fl.StringVar(&req.PipelineID, "pipeline-id", "", "pipeline id")
	fl.StringVar(&req.JobName, "job-name", "", "name of the job whose artifacts are downloaded")
	fl.StringVar(&req.Dest, "dest", ".", "directory the archive is unpacked into")
	_ = cmd.MarkFlagRequired("job-name")
	return cmd
}
