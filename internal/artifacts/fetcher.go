// SPDX-License-Identifier: MPL-2.0

package artifacts

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
)

type (
	// Request identifies the job whose artifacts are downloaded.
	Request struct {
		ProjectID  string
		PipelineID string
		JobName    string
		// Dest is the directory the archive is unpacked into.
		Dest string
	}

	// Result describes a completed download.
	Result struct {
		Job Job
		// Digest is the BLAKE3 digest of the downloaded archive.
		Digest string
		// Files are the extracted paths, relative to Request.Dest.
		Files []string
	}

	// Fetcher downloads and unpacks job artifacts.
	Fetcher struct {
		client *GitLabClient
		logger *log.Logger
	}
)

// NewFetcher creates a Fetcher on top of client.
func NewFetcher(client *GitLabClient, logger *log.Logger) *Fetcher {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Fetcher{client: client, logger: logger}
}

// Download finds the latest job named req.JobName in the pipeline, downloads
// its artifact archive and unpacks it under req.Dest.
func (f *Fetcher) Download(ctx context.Context, req Request) (*Result, error) {
	if req.ProjectID == "" || req.PipelineID == "" || req.JobName == "" {
		return nil, fmt.Errorf("project id, pipeline id and job name are required")
	}
	if req.Dest == "" {
		req.Dest = "."
	}

	job, err := f.client.FindJob(ctx, req.ProjectID, req.PipelineID, req.JobName)
	if err != nil {
		return nil, err
	}
	f.logger.Info("downloading artifacts", "job", job.Name, "id", job.ID, "status", job.Status)

	body, err := f.client.JobArtifacts(ctx, req.ProjectID, job.ID)
	if err != nil {
		return nil, err
	}
	archive, err := spool(body)
	if err != nil {
		return nil, err
	}
	defer os.Remove(archive)

	digest, err := Digest(archive)
	if err != nil {
		return nil, err
	}
	files, err := Extract(archive, req.Dest)
	if err != nil {
		return nil, err
	}
	f.logger.Info("artifacts extracted", "files", len(files), "dest", req.Dest, "blake3", digest)

	return &Result{Job: job, Digest: digest, Files: files}, nil
}

// spool copies r into a temporary file, since zip needs random access.
func spool(r io.Reader) (path string, err error) {
	tmp, err := os.CreateTemp("", "tankerci-artifacts-*.zip")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	name := tmp.Name()
	defer func() {
		if closeErr := tmp.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		if err != nil {
			_ = os.Remove(name)
		}
	}()

	if _, err = io.Copy(tmp, r); err != nil {
		return "", fmt.Errorf("failed to download archive: %w", err)
	}
	return name, nil
}
