// SPDX-License-Identifier: MPL-2.0

package vcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

type (
	// WorkspaceRequest describes the repositories to check out side by side.
	WorkspaceRequest struct {
		// Dir receives one checkout per repository.
		Dir string
		// BaseURL is joined with each repository name to form its clone URL.
		BaseURL string
		Repos   []string
		// Branch is checked out in every repository when it exists there.
		Branch string
		// Fallback is used per repository when Branch does not exist.
		Fallback string
	}

	// Checkout is one prepared repository.
	Checkout struct {
		Path   string
		Branch string
	}

	// Workspace is the result of PrepareWorkspace.
	Workspace struct {
		Root      string
		Checkouts map[string]Checkout
	}

	// Workspaces prepares multi-repository checkouts.
	Workspaces struct {
		logger *log.Logger
		opts   []Option
	}
)

// NewWorkspaces creates a workspace preparer. Options are applied to every
// Repo it opens.
func NewWorkspaces(logger *log.Logger, opts ...Option) *Workspaces {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Workspaces{logger: logger, opts: append([]Option{WithLogger(logger)}, opts...)}
}

// Path returns the checkout directory of repo, or "" when it was not prepared.
func (w *Workspace) Path(repo string) string {
	if w == nil {
		return ""
	}
	return w.Checkouts[repo].Path
}

// RepoURL joins a base URL and a repository name. SCP-like bases
// (git@host:org) and URL bases are both supported.
func RepoURL(base, repo string) string {
	if base == "" {
		return repo
	}
	return strings.TrimRight(base, "/") + "/" + repo
}

// PrepareWorkspace clones every repository of req into req.Dir on req.Branch,
// falling back to req.Fallback per repository. Existing checkouts are fetched
// and hard-reset instead of cloned.
func (w *Workspaces) PrepareWorkspace(ctx context.Context, req WorkspaceRequest) (*Workspace, error) {
	if len(req.Repos) == 0 {
		return nil, errors.New("workspace needs at least one repository")
	}
	if req.Fallback == "" {
		req.Fallback = DefaultFallback
	}
	root, err := filepath.Abs(req.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace %s: %w", req.Dir, err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create workspace %s: %w", root, err)
	}

	ws := &Workspace{Root: root, Checkouts: make(map[string]Checkout, len(req.Repos))}
	for _, name := range req.Repos {
		dest := filepath.Join(root, name)
		branch, err := w.prepareOne(ctx, dest, RepoURL(req.BaseURL, name), req.Branch, req.Fallback)
		if err != nil {
			return nil, fmt.Errorf("failed to prepare %s: %w", name, err)
		}
		w.logger.Info("workspace checkout", "repo", name, "branch", branch, "path", dest)
		ws.Checkouts[name] = Checkout{Path: dest, Branch: branch}
	}
	return ws, nil
}

func (w *Workspaces) prepareOne(ctx context.Context, dest, url, branch, fallback string) (string, error) {
	if _, err := os.Stat(filepath.Join(dest, git.GitDirName)); err == nil {
		repo, err := Open(dest, w.opts...)
		if err != nil {
			return "", err
		}
		return repo.ResetBranch(ctx, branch, fallback)
	}

	candidates := []string{branch, fallback}
	if branch == "" || branch == fallback {
		candidates = []string{fallback}
	}
	var tried []string
	for _, candidate := range candidates {
		tried = append(tried, candidate)
		_, err := git.PlainCloneContext(ctx, dest, false, &git.CloneOptions{
			URL:           url,
			ReferenceName: plumbing.NewBranchReferenceName(candidate),
			SingleBranch:  true,
		})
		if err == nil {
			return candidate, nil
		}
		if !isMissingRef(err) {
			return "", fmt.Errorf("failed to clone %s: %w", url, err)
		}
		w.logger.Debug("branch missing, trying fallback", "url", url, "branch", candidate)
		if rmErr := os.RemoveAll(dest); rmErr != nil {
			return "", fmt.Errorf("failed to clean %s: %w", dest, rmErr)
		}
	}
	return "", &BranchNotFoundError{Remote: url, Tried: tried}
}

func isMissingRef(err error) bool {
	return errors.Is(err, plumbing.ErrReferenceNotFound) || errors.Is(err, git.NoMatchingRefSpecError{})
}
