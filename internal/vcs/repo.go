// SPDX-License-Identifier: MPL-2.0

package vcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const (
	// DefaultRemote is the remote branches are resolved against.
	DefaultRemote = "origin"
	// DefaultFallback is used by ResetBranch when no fallback is given.
	DefaultFallback = "master"

	mirrorRemote = "mirror"
)

type (
	// Author identifies the release commit author. A zero Author defers to
	// the repository's git configuration.
	Author struct {
		Name  string
		Email string
	}

	// Repo is an opened git working tree.
	Repo struct {
		path   string
		repo   *git.Repository
		logger *log.Logger
		author Author
		now    func() time.Time
	}

	// Option configures a Repo.
	Option func(*Repo)
)

// WithLogger sets the logger used for progress messages.
func WithLogger(l *log.Logger) Option {
	return func(r *Repo) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithAuthor sets the signature used by CommitAll.
func WithAuthor(a Author) Option {
	return func(r *Repo) { r.author = a }
}

// WithClock overrides the commit timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Repo) { r.now = now }
}

// Open opens the repository containing path, searching parent directories.
func Open(path string, opts ...Option) (*Repo, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open git repository at %s: %w", path, err)
	}
	return newRepo(path, repo, opts), nil
}

func newRepo(path string, repo *git.Repository, opts []Option) *Repo {
	r := &Repo{
		path:   path,
		repo:   repo,
		logger: log.New(io.Discard),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Path returns the directory the repository was opened from.
func (r *Repo) Path() string { return r.path }

// Head returns the commit HEAD points to.
func (r *Repo) Head() (plumbing.Hash, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to read HEAD: %w", err)
	}
	return ref.Hash(), nil
}

// Fetch updates remote-tracking refs from origin. Repositories without an
// origin remote are left untouched.
func (r *Repo) Fetch(ctx context.Context) error {
	if _, err := r.repo.Remote(DefaultRemote); err != nil {
		if errors.Is(err, git.ErrRemoteNotFound) {
			r.logger.Debug("no remote, skipping fetch", "remote", DefaultRemote)
			return nil
		}
		return fmt.Errorf("failed to read remote %s: %w", DefaultRemote, err)
	}
	err := r.repo.FetchContext(ctx, &git.FetchOptions{RemoteName: DefaultRemote, Tags: git.AllTags})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to fetch %s: %w", DefaultRemote, err)
	}
	return nil
}

// ResolveBranch returns the remote-tracking reference for name, or for
// fallback when name does not exist on the remote.
func (r *Repo) ResolveBranch(name, fallback string) (*plumbing.Reference, error) {
	if fallback == "" {
		fallback = DefaultFallback
	}
	tried := make([]string, 0, 2)
	for _, candidate := range []string{name, fallback} {
		if candidate == "" {
			continue
		}
		tried = append(tried, candidate)
		ref, err := r.repo.Reference(plumbing.NewRemoteReferenceName(DefaultRemote, candidate), true)
		if err == nil {
			return ref, nil
		}
		if !errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, fmt.Errorf("failed to resolve %s/%s: %w", DefaultRemote, candidate, err)
		}
		if candidate == fallback {
			break
		}
	}
	return nil, &BranchNotFoundError{Remote: DefaultRemote, Tried: tried}
}

// ResetBranch fetches origin and hard-resets the worktree onto origin/<name>,
// or origin/<fallback> when name is missing. It returns the branch actually used.
func (r *Repo) ResetBranch(ctx context.Context, name, fallback string) (string, error) {
	if err := r.Fetch(ctx); err != nil {
		return "", err
	}
	ref, err := r.ResolveBranch(name, fallback)
	if err != nil {
		return "", err
	}

	wt, err := r.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("failed to open worktree: %w", err)
	}
	if err := wt.Reset(&git.ResetOptions{Commit: ref.Hash(), Mode: git.HardReset}); err != nil {
		return "", fmt.Errorf("failed to reset to %s: %w", ref.Name().Short(), err)
	}

	branch := strings.TrimPrefix(ref.Name().Short(), DefaultRemote+"/")
	r.logger.Info("reset branch", "ref", ref.Name().Short(), "commit", ref.Hash().String()[:12])
	return branch, nil
}

// CommitAll commits every change to tracked files with msg. Untracked files
// are left alone.
func (r *Repo) CommitAll(ctx context.Context, msg string) (plumbing.Hash, error) {
	if err := ctx.Err(); err != nil {
		return plumbing.ZeroHash, err
	}
	wt, err := r.repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to open worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to read worktree status: %w", err)
	}
	if !hasTrackedChanges(status) {
		return plumbing.ZeroHash, ErrNothingToCommit
	}

	opts := &git.CommitOptions{All: true}
	if r.author.Name != "" && r.author.Email != "" {
		sig := &object.Signature{Name: r.author.Name, Email: r.author.Email, When: r.now()}
		opts.Author = sig
		opts.Committer = sig
	}
	hash, err := wt.Commit(msg, opts)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to commit: %w", err)
	}
	r.logger.Info("committed", "message", msg, "commit", hash.String()[:12])
	return hash, nil
}

func hasTrackedChanges(status git.Status) bool {
	for _, s := range status {
		if s.Worktree == git.Untracked {
			continue
		}
		if s.Staging != git.Unmodified || s.Worktree != git.Unmodified {
			return true
		}
	}
	return false
}

// Mirror force-pushes every branch and tag to url. Branches fetched from
// origin are pushed as branches too, so a detached CI checkout mirrors the
// branches it fetched. A mirror that is already up to date is not an error.
func (r *Repo) Mirror(ctx context.Context, url string) error {
	if url == "" {
		return ErrNoMirrorURL
	}
	specs, err := r.MirrorRefSpecs()
	if err != nil {
		return err
	}
	remote := git.NewRemote(r.repo.Storer, &gitconfig.RemoteConfig{
		Name: mirrorRemote,
		URLs: []string{url},
	})
	r.logger.Info("mirroring", "url", url, "refspecs", len(specs))
	err = remote.PushContext(ctx, &git.PushOptions{
		RemoteName: mirrorRemote,
		RefSpecs:   specs,
		Force:      true,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to mirror to %s: %w", url, err)
	}
	return nil
}

// MirrorRefSpecs returns the forced refspecs Mirror pushes: one per branch,
// local branches winning over origin's branch of the same name, then every
// tag. origin/HEAD is skipped.
func (r *Repo) MirrorRefSpecs() ([]gitconfig.RefSpec, error) {
	refs, err := r.repo.References()
	if err != nil {
		return nil, fmt.Errorf("failed to list references: %w", err)
	}
	sources := make(map[string]plumbing.ReferenceName)
	remotePrefix := "refs/remotes/" + DefaultRemote + "/"
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name()
		switch {
		case name.IsBranch():
			sources[name.Short()] = name
		case strings.HasPrefix(name.String(), remotePrefix):
			branch := strings.TrimPrefix(name.String(), remotePrefix)
			if branch == "HEAD" {
				return nil
			}
			if _, seen := sources[branch]; !seen {
				sources[branch] = name
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list references: %w", err)
	}
	if len(sources) == 0 {
		return nil, ErrNoBranches
	}

	branches := make([]string, 0, len(sources))
	for b := range sources {
		branches = append(branches, b)
	}
	sort.Strings(branches)

	specs := make([]gitconfig.RefSpec, 0, len(branches)+1)
	for _, b := range branches {
		specs = append(specs, gitconfig.RefSpec("+"+sources[b].String()+":"+plumbing.NewBranchReferenceName(b).String()))
	}
	return append(specs, "+refs/tags/*:refs/tags/*"), nil
}
