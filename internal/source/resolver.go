// SPDX-License-Identifier: MPL-2.0

package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/tankerhq/tankerci/internal/config"
	"github.com/tankerhq/tankerci/internal/conan"
	"github.com/tankerhq/tankerci/internal/vcs"

	"github.com/charmbracelet/log"
	"golang.org/x/exp/slices"
)

var (
	// ErrUnknownSource is returned for Source implementations outside the closed set.
	ErrUnknownSource = errors.New("unknown source")
	// ErrDeployedRefRequired is returned when the deployed reference must come
	// from the environment and it is unset.
	ErrDeployedRefRequired = errors.New("deployed reference required")
	// ErrWorkspaceOverlapsRoot is returned when a same-as-branch checkout
	// would be the working checkout or one of its parents.
	ErrWorkspaceOverlapsRoot = errors.New("workspace overlaps the working checkout")
)

type (
	// ResolvedDependency is what the installer needs for one profile.
	ResolvedDependency struct {
		// Ref is the package reference to install.
		Ref string
		// ExtraFlags are appended to the install command.
		ExtraFlags []string
		// SourceRoot is the binding checkout the install targets.
		SourceRoot string
		// Install is false when nothing must be installed.
		Install bool
	}

	// Packager is the subset of the conan client the resolver drives.
	Packager interface {
		Export(ctx context.Context, srcDir, refOrChannel string) error
		ExportPkg(ctx context.Context, req conan.ExportPkgRequest) error
		Inspect(ctx context.Context, recipeDir string) (conan.Metadata, error)
	}

	// WorkspacePreparer checks out the repositories SameAsBranch builds from.
	WorkspacePreparer interface {
		PrepareWorkspace(ctx context.Context, req vcs.WorkspaceRequest) (*vcs.Workspace, error)
	}

	// Resolver resolves Sources against one configuration and working directory.
	Resolver struct {
		cfg        *config.Config
		root       string
		packager   Packager
		workspaces WorkspacePreparer
		getenv     func(string) string
		logger     *log.Logger

		workspace    *vcs.Workspace
		workspaceReq vcs.WorkspaceRequest
	}

	// ResolverOption configures a Resolver.
	ResolverOption func(*Resolver)
)

// WithWorkspaces sets the preparer used by SameAsBranch.
func WithWorkspaces(w WorkspacePreparer) ResolverOption {
	return func(r *Resolver) { r.workspaces = w }
}

// WithGetenv overrides environment lookups.
func WithGetenv(getenv func(string) string) ResolverOption {
	return func(r *Resolver) { r.getenv = getenv }
}

// WithLogger sets the resolver logger.
func WithLogger(l *log.Logger) ResolverOption {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver creates a Resolver rooted at root, the binding checkout.
func NewResolver(cfg *config.Config, root string, packager Packager, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		cfg:      cfg,
		root:     root,
		packager: packager,
		getenv:   func(string) string { return "" },
		logger:   log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve maps src and profile to the dependency to install.
func (r *Resolver) Resolve(ctx context.Context, src Source, profile string) (ResolvedDependency, error) {
	switch s := src.(type) {
	case Deployed:
		return r.resolveDeployed(s)
	case Local:
		dir := s.SourceDir
		if dir == "" {
			dir = r.cfg.NativeSourceDir
		}
		return r.exportLocal(ctx, r.abs(r.root, dir), r.root)
	case SameAsBranch:
		ws, err := r.prepareWorkspace(ctx, s)
		if err != nil {
			return ResolvedDependency{}, err
		}
		return r.exportLocal(ctx, ws.Path(r.cfg.Workspace.NativeRepo), ws.Path(r.cfg.Workspace.BindingRepo))
	case Upstream:
		return r.resolveUpstream(ctx, s, profile)
	case Editable:
		r.logger.Debug("editable source, nothing to resolve")
		return ResolvedDependency{SourceRoot: r.root}, nil
	default:
		return ResolvedDependency{}, fmt.Errorf("%w: %T", ErrUnknownSource, src)
	}
}

// DeployedRef returns the reference a Deployed source installs.
func (r *Resolver) DeployedRef(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	d := r.cfg.Deployed
	if d.EnvVar != "" {
		if ref := r.getenv(d.EnvVar); ref != "" {
			return ref, nil
		}
	}
	if d.RequireEnv {
		return "", fmt.Errorf("%w: set %s or pass --tanker-ref", ErrDeployedRefRequired, d.EnvVar)
	}
	if d.Latest == "" {
		return "", fmt.Errorf("%w: no latest reference configured", ErrDeployedRefRequired)
	}
	return d.Latest, nil
}

func (r *Resolver) resolveDeployed(s Deployed) (ResolvedDependency, error) {
	ref, err := r.DeployedRef(s.Ref)
	if err != nil {
		return ResolvedDependency{}, err
	}
	return ResolvedDependency{Ref: ref, SourceRoot: r.root, Install: true}, nil
}

func (r *Resolver) exportLocal(ctx context.Context, nativeDir, sourceRoot string) (ResolvedDependency, error) {
	if err := r.packager.Export(ctx, nativeDir, r.cfg.DevChannel); err != nil {
		return ResolvedDependency{}, err
	}
	return ResolvedDependency{
		Ref:        r.cfg.DevRef,
		ExtraFlags: []string{"--build", r.cfg.PackageName},
		SourceRoot: sourceRoot,
		Install:    true,
	}, nil
}

func (r *Resolver) resolveUpstream(ctx context.Context, s Upstream, profile string) (ResolvedDependency, error) {
	recipeDir := s.RecipeDir
	if recipeDir == "" {
		recipeDir = r.cfg.Upstream.RecipeDir
	}
	packagesDir := s.PackagesDir
	if packagesDir == "" {
		packagesDir = r.cfg.Upstream.PackagesDir
	}
	recipeDir = r.abs(r.root, recipeDir)

	md, err := r.packager.Inspect(ctx, recipeDir)
	if err != nil {
		return ResolvedDependency{}, err
	}
	ref := md.Reference(r.cfg.Upstream.Channel)
	err = r.packager.ExportPkg(ctx, conan.ExportPkgRequest{
		RecipeDir:     recipeDir,
		Ref:           ref,
		Profile:       profile,
		PackageFolder: filepath.Join(r.abs(r.root, packagesDir), profile),
	})
	if err != nil {
		return ResolvedDependency{}, err
	}
	return ResolvedDependency{Ref: ref, SourceRoot: r.root, Install: true}, nil
}

// prepareWorkspace checks the repositories out once per Resolver; later
// profiles reuse the same checkout.
func (r *Resolver) prepareWorkspace(ctx context.Context, s SameAsBranch) (*vcs.Workspace, error) {
	if r.workspaces == nil {
		return nil, errors.New("same-as-branch source needs a workspace preparer")
	}
	w := r.cfg.Workspace
	fallback := s.Fallback
	if fallback == "" {
		fallback = w.Fallback
	}
	req := vcs.WorkspaceRequest{
		Dir:      r.abs(r.root, w.Dir),
		BaseURL:  w.BaseURL,
		Repos:    append([]string{w.NativeRepo, w.BindingRepo}, w.Extra...),
		Branch:   s.Branch,
		Fallback: fallback,
	}
	if r.workspace != nil && sameRequest(r.workspaceReq, req) {
		return r.workspace, nil
	}
	if err := r.checkIsolated(req); err != nil {
		return nil, err
	}
	ws, err := r.workspaces.PrepareWorkspace(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare workspace: %w", err)
	}
	r.workspace, r.workspaceReq = ws, req
	return ws, nil
}

// checkIsolated refuses a workspace where preparing a checkout would
// hard-reset the working checkout.
func (r *Resolver) checkIsolated(req vcs.WorkspaceRequest) error {
	root := filepath.Clean(r.root)
	for _, repo := range req.Repos {
		dest := filepath.Join(req.Dir, repo)
		rel, err := filepath.Rel(dest, root)
		if err != nil {
			continue
		}
		if rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))) {
			return fmt.Errorf("%w: %s would be checked out at %s", ErrWorkspaceOverlapsRoot, repo, dest)
		}
	}
	return nil
}

func (r *Resolver) abs(base, p string) string {
	if p == "" {
		return base
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

func sameRequest(a, b vcs.WorkspaceRequest) bool {
	return a.Dir == b.Dir && a.BaseURL == b.BaseURL && a.Branch == b.Branch &&
		a.Fallback == b.Fallback && slices.Equal(a.Repos, b.Repos)
}
