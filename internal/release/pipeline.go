// SPDX-License-Identifier: MPL-2.0

package release

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tankerhq/tankerci/internal/conan"
	"github.com/tankerhq/tankerci/internal/config"
	"github.com/tankerhq/tankerci/internal/metrics"
	"github.com/tankerhq/tankerci/internal/source"
	"github.com/tankerhq/tankerci/internal/toolchain"

	"github.com/charmbracelet/log"
	"github.com/go-git/go-git/v5/plumbing"
)

const (
	// StagePrepare resolves the native dependency and installs it per profile.
	StagePrepare Stage = "prepare"
	// StageBuild installs binding dependencies and runs the optional build step.
	StageBuild Stage = "build"
	// StageTest runs the binding test suite.
	StageTest Stage = "test"
	// StageLint runs static checks.
	StageLint Stage = "lint"
	// StageVerifyArtifacts checks that every expected artifact exists.
	StageVerifyArtifacts Stage = "verify-artifacts"
	// StageBumpVersion rewrites the version files and regenerates the lock file.
	StageBumpVersion Stage = "bump-version"
	// StageCommit records the bump in version control.
	StageCommit Stage = "commit"
	// StagePackage builds the distributable package.
	StagePackage Stage = "package"
	// StagePublish pushes the package to the registry.
	StagePublish Stage = "publish"
)

type (
	// Stage names one step of the release pipeline.
	Stage string

	// Resolver maps a source and profile to the dependency to install.
	Resolver interface {
		Resolve(ctx context.Context, src source.Source, profile string) (source.ResolvedDependency, error)
	}

	// Installer is the subset of the conan client the pipeline drives.
	Installer interface {
		Install(ctx context.Context, req conan.InstallRequest) error
		Remove(ctx context.Context, pattern string) error
		Home() *conan.Home
	}

	// Committer records the working tree in version control.
	Committer interface {
		CommitAll(ctx context.Context, msg string) (plumbing.Hash, error)
	}

	// Deps are the collaborators of a Pipeline.
	Deps struct {
		Config    *config.Config
		Root      string
		Resolver  Resolver
		Conan     Installer
		Toolchain *toolchain.Toolchain
		// Repo is only needed by BumpAndCommit.
		Repo    Committer
		Mapper  source.PlatformMapper
		Metrics *metrics.Stages
		Logger  *log.Logger
		// HomeDir is where the credentials file is written. Empty means
		// the user's home directory.
		HomeDir string
		Getenv  func(string) string
	}

	// Pipeline sequences the build and release stages.
	Pipeline struct {
		Deps
		now func() time.Time
	}

	// PrepareRequest selects the source and the profiles to install.
	PrepareRequest struct {
		Source   source.Source
		Profiles []string
		Update   bool
	}

	// PrepareResult describes what Prepare installed.
	PrepareResult struct {
		// SourceRoot is the binding checkout the installs targeted.
		SourceRoot string
		Targets    []source.InstallTarget
	}

	// DeployResult describes a published release.
	DeployResult struct {
		Version   string
		Commit    plumbing.Hash
		Artifacts []ArtifactDigest
	}
)

// New creates a Pipeline. A nil logger discards output and a nil Getenv uses
// the process environment.
func New(deps Deps) *Pipeline {
	if deps.Logger == nil {
		deps.Logger = log.New(io.Discard)
	}
	if deps.Getenv == nil {
		deps.Getenv = os.Getenv
	}
	if deps.Config == nil {
		deps.Config = config.DefaultConfig()
	}
	return &Pipeline{Deps: deps, now: time.Now}
}

// stage runs fn as name. The first error aborts the caller's sequence.
func (p *Pipeline) stage(name Stage, fn func() error) error {
	p.Logger.Info("stage started", "stage", name)
	began := p.now()
	done := p.Metrics.Start(string(name))
	err := fn()
	done(err)
	if err != nil {
		p.Logger.Error("stage failed", "stage", name, "err", err)
		return &StageError{Stage: name, Err: err}
	}
	p.Logger.Info("stage finished", "stage", name, "elapsed", p.now().Sub(began).Round(time.Millisecond))
	return nil
}

// Prepare resolves req.Source for every profile and installs the native
// library into the platform directory of each one.
func (p *Pipeline) Prepare(ctx context.Context, req PrepareRequest) (*PrepareResult, error) {
	var result *PrepareResult
	err := p.stage(StagePrepare, func() error {
		var err error
		result, err = p.prepare(ctx, req)
		return err
	})
	return result, err
}

func (p *Pipeline) prepare(ctx context.Context, req PrepareRequest) (*PrepareResult, error) {
	if req.Source == nil {
		return nil, fmt.Errorf("%w: no source selected", source.ErrUnknownSource)
	}
	profiles := req.Profiles
	if len(profiles) == 0 {
		profiles = []string{source.DefaultProfile}
	}
	// Keys do not depend on the source root, so duplicates are rejected
	// before anything is exported or installed.
	if _, err := p.Mapper.Targets(p.Root, p.Config.VendorDir, profiles); err != nil {
		return nil, err
	}

	if home := p.Conan.Home(); home != nil && home.Isolated() {
		if err := p.Conan.Remove(ctx, p.Config.PackageName+"/*"); err != nil {
			return nil, err
		}
	}

	result := &PrepareResult{SourceRoot: p.Root}
	for _, profile := range profiles {
		dep, err := p.Resolver.Resolve(ctx, req.Source, profile)
		if err != nil {
			return nil, err
		}
		if dep.SourceRoot != "" {
			result.SourceRoot = dep.SourceRoot
		}
		if !dep.Install {
			p.Logger.Debug("nothing to install", "source", req.Source.Mode(), "profile", profile)
			continue
		}
		targets, err := p.Mapper.Targets(result.SourceRoot, p.Config.VendorDir, []string{profile})
		if err != nil {
			return nil, err
		}
		target := targets[0]
		p.Logger.Info("installing native library", "ref", dep.Ref, "profile", profile, "platform", target.Key)
		err = p.Conan.Install(ctx, conan.InstallRequest{
			Ref:           dep.Ref,
			Profile:       profile,
			InstallFolder: target.Dir,
			Options:       p.Config.InstallOptions,
			Generator:     p.Config.Generator,
			ExtraFlags:    dep.ExtraFlags,
			Update:        req.Update,
			Dir:           result.SourceRoot,
		})
		if err != nil {
			return nil, err
		}
		result.Targets = append(result.Targets, target)
	}
	return result, nil
}

// BuildAndTest prepares the native dependency, then builds and tests the
// binding in the source root returned by Prepare.
func (p *Pipeline) BuildAndTest(ctx context.Context, req PrepareRequest) error {
	prepared, err := p.Prepare(ctx, req)
	if err != nil {
		return err
	}
	tc := p.Toolchain.WithDir(prepared.SourceRoot)
	if err := p.stage(StageBuild, func() error {
		if err := tc.Run(ctx, toolchain.StepDeps); err != nil {
			return err
		}
		_, err := tc.RunOptional(ctx, toolchain.StepBuild)
		return err
	}); err != nil {
		return err
	}
	return p.stage(StageTest, func() error {
		return tc.Run(ctx, toolchain.StepTest)
	})
}

// Lint installs the binding dependencies and runs the linter.
func (p *Pipeline) Lint(ctx context.Context) error {
	return p.stage(StageLint, func() error {
		if err := p.Toolchain.Run(ctx, toolchain.StepDeps); err != nil {
			return err
		}
		return p.Toolchain.Run(ctx, toolchain.StepLint)
	})
}

// VerifyArtifacts runs the artifact gate over the configured expected
// artifacts.
func (p *Pipeline) VerifyArtifacts() ([]ArtifactDigest, error) {
	var digests []ArtifactDigest
	err := p.stage(StageVerifyArtifacts, func() error {
		var err error
		digests, err = VerifyArtifacts(p.Root, p.Config.ExpectedArtifacts)
		if err != nil {
			return err
		}
		for _, d := range digests {
			p.Logger.Info("artifact present", "path", d.Path, "blake3", d.Digest)
		}
		return nil
	})
	return digests, err
}

// BumpAndCommit writes version into every version file, regenerates the
// lock file and commits the result as "Bump to <version>".
func (p *Pipeline) BumpAndCommit(ctx context.Context, version string) (plumbing.Hash, error) {
	if p.Repo == nil {
		return plumbing.ZeroHash, errors.New("no repository to commit to")
	}
	if err := p.stage(StageBumpVersion, func() error {
		if err := BumpFiles(p.Root, p.Config.VersionFiles, version); err != nil {
			return err
		}
		return p.Toolchain.Run(ctx, toolchain.StepDeps)
	}); err != nil {
		return plumbing.ZeroHash, err
	}

	var hash plumbing.Hash
	err := p.stage(StageCommit, func() error {
		var err error
		hash, err = p.Repo.CommitAll(ctx, "Bump to "+version)
		return err
	})
	return hash, err
}

// PackageAndPublish writes the publish credentials, builds the package and
// pushes it.
func (p *Pipeline) PackageAndPublish(ctx context.Context) error {
	if err := p.stage(StagePackage, func() error {
		home, err := p.homeDir()
		if err != nil {
			return err
		}
		path, err := WriteCredentials(p.Config.Credentials, home, p.Getenv)
		if err != nil {
			return err
		}
		p.Logger.Debug("credentials ready", "path", path)
		return p.Toolchain.Run(ctx, toolchain.StepPackage)
	}); err != nil {
		return err
	}
	return p.stage(StagePublish, func() error {
		return p.Toolchain.Run(ctx, toolchain.StepPublish)
	})
}

// Deploy verifies the artifacts, bumps and commits version, then packages
// and publishes. Nothing is mutated when an artifact is missing.
func (p *Pipeline) Deploy(ctx context.Context, version string) (*DeployResult, error) {
	canonical, err := NormalizeVersion(version)
	if err != nil {
		return nil, err
	}
	digests, err := p.VerifyArtifacts()
	if err != nil {
		return nil, err
	}
	hash, err := p.BumpAndCommit(ctx, canonical)
	if err != nil {
		return nil, err
	}
	if err := p.PackageAndPublish(ctx); err != nil {
		return nil, err
	}
	return &DeployResult{Version: canonical, Commit: hash, Artifacts: digests}, nil
}

func (p *Pipeline) homeDir() (string, error) {
	if p.HomeDir != "" {
		return p.HomeDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate home directory: %w", err)
	}
	return home, nil
}
