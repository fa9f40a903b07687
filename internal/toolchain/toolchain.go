// SPDX-License-Identifier: MPL-2.0

package toolchain

import (
	"context"
	"errors"
	"fmt"

	"github.com/tankerhq/tankerci/internal/config"
	"github.com/tankerhq/tankerci/internal/runner"

	"mvdan.cc/sh/v3/shell"
)

const (
	// StepDeps installs dependencies and regenerates the lock file.
	StepDeps Step = "deps"
	// StepBuild compiles the binding.
	StepBuild Step = "build"
	// StepTest runs the test suite.
	StepTest Step = "test"
	// StepLint runs static checks.
	StepLint Step = "lint"
	// StepPackage builds the distributable package.
	StepPackage Step = "package"
	// StepPublish pushes the package to the registry.
	StepPublish Step = "publish"
)

// ErrStepNotConfigured is returned when a required step has no command line.
var ErrStepNotConfigured = errors.New("toolchain step not configured")

type (
	// Step names one toolchain command.
	Step string

	// Toolchain runs toolchain steps in a fixed directory.
	Toolchain struct {
		runner runner.Runner
		cfg    config.ToolchainConfig
		dir    string
		getenv func(string) string
	}
)

// New creates a Toolchain running in dir. Variables in command lines are
// expanded with getenv; nil uses the process environment.
func New(r runner.Runner, cfg config.ToolchainConfig, dir string, getenv func(string) string) *Toolchain {
	return &Toolchain{runner: r, cfg: cfg, dir: dir, getenv: getenv}
}

// Dir returns the directory steps run in.
func (t *Toolchain) Dir() string { return t.dir }

// WithDir returns a copy of the toolchain running in dir.
func (t *Toolchain) WithDir(dir string) *Toolchain {
	c := *t
	c.dir = dir
	return &c
}

// Line returns the configured command line for step.
func (t *Toolchain) Line(step Step) string {
	switch step {
	case StepDeps:
		return t.cfg.Deps
	case StepBuild:
		return t.cfg.Build
	case StepTest:
		return t.cfg.Test
	case StepLint:
		return t.cfg.Lint
	case StepPackage:
		return t.cfg.Package
	case StepPublish:
		return t.cfg.Publish
	default:
		return ""
	}
}

// Command parses the command line of step.
func (t *Toolchain) Command(step Step) (runner.Command, error) {
	line := t.Line(step)
	if line == "" {
		return runner.Command{}, fmt.Errorf("%w: %s", ErrStepNotConfigured, step)
	}
	fields, err := shell.Fields(line, t.getenv)
	if err != nil {
		return runner.Command{}, fmt.Errorf("invalid %s command %q: %w", step, line, err)
	}
	if len(fields) == 0 {
		return runner.Command{}, fmt.Errorf("%w: %s", ErrStepNotConfigured, step)
	}
	return runner.Command{Name: fields[0], Args: fields[1:], Dir: t.dir}, nil
}

// Run executes step.
func (t *Toolchain) Run(ctx context.Context, step Step) error {
	cmd, err := t.Command(step)
	if err != nil {
		return err
	}
	if err := t.runner.Run(ctx, cmd); err != nil {
		return fmt.Errorf("toolchain %s: %w", step, err)
	}
	return nil
}

// RunOptional executes step when it is configured and reports whether it ran.
func (t *Toolchain) RunOptional(ctx context.Context, step Step) (bool, error) {
	if t.Line(step) == "" {
		return false, nil
	}
	return true, t.Run(ctx, step)
}
