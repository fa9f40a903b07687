// SPDX-License-Identifier: MPL-2.0

package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/tankerhq/tankerci/pkg/types"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/syntax"
)

// ErrCommandFailed is the sentinel error wrapped by CommandError.
var ErrCommandFailed = errors.New("command failed")

type (
	// Command describes one external process invocation.
	Command struct {
		// Name is the program to run, looked up in PATH.
		Name string
		// Args are passed verbatim, no shell is involved.
		Args []string
		// Dir is the working directory. Empty means the current directory.
		Dir string
		// Env overlays the process environment.
		Env map[string]string
	}

	// CommandError reports a command that could not be started or exited non-zero.
	// It wraps ErrCommandFailed for errors.Is() compatibility.
	CommandError struct {
		Command  Command
		ExitCode types.ExitCode
		Stderr   string
		Err      error
	}

	// Runner runs commands. Run streams output to the configured writers,
	// Output captures stdout and returns it.
	Runner interface {
		Run(ctx context.Context, cmd Command) error
		Output(ctx context.Context, cmd Command) (string, error)
	}

	// ExecRunner runs commands with os/exec.
	ExecRunner struct {
		logger *log.Logger
		stdout io.Writer
		stderr io.Writer
	}
)

// New creates an ExecRunner. Nil writers default to the process stdio and a
// nil logger discards log output.
func New(logger *log.Logger, stdout, stderr io.Writer) *ExecRunner {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return &ExecRunner{logger: logger, stdout: stdout, stderr: stderr}
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Command.String(), ErrCommandFailed)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	} else {
		msg += fmt.Sprintf(" with exit code %s", e.ExitCode)
	}
	return msg
}

// Unwrap returns ErrCommandFailed so callers can use errors.Is for programmatic
// detection, along with the underlying start or cancellation error.
func (e *CommandError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrCommandFailed}
	}
	return []error{ErrCommandFailed, e.Err}
}

// String renders the command as a shell-quoted line, suitable for logs.
func (c Command) String() string {
	words := make([]string, 0, len(c.Args)+1)
	for _, w := range append([]string{c.Name}, c.Args...) {
		q, err := syntax.Quote(w, syntax.LangBash)
		if err != nil {
			q = fmt.Sprintf("%q", w)
		}
		words = append(words, q)
	}
	return strings.Join(words, " ")
}

// WithDir returns a copy of the command scoped to dir.
func (c Command) WithDir(dir string) Command {
	c.Dir = dir
	return c
}

// WithEnv returns a copy of the command with env merged over its own overlay.
func (c Command) WithEnv(env map[string]string) Command {
	if len(env) == 0 {
		return c
	}
	merged := make(map[string]string, len(c.Env)+len(env))
	for k, v := range c.Env {
		merged[k] = v
	}
	for k, v := range env {
		merged[k] = v
	}
	c.Env = merged
	return c
}

// Run executes cmd, streaming its output. A non-zero exit is returned as a *CommandError.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) error {
	var stderr bytes.Buffer
	c := r.prepare(ctx, cmd)
	c.Stdout = r.stdout
	c.Stderr = io.MultiWriter(r.stderr, &stderr)
	return r.wait(ctx, c, cmd, &stderr)
}

// Output executes cmd and returns its captured stdout.
func (r *ExecRunner) Output(ctx context.Context, cmd Command) (string, error) {
	var stdout, stderr bytes.Buffer
	c := r.prepare(ctx, cmd)
	c.Stdout = &stdout
	c.Stderr = &stderr
	if err := r.wait(ctx, c, cmd, &stderr); err != nil {
		return stdout.String(), err
	}
	return stdout.String(), nil
}

func (r *ExecRunner) prepare(ctx context.Context, cmd Command) *exec.Cmd {
	if cmd.Dir != "" {
		r.logger.Info("running", "cmd", cmd.String(), "dir", cmd.Dir)
	} else {
		r.logger.Info("running", "cmd", cmd.String())
	}

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), EnvToSlice(cmd.Env)...)
	}
	return c
}

func (r *ExecRunner) wait(ctx context.Context, c *exec.Cmd, cmd Command, stderr *bytes.Buffer) error {
	err := c.Run()
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		r.logger.Debug("command interrupted", "cmd", cmd.Name, "reason", ctxErr)
		return &CommandError{Command: cmd, ExitCode: types.ExitFailure, Stderr: stderr.String(), Err: ctxErr}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := types.ExitCode(exitErr.ExitCode()).Normalize()
		r.logger.Debug("command exited", "cmd", cmd.Name, "code", code)
		return &CommandError{Command: cmd, ExitCode: code, Stderr: stderr.String()}
	}
	return &CommandError{Command: cmd, ExitCode: types.ExitFailure, Err: err}
}

// EnvToSlice converts an environment overlay to KEY=VALUE pairs, sorted by key
// so that the resulting process environment is deterministic.
func EnvToSlice(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}
