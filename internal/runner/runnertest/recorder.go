// SPDX-License-Identifier: MPL-2.0

// Package runnertest provides a recording runner.Runner for tests.
package runnertest

import (
	"context"
	"strings"
	"sync"

	"github.com/tankerhq/tankerci/internal/runner"
	"github.com/tankerhq/tankerci/pkg/types"
)

type (
	// Rule scripts the outcome of commands whose rendered line contains Match.
	Rule struct {
		Match  string
		Output string
		Fail   bool
		// Do runs before the command is reported as finished, letting tests
		// emulate side effects such as files written by the tool.
		Do func(cmd runner.Command)
	}

	// Recorder implements runner.Runner without spawning processes.
	Recorder struct {
		mu       sync.Mutex
		rules    []Rule
		commands []runner.Command
	}
)

// New creates a Recorder with the given rules. The first matching rule wins.
func New(rules ...Rule) *Recorder {
	return &Recorder{rules: rules}
}

// On appends a rule.
func (r *Recorder) On(rule Rule) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = append(r.rules, rule)
	return r
}

// Run records cmd and applies the first matching rule.
func (r *Recorder) Run(ctx context.Context, cmd runner.Command) error {
	_, err := r.Output(ctx, cmd)
	return err
}

// Output records cmd and returns the scripted output of the first matching rule.
func (r *Recorder) Output(_ context.Context, cmd runner.Command) (string, error) {
	r.mu.Lock()
	r.commands = append(r.commands, cmd)
	var matched *Rule
	line := cmd.String()
	for i := range r.rules {
		if strings.Contains(line, r.rules[i].Match) {
			matched = &r.rules[i]
			break
		}
	}
	r.mu.Unlock()

	if matched == nil {
		return "", nil
	}
	if matched.Do != nil {
		matched.Do(cmd)
	}
	if matched.Fail {
		return matched.Output, &runner.CommandError{Command: cmd, ExitCode: types.ExitFailure}
	}
	return matched.Output, nil
}

// Commands returns a copy of every recorded command in call order.
func (r *Recorder) Commands() []runner.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]runner.Command, len(r.commands))
	copy(out, r.commands)
	return out
}

// Lines returns the recorded commands rendered with runner.Command.String.
func (r *Recorder) Lines() []string {
	cmds := r.Commands()
	out := make([]string, 0, len(cmds))
	for _, c := range cmds {
		out = append(out, c.String())
	}
	return out
}

// Count returns how many recorded command lines contain substr.
func (r *Recorder) Count(substr string) int {
	n := 0
	for _, l := range r.Lines() {
		if strings.Contains(l, substr) {
			n++
		}
	}
	return n
}

// Index returns the position of the first recorded line containing substr, or -1.
func (r *Recorder) Index(substr string) int {
	for i, l := range r.Lines() {
		if strings.Contains(l, substr) {
			return i
		}
	}
	return -1
}

// Reset forgets recorded commands but keeps the rules.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = nil
}
