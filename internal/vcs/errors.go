// SPDX-License-Identifier: MPL-2.0

package vcs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrBranchNotFound is the sentinel error wrapped by BranchNotFoundError.
	ErrBranchNotFound = errors.New("branch not found")
	// ErrNothingToCommit is returned by CommitAll when the worktree is clean.
	ErrNothingToCommit = errors.New("nothing to commit")
	// ErrNoMirrorURL is returned when Mirror is called without a destination.
	ErrNoMirrorURL = errors.New("mirror url is empty")
	// ErrNoBranches is returned by Mirror when the repository has neither
	// local branches nor branches fetched from origin.
	ErrNoBranches = errors.New("no branches to mirror")
)

// BranchNotFoundError is returned when neither the requested branch nor its
// fallback exists on the remote. It wraps ErrBranchNotFound.
type BranchNotFoundError struct {
	Remote string
	Tried  []string
}

// Error implements the error interface.
func (e *BranchNotFoundError) Error() string {
	return fmt.Sprintf("no branch %s found on remote %q", strings.Join(e.Tried, " or "), e.Remote)
}

// Unwrap returns ErrBranchNotFound so callers can use errors.Is for programmatic detection.
func (e *BranchNotFoundError) Unwrap() error { return ErrBranchNotFound }
