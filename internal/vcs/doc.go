// SPDX-License-Identifier: MPL-2.0

// Package vcs drives git repositories in-process with go-git: resetting a
// checkout onto a remote branch, committing release changes, mirroring refs to
// a secondary remote, and cloning the multi-repository workspace used when the
// native library must track the binding's branch.
package vcs
