// SPDX-License-Identifier: MPL-2.0

// Package release sequences the build and release stages of the binding:
// prepare, build, test, lint, verify-artifacts, bump-version, commit,
// package and publish.
//
// Every stage is a gate. The first failing stage aborts the pipeline and is
// reported as a *StageError. The artifact check runs before any mutation of
// the working tree, so a missing native library never results in a bumped,
// committed or published version.
package release
