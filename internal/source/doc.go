// SPDX-License-Identifier: MPL-2.0

// Package source decides where the native dependency comes from.
//
// A Source is one of a closed set of variants (Local, SameAsBranch, Upstream,
// Deployed, Editable). The Resolver turns a Source and a profile into a
// ResolvedDependency: the package reference to install, the extra install
// flags, and the directory the binding lives in. Resolution performs at most
// one export or registration in the package cache; Deployed and Editable are
// side-effect free.
//
// Profiles are mapped to platform keys (linux64, darwin-aarch64, ...) which
// partition the vendor directory, so installs for different profiles never
// overwrite each other.
package source
