// SPDX-License-Identifier: MPL-2.0

// Package toolchain runs the binding language's own build tool (bundler and
// rake for the Ruby SDK). Each step is a configurable shell-word command line.
package toolchain
