// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the tankerci command tree.
//
// Every subcommand handler builds a session from the App: the loaded
// configuration, a logger, the conan home acquired for the invocation and
// the release pipeline wired on top of them. Errors leave the handlers as
// *ExitError after being rendered with their catalog entry.
package cmd
