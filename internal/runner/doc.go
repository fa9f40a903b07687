// SPDX-License-Identifier: MPL-2.0

// Package runner executes external commands on behalf of the pipeline.
//
// Every tool the orchestrator drives (conan, bundle, rake) goes through a
// Runner so that commands are logged consistently, scoped to a working
// directory and, in tests, replaced by the recording double in runnertest.
package runner
