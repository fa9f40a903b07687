// SPDX-License-Identifier: MPL-2.0

// Package conan drives the conan package manager CLI.
//
// The package manager cache is process-wide mutable state. It is modelled by
// Home, acquired once when the pipeline starts and handed to the Client; every
// command the Client runs carries the Home's environment, so isolation never
// depends on the ambient process environment.
package conan
