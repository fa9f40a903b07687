// SPDX-License-Identifier: MPL-2.0

// Package platform provides host platform identification.
//
// The native library is materialized once per target platform, so callers
// need a stable way to name the host they are running on when a build
// profile does not carry that information itself.
package platform
