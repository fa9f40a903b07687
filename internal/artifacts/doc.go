// SPDX-License-Identifier: MPL-2.0

// Package artifacts downloads CI job artifact bundles from the GitLab API and
// unpacks them into the working tree.
package artifacts
