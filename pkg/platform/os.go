// SPDX-License-Identifier: MPL-2.0

package platform

import "runtime"

// OS name constants for runtime.GOOS comparisons.
// Centralizes the string literals to avoid scattered magic strings.
const (
	Windows = "windows"
	Darwin  = "darwin"
	Linux   = "linux"
)

// Architecture constants for runtime.GOARCH comparisons.
const (
	AMD64 = "amd64"
	ARM64 = "arm64"
)

type (
	// Host describes an operating system and CPU architecture pair using Go's
	// GOOS/GOARCH spelling.
	Host struct {
		OS   string
		Arch string
	}
)

// Current returns the host the process is running on.
func Current() Host {
	return Host{OS: runtime.GOOS, Arch: runtime.GOARCH}
}

// String returns the host as "os/arch".
func (h Host) String() string {
	return h.OS + "/" + h.Arch
}

// IsDarwin reports whether the host is macOS.
func (h Host) IsDarwin() bool { return h.OS == Darwin }

// IsLinux reports whether the host is Linux.
func (h Host) IsLinux() bool { return h.OS == Linux }
