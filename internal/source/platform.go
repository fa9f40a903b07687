// SPDX-License-Identifier: MPL-2.0

package source

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tankerhq/tankerci/pkg/platform"
)

// DefaultProfile is the conan profile matching the host.
const DefaultProfile = "default"

// ErrDuplicatePlatform is the sentinel error wrapped by DuplicatePlatformError.
var ErrDuplicatePlatform = errors.New("profiles share a platform directory")

type (
	// PlatformMapper maps profiles to platform keys.
	PlatformMapper struct {
		// Table holds explicit profile to key entries and wins over inference.
		Table map[string]string
		Host  platform.Host
	}

	// InstallTarget is where one profile's native build is installed.
	InstallTarget struct {
		Profile string
		Key     string
		Dir     string
	}

	// DuplicatePlatformError is returned when two profiles of one run map to
	// the same platform key.
	DuplicatePlatformError struct {
		Key      string
		Profiles [2]string
	}
)

// Error implements the error interface.
func (e *DuplicatePlatformError) Error() string {
	return fmt.Sprintf("profiles %q and %q both map to platform %q", e.Profiles[0], e.Profiles[1], e.Key)
}

// Unwrap returns ErrDuplicatePlatform.
func (e *DuplicatePlatformError) Unwrap() error { return ErrDuplicatePlatform }

// Key returns the platform key for profile. Explicit table entries win, then
// OS and architecture tokens in the profile name, then the host.
func (m PlatformMapper) Key(profile string) string {
	if key, ok := lookupFold(m.Table, profile); ok {
		return key
	}
	if key, ok := keyFromTokens(profile); ok {
		return key
	}
	return hostKey(m.Host)
}

// Targets maps every profile to its install directory under
// <root>/<vendorDir>/<key>, rejecting profiles that would share a directory.
func (m PlatformMapper) Targets(root, vendorDir string, profiles []string) ([]InstallTarget, error) {
	seen := make(map[string]string, len(profiles))
	targets := make([]InstallTarget, 0, len(profiles))
	for _, p := range profiles {
		key := m.Key(p)
		if other, ok := seen[key]; ok {
			return nil, &DuplicatePlatformError{Key: key, Profiles: [2]string{other, p}}
		}
		seen[key] = p
		targets = append(targets, InstallTarget{
			Profile: p,
			Key:     key,
			Dir:     filepath.Join(root, filepath.FromSlash(vendorDir), key),
		})
	}
	return targets, nil
}

// lookupFold also matches keys lowercased by the configuration loader.
func lookupFold(table map[string]string, profile string) (string, bool) {
	if key, ok := table[profile]; ok {
		return key, true
	}
	key, ok := table[strings.ToLower(profile)]
	return key, ok
}

func keyFromTokens(profile string) (string, bool) {
	tokens := strings.FieldsFunc(strings.ToLower(profile), func(r rune) bool {
		return r == '-' || r == '_' || r == '.' || r == '/' || r == ' '
	})

	var osName, arch string
	for _, tok := range tokens {
		switch tok {
		case "linux":
			osName = "linux"
		case "darwin", "macos", "mac", "osx":
			osName = "darwin"
		case "x86_64", "amd64", "x64":
			arch = "x86_64"
		case "armv8", "aarch64", "arm64":
			arch = "aarch64"
		}
	}
	// FieldsFunc splits x86_64 on the underscore.
	if arch == "" && strings.Contains(strings.ToLower(profile), "x86_64") {
		arch = "x86_64"
	}
	if osName == "" {
		return "", false
	}
	if arch == "" {
		arch = "x86_64"
	}
	return osName + "-" + arch, true
}

// hostKey keeps the historical linux64/mac64 names for x86_64 hosts, which
// the default expected artifact paths use.
func hostKey(h platform.Host) string {
	switch {
	case h.IsLinux() && h.Arch == platform.AMD64:
		return "linux64"
	case h.IsDarwin() && h.Arch == platform.AMD64:
		return "mac64"
	case h.IsDarwin() && h.Arch == platform.ARM64:
		return "darwin-aarch64"
	case h.IsLinux() && h.Arch == platform.ARM64:
		return "linux-aarch64"
	default:
		return h.OS + "-" + h.Arch
	}
}
