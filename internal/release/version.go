// SPDX-License-Identifier: MPL-2.0

package release

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// TagEnv is the CI variable carrying the tag of a release pipeline.
const TagEnv = "CI_COMMIT_TAG"

// NormalizeVersion returns the canonical form of a semantic version, without
// a leading "v".
func NormalizeVersion(v string) (string, error) {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return "", &InvalidVersionError{Value: v}
	}
	parsed, err := semver.NewVersion(trimmed)
	if err != nil {
		return "", &InvalidVersionError{Value: v, Err: err}
	}
	return parsed.String(), nil
}

// VersionFromTag derives the release version from a git tag such as
// "v1.2.3" or "refs/tags/v1.2.3".
func VersionFromTag(tag string) (string, error) {
	return NormalizeVersion(strings.TrimPrefix(strings.TrimSpace(tag), "refs/tags/"))
}

// ResolveVersion picks the explicit version when given, otherwise the CI tag.
func ResolveVersion(explicit string, getenv func(string) string) (string, error) {
	if explicit != "" {
		return NormalizeVersion(explicit)
	}
	if tag := getenv(TagEnv); tag != "" {
		return VersionFromTag(tag)
	}
	return "", ErrNoVersion
}
