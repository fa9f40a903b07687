// SPDX-License-Identifier: MPL-2.0

package release

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingArtifact is the sentinel error wrapped by MissingArtifactError.
	ErrMissingArtifact = errors.New("expected artifact missing")
	// ErrNoVersion is returned when neither a version flag nor a CI tag is available.
	ErrNoVersion = errors.New("no release version")
	// ErrInvalidVersion is the sentinel error wrapped by InvalidVersionError.
	ErrInvalidVersion = errors.New("invalid version")
	// ErrVersionNotFound is returned when a version file has no version to rewrite.
	ErrVersionNotFound = errors.New("version not found in file")
	// ErrCredentialsMissing is returned when no publish credential is available.
	ErrCredentialsMissing = errors.New("publish credentials missing")
)

type (
	// MissingArtifactError names the first expected artifact that does not exist.
	MissingArtifactError struct {
		Path string
	}

	// InvalidVersionError is returned for strings that are not semantic versions.
	InvalidVersionError struct {
		Value string
		Err   error
	}

	// VersionFileError reports a version file that could not be rewritten.
	VersionFileError struct {
		Path string
		Err  error
	}

	// StageError reports the stage that aborted the pipeline.
	StageError struct {
		Stage Stage
		Err   error
	}
)

// Error implements the error interface.
func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("%s: %s does not exist", ErrMissingArtifact, e.Path)
}

// Unwrap returns ErrMissingArtifact so callers can use errors.Is for programmatic detection.
func (e *MissingArtifactError) Unwrap() error { return ErrMissingArtifact }

// Error implements the error interface.
func (e *InvalidVersionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid version %q: %v", e.Value, e.Err)
	}
	return fmt.Sprintf("invalid version %q", e.Value)
}

// Unwrap returns ErrInvalidVersion.
func (e *InvalidVersionError) Unwrap() error { return ErrInvalidVersion }

// Error implements the error interface.
func (e *VersionFileError) Error() string {
	return fmt.Sprintf("version file %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *VersionFileError) Unwrap() error { return e.Err }

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

// Unwrap returns the error of the failed stage.
func (e *StageError) Unwrap() error { return e.Err }
