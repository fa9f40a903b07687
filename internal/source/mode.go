// SPDX-License-Identifier: MPL-2.0

package source

import (
	"errors"
	"fmt"
)

const (
	// ModeLocal builds from the sibling native checkout.
	ModeLocal Mode = "local"
	// ModeSameAsBranch builds from a workspace checked out on the current branch.
	ModeSameAsBranch Mode = "same-as-branch"
	// ModeUpstream reuses packages built by an upstream pipeline job.
	ModeUpstream Mode = "upstream"
	// ModeDeployed installs a published reference.
	ModeDeployed Mode = "deployed"
	// ModeEditable relies on a developer-local editable package.
	ModeEditable Mode = "editable"
)

// ErrInvalidMode is the sentinel error wrapped by InvalidModeError.
var ErrInvalidMode = errors.New("invalid source mode")

type (
	// Mode is the --use-tanker flag value.
	Mode string

	// InvalidModeError is returned when a Mode value is not recognized.
	// It wraps ErrInvalidMode for errors.Is() compatibility.
	InvalidModeError struct {
		Value Mode
	}
)

// Modes returns every valid mode in flag help order.
func Modes() []Mode {
	return []Mode{ModeLocal, ModeSameAsBranch, ModeDeployed, ModeUpstream, ModeEditable}
}

// Error implements the error interface.
func (e *InvalidModeError) Error() string {
	return fmt.Sprintf("invalid source mode %q (valid: local, same-as-branch, deployed, upstream, editable)", e.Value)
}

// Unwrap returns ErrInvalidMode so callers can use errors.Is for programmatic detection.
func (e *InvalidModeError) Unwrap() error { return ErrInvalidMode }

// String returns the flag spelling.
func (m Mode) String() string { return string(m) }

// Validate returns an error if the Mode is not one of the defined values.
func (m Mode) Validate() error {
	switch m {
	case ModeLocal, ModeSameAsBranch, ModeUpstream, ModeDeployed, ModeEditable:
		return nil
	default:
		return &InvalidModeError{Value: m}
	}
}

// ParseMode validates s as a Mode.
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if err := m.Validate(); err != nil {
		return "", err
	}
	return m, nil
}
