// SPDX-License-Identifier: MPL-2.0

package conan

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

const (
	// UserHomeEnv is read by conan 1.x.
	UserHomeEnv = "CONAN_USER_HOME"
	// HomeEnv is read by conan 2.x.
	HomeEnv = "CONAN_HOME"
	// PipelineIDEnv names the CI variable used to scope isolated homes.
	PipelineIDEnv = "CI_PIPELINE_ID"
)

// Home is the package manager cache used by one pipeline invocation.
// The zero value is the shared, non-isolated home.
type Home struct {
	dir      string
	isolated bool
}

// SharedHome returns the home conan picks by itself.
func SharedHome() *Home {
	return &Home{}
}

// IsolatedHome creates <root>/<homesDir>/<invocationID> and returns a Home
// pointing there.
func IsolatedHome(root, homesDir, invocationID string) (*Home, error) {
	if invocationID == "" {
		return nil, fmt.Errorf("isolated conan home needs an invocation id")
	}
	dir := filepath.Join(root, homesDir, invocationID)
	if !filepath.IsAbs(dir) {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve conan home %s: %w", dir, err)
		}
		dir = abs
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create conan home %s: %w", dir, err)
	}
	return &Home{dir: dir, isolated: true}, nil
}

// InvocationID returns the CI pipeline id when available, otherwise a fresh UUID.
func InvocationID(getenv func(string) string) string {
	if id := getenv(PipelineIDEnv); id != "" {
		return "pipeline-" + id
	}
	return uuid.NewString()
}

// Isolated reports whether the home was redirected for this invocation.
func (h *Home) Isolated() bool {
	return h != nil && h.isolated
}

// Dir returns the isolated home directory, or "" for the shared home.
func (h *Home) Dir() string {
	if h == nil {
		return ""
	}
	return h.dir
}

// Env returns the environment overlay selecting this home.
func (h *Home) Env() map[string]string {
	if !h.Isolated() {
		return nil
	}
	return map[string]string{
		UserHomeEnv: h.dir,
		HomeEnv:     filepath.Join(h.dir, ".conan2"),
	}
}
