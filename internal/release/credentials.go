// SPDX-License-Identifier: MPL-2.0

package release

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tankerhq/tankerci/internal/config"

	"gopkg.in/yaml.v3"
)

// CredentialsFileMode keeps the publish credential readable by its owner only.
const CredentialsFileMode os.FileMode = 0o600

// WriteCredentials stores the API key found in cfg.EnvVar under
// <homeDir>/<cfg.File>. When the variable is unset an existing file is kept.
// It returns the file path.
func WriteCredentials(cfg config.CredentialsConfig, homeDir string, getenv func(string) string) (string, error) {
	path := filepath.Join(homeDir, filepath.FromSlash(cfg.File))
	key := getenv(cfg.EnvVar)
	if key == "" {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		return "", fmt.Errorf("%w: set %s", ErrCredentialsMissing, cfg.EnvVar)
	}

	data, err := yaml.Marshal(map[string]string{cfg.Key: key})
	if err != nil {
		return "", fmt.Errorf("failed to encode credentials: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, CredentialsFileMode); err != nil {
		return "", fmt.Errorf("failed to write credentials: %w", err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(path, CredentialsFileMode); err != nil {
		return "", fmt.Errorf("failed to restrict credentials: %w", err)
	}
	return path, nil
}
