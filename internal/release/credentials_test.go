// SPDX-License-Identifier: MPL-2.0

package release

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/tankerhq/tankerci/internal/config"
	"github.com/tankerhq/tankerci/internal/testutil"

	"gopkg.in/yaml.v3"
)

func TestWriteCredentials(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig().Credentials
	home := t.TempDir()
	getenv := func(k string) string {
		if k == cfg.EnvVar {
			return "s3cr3t"
		}
		return ""
	}

	path, err := WriteCredentials(cfg, home, getenv)
	if err != nil {
		t.Fatalf("WriteCredentials() error = %v", err)
	}
	if want := filepath.Join(home, ".gem", "credentials"); path != want {
		t.Errorf("path = %q, want %q", path, want)
	}

	var got map[string]string
	if err := yaml.Unmarshal([]byte(testutil.MustReadFile(t, path)), &got); err != nil {
		t.Fatalf("credentials are not YAML: %v", err)
	}
	if got[":rubygems_api_key"] != "s3cr3t" {
		t.Errorf("credentials = %v", got)
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if perm := info.Mode().Perm(); perm != CredentialsFileMode {
			t.Errorf("mode = %o, want %o", perm, CredentialsFileMode)
		}
	}
}

func TestWriteCredentialsTightensExistingFile(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("file modes are not enforced on windows")
	}

	cfg := config.DefaultConfig().Credentials
	home := t.TempDir()
	existing := filepath.Join(home, ".gem", "credentials")
	testutil.MustWriteFile(t, existing, "old")

	path, err := WriteCredentials(cfg, home, func(string) string { return "new" })
	if err != nil {
		t.Fatalf("WriteCredentials() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != CredentialsFileMode {
		t.Errorf("mode = %o, want %o", perm, CredentialsFileMode)
	}
}

func TestWriteCredentialsWithoutKey(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig().Credentials
	noEnv := func(string) string { return "" }

	if _, err := WriteCredentials(cfg, t.TempDir(), noEnv); !errors.Is(err, ErrCredentialsMissing) {
		t.Errorf("WriteCredentials() error = %v, want ErrCredentialsMissing", err)
	}

	home := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(home, ".gem", "credentials"), ":rubygems_api_key: kept\n")
	path, err := WriteCredentials(cfg, home, noEnv)
	if err != nil {
		t.Fatalf("WriteCredentials() with existing file error = %v", err)
	}
	if got := testutil.MustReadFile(t, path); got != ":rubygems_api_key: kept\n" {
		t.Errorf("existing credentials rewritten: %q", got)
	}
}
