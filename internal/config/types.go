// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// VersionFileRegex rewrites the first capture group of Pattern.
	VersionFileRegex VersionFileKind = "regex"
	// VersionFileTOML rewrites the string value at Key in a TOML document.
	VersionFileTOML VersionFileKind = "toml"
)

var (
	// ErrInvalidVersionFileKind is returned when a VersionFileKind value is not recognized.
	ErrInvalidVersionFileKind = errors.New("invalid version file kind")
	// ErrInvalidVersionFile is the sentinel error wrapped by InvalidVersionFileError.
	ErrInvalidVersionFile = errors.New("invalid version file")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// VersionFileKind selects how a version file is rewritten.
	VersionFileKind string

	// InvalidVersionFileKindError is returned when a VersionFileKind value is not recognized.
	// It wraps ErrInvalidVersionFileKind for errors.Is() compatibility.
	InvalidVersionFileKindError struct {
		Value VersionFileKind
	}

	// InvalidVersionFileError is returned when a VersionFile has invalid fields.
	InvalidVersionFileError struct {
		Path        string
		FieldErrors []error
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sub-components.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the orchestrator configuration.
	Config struct {
		// PackageName is the conan package name of the native library.
		PackageName string `json:"package_name" mapstructure:"package_name"`
		// DevRef is the reference local exports are published under.
		DevRef string `json:"dev_ref" mapstructure:"dev_ref"`
		// DevChannel is the user/channel given to `conan export`.
		DevChannel string `json:"dev_channel" mapstructure:"dev_channel"`
		// NativeSourceDir is the sibling checkout of the native library, relative to the binding root.
		NativeSourceDir string `json:"native_source_dir" mapstructure:"native_source_dir"`
		// VendorDir is where native builds are installed, one subdirectory per platform.
		VendorDir string `json:"vendor_dir" mapstructure:"vendor_dir"`
		// InstallOptions are passed as --options to every install.
		InstallOptions []string `json:"install_options" mapstructure:"install_options"`
		// Generator is the conan generator used for installs.
		Generator string `json:"generator" mapstructure:"generator"`
		// Platforms maps a profile name to its platform key.
		Platforms map[string]string `json:"platforms,omitempty" mapstructure:"platforms"`
		// ExpectedArtifacts must all exist before a release is bumped.
		ExpectedArtifacts []string `json:"expected_artifacts" mapstructure:"expected_artifacts"`
		// VersionFiles are rewritten by the version bump.
		VersionFiles []VersionFile `json:"version_files" mapstructure:"version_files"`
		// Deployed configures the published-reference source.
		Deployed DeployedConfig `json:"deployed" mapstructure:"deployed"`
		// Upstream configures the prebuilt-package source.
		Upstream UpstreamConfig `json:"upstream" mapstructure:"upstream"`
		// Workspace configures the same-as-branch checkout.
		Workspace WorkspaceConfig `json:"workspace" mapstructure:"workspace"`
		// Toolchain holds the language toolchain command lines.
		Toolchain ToolchainConfig `json:"toolchain" mapstructure:"toolchain"`
		// Conan configures the package manager client.
		Conan ConanConfig `json:"conan" mapstructure:"conan"`
		// GitLab configures artifact downloads.
		GitLab GitLabConfig `json:"gitlab" mapstructure:"gitlab"`
		// Credentials configures the publish credential file.
		Credentials CredentialsConfig `json:"credentials" mapstructure:"credentials"`
		// Git configures the identity used for release commits.
		Git GitConfig `json:"git" mapstructure:"git"`
		// MirrorURL is the secondary remote `mirror` pushes to.
		MirrorURL string `json:"mirror_url" mapstructure:"mirror_url"`
		// UI holds user interface settings.
		UI UIConfig `json:"ui" mapstructure:"ui"`
	}

	// VersionFile describes one file carrying the embedded version.
	VersionFile struct {
		Path string `json:"path" mapstructure:"path"`
		// Kind defaults to regex.
		Kind VersionFileKind `json:"kind,omitempty" mapstructure:"kind"`
		// Pattern is a regular expression whose first capture group is the version.
		Pattern string `json:"pattern,omitempty" mapstructure:"pattern"`
		// Key is a dotted TOML key path.
		Key string `json:"key,omitempty" mapstructure:"key"`
	}

	// DeployedConfig configures the deployed source.
	DeployedConfig struct {
		// Latest is the fallback "latest stable" reference.
		Latest string `json:"latest" mapstructure:"latest"`
		// EnvVar names the environment variable overriding Latest.
		EnvVar string `json:"env_var" mapstructure:"env_var"`
		// RequireEnv makes EnvVar mandatory when no explicit reference is given.
		RequireEnv bool `json:"require_env" mapstructure:"require_env"`
	}

	// UpstreamConfig configures the upstream source.
	UpstreamConfig struct {
		// RecipeDir holds the conanfile used to read name and version.
		RecipeDir string `json:"recipe_dir" mapstructure:"recipe_dir"`
		// PackagesDir holds one prebuilt package folder per profile.
		PackagesDir string `json:"packages_dir" mapstructure:"packages_dir"`
		// Channel is the user/channel the prebuilt package is registered under.
		Channel string `json:"channel" mapstructure:"channel"`
	}

	// WorkspaceConfig configures the multi-repository checkout.
	WorkspaceConfig struct {
		// Dir is resolved against the binding checkout and must not contain it.
		Dir         string   `json:"dir" mapstructure:"dir"`
		BaseURL     string   `json:"base_url" mapstructure:"base_url"`
		NativeRepo  string   `json:"native_repo" mapstructure:"native_repo"`
		BindingRepo string   `json:"binding_repo" mapstructure:"binding_repo"`
		Fallback    string   `json:"fallback" mapstructure:"fallback"`
		Extra       []string `json:"extra,omitempty" mapstructure:"extra"`
	}

	// ToolchainConfig holds shell-word command lines for the binding toolchain.
	ToolchainConfig struct {
		Deps    string `json:"deps" mapstructure:"deps"`
		Test    string `json:"test" mapstructure:"test"`
		Lint    string `json:"lint" mapstructure:"lint"`
		Build   string `json:"build,omitempty" mapstructure:"build"`
		Package string `json:"package" mapstructure:"package"`
		Publish string `json:"publish" mapstructure:"publish"`
	}

	// ConanConfig configures the package manager client.
	ConanConfig struct {
		Binary string `json:"binary" mapstructure:"binary"`
		// ConfigURL is installed with `conan config install` after home isolation.
		ConfigURL string `json:"config_url,omitempty" mapstructure:"config_url"`
		// HomesDir holds isolated homes, relative to the working directory.
		HomesDir string `json:"homes_dir" mapstructure:"homes_dir"`
	}

	// GitLabConfig configures the CI artifact API.
	GitLabConfig struct {
		URL string `json:"url" mapstructure:"url"`
	}

	// CredentialsConfig configures the publish credential file.
	CredentialsConfig struct {
		EnvVar string `json:"env_var" mapstructure:"env_var"`
		// File is relative to the user's home directory.
		File string `json:"file" mapstructure:"file"`
		Key  string `json:"key" mapstructure:"key"`
	}

	// GitConfig sets the release commit author. Empty fields fall back to
	// the repository's git configuration.
	GitConfig struct {
		AuthorName  string `json:"author_name,omitempty" mapstructure:"author_name"`
		AuthorEmail string `json:"author_email,omitempty" mapstructure:"author_email"`
	}

	// UIConfig configures user interface settings.
	UIConfig struct {
		Verbose bool `json:"verbose" mapstructure:"verbose"`
	}
)

// Error implements the error interface.
func (e *InvalidVersionFileKindError) Error() string {
	return fmt.Sprintf("invalid version file kind %q (valid: regex, toml)", e.Value)
}

// Unwrap returns ErrInvalidVersionFileKind so callers can use errors.Is for programmatic detection.
func (e *InvalidVersionFileKindError) Unwrap() error { return ErrInvalidVersionFileKind }

// Validate returns an error if the VersionFileKind is not recognized.
// The zero value is valid and means regex.
func (k VersionFileKind) Validate() error {
	switch k {
	case "", VersionFileRegex, VersionFileTOML:
		return nil
	default:
		return &InvalidVersionFileKindError{Value: k}
	}
}

// EffectiveKind resolves the zero value to VersionFileRegex.
func (f VersionFile) EffectiveKind() VersionFileKind {
	if f.Kind == "" {
		return VersionFileRegex
	}
	return f.Kind
}

// Validate checks that the fields required by the kind are present.
func (f VersionFile) Validate() error {
	var errs []error
	if strings.TrimSpace(f.Path) == "" {
		errs = append(errs, errors.New("path must not be empty"))
	}
	if err := f.Kind.Validate(); err != nil {
		errs = append(errs, err)
	}
	switch f.EffectiveKind() {
	case VersionFileRegex:
		if f.Pattern == "" {
			errs = append(errs, errors.New("regex version files need a pattern"))
		}
	case VersionFileTOML:
		if f.Key == "" {
			errs = append(errs, errors.New("toml version files need a key"))
		}
	}
	if len(errs) > 0 {
		return &InvalidVersionFileError{Path: f.Path, FieldErrors: errs}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidVersionFileError) Error() string {
	return fmt.Sprintf("invalid version file %q: %v", e.Path, errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidVersionFile for errors.Is() compatibility.
func (e *InvalidVersionFileError) Unwrap() error { return ErrInvalidVersionFile }

// Validate checks cross-field constraints that the CUE schema cannot express.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.PackageName) == "" {
		errs = append(errs, errors.New("package_name must not be empty"))
	}
	if strings.TrimSpace(c.VendorDir) == "" {
		errs = append(errs, errors.New("vendor_dir must not be empty"))
	}
	for _, f := range c.VersionFiles {
		if err := f.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	seen := make(map[string]string)
	for profile, key := range c.Platforms {
		if strings.TrimSpace(key) == "" {
			errs = append(errs, fmt.Errorf("platforms[%s]: platform key must not be empty", profile))
			continue
		}
		if other, ok := seen[key]; ok {
			errs = append(errs, fmt.Errorf("platforms: profiles %q and %q share platform key %q", other, profile, key))
		}
		seen[key] = profile
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %d field error(s): %v", len(e.FieldErrors), errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// DefaultConfig returns the defaults matching the Ruby SDK layout.
func DefaultConfig() *Config {
	return &Config{
		PackageName:     "tanker",
		DevRef:          "tanker/dev@tanker/dev",
		DevChannel:      "tanker/dev",
		NativeSourceDir: "../sdk-native",
		VendorDir:       "vendor/libctanker",
		InstallOptions:  []string{"tanker:tankerlib_shared=True"},
		Generator:       "deploy",
		ExpectedArtifacts: []string{
			"vendor/libctanker/linux64/tanker/lib/libctanker.so",
			"vendor/libctanker/mac64/tanker/lib/libctanker.dylib",
		},
		VersionFiles: []VersionFile{
			{
				Path:    "lib/tanker/core/version.rb",
				Kind:    VersionFileRegex,
				Pattern: `VERSION = '([^']*)'`,
			},
		},
		Deployed: DeployedConfig{
			Latest: "tanker/latest-stable@tanker/stable",
			EnvVar: "TANKER_DEPLOYED_REF",
		},
		Upstream: UpstreamConfig{
			RecipeDir:   "../sdk-native",
			PackagesDir: "package",
			Channel:     "tanker/upstream",
		},
		Workspace: WorkspaceConfig{
			Dir:         ".tankerci/workspace",
			BaseURL:     "git@github.com:TankerHQ",
			NativeRepo:  "sdk-native",
			BindingRepo: "sdk-ruby",
			Fallback:    "master",
		},
		Toolchain: ToolchainConfig{
			Deps:    "bundle install",
			Test:    "bundle exec rake spec",
			Lint:    "bundle exec rake rubocop",
			Package: "bundle exec rake build",
			Publish: "bundle exec rake push",
		},
		Conan: ConanConfig{
			Binary:   "conan",
			HomesDir: ".conan-homes",
		},
		GitLab: GitLabConfig{
			URL: "https://gitlab.com/api/v4",
		},
		Credentials: CredentialsConfig{
			EnvVar: "GEM_HOST_API_KEY",
			File:   ".gem/credentials",
			Key:    ":rubygems_api_key",
		},
		MirrorURL: "git@github.com:TankerHQ/sdk-ruby",
	}
}
