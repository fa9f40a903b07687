// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/tankerhq/tankerci/internal/issue"
	"github.com/tankerhq/tankerci/pkg/platform"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/format"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "tankerci"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// LocalConfigFile is looked up in the working directory when the
	// configuration directory has no config file.
	LocalConfigFile = AppName + "." + ConfigFileExt

	// maxConfigFileSize guards against accidentally pointing --config at a large file.
	maxConfigFileSize = 1 << 20
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the tankerci configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case platform.Windows:
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case platform.Darwin:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// loadWithOptions performs option-driven config loading. It returns the
// configuration and the path it was read from ("" when defaults were used).
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	resolvedPath, err := resolveConfigPath(opts)
	if err != nil {
		return nil, "", err
	}

	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(resolvedPath).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(err).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

// resolveConfigPath applies the lookup order: explicit file, then
// <config dir>/config.cue, then ./tankerci.cue. An explicit file must exist.
func resolveConfigPath(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'tankerci config show' to see the default configuration").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	cfgDir := opts.ConfigDirPath
	if cfgDir == "" {
		dir, err := ConfigDir()
		if err != nil {
			return "", err
		}
		cfgDir = dir
	}

	cuePath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
	if fileExists(cuePath) {
		return cuePath, nil
	}

	localPath := LocalConfigFile
	if opts.BaseDir != "" {
		localPath = filepath.Join(opts.BaseDir, LocalConfigFile)
	}
	if fileExists(localPath) {
		return localPath, nil
	}

	return "", nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("package_name", d.PackageName)
	v.SetDefault("dev_ref", d.DevRef)
	v.SetDefault("dev_channel", d.DevChannel)
	v.SetDefault("native_source_dir", d.NativeSourceDir)
	v.SetDefault("vendor_dir", d.VendorDir)
	v.SetDefault("install_options", d.InstallOptions)
	v.SetDefault("generator", d.Generator)
	v.SetDefault("expected_artifacts", d.ExpectedArtifacts)
	v.SetDefault("version_files", versionFilesToMaps(d.VersionFiles))
	v.SetDefault("deployed.latest", d.Deployed.Latest)
	v.SetDefault("deployed.env_var", d.Deployed.EnvVar)
	v.SetDefault("deployed.require_env", d.Deployed.RequireEnv)
	v.SetDefault("upstream.recipe_dir", d.Upstream.RecipeDir)
	v.SetDefault("upstream.packages_dir", d.Upstream.PackagesDir)
	v.SetDefault("upstream.channel", d.Upstream.Channel)
	v.SetDefault("workspace.dir", d.Workspace.Dir)
	v.SetDefault("workspace.base_url", d.Workspace.BaseURL)
	v.SetDefault("workspace.native_repo", d.Workspace.NativeRepo)
	v.SetDefault("workspace.binding_repo", d.Workspace.BindingRepo)
	v.SetDefault("workspace.fallback", d.Workspace.Fallback)
	v.SetDefault("toolchain.deps", d.Toolchain.Deps)
	v.SetDefault("toolchain.test", d.Toolchain.Test)
	v.SetDefault("toolchain.lint", d.Toolchain.Lint)
	v.SetDefault("toolchain.build", d.Toolchain.Build)
	v.SetDefault("toolchain.package", d.Toolchain.Package)
	v.SetDefault("toolchain.publish", d.Toolchain.Publish)
	v.SetDefault("conan.binary", d.Conan.Binary)
	v.SetDefault("conan.config_url", d.Conan.ConfigURL)
	v.SetDefault("conan.homes_dir", d.Conan.HomesDir)
	v.SetDefault("gitlab.url", d.GitLab.URL)
	v.SetDefault("credentials.env_var", d.Credentials.EnvVar)
	v.SetDefault("credentials.file", d.Credentials.File)
	v.SetDefault("credentials.key", d.Credentials.Key)
	v.SetDefault("git.author_name", d.Git.AuthorName)
	v.SetDefault("git.author_email", d.Git.AuthorEmail)
	v.SetDefault("mirror_url", d.MirrorURL)
	v.SetDefault("ui.verbose", d.UI.Verbose)
}

func versionFilesToMaps(files []VersionFile) []map[string]any {
	out := make([]map[string]any, 0, len(files))
	for _, f := range files {
		out = append(out, map[string]any{
			"path":    f.Path,
			"kind":    string(f.Kind),
			"pattern": f.Pattern,
			"key":     f.Key,
		})
	}
	return out
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if len(data) > maxConfigFileSize {
		return fmt.Errorf("config file %s is larger than %d bytes", path, maxConfigFileSize)
	}

	configMap, err := decodeCUE(data, path)
	if err != nil {
		return err
	}

	// Merge into Viper (preserves defaults for omitted keys)
	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}

	return nil
}

// decodeCUE validates data against #Config and decodes it to a map.
func decodeCUE(data []byte, path string) (map[string]any, error) {
	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return nil, fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return nil, fmt.Errorf("%s: %w", path, userValue.Err())
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return configMap, nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// GenerateCUE renders the configuration as a CUE document.
func GenerateCUE(cfg *Config) (string, error) {
	ctx := cuecontext.New()
	val := ctx.Encode(cfg)
	if val.Err() != nil {
		return "", fmt.Errorf("failed to encode config: %w", val.Err())
	}

	src, err := format.Node(val.Syntax())
	if err != nil {
		return "", fmt.Errorf("failed to format config: %w", err)
	}

	return "// tankerci configuration\n" + string(src), nil
}
