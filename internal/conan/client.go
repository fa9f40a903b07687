// SPDX-License-Identifier: MPL-2.0

package conan

import (
	"context"
	"fmt"
	"strings"

	"github.com/tankerhq/tankerci/internal/runner"

	"gopkg.in/yaml.v3"
)

type (
	// Client wraps the conan CLI.
	Client struct {
		runner runner.Runner
		binary string
		home   *Home
		remote string
	}

	// InstallRequest describes one `conan install`.
	InstallRequest struct {
		Ref           string
		Profile       string
		InstallFolder string
		Options       []string
		Generator     string
		ExtraFlags    []string
		Update        bool
		// Dir is the working directory the install runs from.
		Dir string
	}

	// ExportPkgRequest registers an already-built package folder under Ref.
	ExportPkgRequest struct {
		RecipeDir     string
		Ref           string
		Profile       string
		PackageFolder string
	}

	// Metadata is the subset of recipe attributes the orchestrator reads.
	Metadata struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	}
)

// NewClient creates a Client running binary ("conan" when empty) with the
// environment of home.
func NewClient(r runner.Runner, binary string, home *Home) *Client {
	if binary == "" {
		binary = "conan"
	}
	if home == nil {
		home = SharedHome()
	}
	return &Client{runner: r, binary: binary, home: home}
}

// WithRemote returns a copy of the client that installs from remote only.
func (c *Client) WithRemote(remote string) *Client {
	cp := *c
	cp.remote = remote
	return &cp
}

// Home returns the cache handle the client was created with.
func (c *Client) Home() *Home {
	return c.home
}

func (c *Client) command(args ...string) runner.Command {
	return runner.Command{Name: c.binary, Args: args}.WithEnv(c.home.Env())
}

// Install materializes Ref into InstallFolder.
func (c *Client) Install(ctx context.Context, req InstallRequest) error {
	if req.Ref == "" {
		return fmt.Errorf("conan install: empty reference")
	}
	args := []string{"install", req.Ref}
	if req.Update {
		args = append(args, "--update")
	}
	if req.Profile != "" {
		args = append(args, "--profile", req.Profile)
	}
	for _, opt := range req.Options {
		args = append(args, "--options", opt)
	}
	if req.InstallFolder != "" {
		args = append(args, "--install-folder", req.InstallFolder)
	}
	if req.Generator != "" {
		args = append(args, "--generator", req.Generator)
	}
	if c.remote != "" {
		args = append(args, "--remote", c.remote)
	}
	args = append(args, req.ExtraFlags...)

	if err := c.runner.Run(ctx, c.command(args...).WithDir(req.Dir)); err != nil {
		return fmt.Errorf("install %s for profile %s: %w", req.Ref, req.Profile, err)
	}
	return nil
}

// Export copies the recipe in srcDir into the local cache under refOrChannel.
func (c *Client) Export(ctx context.Context, srcDir, refOrChannel string) error {
	if err := c.runner.Run(ctx, c.command("export", srcDir, refOrChannel)); err != nil {
		return fmt.Errorf("export %s as %s: %w", srcDir, refOrChannel, err)
	}
	return nil
}

// ExportPkg registers a prebuilt package folder so installs of Ref are satisfied without building.
func (c *Client) ExportPkg(ctx context.Context, req ExportPkgRequest) error {
	args := []string{"export-pkg", req.RecipeDir, req.Ref}
	if req.Profile != "" {
		args = append(args, "--profile", req.Profile)
	}
	args = append(args, "--package-folder", req.PackageFolder, "--force")
	if err := c.runner.Run(ctx, c.command(args...)); err != nil {
		return fmt.Errorf("export-pkg %s from %s: %w", req.Ref, req.PackageFolder, err)
	}
	return nil
}

// Remove evicts every cached package matching pattern.
func (c *Client) Remove(ctx context.Context, pattern string) error {
	if err := c.runner.Run(ctx, c.command("remove", pattern, "--force")); err != nil {
		return fmt.Errorf("remove %s from cache: %w", pattern, err)
	}
	return nil
}

// Inspect reads the name and version attributes of the recipe in recipeDir.
func (c *Client) Inspect(ctx context.Context, recipeDir string) (Metadata, error) {
	out, err := c.runner.Output(ctx, c.command("inspect", recipeDir, "--attribute", "name", "--attribute", "version"))
	if err != nil {
		return Metadata{}, fmt.Errorf("inspect %s: %w", recipeDir, err)
	}
	return ParseMetadata(out)
}

// ConfigInstall installs shared remotes and profiles from url into the current home.
func (c *Client) ConfigInstall(ctx context.Context, url string) error {
	if err := c.runner.Run(ctx, c.command("config", "install", url)); err != nil {
		return fmt.Errorf("config install %s: %w", url, err)
	}
	return nil
}

// ParseMetadata decodes `conan inspect` output ("name: x" lines).
func ParseMetadata(out string) (Metadata, error) {
	var md Metadata
	if err := yaml.Unmarshal([]byte(out), &md); err != nil {
		return Metadata{}, fmt.Errorf("parse inspect output: %w", err)
	}
	md.Name = strings.TrimSpace(md.Name)
	md.Version = strings.TrimSpace(md.Version)
	if md.Name == "" || md.Version == "" {
		return Metadata{}, fmt.Errorf("inspect output lacks name or version: %q", out)
	}
	return md, nil
}

// Reference formats name/version@channel.
func (m Metadata) Reference(channel string) string {
	ref := m.Name + "/" + m.Version
	if channel != "" {
		ref += "@" + channel
	}
	return ref
}
