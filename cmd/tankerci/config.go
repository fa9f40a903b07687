// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/tankerhq/tankerci/internal/config"

	"github.com/spf13/cobra"
)

// newConfigCommand creates the `tankerci config` command tree.
func newConfigCommand(app *App, flags *rootFlags) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect tankerci configuration",
		Long: `Inspect tankerci configuration.

Configuration is read from, in order:
  - the file given with --config
  - config.cue in the user configuration directory
  - tankerci.cue in the working directory
Built-in defaults match the Ruby SDK layout.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig(cmd.Context(), flags)
			if err != nil {
				return handleError(cmd, err, "load configuration", flags.verbose)
			}
			path, _ := config.ResolvedPath(config.LoadOptions{ConfigFilePath: flags.configFile, BaseDir: app.Workdir})
			showConfig(cmd.OutOrStdout(), cfg, path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show which configuration file is used",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if dir, err := config.ConfigDir(); err == nil {
				fmt.Fprintf(out, "Config directory: %s\n", dir)
			}
			path, err := config.ResolvedPath(config.LoadOptions{ConfigFilePath: flags.configFile, BaseDir: app.Workdir})
			if err != nil {
				return handleError(cmd, err, "resolve configuration file", flags.verbose)
			}
			if path == "" {
				path = "(using defaults)"
			}
			fmt.Fprintf(out, "Config file: %s\n", path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig(cmd.Context(), flags)
			if err != nil {
				return handleError(cmd, err, "load configuration", flags.verbose)
			}
			cueContent, err := config.GenerateCUE(cfg)
			if err != nil {
				return handleError(cmd, err, "render configuration", flags.verbose)
			}
			fmt.Fprint(cmd.OutOrStdout(), cueContent)
			return nil
		},
	})

	return cfgCmd
}

func showConfig(w io.Writer, cfg *config.Config, path string) {
	keyStyle := CmdStyle
	valueStyle := SuccessStyle
	line := func(key, value string) {
		if value == "" {
			value = SubtitleStyle.Render("(none)")
		} else {
			value = valueStyle.Render(value)
		}
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render(key), value)
	}

	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)
	if path == "" {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	} else {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), path)
	}
	fmt.Fprintln(w)

	line("package_name", cfg.PackageName)
	line("dev_ref", cfg.DevRef)
	line("native_source_dir", cfg.NativeSourceDir)
	line("vendor_dir", cfg.VendorDir)
	line("install_options", strings.Join(cfg.InstallOptions, " "))
	line("deployed.latest", cfg.Deployed.Latest)
	line("deployed.env_var", cfg.Deployed.EnvVar)
	line("deployed.require_env", fmt.Sprint(cfg.Deployed.RequireEnv))
	line("upstream.channel", cfg.Upstream.Channel)
	line("mirror_url", cfg.MirrorURL)

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("platforms"))
	if len(cfg.Platforms) == 0 {
		fmt.Fprintf(w, "  %s\n", SubtitleStyle.Render("(inferred from profile names)"))
	}
	profiles := make([]string, 0, len(cfg.Platforms))
	for p := range cfg.Platforms {
		profiles = append(profiles, p)
	}
	slices.Sort(profiles)
	for _, p := range profiles {
		fmt.Fprintf(w, "  %s → %s\n", p, valueStyle.Render(cfg.Platforms[p]))
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("expected_artifacts"))
	for _, a := range cfg.ExpectedArtifacts {
		fmt.Fprintf(w, "  - %s\n", valueStyle.Render(a))
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("version_files"))
	for _, f := range cfg.VersionFiles {
		fmt.Fprintf(w, "  - %s (%s)\n", valueStyle.Render(f.Path), f.EffectiveKind())
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("toolchain"))
	fmt.Fprintf(w, "  deps: %s\n", valueStyle.Render(cfg.Toolchain.Deps))
	fmt.Fprintf(w, "  test: %s\n", valueStyle.Render(cfg.Toolchain.Test))
	fmt.Fprintf(w, "  lint: %s\n", valueStyle.Render(cfg.Toolchain.Lint))
	fmt.Fprintf(w, "  package: %s\n", valueStyle.Render(cfg.Toolchain.Package))
	fmt.Fprintf(w, "  publish: %s\n", valueStyle.Render(cfg.Toolchain.Publish))
}
