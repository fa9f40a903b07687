// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/tankerhq/tankerci/internal/conan"
	"github.com/tankerhq/tankerci/internal/config"
	"github.com/tankerhq/tankerci/internal/metrics"
	"github.com/tankerhq/tankerci/internal/release"
	"github.com/tankerhq/tankerci/internal/runner"
	"github.com/tankerhq/tankerci/internal/source"
	"github.com/tankerhq/tankerci/internal/toolchain"
	"github.com/tankerhq/tankerci/internal/vcs"
	"github.com/tankerhq/tankerci/pkg/platform"

	"github.com/charmbracelet/log"
)

const defaultHTTPTimeout = 10 * time.Minute

type (
	// App wires CLI services and shared dependencies. It is the composition
	// root for the CLI layer: every Cobra handler receives an App and builds
	// a session from it.
	App struct {
		Config     config.Provider
		Runner     runner.Runner
		HTTPClient *http.Client
		Host       platform.Host
		Getenv     func(string) string
		// Workdir is the binding checkout every command operates on.
		Workdir string
		// HomeDir receives the publish credentials. Empty means the user's home.
		HomeDir string
		stdout  io.Writer
		stderr  io.Writer
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config     config.Provider
		Runner     runner.Runner
		HTTPClient *http.Client
		Host       platform.Host
		Getenv     func(string) string
		Workdir    string
		HomeDir    string
		Stdout     io.Writer
		Stderr     io.Writer
	}

	// rootFlags holds the global flags shared by every subcommand.
	rootFlags struct {
		isolateHome bool
		remote      string
		configFile  string
		verbose     bool
		metricsFile string
	}

	// session is the per-invocation state built from the App and the
	// global flags.
	session struct {
		cfg      *config.Config
		logger   *log.Logger
		verbose  bool
		root     string
		runner   runner.Runner
		conan    *conan.Client
		resolver *source.Resolver
		metrics  *metrics.Stages
		pipeline *release.Pipeline
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) (*App, error) {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.HTTPClient == nil {
		deps.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if deps.Host == (platform.Host{}) {
		deps.Host = platform.Current()
	}
	if deps.Getenv == nil {
		deps.Getenv = os.Getenv
	}
	if deps.Workdir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		deps.Workdir = wd
	}

	return &App{
		Config:     deps.Config,
		Runner:     deps.Runner,
		HTTPClient: deps.HTTPClient,
		Host:       deps.Host,
		Getenv:     deps.Getenv,
		Workdir:    deps.Workdir,
		HomeDir:    deps.HomeDir,
		stdout:     deps.Stdout,
		stderr:     deps.Stderr,
	}, nil
}

func newLogger(w io.Writer, verbose bool) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{Prefix: "tankerci"})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

// loadConfig reads the configuration selected by the global flags.
func (a *App) loadConfig(ctx context.Context, flags *rootFlags) (*config.Config, error) {
	return a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: flags.configFile, BaseDir: a.Workdir})
}

// newSession loads the configuration and acquires the conan home for this
// invocation. The home is the only process-wide resource; everything that
// runs conan receives it through the client.
func (a *App) newSession(ctx context.Context, flags *rootFlags) (*session, error) {
	cfg, err := a.loadConfig(ctx, flags)
	if err != nil {
		return nil, err
	}
	verbose := flags.verbose || cfg.UI.Verbose
	logger := newLogger(a.stderr, verbose)

	r := a.Runner
	if r == nil {
		r = runner.New(logger, a.stdout, a.stderr)
	}

	home := conan.SharedHome()
	if flags.isolateHome {
		home, err = conan.IsolatedHome(a.Workdir, cfg.Conan.HomesDir, conan.InvocationID(a.Getenv))
		if err != nil {
			return nil, err
		}
		logger.Info("isolated conan home", "dir", home.Dir())
	}
	client := conan.NewClient(r, cfg.Conan.Binary, home).WithRemote(flags.remote)
	if home.Isolated() && cfg.Conan.ConfigURL != "" {
		if err := client.ConfigInstall(ctx, cfg.Conan.ConfigURL); err != nil {
			return nil, err
		}
	}

	resolver := source.NewResolver(cfg, a.Workdir, client,
		source.WithWorkspaces(vcs.NewWorkspaces(logger, vcs.WithLogger(logger))),
		source.WithGetenv(a.Getenv),
		source.WithLogger(logger),
	)

	var stages *metrics.Stages
	if flags.metricsFile != "" {
		stages = metrics.NewStages()
	}

	s := &session{
		cfg:      cfg,
		logger:   logger,
		verbose:  verbose,
		root:     a.Workdir,
		runner:   r,
		conan:    client,
		resolver: resolver,
		metrics:  stages,
	}
	s.pipeline = release.New(release.Deps{
		Config:    cfg,
		Root:      a.Workdir,
		Resolver:  resolver,
		Conan:     client,
		Toolchain: toolchain.New(r, cfg.Toolchain, a.Workdir, a.Getenv),
		Mapper:    source.PlatformMapper{Table: cfg.Platforms, Host: a.Host},
		Metrics:   stages,
		Logger:    logger,
		HomeDir:   a.HomeDir,
		Getenv:    a.Getenv,
	})
	return s, nil
}

// openRepo opens the binding checkout with the configured commit identity.
func (s *session) openRepo() (*vcs.Repo, error) {
	return vcs.Open(s.root,
		vcs.WithLogger(s.logger),
		vcs.WithAuthor(vcs.Author{Name: s.cfg.Git.AuthorName, Email: s.cfg.Git.AuthorEmail}),
	)
}

// flushMetrics writes the stage metrics when --metrics-file was given.
func (s *session) flushMetrics(path string) {
	if err := s.metrics.WriteFile(path); err != nil {
		s.logger.Warn("could not write metrics", "path", path, "err", err)
	}
}
