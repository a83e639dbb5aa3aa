// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jeranaias/sentinel-tui/internal/config"
	"github.com/jeranaias/sentinel-tui/internal/logging"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// app holds state shared by every command of one invocation.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	// Global flags
	configPath string
	serverURL  string
	verbose    bool
	jsonOutput bool

	cfg *config.Config

	// newPrompter overrides the terminal prompter. Tests set it.
	newPrompter func() prompter
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	return &app{stdin: in, stdout: out, stderr: errOut}
}

// NewRootCommand returns the sentinel command tree wired to the process's
// standard streams.
func NewRootCommand() *cobra.Command {
	return newApp(os.Stdin, os.Stdout, os.Stderr).rootCommand()
}

// NewRootCommandWithIO returns the command tree wired to the given streams.
func NewRootCommandWithIO(in io.Reader, out, errOut io.Writer) *cobra.Command {
	return newApp(in, out, errOut).rootCommand()
}

func (a *app) rootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sentinel",
		Short: "Terminal client for the security monitoring console",
		Long: "sentinel signs operators and employees in to the security monitoring backend.\n" +
			"Operators watch login, file access and risk telemetry and suspend accounts;\n" +
			"employees request file access. Run without a command to start the TUI.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runTUI(cmd.Context())
		},
	}
	cmd.SetIn(a.stdin)
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default ~/.sentinel/config.toml)")
	cmd.PersistentFlags().StringVar(&a.serverURL, "server", "", "backend API base URL")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log at the configured level instead of warnings only")
	cmd.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "print machine-readable JSON")

	cmd.AddCommand(
		newTUICmd(a),
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newWatchCmd(a),
		newSuspendCmd(a),
		newAccessCmd(a),
		newCatalogCmd(a),
		newConfigCmd(a),
		newVersionCmd(a),
	)
	return cmd
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(os.Stdin, os.Stdout, os.Stderr)
	cmd, err := a.rootCommand().ExecuteContextC(ctx)
	if err != nil && !isSilent(err) {
		a.reportError(cmd, err)
	}
	return ExitCode(err)
}

// reportError prints err as a JSON envelope on stdout in --json mode and as
// a styled line on stderr otherwise.
func (a *app) reportError(cmd *cobra.Command, err error) {
	if a.jsonOutput && cmd != nil {
		if perr := NewJSONErrorResponse(strings.TrimPrefix(cmd.CommandPath(), "sentinel "), nil, err).Print(a.stdout); perr == nil {
			return
		}
	}
	fmt.Fprintln(a.stderr, ErrorStyle.Render("Error:"), err)
}

// =============================================================================
// CONFIGURATION AND LOGGING
// =============================================================================

// config loads the configuration once per invocation and points the logger
// at stderr. Commands that never need it (config path, version) skip it.
func (a *app) config() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}

	var (
		cfg *config.Config
		err error
	)
	if a.configPath != "" {
		cfg, err = config.LoadFromPath(a.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, &ExitError{Code: ExitConfigError, Err: err}
	}
	if a.serverURL != "" {
		cfg.Server.URL = a.serverURL
		cfg.SetDefaults()
		if err := cfg.Validate(); err != nil {
			return nil, &ExitError{Code: ExitConfigError, Err: err}
		}
	}

	level := "warn"
	if a.verbose {
		level = cfg.Logging.Level
	}
	logging.Init(logging.Config{Level: level, Format: "console", Output: a.stderr})

	a.cfg = cfg
	return cfg, nil
}

func (a *app) resolveConfigPath() (string, error) {
	if a.configPath != "" {
		return a.configPath, nil
	}
	return config.ConfigPath()
}

// =============================================================================
// TUI
// =============================================================================

func newTUICmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Start the full-screen console (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runTUI(cmd.Context())
		},
	}
}

var errNoTerminal = errors.New("the TUI needs a terminal; use the other commands from scripts")

func (a *app) runTUI(ctx context.Context) error {
	if !isTerminal(a.stdin) || !isTerminal(a.stdout) {
		return errNoTerminal
	}
	cfg, err := a.config()
	if err != nil {
		return err
	}

	// The TUI owns the terminal, so logs go to a file.
	logFile, err := logging.OpenFile(cfg.Logging.File)
	if err != nil {
		return err
	}
	defer logFile.Close()
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: logFile})

	env, err := a.openEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	return runUI(ctx, env)
}
