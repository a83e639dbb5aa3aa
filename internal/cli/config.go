// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/jeranaias/sentinel-tui/internal/config"
	"github.com/jeranaias/sentinel-tui/internal/util"
)

// =============================================================================
// CONFIG COMMAND
// =============================================================================

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long: "Show or edit the configuration file. Keys use dot notation, e.g. server.url.\n" +
			"Environment variables (SENTINEL_*) override the file at run time.",
		Example: "  sentinel config\n" +
			"  sentinel config set server.url https://sec.example.com/api\n" +
			"  sentinel config get ui.theme",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.configShow()
		},
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show the effective configuration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.configShow()
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Show the configuration file path",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				path, err := a.resolveConfigPath()
				if err != nil {
					return &ExitError{Code: ExitConfigError, Err: err}
				}
				if a.jsonOutput {
					return NewJSONResponse("config path", map[string]any{
						"path":   path,
						"exists": util.FileExists(path),
					}).Print(a.stdout)
				}
				fmt.Fprintln(a.stdout, path)
				return nil
			},
		},
		newConfigInitCmd(a),
		&cobra.Command{
			Use:   "get <key>",
			Short: "Print one configuration value",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := a.config()
				if err != nil {
					return err
				}
				value, err := cfg.Get(args[0])
				if err != nil {
					return &ExitError{Code: ExitConfigError, Err: err}
				}
				if a.jsonOutput {
					return NewJSONResponse("config get", map[string]any{"key": args[0], "value": value}).Print(a.stdout)
				}
				fmt.Fprintln(a.stdout, value)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Set a value in the configuration file",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.configSet(args[0], args[1])
			},
		},
		&cobra.Command{
			Use:   "keys",
			Short: "List the settable keys",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if a.jsonOutput {
					return NewJSONResponse("config keys", config.Keys()).Print(a.stdout)
				}
				fmt.Fprintln(a.stdout, strings.Join(config.Keys(), "\n"))
				return nil
			},
		},
	)
	return cmd
}

func (a *app) configShow() error {
	cfg, err := a.config()
	if err != nil {
		return err
	}
	if a.jsonOutput {
		return NewJSONResponse("config show", cfg).Print(a.stdout)
	}

	path, _ := a.resolveConfigPath()
	fmt.Fprintln(a.stdout, DimStyle.Render("# "+path))
	return toml.NewEncoder(a.stdout).Encode(cfg)
}

func newConfigInitCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := a.resolveConfigPath()
			if err != nil {
				return &ExitError{Code: ExitConfigError, Err: err}
			}
			if util.FileExists(path) && !force {
				return &ExitError{Code: ExitConfigError,
					Err: fmt.Errorf("%s already exists; pass --force to overwrite", path)}
			}
			if err := config.SaveTOML(config.Default(), path); err != nil {
				return &ExitError{Code: ExitConfigError, Err: err}
			}
			fmt.Fprintf(a.stdout, "%s Wrote %s\n", SuccessStyle.Render("✓"), path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

// configSet edits the file itself, so environment overrides in effect are
// not written back.
func (a *app) configSet(key, value string) error {
	path, err := a.resolveConfigPath()
	if err != nil {
		return &ExitError{Code: ExitConfigError, Err: err}
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return &ExitError{Code: ExitConfigError, Err: err}
	}
	if err := cfg.Set(key, value); err != nil {
		return &ExitError{Code: ExitConfigError, Err: err}
	}

	check := *cfg
	check.SetDefaults()
	if err := check.Validate(); err != nil {
		return &ExitError{Code: ExitConfigError, Err: err}
	}
	if err := config.SaveTOML(cfg, path); err != nil {
		return &ExitError{Code: ExitConfigError, Err: err}
	}

	if a.jsonOutput {
		return NewJSONResponse("config set", map[string]any{"key": key, "value": value, "path": path}).Print(a.stdout)
	}
	fmt.Fprintf(a.stdout, "%s %s = %s\n", SuccessStyle.Render("✓"), key, value)
	return nil
}

// =============================================================================
// VERSION
// =============================================================================

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.jsonOutput {
				return NewJSONResponse("version", map[string]string{
					"version":    Version,
					"git_commit": GitCommit,
					"build_date": BuildDate,
				}).Print(a.stdout)
			}
			fmt.Fprintf(a.stdout, "sentinel %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
			return nil
		},
	}
}
