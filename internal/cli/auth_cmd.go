// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/sentinel-tui/internal/session"
)

// =============================================================================
// LOGIN
// =============================================================================

func newLoginCmd(a *app) *cobra.Command {
	var (
		username      string
		passwordStdin bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		Long: "Sign in to the backend. The token and identity are stored so later commands\n" +
			"and the TUI start signed in. Prompts for missing credentials on a terminal.",
		Example: "  sentinel login\n  echo \"$PASSWORD\" | sentinel login -u admin --password-stdin",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := a.openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			if identity, ok := env.manager.Identity(); ok {
				return fmt.Errorf("already logged in as %s; run 'sentinel logout' first", identity.Username)
			}

			password := ""
			if passwordStdin {
				password, err = readLine(a)
				if err != nil {
					return err
				}
			}
			if username == "" || password == "" {
				p, err := a.prompter("prompt for credentials")
				if err != nil {
					return err
				}
				if username == "" {
					username, err = p.Prompt("Username: ")
				}
				if err == nil && password == "" {
					password, err = p.PasswordPrompt("Password: ")
				}
				p.Close()
				if err != nil {
					return fmt.Errorf("failed to read credentials: %w", err)
				}
			}

			result, err := env.manager.Login(cmd.Context(), username, password)
			if err != nil {
				return &ExitError{Code: ExitCode(err), Err: errors.New(session.FailureMessage(err))}
			}
			return a.printLogin(result)
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account name")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	return cmd
}

func readLine(a *app) (string, error) {
	line, err := bufio.NewReader(a.stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read password from stdin: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (a *app) printLogin(result session.LoginResult) error {
	if a.jsonOutput {
		return NewJSONResponse("login", map[string]any{
			"username":   result.Identity.Username,
			"role":       result.Identity.Role,
			"suspicious": result.Identity.IsSuspicious,
			"notice":     result.Notice,
		}).Print(a.stdout)
	}
	fmt.Fprintf(a.stdout, "%s Logged in as %s (%s)\n",
		SuccessStyle.Render("✓"), result.Identity.Username, result.Identity.Role)
	if result.Notice != "" {
		fmt.Fprintln(a.stdout, WarningStyle.Render("! "+result.Notice))
	}
	return nil
}

// =============================================================================
// LOGOUT
// =============================================================================

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := a.openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			identity, ok := env.manager.Identity()
			if !ok {
				fmt.Fprintln(a.stdout, DimStyle.Render("Not logged in"))
				return nil
			}
			if err := env.manager.Logout(cmd.Context()); err != nil {
				return fmt.Errorf("logged out, but the stored session could not be removed: %w", err)
			}
			fmt.Fprintf(a.stdout, "Logged out %s\n", identity.Username)
			return nil
		},
	}
}

// =============================================================================
// WHOAMI
// =============================================================================

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := a.openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			identity, err := env.identity()
			if err != nil {
				return err
			}
			exp, hasExp := env.manager.TokenExpiry()

			if a.jsonOutput {
				data := map[string]any{
					"id":         identity.ID,
					"username":   identity.Username,
					"role":       identity.Role,
					"suspicious": identity.IsSuspicious,
					"server":     env.cfg.Server.URL,
				}
				if hasExp {
					data["expires_at"] = exp.UTC().Format(time.RFC3339)
				}
				return NewJSONResponse("whoami", data).Print(a.stdout)
			}

			fmt.Fprintln(a.stdout, LabelStyle.Render("User")+identity.Username)
			fmt.Fprintln(a.stdout, LabelStyle.Render("Role")+string(identity.Role))
			fmt.Fprintln(a.stdout, LabelStyle.Render("Server")+env.cfg.Server.URL)
			if left, ok := env.manager.Remaining(); ok {
				fmt.Fprintln(a.stdout, LabelStyle.Render("Session")+session.FormatRemaining(left))
			}
			return nil
		},
	}
}
