// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/sentinel-tui/internal/api"
	"github.com/jeranaias/sentinel-tui/internal/console"
)

func newSuspendCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "suspend <user-id|username>",
		Short: "Suspend a risk user",
		Long: "Suspend a user listed on the risk board. A username is resolved against the\n" +
			"current risk users. Asks for confirmation unless --yes is given.",
		Example: "  sentinel suspend 42\n  sentinel suspend mallory --yes",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSuspend(cmd.Context(), args[0], yes)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "suspend without asking")
	return cmd
}

func (a *app) runSuspend(ctx context.Context, target string, yes bool) error {
	target = strings.TrimSpace(target)
	if target == "" {
		return fmt.Errorf("a user id or username is required")
	}

	env, err := a.openEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	if _, err := env.admin(); err != nil {
		return err
	}
	gen := env.manager.Generation()
	client, deauth := env.authed()

	user, err := resolveRiskUser(ctx, client, target)
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			deauth.Deauthenticate(err)
		}
		return env.sessionEnded(gen, err)
	}

	ok, err := a.requireConfirmation(console.SuspendPrompt(user.Username),
		ConfirmationOptions{ConfirmFlag: yes, JSONMode: a.jsonOutput})
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(a.stdout, DimStyle.Render("Cancelled"))
		return nil
	}

	poller := console.NewPoller(client, deauth, console.WithCycleTimeout(env.cfg.Server.PollTimeout()))
	defer poller.Stop()

	result, err := poller.Suspend(ctx, user.ID, user.Username)
	if err != nil {
		msg := console.SuspendFailedMessage + ": " + api.MessageOf(err, err.Error())
		return env.sessionEnded(gen, &ExitError{Code: ExitCode(err), Err: fmt.Errorf("%s", msg)})
	}

	message := result.Message
	if message == "" {
		message = console.SuspendSucceededMessage
	}
	if a.jsonOutput {
		return NewJSONResponse("suspend", map[string]any{
			"id":       user.ID,
			"username": user.Username,
			"message":  message,
		}).Print(a.stdout)
	}
	fmt.Fprintf(a.stdout, "%s %s (%s)\n", SuccessStyle.Render("✓"), message, user.Username)
	return nil
}

// resolveRiskUser finds target among the risk users. A numeric target not on
// the board is still accepted, with its id standing in for the name.
func resolveRiskUser(ctx context.Context, client *api.Client, target string) (api.RiskUser, error) {
	id, numErr := strconv.Atoi(target)

	users, err := client.RiskUsers(ctx)
	if err != nil {
		if numErr == nil {
			return api.RiskUser{ID: id, Username: target}, nil
		}
		return api.RiskUser{}, err
	}
	for _, u := range users {
		if (numErr == nil && u.ID == id) || strings.EqualFold(u.Username, target) {
			return u, nil
		}
	}
	if numErr == nil {
		return api.RiskUser{ID: id, Username: target}, nil
	}
	return api.RiskUser{}, fmt.Errorf("%w: %s", errUnknownRiskUser, target)
}
