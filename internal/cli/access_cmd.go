// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/sentinel-tui/internal/access"
	"github.com/jeranaias/sentinel-tui/internal/api"
)

// =============================================================================
// ACCESS
// =============================================================================

func newAccessCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "access <path>",
		Short: "Request access to a file",
		Long: "Ask the backend for access to a file path. Every attempt is monitored and\n" +
			"logged; a denial is reported to administrators. Exits 2 when denied.",
		Example: "  sentinel access /documents/report.pdf\n  sentinel access /confidential/salary_data.xlsx --json",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAccess(cmd.Context(), args[0])
		},
	}
}

func (a *app) runAccess(ctx context.Context, path string) error {
	env, err := a.openEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	if _, err := env.identity(); err != nil {
		return err
	}
	gen := env.manager.Generation()
	client, deauth := env.authed()

	res, err := access.NewWorkflow(client, deauth).Request(ctx, path)
	if err != nil {
		return err
	}
	if !env.manager.IsCurrent(gen) {
		return errSessionEnded
	}

	if a.jsonOutput {
		data := map[string]any{
			"path":       res.Path,
			"allowed":    res.Success,
			"message":    res.Message,
			"risk_level": res.RiskLevel,
			"at":         res.At.UTC().Format(time.RFC3339),
		}
		resp := NewJSONResponse("access", data)
		if !res.Success {
			resp = NewJSONErrorResponse("access", data, deniedError(res))
		}
		if err := resp.Print(a.stdout); err != nil {
			return err
		}
	} else {
		a.printAccessResult(res)
	}

	if !res.Success {
		return &ExitError{Code: ExitAccessDenied, Err: errAccessRefused, Silent: true}
	}
	return nil
}

func deniedError(res access.Result) error {
	if res.Cause != nil {
		return fmt.Errorf("%w: %v", errAccessRefused, res.Cause)
	}
	return fmt.Errorf("%w: %s", errAccessRefused, res.Message)
}

func (a *app) printAccessResult(res access.Result) {
	theme := a.themeOrDefault()
	w := a.stdout
	if res.Success {
		fmt.Fprintf(w, "%s %s\n", SuccessStyle.Render("✓ Access Granted"), theme.RiskBadge(res.RiskLevel))
		if res.Message != "" {
			fmt.Fprintln(w, "  "+res.Message)
		}
		return
	}

	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("✗ Access Denied"), theme.RiskBadge(res.RiskLevel))
	fmt.Fprintln(w, "  "+res.Message)
	if res.Cause != nil && !errors.Is(res.Cause, api.ErrUnauthorized) {
		fmt.Fprintln(w, DimStyle.Render("  "+res.Cause.Error()))
	}
	fmt.Fprintln(w, WarningStyle.Render("  "+access.DenialNotice))
}

// =============================================================================
// CATALOG
// =============================================================================

func newCatalogCmd(a *app) *cobra.Command {
	var guidelines bool
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the quick-access files",
		Long: "List the quick-access files offered by the portal. Restricted entries are\n" +
			"marked, but only the backend decides whether a request is allowed.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries := access.Catalog()
			if a.jsonOutput {
				items := make([]map[string]any, 0, len(entries))
				for _, e := range entries {
					items = append(items, map[string]any{"path": e.Path, "name": e.Name, "safe": e.Safe})
				}
				data := map[string]any{"files": items}
				if guidelines {
					data["guidelines"] = access.GuidelinesMarkdown()
				}
				return NewJSONResponse("catalog", data).Print(a.stdout)
			}

			fmt.Fprintln(a.stdout, TitleStyle.Render("Quick Access"))
			fmt.Fprintln(a.stdout, DimStyle.Render(strings.Repeat("=", 60)))
			for _, e := range entries {
				mark := SuccessStyle.Render("✓")
				if !e.Safe {
					mark = WarningStyle.Render("!")
				}
				fmt.Fprintf(a.stdout, "%s %s %s\n", mark, column(e.Name, 32), DimStyle.Render(e.Path))
			}
			fmt.Fprintln(a.stdout)
			fmt.Fprintln(a.stdout, WarningStyle.Render(access.MonitoringBanner))

			if guidelines {
				style := "notty"
				if isTerminal(a.stdout) {
					style = a.themeOrDefault().GlamourStyle()
				}
				fmt.Fprintln(a.stdout, access.RenderGuidelines(terminalWidth(a.stdout), style))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&guidelines, "guidelines", false, "also print the access guidelines")
	return cmd
}
