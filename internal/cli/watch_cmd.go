// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/sentinel-tui/internal/api"
	"github.com/jeranaias/sentinel-tui/internal/console"
	"github.com/jeranaias/sentinel-tui/internal/session"
	"github.com/jeranaias/sentinel-tui/internal/ui/styles"
	"github.com/jeranaias/sentinel-tui/internal/util"
)

const (
	watchTimeLayout = "2006-01-02 15:04:05"
	watchBarWidth   = 10
)

type watchOptions struct {
	interval time.Duration
	once     bool
	count    int
	limit    int
}

func newWatchCmd(a *app) *cobra.Command {
	var opts watchOptions
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print the operator console on every refresh",
		Long: "Poll the dashboard, login, file access and risk endpoints together and print\n" +
			"each snapshot. A failed cycle keeps the previous data. Needs an admin session.",
		Example: "  sentinel watch\n  sentinel watch --once --json\n  sentinel watch --count 3 --limit 5",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runWatch(cmd.Context(), opts)
		},
	}
	cmd.Flags().DurationVar(&opts.interval, "interval", console.RefreshInterval, "time between refreshes")
	cmd.Flags().BoolVar(&opts.once, "once", false, "refresh once and exit")
	cmd.Flags().IntVar(&opts.count, "count", 0, "exit after this many snapshots (0 runs until interrupted)")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "show at most this many risk users (0 shows all)")
	return cmd
}

func (a *app) runWatch(ctx context.Context, opts watchOptions) error {
	if opts.count < 0 || opts.limit < 0 {
		return fmt.Errorf("--count and --limit must not be negative")
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
	poller := console.NewPoller(client, deauth, console.WithCycleTimeout(env.cfg.Server.PollTimeout()))
	theme := a.themeOrDefault()

	if opts.once {
		defer poller.Stop()
		if _, err := poller.Refresh(ctx); err != nil {
			return env.sessionEnded(gen, err)
		}
		return a.printSnapshot(poller.Snapshot(), theme, opts.limit)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	unsubscribe := env.manager.Subscribe(func(ev session.Event) {
		if ev.Kind == session.EventDeauthenticated {
			cancel()
		}
	})
	defer unsubscribe()

	printed := 0
	runner := console.NewRunner(poller, opts.interval, func(r console.CycleReport) {
		switch r.Outcome {
		case console.Committed:
			if err := a.printSnapshot(r.Snapshot, theme, opts.limit); err != nil {
				fmt.Fprintln(a.stderr, ErrorStyle.Render("Error:"), err)
			}
			printed++
			if opts.count > 0 && printed >= opts.count {
				cancel()
			}
		case console.Failed:
			fmt.Fprintln(a.stderr, WarningStyle.Render("refresh failed, showing last data:"), r.Err)
		}
	})
	if err := runner.Run(ctx); err != nil {
		return err
	}
	return env.sessionEnded(gen, nil)
}

// =============================================================================
// RENDERING
// =============================================================================

func (a *app) printSnapshot(s *console.Snapshot, theme *styles.Theme, limit int) error {
	if s == nil {
		return nil
	}
	risks := console.RiskRanking(s)
	if limit > 0 && len(risks) > limit {
		risks = risks[:limit]
	}

	if a.jsonOutput {
		return NewJSONResponse("watch", map[string]any{
			"cycle":          s.Cycle,
			"fetched_at":     s.FetchedAt.UTC().Format(time.RFC3339),
			"stats":          s.Stats,
			"failed_logins":  console.FailedLogins(s),
			"blocked_files":  console.BlockedFiles(s),
			"risk_users":     risks,
			"login_attempts": len(s.Attempts),
			"file_accesses":  len(s.Accesses),
		}).Print(a.stdout)
	}

	w := a.stdout
	fmt.Fprintf(w, "%s %s\n",
		TitleStyle.Render("Security Console"),
		DimStyle.Render(fmt.Sprintf("updated %s (cycle %d)", s.FetchedAt.Local().Format(watchTimeLayout), s.Cycle)))
	fmt.Fprintln(w, DimStyle.Render(strings.Repeat("=", 60)))

	st := s.Stats
	fmt.Fprintf(w, "Users %d  Active %d  Logins today %d  Failed %s  Blocked %s  At risk %s\n",
		st.TotalUsers, st.ActiveUsers, st.TodayLogins,
		countStyle(st.FailedLogins), countStyle(st.BlockedFiles), countStyle(st.RiskUsers))

	fmt.Fprintln(w)
	fmt.Fprintln(w, SectionStyle.Render("Recent failed logins"))
	failed := console.FailedLogins(s)
	if len(failed) == 0 {
		fmt.Fprintln(w, DimStyle.Render("  none"))
	}
	for _, l := range failed {
		fmt.Fprintf(w, "  %s %s %s %s\n",
			column(l.Username, 16), column(l.IPAddress, 16), column(l.Location, 14),
			DimStyle.Render(formatStamp(l.Timestamp)))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, SectionStyle.Render("Blocked file access"))
	blocked := console.BlockedFiles(s)
	if len(blocked) == 0 {
		fmt.Fprintln(w, DimStyle.Render("  none"))
	}
	for _, r := range blocked {
		fmt.Fprintf(w, "  %s %s %s %s\n",
			column(r.Username, 16), column(r.FilePath, 32), column(styles.RiskLabel(r.RiskLevel), 9),
			DimStyle.Render(formatStamp(r.Timestamp)))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, SectionStyle.Render("Risk users"))
	printRiskUsers(w, risks, theme)
	fmt.Fprintln(w)
	return nil
}

func printRiskUsers(w io.Writer, users []api.RiskUser, theme *styles.Theme) {
	if len(users) == 0 {
		fmt.Fprintln(w, DimStyle.Render("  none"))
		return
	}
	for _, u := range users {
		line := fmt.Sprintf("  %s %s %s %s",
			column("#"+strconv.Itoa(u.ID), 6), column(u.Username, 16),
			theme.ScoreBar(u.RiskScore, watchBarWidth, u.Status), theme.RiskBadge(u.Status))
		if u.AnomalyDetected {
			line += " " + WarningStyle.Render("anomaly")
		}
		fmt.Fprintln(w, line)
		if u.Reasons != "" {
			fmt.Fprintln(w, DimStyle.Render("         "+util.TruncateWidth(u.Reasons, 70)))
		}
	}
}

func column(s string, width int) string {
	return util.PadWidth(s, width)
}

func countStyle(n int) string {
	if n > 0 {
		return ErrorStyle.Render(strconv.Itoa(n))
	}
	return strconv.Itoa(n)
}

func formatStamp(ts api.Timestamp) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Local().Format(watchTimeLayout)
}
