// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package views

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/sentinel-tui/internal/api"
	"github.com/jeranaias/sentinel-tui/internal/console"
	"github.com/jeranaias/sentinel-tui/internal/ui/components"
	"github.com/jeranaias/sentinel-tui/internal/ui/styles"
	"github.com/jeranaias/sentinel-tui/internal/util"
)

const suspendConfirmID = "suspend"

// timeLayout is how log timestamps are shown.
const timeLayout = "2006-01-02 15:04:05"

// DashboardOption configures a Dashboard.
type DashboardOption func(*Dashboard)

// WithScheduler replaces tea.Tick.
func WithScheduler(s Scheduler) DashboardOption {
	return func(d *Dashboard) { d.schedule = s }
}

// WithInterval overrides console.RefreshInterval.
func WithInterval(interval time.Duration) DashboardOption {
	return func(d *Dashboard) { d.interval = interval }
}

// Dashboard is the operator console view. It owns one Poller for the
// lifetime of its mount.
type Dashboard struct {
	poller   *console.Poller
	gen      uint64
	identity api.Identity
	theme    *styles.Theme
	keys     KeyMap
	help     help.Model

	schedule Scheduler
	interval time.Duration
	stopped  bool

	tab    console.Tab
	tables map[console.Tab]*table.Model
	risks  []api.RiskUser
	// snap is the snapshot the tables were last built from.
	snap *console.Snapshot

	lastOutcome console.Outcome
	lastErr     error
	refreshing  int

	confirm    *components.Confirm
	notice     *components.Notice
	pending    *api.RiskUser
	suspending bool
	spinner    spinner.Model

	width  int
	height int
}

// NewDashboard creates the console view for identity, mounted under session
// generation gen.
func NewDashboard(p *console.Poller, gen uint64, identity api.Identity, theme *styles.Theme, opts ...DashboardOption) *Dashboard {
	d := &Dashboard{
		poller:   p,
		gen:      gen,
		identity: identity,
		theme:    theme,
		keys:     DefaultKeyMap(),
		help:     help.New(),
		schedule: tea.Tick,
		interval: console.RefreshInterval,
		tab:      console.TabDashboard,
		confirm:  components.NewConfirm(theme),
		notice:   components.NewNotice(theme),
		spinner:  styles.NewSpinner(styles.DotsSpinner),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.tables = map[console.Tab]*table.Model{
		console.TabLogins: d.newTable([]table.Column{
			{Title: "Time", Width: 19},
			{Title: "User", Width: 14},
			{Title: "Status", Width: 10},
			{Title: "IP Address", Width: 15},
			{Title: "Location", Width: 16},
			{Title: "Device", Width: 18},
		}),
		console.TabFiles: d.newTable([]table.Column{
			{Title: "Time", Width: 19},
			{Title: "User", Width: 14},
			{Title: "File Path", Width: 32},
			{Title: "Action", Width: 8},
			{Title: "Risk", Width: 8},
		}),
		console.TabRisks: d.newTable([]table.Column{
			{Title: "User", Width: 14},
			{Title: "Email", Width: 24},
			{Title: "Risk Score", Width: 17},
			{Title: "Status", Width: 8},
			{Title: "Anomaly", Width: 7},
			{Title: "Reasons", Width: 30},
		}),
	}
	return d
}

func (d *Dashboard) newTable(cols []table.Column) *table.Model {
	t := table.New(table.WithColumns(cols), table.WithFocused(true), table.WithHeight(10))
	s := table.DefaultStyles()
	s.Header = d.theme.TableHeader
	s.Cell = d.theme.TableCell
	s.Selected = d.theme.TableSelected
	t.SetStyles(s)
	return &t
}

// Generation returns the session generation the view was mounted under.
func (d *Dashboard) Generation() uint64 { return d.gen }

// Tab returns the visible tab.
func (d *Dashboard) Tab() console.Tab { return d.tab }

// Stopped reports whether Stop has been called.
func (d *Dashboard) Stopped() bool { return d.stopped }

// Title implements View.
func (d *Dashboard) Title() string { return "Security Dashboard" }

// Shortcuts implements View.
func (d *Dashboard) Shortcuts() []components.Shortcut {
	hints := []components.Shortcut{shortcut(d.keys.NextTab)}
	if d.tab == console.TabRisks {
		hints = append(hints, shortcut(d.keys.Suspend))
	}
	return append(hints, shortcut(d.keys.Refresh), shortcut(d.keys.Help), shortcut(d.keys.Logout), shortcut(d.keys.Quit))
}

// SetSize implements View.
func (d *Dashboard) SetSize(width, height int) {
	d.width = width
	d.height = height
	d.help.Width = width
	d.confirm.SetSize(width, height)
	d.notice.SetSize(width, height)

	rows := height - 8
	if rows < 3 {
		rows = 3
	}
	for _, t := range d.tables {
		t.SetHeight(rows)
		t.SetWidth(width)
	}
}

// Stop implements View. Results of refreshes still in flight are discarded.
func (d *Dashboard) Stop() {
	if d.stopped {
		return
	}
	d.stopped = true
	d.poller.Stop()
}

// =============================================================================
// SCHEDULING
// =============================================================================

// Init fetches immediately and arms the first tick.
func (d *Dashboard) Init() tea.Cmd {
	return tea.Batch(d.refreshCmd(), d.scheduleTick(), d.spinner.Tick)
}

func (d *Dashboard) scheduleTick() tea.Cmd {
	gen := d.gen
	return d.schedule(d.interval, func(at time.Time) tea.Msg {
		return TickMsg{Gen: gen, At: at}
	})
}

func (d *Dashboard) refreshCmd() tea.Cmd {
	d.refreshing++
	p, gen := d.poller, d.gen
	return func() tea.Msg {
		outcome, err := p.Refresh(context.Background())
		return RefreshedMsg{Gen: gen, Outcome: outcome, Err: err}
	}
}

// =============================================================================
// UPDATE
// =============================================================================

// Update implements View.
func (d *Dashboard) Update(msg tea.Msg) (View, tea.Cmd) {
	switch msg := msg.(type) {
	case TickMsg:
		// A tick from another mount, or after unmount, ends its chain.
		if msg.Gen != d.gen || d.stopped {
			return d, nil
		}
		return d, tea.Batch(d.refreshCmd(), d.scheduleTick())

	case RefreshedMsg:
		if msg.Gen != d.gen {
			return d, nil
		}
		if d.refreshing > 0 {
			d.refreshing--
		}
		d.lastOutcome = msg.Outcome
		if msg.Outcome == console.Failed {
			d.lastErr = msg.Err
		} else if msg.Outcome == console.Committed {
			d.lastErr = nil
		}
		d.applySnapshot()
		return d, nil

	case suspendedMsg:
		if msg.gen != d.gen {
			return d, nil
		}
		d.suspending = false
		if msg.err != nil {
			detail := api.MessageOf(msg.err, msg.err.Error())
			d.notice.Show("suspend-failed", components.NoticeError, console.SuspendFailedMessage, detail)
			return d, nil
		}
		d.notice.Show("suspended", components.NoticeSuccess, console.SuspendSucceededMessage, msg.result.Message)
		d.applySnapshot()
		return d, nil

	case components.ConfirmResultMsg:
		if msg.ID != suspendConfirmID || d.pending == nil {
			return d, nil
		}
		target := *d.pending
		d.pending = nil
		if !msg.Confirmed {
			return d, nil
		}
		return d, d.suspendCmd(target)

	case spinner.TickMsg:
		if !d.suspending && d.refreshing == 0 {
			return d, nil
		}
		var cmd tea.Cmd
		d.spinner, cmd = d.spinner.Update(msg)
		return d, cmd

	case tea.KeyMsg:
		if cmd, handled := d.notice.Update(msg); handled {
			return d, cmd
		}
		if cmd, handled := d.confirm.Update(msg); handled {
			return d, cmd
		}
		return d, d.handleKey(msg)
	}
	return d, nil
}

func (d *Dashboard) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, d.keys.NextTab):
		d.tab = d.tab.Next()
		return nil
	case key.Matches(msg, d.keys.PrevTab):
		d.tab = d.tab.Prev()
		return nil
	case key.Matches(msg, d.keys.Refresh):
		return d.refreshCmd()
	case key.Matches(msg, d.keys.Help):
		d.help.ShowAll = !d.help.ShowAll
		return nil
	case key.Matches(msg, d.keys.Suspend):
		d.askSuspend()
		return nil
	}

	switch msg.String() {
	case "1", "2", "3", "4":
		d.tab = console.Tabs[int(msg.String()[0]-'1')]
		return nil
	}

	if t, ok := d.tables[d.tab]; ok {
		var cmd tea.Cmd
		*t, cmd = t.Update(msg)
		return cmd
	}
	return nil
}

// askSuspend opens the confirmation for the selected risk user.
func (d *Dashboard) askSuspend() {
	if d.tab != console.TabRisks || d.suspending {
		return
	}
	t := d.tables[console.TabRisks]
	i := t.Cursor()
	if i < 0 || i >= len(d.risks) {
		return
	}
	target := d.risks[i]
	d.pending = &target
	d.confirm.Show(suspendConfirmID, "Suspend User", console.SuspendPrompt(target.Username), true)
}

func (d *Dashboard) suspendCmd(target api.RiskUser) tea.Cmd {
	d.suspending = true
	p, gen := d.poller, d.gen
	return tea.Batch(d.spinner.Tick, func() tea.Msg {
		res, err := p.Suspend(context.Background(), target.ID, target.Username)
		return suspendedMsg{gen: gen, username: target.Username, result: res, err: err}
	})
}

// applySnapshot rebuilds the tables from the committed Snapshot.
func (d *Dashboard) applySnapshot() {
	snap := d.poller.Snapshot()
	if snap == nil {
		return
	}
	d.snap = snap

	rows := make([]table.Row, 0, len(snap.Attempts))
	for _, a := range snap.Attempts {
		rows = append(rows, table.Row{formatTime(a.Timestamp), a.Username, string(a.Status), a.IPAddress, a.Location, a.DeviceInfo})
	}
	setRows(d.tables[console.TabLogins], rows)

	rows = make([]table.Row, 0, len(snap.Accesses))
	for _, r := range snap.Accesses {
		rows = append(rows, table.Row{formatTime(r.Timestamp), r.Username, r.FilePath, string(r.Action), styles.RiskLabel(r.RiskLevel)})
	}
	setRows(d.tables[console.TabFiles], rows)

	d.risks = console.RiskRanking(snap)
	rows = make([]table.Row, 0, len(d.risks))
	for _, u := range d.risks {
		anomaly := ""
		if u.AnomalyDetected {
			anomaly = "yes"
		}
		rows = append(rows, table.Row{u.Username, u.Email, plainBar(u.RiskScore, 10), styles.RiskLabel(u.Status), anomaly, u.Reasons})
	}
	setRows(d.tables[console.TabRisks], rows)
}

func setRows(t *table.Model, rows []table.Row) {
	t.SetRows(rows)
	if len(rows) > 0 && t.Cursor() >= len(rows) {
		t.SetCursor(len(rows) - 1)
	}
}

func formatTime(ts api.Timestamp) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Local().Format(timeLayout)
}

// plainBar is an uncolored score bar; table cells are width-truncated and
// cannot carry styling.
func plainBar(score float64, width int) string {
	fill := console.BarFill(score, width)
	return strings.Repeat("█", fill) + strings.Repeat("░", width-fill) + fmt.Sprintf(" %5.1f", score)
}

// =============================================================================
// VIEW
// =============================================================================

// View implements View.
func (d *Dashboard) View() string {
	if d.notice.IsVisible() {
		return d.notice.View()
	}
	if d.confirm.IsVisible() {
		return d.confirm.View()
	}

	titles := make([]string, len(console.Tabs))
	for i, tab := range console.Tabs {
		titles[i] = fmt.Sprintf("%d %s", i+1, tab.Title())
	}

	var b strings.Builder
	b.WriteString(components.RenderTabs(d.theme, titles, int(d.tab)))
	b.WriteString("\n")
	b.WriteString(d.statusLine())
	b.WriteString("\n\n")

	snap := d.snap
	switch {
	case snap == nil:
		b.WriteString(d.spinner.View() + " Loading dashboard...")
	case d.tab == console.TabDashboard:
		b.WriteString(d.overview(snap))
	default:
		b.WriteString(d.tables[d.tab].View())
	}

	if d.help.ShowAll {
		b.WriteString("\n\n")
		b.WriteString(d.help.View(d.keys))
	}
	return b.String()
}

func (d *Dashboard) statusLine() string {
	var parts []string
	if snap := d.snap; snap != nil {
		parts = append(parts, "Updated "+snap.FetchedAt.Local().Format("15:04:05"))
	}
	parts = append(parts, fmt.Sprintf("auto-refresh every %s", d.interval))
	line := d.theme.Muted.Render(strings.Join(parts, " | "))

	if d.suspending {
		line += "  " + d.spinner.View() + " suspending..."
	}
	if d.lastErr != nil {
		line += "  " + styles.RenderWarning("refresh failed, showing last data")
	}
	return line
}

func (d *Dashboard) overview(snap *console.Snapshot) string {
	s := snap.Stats
	cards := []string{
		d.card("Total Users", s.TotalUsers),
		d.card("Active Users", s.ActiveUsers),
		d.card("Today's Logins", s.TodayLogins),
		d.card("Failed Logins", s.FailedLogins),
		d.card("Blocked Files", s.BlockedFiles),
		d.card("Risk Users", s.RiskUsers),
	}

	var failed strings.Builder
	failed.WriteString(d.theme.PanelTitle.Render("Recent Failed Logins"))
	failed.WriteString("\n")
	attempts := console.FailedLogins(snap)
	if len(attempts) == 0 {
		failed.WriteString(d.theme.Muted.Render("No failed logins"))
	}
	for _, a := range attempts {
		fmt.Fprintf(&failed, "\n%s  %s  %s",
			util.PadWidth(util.TruncateWidth(a.Username, 14), 14),
			util.PadWidth(a.IPAddress, 15),
			d.theme.Muted.Render(formatTime(a.Timestamp)))
	}

	var blocked strings.Builder
	blocked.WriteString(d.theme.PanelTitle.Render("Blocked File Access"))
	blocked.WriteString("\n")
	records := console.BlockedFiles(snap)
	if len(records) == 0 {
		blocked.WriteString(d.theme.Muted.Render("No blocked access"))
	}
	for _, r := range records {
		fmt.Fprintf(&blocked, "\n%s  %s  %s",
			util.PadWidth(util.TruncateWidth(r.Username, 12), 12),
			util.PadWidth(util.TruncateWidth(r.FilePath, 30), 30),
			d.theme.RiskBadge(r.RiskLevel))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Top, cards...),
		"",
		lipgloss.JoinHorizontal(lipgloss.Top,
			d.theme.Panel.Width(58).Render(failed.String()),
			d.theme.Panel.Width(62).Render(blocked.String()),
		),
	)
}

func (d *Dashboard) card(label string, value int) string {
	return d.theme.Panel.Width(16).Render(
		d.theme.StatValue.Render(components.FormatCount(value)) + "\n" + d.theme.StatLabel.Render(label))
}
