// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui is the root Bubble Tea model. It routes between the login view
// and the role views and keeps the header and status bar in sync with the
// session.
package ui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/sentinel-tui/internal/access"
	"github.com/jeranaias/sentinel-tui/internal/api"
	"github.com/jeranaias/sentinel-tui/internal/config"
	"github.com/jeranaias/sentinel-tui/internal/console"
	"github.com/jeranaias/sentinel-tui/internal/logging"
	"github.com/jeranaias/sentinel-tui/internal/session"
	"github.com/jeranaias/sentinel-tui/internal/ui/components"
	"github.com/jeranaias/sentinel-tui/internal/ui/styles"
	"github.com/jeranaias/sentinel-tui/internal/ui/views"
)

const (
	suspiciousNoticeID = "suspicious-login"

	// chromeHeight is the lines taken by the header and status bar.
	chromeHeight = 2

	clockInterval = time.Second
)

// =============================================================================
// APPLICATION MODEL
// =============================================================================

// State is what the root model is showing.
type State int

const (
	StateLogin  State = iota // Sign-in form
	StateNotice              // Suspicious login notice, before the role view
	StateConsole             // Operator console
	StatePortal              // Employee file access
)

// Deps are the collaborators the model drives.
type Deps struct {
	Manager *session.Manager
	// Client is the unauthenticated backend client; role views get a copy
	// carrying the session token.
	Client *api.Client
	Config *config.Config
	Theme  *styles.Theme

	// Scheduler replaces tea.Tick for timers. Tests use it to fire ticks.
	Scheduler views.Scheduler
}

type clockTickMsg struct{ at time.Time }

// Model is the main Bubble Tea model for the application.
type Model struct {
	manager  *session.Manager
	client   *api.Client
	cfg      *config.Config
	theme    *styles.Theme
	schedule views.Scheduler
	keys     views.KeyMap

	state  State
	view   views.View
	header *components.Header
	status *components.StatusBar
	notice *components.Notice

	// mountGen is the session generation the current view is bound to. bound
	// is false for the login view.
	mountGen uint64
	bound    bool
	pending  *session.LoginResult
	initCmd  tea.Cmd

	width  int
	height int
}

// New creates the root model. A session restored by the Manager mounts its
// role view directly; otherwise the login view is shown.
func New(deps Deps) *Model {
	m := &Model{
		manager:  deps.Manager,
		client:   deps.Client,
		cfg:      deps.Config,
		theme:    deps.Theme,
		schedule: deps.Scheduler,
		keys:     views.DefaultKeyMap(),
		header:   components.NewHeader(deps.Theme, ""),
		status:   components.NewStatusBar(deps.Theme),
		notice:   components.NewNotice(deps.Theme),
	}
	if m.cfg == nil {
		m.cfg = config.Default()
	}
	if m.schedule == nil {
		m.schedule = tea.Tick
	}

	if identity, ok := m.manager.Identity(); ok {
		m.initCmd = m.mountRole(identity, m.manager.Generation())
	} else {
		m.initCmd = m.mountLogin()
	}
	return m
}

// State returns what the model is showing.
func (m *Model) State() State { return m.state }

// Current returns the mounted view.
func (m *Model) Current() views.View { return m.view }

// Init starts the mounted view and the status bar clock.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.initCmd, m.clockTick())
}

func (m *Model) clockTick() tea.Cmd {
	if !m.cfg.UI.ShowExpiry {
		return nil
	}
	return m.schedule(clockInterval, func(at time.Time) tea.Msg { return clockTickMsg{at: at} })
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles messages and updates the model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	cmd := m.update(msg)

	// A forced deauthentication anywhere drops whatever the stale view asked
	// for and returns to the login view.
	if m.bound && !m.manager.IsCurrent(m.mountGen) {
		logging.Info().Uint64("generation", m.mountGen).Msg("session ended, returning to login")
		return m, m.mountLogin()
	}
	return m, cmd
}

func (m *Model) update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.header.Width = msg.Width
		m.status.Width = msg.Width
		m.notice.SetSize(msg.Width, msg.Height)
		m.view.SetSize(msg.Width, m.contentHeight())
		return nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case views.AuthenticatedMsg:
		if !m.manager.IsCurrent(msg.Result.Generation) {
			return nil
		}
		if msg.Result.Notice != "" {
			result := msg.Result
			m.pending = &result
			m.state = StateNotice
			m.notice.Show(suspiciousNoticeID, components.NoticeWarning, "Security Notice", msg.Result.Notice)
			return nil
		}
		return m.mountRole(msg.Result.Identity, msg.Result.Generation)

	case components.NoticeDismissedMsg:
		if msg.ID != suspiciousNoticeID || m.pending == nil {
			return nil
		}
		result := *m.pending
		m.pending = nil
		if !m.manager.IsCurrent(result.Generation) {
			return m.mountLogin()
		}
		return m.mountRole(result.Identity, result.Generation)

	case clockTickMsg:
		return m.clockTick()
	}

	view, cmd := m.view.Update(msg)
	m.view = view
	return cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, m.keys.Quit) {
		m.view.Stop()
		return tea.Quit
	}

	if m.notice.IsVisible() {
		cmd, _ := m.notice.Update(msg)
		return cmd
	}

	if m.bound && key.Matches(msg, m.keys.Logout) {
		return m.logout()
	}

	view, cmd := m.view.Update(msg)
	m.view = view
	return cmd
}

// logout ends the session and shows the login view.
func (m *Model) logout() tea.Cmd {
	m.view.Stop()
	if err := m.manager.Logout(context.Background()); err != nil {
		logging.Warn().Err(err).Msg("logout did not purge the stored session")
	}
	return m.mountLogin()
}

// =============================================================================
// MOUNTING
// =============================================================================

func (m *Model) unmount() {
	if m.view != nil {
		m.view.Stop()
	}
	m.bound = false
	m.pending = nil
	m.notice.Hide()
}

func (m *Model) mountLogin() tea.Cmd {
	m.unmount()
	m.state = StateLogin
	m.view = views.NewLogin(m.manager.Login, m.theme)
	return m.activate()
}

// mountRole mounts the view for identity's role, bound to generation gen.
// Every backend call it makes carries the session token and deauthenticates
// only gen.
func (m *Model) mountRole(identity api.Identity, gen uint64) tea.Cmd {
	m.unmount()

	client := m.client.WithToken(m.manager.Token())
	deauth := m.manager.DeauthenticatorFor(gen)

	if identity.IsAdmin() {
		poller := console.NewPoller(client, deauth, console.WithCycleTimeout(m.cfg.Server.PollTimeout()))
		m.view = views.NewDashboard(poller, gen, identity, m.theme, views.WithScheduler(m.schedule))
		m.state = StateConsole
	} else {
		m.view = views.NewPortal(access.NewWorkflow(client, deauth), gen, identity, m.theme)
		m.state = StatePortal
	}
	m.mountGen = gen
	m.bound = true

	logging.Info().Str("user", identity.Username).Str("role", string(identity.Role)).
		Uint64("generation", gen).Msg("view mounted")
	return m.activate()
}

func (m *Model) activate() tea.Cmd {
	m.view.SetSize(m.width, m.contentHeight())
	return m.view.Init()
}

func (m *Model) contentHeight() int {
	h := m.height - chromeHeight
	if h < 0 {
		return 0
	}
	return h
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the header, the mounted view and the status bar.
func (m *Model) View() string {
	if m.notice.IsVisible() {
		return m.notice.View()
	}

	m.header.Title = m.view.Title()
	m.header.Subtitle = ""
	m.status.User, m.status.Role, m.status.Remaining = "", "", ""
	if identity, ok := m.manager.Identity(); ok && m.bound {
		m.header.Subtitle = identity.Username
		m.status.User = identity.Username
		m.status.Role = string(identity.Role)
		if m.cfg.UI.ShowExpiry {
			if left, ok := m.manager.Remaining(); ok {
				m.status.Remaining = session.FormatRemaining(left)
			}
		}
	}
	m.status.Shortcuts = m.view.Shortcuts()

	body := m.view.View()
	if m.height > 0 {
		body = lipgloss.NewStyle().Height(m.contentHeight()).MaxHeight(m.contentHeight()).Render(body)
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.header.View(), body, m.status.View())
}

// =============================================================================
// PROGRAM
// =============================================================================

// Run starts the TUI and blocks until it exits.
func Run(ctx context.Context, deps Deps) error {
	m := New(deps)

	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if m.cfg.UI.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	p := tea.NewProgram(m, opts...)

	defer m.view.Stop()
	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}
