// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package views

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/sentinel-tui/internal/access"
	"github.com/jeranaias/sentinel-tui/internal/console"
	"github.com/jeranaias/sentinel-tui/internal/session"
	"github.com/jeranaias/sentinel-tui/internal/ui/components"
)

// View is a screen the root model mounts. Views bound to a session carry the
// session generation they were mounted under and ignore messages from any
// other generation.
type View interface {
	Init() tea.Cmd
	Update(msg tea.Msg) (View, tea.Cmd)
	View() string
	SetSize(width, height int)
	Title() string
	Shortcuts() []components.Shortcut
	// Stop releases the view's background work. It is idempotent.
	Stop()
}

// Scheduler arms a one-shot timer. tea.Tick is the production Scheduler.
type Scheduler func(d time.Duration, fn func(time.Time) tea.Msg) tea.Cmd

// =============================================================================
// MESSAGES
// =============================================================================

// AuthenticatedMsg is emitted by the login view after a successful login.
type AuthenticatedMsg struct {
	Result session.LoginResult
}

type loginDoneMsg struct {
	result session.LoginResult
	err    error
}

// TickMsg is the console's refresh timer firing.
type TickMsg struct {
	Gen uint64
	At  time.Time
}

// RefreshedMsg reports one finished console refresh.
type RefreshedMsg struct {
	Gen     uint64
	Outcome console.Outcome
	Err     error
}

type suspendedMsg struct {
	gen      uint64
	username string
	result   console.SuspendResult
	err      error
}

type accessDoneMsg struct {
	gen    uint64
	result access.Result
	err    error
}
