// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package views

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/sentinel-tui/internal/session"
	"github.com/jeranaias/sentinel-tui/internal/ui/components"
	"github.com/jeranaias/sentinel-tui/internal/ui/styles"
)

// LoginFunc performs a login. (*session.Manager).Login satisfies it.
type LoginFunc func(ctx context.Context, username, password string) (session.LoginResult, error)

const (
	focusUsername = iota
	focusPassword
)

// Login is the sign-in form.
type Login struct {
	login LoginFunc
	theme *styles.Theme
	keys  KeyMap

	username textinput.Model
	password textinput.Model
	focus    int
	spinner  spinner.Model

	submitting bool
	errMsg     string

	width  int
	height int
}

// NewLogin creates the login view.
func NewLogin(login LoginFunc, theme *styles.Theme) *Login {
	user := textinput.New()
	user.Placeholder = "username"
	user.Prompt = ""
	user.CharLimit = 64
	user.Focus()

	pass := textinput.New()
	pass.Placeholder = "password"
	pass.Prompt = ""
	pass.CharLimit = 128
	pass.EchoMode = textinput.EchoPassword
	pass.EchoCharacter = '•'

	return &Login{
		login:    login,
		theme:    theme,
		keys:     DefaultKeyMap(),
		username: user,
		password: pass,
		spinner:  styles.NewSpinner(styles.LineSpinner),
	}
}

// Init starts the cursor blink.
func (l *Login) Init() tea.Cmd {
	return textinput.Blink
}

// Title implements View.
func (l *Login) Title() string { return "Sign In" }

// Shortcuts implements View.
func (l *Login) Shortcuts() []components.Shortcut {
	return []components.Shortcut{
		{Key: "Tab", Desc: "next field"},
		{Key: "Enter", Desc: "sign in"},
		shortcut(l.keys.Quit),
	}
}

// SetSize implements View.
func (l *Login) SetSize(width, height int) {
	l.width = width
	l.height = height
}

// Stop implements View. The login view has no background work.
func (l *Login) Stop() {}

// Submitting reports whether a login call is in flight.
func (l *Login) Submitting() bool { return l.submitting }

// Error returns the inline error text.
func (l *Login) Error() string { return l.errMsg }

// Update implements View.
func (l *Login) Update(msg tea.Msg) (View, tea.Cmd) {
	switch msg := msg.(type) {
	case loginDoneMsg:
		l.submitting = false
		if msg.err != nil {
			l.errMsg = session.FailureMessage(msg.err)
			l.password.SetValue("")
			return l, l.setFocus(focusPassword)
		}
		result := msg.result
		return l, func() tea.Msg { return AuthenticatedMsg{Result: result} }

	case spinner.TickMsg:
		if !l.submitting {
			return l, nil
		}
		var cmd tea.Cmd
		l.spinner, cmd = l.spinner.Update(msg)
		return l, cmd

	case tea.KeyMsg:
		if l.submitting {
			return l, nil
		}
		switch {
		case key.Matches(msg, l.keys.Focus), msg.String() == "up", msg.String() == "down":
			return l, l.setFocus(1 - l.focus)
		case key.Matches(msg, l.keys.Submit):
			if l.focus == focusUsername {
				return l, l.setFocus(focusPassword)
			}
			return l, l.submit()
		}
	}

	var cmd tea.Cmd
	if l.focus == focusUsername {
		l.username, cmd = l.username.Update(msg)
	} else {
		l.password, cmd = l.password.Update(msg)
	}
	return l, cmd
}

func (l *Login) setFocus(field int) tea.Cmd {
	l.focus = field
	if field == focusUsername {
		l.password.Blur()
		return l.username.Focus()
	}
	l.username.Blur()
	return l.password.Focus()
}

// submit validates the form and starts the login call. A blank field is
// reported inline without calling the backend.
func (l *Login) submit() tea.Cmd {
	username := strings.TrimSpace(l.username.Value())
	password := l.password.Value()
	if username == "" || password == "" {
		l.errMsg = session.MissingCredentialsMessage
		return nil
	}

	l.submitting = true
	l.errMsg = ""
	login := l.login
	return tea.Batch(l.spinner.Tick, func() tea.Msg {
		result, err := login(context.Background(), username, password)
		return loginDoneMsg{result: result, err: err}
	})
}

// View implements View.
func (l *Login) View() string {
	var b strings.Builder

	b.WriteString(l.theme.HeaderTitle.Render("Security Monitoring Console"))
	b.WriteString("\n")
	b.WriteString(l.theme.Muted.Render("Sign in to continue"))
	b.WriteString("\n\n")

	b.WriteString(l.field("Username", l.username, l.focus == focusUsername))
	b.WriteString("\n")
	b.WriteString(l.field("Password", l.password, l.focus == focusPassword))
	b.WriteString("\n\n")

	switch {
	case l.submitting:
		b.WriteString(l.spinner.View() + " Signing in...")
	case l.errMsg != "":
		b.WriteString(styles.RenderError(l.errMsg))
	default:
		b.WriteString(l.theme.ButtonActive.Render("Sign In"))
	}

	box := l.theme.Panel.Width(44).Render(b.String())
	if l.width > 0 && l.height > 0 {
		return lipgloss.Place(l.width, l.height, lipgloss.Center, lipgloss.Center, box)
	}
	return box
}

func (l *Login) field(label string, input textinput.Model, focused bool) string {
	style := l.theme.Input
	if focused {
		style = l.theme.InputFocused
	}
	return l.theme.Label.Render(label) + "\n" + style.Width(38).Render(input.View())
}
