// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package views

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/sentinel-tui/internal/access"
	"github.com/jeranaias/sentinel-tui/internal/api"
	"github.com/jeranaias/sentinel-tui/internal/ui/components"
	"github.com/jeranaias/sentinel-tui/internal/ui/styles"
	"github.com/jeranaias/sentinel-tui/internal/util"
)

// EmptyPathMessage is shown when a custom request has no path.
const EmptyPathMessage = "Enter a file path"

const (
	focusCatalog = iota
	focusCustom
)

// Portal is the employee file access view.
type Portal struct {
	workflow *access.Workflow
	gen      uint64
	identity api.Identity
	theme    *styles.Theme
	keys     KeyMap

	entries []access.Entry
	cursor  int
	custom  textinput.Model
	focus   int

	inFlight  bool
	requested string
	result    *access.Result
	errMsg    string
	spinner   spinner.Model

	guidelines      string
	guidelinesWidth int

	width  int
	height int
}

// NewPortal creates the access view for identity, mounted under session
// generation gen.
func NewPortal(w *access.Workflow, gen uint64, identity api.Identity, theme *styles.Theme) *Portal {
	custom := textinput.New()
	custom.Placeholder = "/path/to/file"
	custom.Prompt = "> "
	custom.CharLimit = 256

	return &Portal{
		workflow: w,
		gen:      gen,
		identity: identity,
		theme:    theme,
		keys:     DefaultKeyMap(),
		entries:  access.Catalog(),
		custom:   custom,
		spinner:  styles.NewSpinner(styles.LineSpinner),
	}
}

// Generation returns the session generation the view was mounted under.
func (p *Portal) Generation() uint64 { return p.gen }

// InFlight reports whether a request is pending.
func (p *Portal) InFlight() bool { return p.inFlight }

// Result returns the last completed request's Result.
func (p *Portal) Result() (access.Result, bool) {
	if p.result == nil {
		return access.Result{}, false
	}
	return *p.result, true
}

// Init implements View.
func (p *Portal) Init() tea.Cmd { return nil }

// Title implements View.
func (p *Portal) Title() string { return "File Access Portal" }

// Shortcuts implements View.
func (p *Portal) Shortcuts() []components.Shortcut {
	return []components.Shortcut{
		shortcut(p.keys.Focus),
		{Key: "Enter", Desc: "request access"},
		shortcut(p.keys.Logout),
		shortcut(p.keys.Quit),
	}
}

// SetSize implements View.
func (p *Portal) SetSize(width, height int) {
	p.width = width
	p.height = height
	p.custom.Width = min(max(width/2-8, 16), 60)
}

// Stop implements View. A request still in flight completes but its result
// is dropped by generation.
func (p *Portal) Stop() {}

// Update implements View.
func (p *Portal) Update(msg tea.Msg) (View, tea.Cmd) {
	switch msg := msg.(type) {
	case accessDoneMsg:
		if msg.gen != p.gen {
			return p, nil
		}
		p.inFlight = false
		if msg.err != nil {
			p.errMsg = msg.err.Error()
			return p, nil
		}
		res := msg.result
		p.result = &res
		return p, nil

	case spinner.TickMsg:
		if !p.inFlight {
			return p, nil
		}
		var cmd tea.Cmd
		p.spinner, cmd = p.spinner.Update(msg)
		return p, cmd

	case tea.KeyMsg:
		return p, p.handleKey(msg)
	}

	if p.focus == focusCustom {
		var cmd tea.Cmd
		p.custom, cmd = p.custom.Update(msg)
		return p, cmd
	}
	return p, nil
}

func (p *Portal) handleKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, p.keys.Focus) {
		return p.toggleFocus()
	}
	if key.Matches(msg, p.keys.Submit) {
		if p.focus == focusCatalog {
			return p.request(p.entries[p.cursor].Path)
		}
		return p.request(p.custom.Value())
	}

	if p.focus == focusCustom {
		var cmd tea.Cmd
		p.custom, cmd = p.custom.Update(msg)
		return cmd
	}

	switch {
	case key.Matches(msg, p.keys.Up):
		if p.cursor > 0 {
			p.cursor--
		}
	case key.Matches(msg, p.keys.Down):
		if p.cursor < len(p.entries)-1 {
			p.cursor++
		}
	}
	return nil
}

func (p *Portal) toggleFocus() tea.Cmd {
	if p.focus == focusCatalog {
		p.focus = focusCustom
		return p.custom.Focus()
	}
	p.focus = focusCatalog
	p.custom.Blur()
	return nil
}

// request starts one access request. Submissions while a request is pending
// are ignored.
func (p *Portal) request(path string) tea.Cmd {
	if p.inFlight {
		return nil
	}
	path = strings.TrimSpace(path)
	if path == "" {
		p.errMsg = EmptyPathMessage
		return nil
	}

	p.inFlight = true
	p.requested = path
	p.result = nil
	p.errMsg = ""
	w, gen := p.workflow, p.gen
	return tea.Batch(p.spinner.Tick, func() tea.Msg {
		res, err := w.Request(context.Background(), path)
		return accessDoneMsg{gen: gen, result: res, err: err}
	})
}

// =============================================================================
// VIEW
// =============================================================================

// View implements View.
func (p *Portal) View() string {
	left := lipgloss.JoinVertical(lipgloss.Left,
		p.theme.Banner.Render(access.MonitoringBanner),
		"",
		p.renderCatalog(),
		"",
		p.renderCustom(),
		"",
		p.renderOutcome(),
	)

	right := p.renderGuidelines()
	if right == "" {
		return left
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right)
}

func (p *Portal) renderCatalog() string {
	var b strings.Builder
	title := "Quick Access"
	if p.focus == focusCatalog {
		title += " *"
	}
	b.WriteString(p.theme.PanelTitle.Render(title))
	for i, e := range p.entries {
		marker := p.theme.Success.Render("✓")
		if !e.Safe {
			marker = p.theme.Warning.Render("!")
		}
		line := fmt.Sprintf("%s %s  %s", marker, util.PadWidth(e.Name, 32), p.theme.Muted.Render(e.Path))
		if i == p.cursor && p.focus == focusCatalog {
			line = p.theme.TableSelected.Render("> ") + line
		} else {
			line = "  " + line
		}
		b.WriteString("\n" + line)
	}
	return p.theme.Panel.Render(b.String())
}

func (p *Portal) renderCustom() string {
	style := p.theme.Input
	if p.focus == focusCustom {
		style = p.theme.InputFocused
	}
	return p.theme.Label.Render("Custom path") + "\n" + style.Render(p.custom.View())
}

func (p *Portal) renderOutcome() string {
	switch {
	case p.inFlight:
		return p.spinner.View() + " Requesting " + p.requested + "..."
	case p.errMsg != "":
		return styles.RenderError(p.errMsg)
	case p.result == nil:
		return p.theme.Muted.Render("Select a file and press Enter to request access.")
	}

	r := p.result
	var b strings.Builder
	if r.Success {
		b.WriteString(styles.RenderSuccess("Access Granted"))
	} else {
		b.WriteString(styles.RenderError("Access Denied"))
	}
	b.WriteString("  " + p.theme.RiskBadge(r.RiskLevel))
	b.WriteString("\n" + p.theme.Muted.Render(r.Path))
	if r.Message != "" {
		b.WriteString("\n" + r.Message)
	}
	if !r.Success {
		b.WriteString("\n\n" + p.theme.Warning.Render(access.DenialNotice))
		if r.Cause != nil && !errors.Is(r.Cause, api.ErrUnauthorized) {
			b.WriteString("\n" + p.theme.Muted.Render(r.Cause.Error()))
		}
	}
	return p.theme.Panel.Render(b.String())
}

// renderGuidelines renders the guidelines next to the form when the terminal
// is wide enough. The rendered markdown is cached per width.
func (p *Portal) renderGuidelines() string {
	width := p.width - 90
	if width < 30 {
		return ""
	}
	if p.guidelinesWidth != width {
		p.guidelines = access.RenderGuidelines(width, p.theme.GlamourStyle())
		p.guidelinesWidth = width
	}
	return p.guidelines
}
