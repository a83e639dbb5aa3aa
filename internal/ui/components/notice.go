// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/sentinel-tui/internal/ui/styles"
)

// NoticeKind selects a notice's color and indicator.
type NoticeKind int

const (
	NoticeInfo NoticeKind = iota
	NoticeSuccess
	NoticeWarning
	NoticeError
)

// NoticeDismissedMsg is emitted when a notice is acknowledged.
type NoticeDismissedMsg struct {
	ID string
}

// Notice is a blocking modal message. While visible it swallows every key
// except the ones that dismiss it.
type Notice struct {
	id      string
	kind    NoticeKind
	title   string
	body    string
	visible bool
	width   int
	height  int
	theme   *styles.Theme
}

// NewNotice creates a hidden notice.
func NewNotice(theme *styles.Theme) *Notice {
	return &Notice{theme: theme}
}

// Show opens the notice.
func (n *Notice) Show(id string, kind NoticeKind, title, body string) {
	n.id = id
	n.kind = kind
	n.title = title
	n.body = body
	n.visible = true
}

// Hide closes the notice without emitting NoticeDismissedMsg.
func (n *Notice) Hide() {
	n.visible = false
}

// IsVisible returns whether the notice is visible.
func (n *Notice) IsVisible() bool {
	return n.visible
}

// ID returns the id of the shown notice.
func (n *Notice) ID() string {
	return n.id
}

// Body returns the notice text.
func (n *Notice) Body() string {
	return n.body
}

// SetSize updates the area the notice is centered in.
func (n *Notice) SetSize(width, height int) {
	n.width = width
	n.height = height
}

// Update dismisses the notice on enter, esc or space.
func (n *Notice) Update(msg tea.Msg) (tea.Cmd, bool) {
	if !n.visible {
		return nil, false
	}
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil, false
	}
	switch keyMsg.String() {
	case "enter", "esc", " ":
		id := n.id
		n.visible = false
		return func() tea.Msg { return NoticeDismissedMsg{ID: id} }, true
	}
	return nil, true
}

// View renders the notice.
func (n *Notice) View() string {
	if !n.visible {
		return ""
	}

	var title string
	accent := styles.Cyan
	switch n.kind {
	case NoticeSuccess:
		title = styles.RenderSuccess(n.title)
		accent = styles.Emerald
	case NoticeWarning:
		title = styles.RenderWarning(n.title)
		accent = styles.Amber
	case NoticeError:
		title = styles.RenderError(n.title)
		accent = styles.Rose
	default:
		title = styles.RenderInfo(n.title)
	}

	var content strings.Builder
	content.WriteString(title)
	content.WriteString("\n\n")
	content.WriteString(n.body)
	content.WriteString("\n\n")
	content.WriteString(n.theme.ButtonActive.Render("OK"))

	box := n.theme.Modal.BorderForeground(accent).Width(modalWidth(n.width)).Render(content.String())
	return place(n.width, n.height, box)
}
