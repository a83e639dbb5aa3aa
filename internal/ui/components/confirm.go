// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/sentinel-tui/internal/ui/styles"
)

// =============================================================================
// CONFIRMATION PROMPT
// =============================================================================

// ConfirmResultMsg is emitted when a confirmation prompt closes.
type ConfirmResultMsg struct {
	ID        string
	Confirmed bool
}

// Confirm is a modal yes/no dialog guarding a destructive action.
type Confirm struct {
	id       string
	title    string
	question string
	danger   bool

	visible  bool
	selected int
	width    int
	height   int

	theme *styles.Theme
}

// Button options
const (
	ButtonConfirm = 0
	ButtonCancel  = 1
	buttonCount   = 2
)

// NewConfirm creates a hidden confirmation prompt.
func NewConfirm(theme *styles.Theme) *Confirm {
	return &Confirm{theme: theme}
}

// Show opens the prompt. Dangerous prompts start on Cancel.
func (c *Confirm) Show(id, title, question string, danger bool) {
	c.id = id
	c.title = title
	c.question = question
	c.danger = danger
	c.visible = true
	c.selected = ButtonConfirm
	if danger {
		c.selected = ButtonCancel
	}
}

// Hide closes the prompt without emitting a result.
func (c *Confirm) Hide() {
	c.visible = false
}

// IsVisible returns whether the prompt is visible.
func (c *Confirm) IsVisible() bool {
	return c.visible
}

// Selected returns the highlighted button.
func (c *Confirm) Selected() int {
	return c.selected
}

// SetSize updates the area the prompt is centered in.
func (c *Confirm) SetSize(width, height int) {
	c.width = width
	c.height = height
}

// =============================================================================
// BUBBLE TEA METHODS
// =============================================================================

// Update handles key events while visible. The bool reports whether the
// message was consumed; a visible prompt consumes every key.
func (c *Confirm) Update(msg tea.Msg) (tea.Cmd, bool) {
	if !c.visible {
		return nil, false
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil, false
	}

	switch keyMsg.String() {
	case "left", "h", "shift+tab":
		c.selected = (c.selected - 1 + buttonCount) % buttonCount
	case "right", "l", "tab":
		c.selected = (c.selected + 1) % buttonCount
	case "enter", " ":
		return c.close(c.selected == ButtonConfirm), true
	case "esc", "n":
		return c.close(false), true
	case "y":
		return c.close(true), true
	}
	return nil, true
}

func (c *Confirm) close(confirmed bool) tea.Cmd {
	id := c.id
	c.Hide()
	return func() tea.Msg {
		return ConfirmResultMsg{ID: id, Confirmed: confirmed}
	}
}

// =============================================================================
// VIEW RENDERING
// =============================================================================

// View renders the prompt, centered when a size is known.
func (c *Confirm) View() string {
	if !c.visible {
		return ""
	}

	accent := styles.Indigo
	if c.danger {
		accent = styles.Rose
	}

	var content strings.Builder
	content.WriteString(lipgloss.NewStyle().Foreground(accent).Bold(true).Render(c.title))
	content.WriteString("\n\n")
	content.WriteString(c.question)
	content.WriteString("\n\n")
	content.WriteString(c.renderButtons())
	content.WriteString("\n\n")
	content.WriteString(c.theme.Muted.Italic(true).Render("y=Yes  n=No  Tab=Navigate"))

	box := c.theme.Modal.BorderForeground(accent).Width(modalWidth(c.width)).Render(content.String())
	return place(c.width, c.height, box)
}

func (c *Confirm) renderButtons() string {
	labels := [buttonCount]string{"Yes", "Cancel"}
	buttons := make([]string, 0, buttonCount)
	for i, label := range labels {
		style := c.theme.Button
		if i == c.selected {
			style = c.theme.ButtonActive
			if c.danger && i == ButtonConfirm {
				style = style.Background(styles.Rose)
			}
		}
		buttons = append(buttons, style.Render(label))
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, buttons...)
}

// modalWidth sizes a modal for a terminal of the given width.
func modalWidth(termWidth int) int {
	w := 60
	if termWidth > 0 && termWidth < 80 {
		w = termWidth - 10
	}
	if w < 30 {
		w = 30
	}
	return w
}

func place(width, height int, box string) string {
	if width > 0 && height > 0 {
		return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
	}
	return box
}
