// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/sentinel-tui/internal/ui/styles"
	"github.com/jeranaias/sentinel-tui/internal/util"
)

// Header is the title bar: view title on the left, a subtitle such as the
// signed-in user on the right.
type Header struct {
	Title    string
	Subtitle string
	Width    int
	theme    *styles.Theme
}

// NewHeader creates a Header.
func NewHeader(theme *styles.Theme, title string) *Header {
	return &Header{Title: title, Width: 80, theme: theme}
}

// View renders the header.
func (h *Header) View() string {
	title := h.theme.HeaderTitle.Render("sentinel") + " " + h.theme.Muted.Render("/") + " " +
		h.theme.HeaderTitle.Render(h.Title)
	sub := h.theme.HeaderUser.Render(h.Subtitle)

	inner := h.Width - 2
	gap := inner - lipgloss.Width(title) - lipgloss.Width(sub)
	if gap < 1 {
		sub = h.theme.HeaderUser.Render(util.TruncateWidth(h.Subtitle, inner-lipgloss.Width(title)-1))
		gap = 1
	}
	return h.theme.Header.Render(title + strings.Repeat(" ", gap) + sub)
}

// RenderTabs renders a tab strip with the active tab highlighted.
func RenderTabs(theme *styles.Theme, titles []string, active int) string {
	tabs := make([]string, len(titles))
	for i, title := range titles {
		if i == active {
			tabs[i] = theme.TabActive.Render(title)
		} else {
			tabs[i] = theme.Tab.Render(title)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}
