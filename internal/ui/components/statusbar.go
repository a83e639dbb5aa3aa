// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/jeranaias/sentinel-tui/internal/ui/styles"
	"github.com/jeranaias/sentinel-tui/internal/util"
)

// Shortcut is one key hint shown on the status bar.
type Shortcut struct {
	Key  string
	Desc string
}

// StatusBar is the bottom line: identity and session on the left, key hints
// on the right. Hints are dropped from the end until the line fits.
type StatusBar struct {
	Width     int
	User      string
	Role      string
	Remaining string
	Status    string
	Shortcuts []Shortcut

	theme *styles.Theme
}

// NewStatusBar creates a StatusBar.
func NewStatusBar(theme *styles.Theme) *StatusBar {
	return &StatusBar{Width: 80, theme: theme}
}

// View renders the status bar.
func (s *StatusBar) View() string {
	var left []string
	if s.User != "" {
		who := s.User
		if s.Role != "" {
			who += " (" + s.Role + ")"
		}
		left = append(left, who)
	}
	if s.Remaining != "" {
		left = append(left, "session "+s.Remaining)
	}
	if s.Status != "" {
		left = append(left, s.Status)
	}
	leftText := strings.Join(left, " | ")

	inner := s.Width - 2
	if inner < 10 {
		inner = 10
	}

	hints := s.Shortcuts
	var right string
	for {
		right = s.renderHints(hints)
		if len(hints) == 0 || util.StringWidth(leftText)+util.StringWidth(right)+2 <= inner {
			break
		}
		hints = hints[:len(hints)-1]
	}

	leftText = util.TruncateWidth(leftText, inner-util.StringWidth(right)-1)
	gap := inner - util.StringWidth(leftText) - util.StringWidth(right)
	if gap < 1 {
		gap = 1
	}
	return s.theme.StatusBar.Render(leftText + strings.Repeat(" ", gap) + right)
}

func (s *StatusBar) renderHints(hints []Shortcut) string {
	parts := make([]string, 0, len(hints))
	for _, h := range hints {
		parts = append(parts, s.theme.ShortcutKey.Render(h.Key)+" "+s.theme.ShortcutDesc.Render(h.Desc))
	}
	return strings.Join(parts, "  ")
}
