// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jeranaias/sentinel-tui/internal/api"
	"github.com/jeranaias/sentinel-tui/internal/console"
)

// Theme modes accepted by NewTheme.
const (
	ModeAuto  = "auto"
	ModeDark  = "dark"
	ModeLight = "light"
)

// Theme holds the styled components for the application.
type Theme struct {
	IsDark       bool
	ColorProfile termenv.Profile

	// ==========================================================================
	// CHROME
	// ==========================================================================

	App         lipgloss.Style
	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	HeaderUser  lipgloss.Style
	Banner      lipgloss.Style

	// ==========================================================================
	// TABS AND PANELS
	// ==========================================================================

	Tab        lipgloss.Style
	TabActive  lipgloss.Style
	Panel      lipgloss.Style
	PanelTitle lipgloss.Style
	StatValue  lipgloss.Style
	StatLabel  lipgloss.Style

	TableHeader   lipgloss.Style
	TableCell     lipgloss.Style
	TableSelected lipgloss.Style

	// ==========================================================================
	// FORMS
	// ==========================================================================

	Label        lipgloss.Style
	Input        lipgloss.Style
	InputFocused lipgloss.Style
	Button       lipgloss.Style
	ButtonActive lipgloss.Style
	Modal        lipgloss.Style

	// ==========================================================================
	// STATUS BAR
	// ==========================================================================

	StatusBar    lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style

	Muted   lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
}

// NewTheme creates a theme for mode ("auto", "dark" or "light"). Auto asks
// the terminal for its background.
func NewTheme(mode string) *Theme {
	profile := termenv.EnvColorProfile()

	var isDark bool
	switch strings.ToLower(mode) {
	case ModeDark:
		isDark = true
	case ModeLight:
		isDark = false
	default:
		isDark = termenv.HasDarkBackground()
	}
	lipgloss.SetHasDarkBackground(isDark)

	t := &Theme{IsDark: isDark, ColorProfile: profile}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.App = lipgloss.NewStyle().Padding(0, 1)

	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)
	t.HeaderTitle = lipgloss.NewStyle().Bold(true).Foreground(Indigo)
	t.HeaderUser = lipgloss.NewStyle().Foreground(TextSecondary)
	t.Banner = lipgloss.NewStyle().
		Foreground(Amber).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(Amber).
		PaddingLeft(1)

	t.Tab = lipgloss.NewStyle().Foreground(TextSecondary).Padding(0, 2)
	t.TabActive = lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(Indigo).
		Bold(true).
		Padding(0, 2)

	t.Panel = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)
	t.PanelTitle = lipgloss.NewStyle().Bold(true).Foreground(TextPrimary)
	t.StatValue = lipgloss.NewStyle().Bold(true).Foreground(Indigo)
	t.StatLabel = lipgloss.NewStyle().Foreground(TextSecondary)

	t.TableHeader = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextSecondary).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(Overlay)
	t.TableCell = lipgloss.NewStyle().Foreground(TextPrimary)
	t.TableSelected = lipgloss.NewStyle().Foreground(TextPrimary).Background(SelectionBg).Bold(true)

	t.Label = lipgloss.NewStyle().Foreground(TextSecondary)
	t.Input = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)
	t.InputFocused = t.Input.BorderForeground(Cyan)
	t.Button = lipgloss.NewStyle().
		Foreground(TextPrimary).
		Background(Overlay).
		Padding(0, 2).
		MarginRight(1)
	t.ButtonActive = lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(Indigo).
		Bold(true).
		Padding(0, 2).
		MarginRight(1)
	t.Modal = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Indigo).
		Padding(1, 2)

	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)
	t.ShortcutKey = lipgloss.NewStyle().Foreground(Cyan).Bold(true)
	t.ShortcutDesc = lipgloss.NewStyle().Foreground(TextMuted)

	t.Muted = lipgloss.NewStyle().Foreground(TextMuted)
	t.Success = lipgloss.NewStyle().Foreground(Emerald).Bold(true)
	t.Error = lipgloss.NewStyle().Foreground(Rose).Bold(true)
	t.Warning = lipgloss.NewStyle().Foreground(Amber).Bold(true)
}

// GlamourStyle returns the glamour standard style matching the theme.
func (t *Theme) GlamourStyle() string {
	switch {
	case t.ColorProfile == termenv.Ascii:
		return "notty"
	case t.IsDark:
		return "dark"
	default:
		return "light"
	}
}

var upper = cases.Upper(language.English)

// RiskLabel is the upper-cased risk level, e.g. "HIGH".
func RiskLabel(level api.RiskLevel) string {
	if level == "" {
		return "UNKNOWN"
	}
	return upper.String(string(level))
}

// RiskBadge renders a risk level in its severity color.
func (t *Theme) RiskBadge(level api.RiskLevel) string {
	return lipgloss.NewStyle().
		Foreground(SeverityColor(console.SeverityOf(level))).
		Bold(true).
		Render(RiskLabel(level))
}

// ScoreBar renders a risk score as a bar of width cells followed by the
// numeric score.
func (t *Theme) ScoreBar(score float64, width int, level api.RiskLevel) string {
	if width < 0 {
		width = 0
	}
	fill := console.BarFill(score, width)
	bar := lipgloss.NewStyle().Foreground(SeverityColor(console.SeverityOf(level))).
		Render(strings.Repeat("█", fill))
	rest := t.Muted.Render(strings.Repeat("░", width-fill))
	return bar + rest + " " + formatScore(score)
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', 1, 64)
}
