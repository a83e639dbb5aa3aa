// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the sentinel TUI.

# Colors (colors.go)

All colors are Lip Gloss AdaptiveColor values, resolved against the terminal
background at render time. Risk severities map to a fixed scale:

	critical - Rose
	high     - Orange
	medium   - Amber
	low      - Emerald

Every colored status also carries an ASCII indicator ([OK], [X], [!], [i]) so
meaning never depends on color alone.

# Theme (theme.go)

	theme := styles.NewTheme(cfg.UI.Theme) // "auto", "dark" or "light"
	fmt.Println(theme.RiskBadge(api.RiskHigh))
	fmt.Println(theme.ScoreBar(78.5, 20, api.RiskHigh))

# Spinners (spinner.go)

SpinnerConfig values convert to bubbles spinner models for pending requests.
*/
package styles
