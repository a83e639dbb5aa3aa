// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"io"
	"os"

	"github.com/muesli/termenv"
	"github.com/peterh/liner"
	"golang.org/x/term"
)

// =============================================================================
// TTY DETECTION
// =============================================================================

const (
	// DefaultTerminalWidth is the fallback width when detection fails
	DefaultTerminalWidth = 80

	// MinTerminalWidth is the minimum width we'll use for wrapping
	MinTerminalWidth = 40
)

// isTerminal reports whether s is a terminal file.
func isTerminal(s any) bool {
	f, ok := s.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// terminalWidth returns the width of w, or DefaultTerminalWidth when w is
// not a terminal.
func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return DefaultTerminalWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return DefaultTerminalWidth
	}
	if width < MinTerminalWidth {
		return MinTerminalWidth
	}
	return width
}

// colorProfile returns the profile to render output for w with. NO_COLOR and
// non-terminal writers get plain text.
func colorProfile(w io.Writer) termenv.Profile {
	if os.Getenv("NO_COLOR") != "" || !isTerminal(w) {
		return termenv.Ascii
	}
	return termenv.EnvColorProfile()
}

// =============================================================================
// INTERACTIVE INPUT
// =============================================================================

// prompter reads answers from the user. *liner.State implements it.
type prompter interface {
	Prompt(prompt string) (string, error)
	PasswordPrompt(prompt string) (string, error)
	Close() error
}

// prompter opens a line editor on the terminal. operation names what the
// prompt is for in the error returned when stdin is not a terminal.
func (a *app) prompter(operation string) (prompter, error) {
	if a.newPrompter != nil {
		return a.newPrompter(), nil
	}
	if !isTerminal(a.stdin) {
		return nil, &TTYRequiredError{Operation: operation}
	}
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	return line, nil
}
