// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// CONFIRMATION
// =============================================================================

// ConfirmationOptions controls requireConfirmation.
type ConfirmationOptions struct {
	// ConfirmFlag is set when --yes was passed; no prompt is shown.
	ConfirmFlag bool
	// JSONMode requires ConfirmFlag, since JSON output never prompts.
	JSONMode bool
}

var errConfirmationRequired = errors.New("confirmation required; pass --yes")

// requireConfirmation asks question and reports whether the operator agreed.
//
// Confirmation flow:
//  1. --yes confirms immediately
//  2. --json without --yes is an error
//  3. stdin that is not a terminal is an error
//  4. otherwise a "[y/N]" prompt decides; anything but y or yes declines
func (a *app) requireConfirmation(question string, opts ConfirmationOptions) (bool, error) {
	if opts.ConfirmFlag {
		return true, nil
	}
	if opts.JSONMode {
		return false, errConfirmationRequired
	}

	p, err := a.prompter("confirm")
	if err != nil {
		var tty *TTYRequiredError
		if errors.As(err, &tty) {
			return false, fmt.Errorf("%w (%v)", errConfirmationRequired, err)
		}
		return false, err
	}
	defer p.Close()

	answer, err := p.Prompt(question + " [y/N]: ")
	if err != nil {
		return false, nil
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
