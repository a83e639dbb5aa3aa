// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"

	"github.com/jeranaias/sentinel-tui/internal/api"
	"github.com/jeranaias/sentinel-tui/internal/session"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitAccessDenied is returned by "sentinel access" when the backend
	// refuses the request.
	ExitAccessDenied = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitAuthError indicates a missing, rejected or expired session
	ExitAuthError = 4
	// ExitNetworkError indicates the backend could not be reached
	ExitNetworkError = 5
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ExitError carries a specific exit code. A Silent error has already been
// reported on stdout and is not printed again.
type ExitError struct {
	Code   int
	Err    error
	Silent bool
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// TTYRequiredError is returned when an operation needs to prompt but stdin
// is not a terminal.
type TTYRequiredError struct {
	Operation string
}

func (e *TTYRequiredError) Error() string {
	if e.Operation != "" {
		return "stdin is not a terminal; cannot " + e.Operation + " interactively"
	}
	return "stdin is not a terminal; interactive input not available"
}

var (
	errNotLoggedIn     = errors.New("not logged in; run 'sentinel login' first")
	errAdminRequired   = errors.New("this command needs an admin session")
	errSessionEnded    = errors.New("session expired or was revoked; run 'sentinel login' again")
	errAccessRefused   = errors.New("access denied")
	errUnknownRiskUser = errors.New("no risk user with that name; suspend by numeric id instead")
)

// ExitCode maps an error returned by a command to the process exit code.
func ExitCode(err error) int {
	var exitErr *ExitError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &exitErr):
		return exitErr.Code
	case errors.Is(err, errNotLoggedIn), errors.Is(err, errSessionEnded),
		errors.Is(err, api.ErrInvalidCredentials), errors.Is(err, api.ErrUnauthorized),
		errors.Is(err, session.ErrMissingCredentials):
		return ExitAuthError
	case errors.Is(err, api.ErrBackendUnavailable):
		return ExitNetworkError
	default:
		return ExitGeneralError
	}
}

func isSilent(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr) && exitErr.Silent
}
