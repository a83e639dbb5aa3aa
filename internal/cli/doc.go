// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the sentinel command line.
//
// The root command starts the TUI. The remaining commands expose the same
// session, console and access workflows for scripts and terminals without a
// full screen:
//
//	sentinel                      Start the TUI (same as "sentinel tui")
//	sentinel login                Sign in and store the session
//	sentinel logout               End the stored session
//	sentinel whoami               Show the signed-in identity
//	sentinel watch                Poll the operator console (admin)
//	sentinel suspend <user>       Suspend a user (admin)
//	sentinel access <path>        Request file access (exit 2 when denied)
//	sentinel catalog              List the quick-access files
//	sentinel config ...           Show, initialise or edit the configuration
//	sentinel version              Print version information
//
// Commands that print data accept --json and emit a JSONResponse envelope.
package cli
