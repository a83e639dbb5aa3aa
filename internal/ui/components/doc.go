// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides reusable widgets for the sentinel TUI: the
// confirmation prompt, blocking notices, the header and the status bar.
//
// Modal widgets follow one convention: Update returns (tea.Cmd, bool) where
// the bool reports whether the message was consumed, so a parent forwards
// input to a visible modal first and stops there when it is.
package components
