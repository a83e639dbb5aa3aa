// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging provides the zerolog-based global logger used by sentinel.
//
// While the TUI owns the terminal, log output goes to a file under the config
// directory (see OpenFile). CLI commands log to stderr.
//
// # Usage
//
//	f, _ := logging.OpenFile(path)
//	logging.Init(logging.Config{Level: "info", Format: "json", Output: f})
//	logging.Info().Int64("cycle", 3).Msg("snapshot committed")
//	logging.Warn().Err(err).Str("fetch", "risk-users").Msg("refresh failed")
//
// Always terminate event chains with Msg or Send; an unterminated chain is
// never written.
package logging
