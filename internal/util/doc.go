// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the sentinel packages.
//
// # Key Functions
//
//   - AtomicWriteFile: crash-safe file writing with fsync
//   - TruncateWidth: display-width aware truncation for table cells
//   - PadWidth: right-pad a string to a display width
//
// # Usage
//
//	cell := util.TruncateWidth(record.FilePath, 32)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
