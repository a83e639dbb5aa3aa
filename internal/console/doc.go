// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package console is the operator console core: the four-way polling
// refresh, the atomically swapped Snapshot, the suspend action and the pure
// projections the views render.
//
// # Key Types
//
//   - Poller: runs refresh cycles and holds the committed Snapshot
//   - Snapshot: one cycle's stats, login attempts, file accesses and risk users
//   - Runner: headless scheduler (immediate refresh, then every RefreshInterval)
//   - Tab: which projection a view shows
//
// # Cycle Rules
//
// Every Refresh takes the next cycle number and fetches the four data sets
// concurrently. The Snapshot is replaced, in one pointer swap, only if all
// four fetches succeeded, the Poller has not been stopped, and no later cycle
// has already been committed. A failed fetch leaves the previous Snapshot in
// place; a 401 additionally hands control back to the session through the
// Deauthenticator.
package console
