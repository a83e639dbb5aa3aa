// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store persists the session credential (token plus Identity) in a
// SQLite key/value table under the fixed keys "token" and "user". The token
// is sealed with NaCl secretbox under a per-installation key file.
//
// Only the session manager writes here, and the store is read once at
// startup.
package store
