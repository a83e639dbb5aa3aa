// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package apitest provides an in-process fake of the monitoring backend for
// tests. It speaks the same JSON contract as the real service, issues real
// HS256 tokens, and lets tests inject failures per path.
package apitest
