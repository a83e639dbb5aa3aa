// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package access implements the employee file-access request workflow.
//
// A Workflow allows one request in flight at a time. Every completed request,
// whatever its outcome, leaves exactly one Result behind: the backend's verdict
// when it answered, or a denial when it did not. The allow/deny decision and
// the risk level are computed by the backend and only reported here.
package access
