// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api is the client for the security-monitoring backend.
//
// The backend owns authentication, risk scoring and access decisions; this
// package only moves its JSON over HTTP and classifies failures.
//
// # Key Types
//
//   - Client: rate-limited, circuit-broken HTTP client. WithToken returns a
//     copy that authenticates its calls.
//   - Identity, LoginAttempt, FileAccessRecord, RiskUser, DashboardStats: wire types.
//   - APIError: any non-2xx response, carrying the server message and, for
//     file access denials, the risk level.
//
// # Errors
//
// Classify with errors.Is:
//
//	ErrInvalidCredentials  login rejected (401/403 on /login)
//	ErrUnauthorized        token missing, expired or invalid (401 elsewhere)
//	ErrForbidden           authenticated but not permitted (403)
//	ErrBackendUnavailable  transport failure, 5xx, or circuit open
//
// # Usage
//
//	c := api.NewClient(api.Options{BaseURL: cfg.Server.URL})
//	res, err := c.Login(ctx, "admin", "admin123")
//	stats, err := c.WithToken(res.Token).Dashboard(ctx)
package api
