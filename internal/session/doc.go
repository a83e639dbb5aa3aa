// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the authenticated-identity lifecycle.
//
// The Manager is a two-state machine, Anonymous and Authenticated. It is the
// only writer of the credential store and the single source of truth for the
// current Identity. Views get a read-only surface (Identity, Token, State)
// plus a Deauthenticator bound to the generation they were mounted under, so
// a late 401 from a torn-down view can never log out a newer session.
//
// # Key Types
//
//   - Manager: the state machine
//   - Deauthenticator: the transition callback handed to views
//   - LoginResult: identity plus the one-time suspicious-login notice
//   - Event: a transition, delivered to Subscribe callbacks
//
// # Usage
//
//	mgr := session.NewManager(credStore, client)
//	_ = mgr.Restore(ctx)
//	res, err := mgr.Login(ctx, "admin", "admin123")
//	if err != nil {
//	    fmt.Println(session.FailureMessage(err))
//	}
//	if res.Notice != "" {
//	    // show before mounting the role view
//	}
//	deauth := mgr.DeauthenticatorFor(res.Generation)
package session
