// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"fmt"
	"net/http"
)

// Backend paths, relative to the base URL.
const (
	PathLogin         = "/login"
	PathDashboard     = "/admin/dashboard"
	PathLoginAttempts = "/admin/login-attempts"
	PathFileAccess    = "/admin/file-access"
	PathRiskUsers     = "/admin/risk-users"
	PathAccessRequest = "/files/access"
)

// SuspendPath returns the suspend endpoint for a user id.
func SuspendPath(id int) string {
	return fmt.Sprintf("/admin/users/%d/suspend", id)
}

// =============================================================================
// AUTHENTICATION
// =============================================================================

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login exchanges credentials for a token and Identity. A rejected login
// (401 or 403, e.g. a suspended account) is an *APIError wrapping
// ErrInvalidCredentials.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResponse, error) {
	var out LoginResponse
	err := c.do(ctx, http.MethodPost, PathLogin, loginRequest{Username: username, Password: password}, &out,
		func(status int) error {
			switch {
			case status == http.StatusUnauthorized, status == http.StatusForbidden:
				return ErrInvalidCredentials
			case status >= 500:
				return ErrBackendUnavailable
			}
			return nil
		})
	if err != nil {
		return LoginResponse{}, err
	}
	if out.Token == "" {
		return LoginResponse{}, fmt.Errorf("login response carried no token")
	}
	if !out.User.Role.Valid() {
		return LoginResponse{}, fmt.Errorf("login response carried unknown role %q", out.User.Role)
	}
	return out, nil
}

// =============================================================================
// OPERATOR CONSOLE
// =============================================================================

// Dashboard fetches the aggregate counters.
func (c *Client) Dashboard(ctx context.Context) (DashboardStats, error) {
	var out struct {
		Stats DashboardStats `json:"stats"`
	}
	if err := c.do(ctx, http.MethodGet, PathDashboard, nil, &out, authorized); err != nil {
		return DashboardStats{}, err
	}
	return out.Stats, nil
}

// LoginAttempts fetches the login log in server order.
func (c *Client) LoginAttempts(ctx context.Context) ([]LoginAttempt, error) {
	var out struct {
		Attempts []LoginAttempt `json:"attempts"`
	}
	if err := c.do(ctx, http.MethodGet, PathLoginAttempts, nil, &out, authorized); err != nil {
		return nil, err
	}
	return out.Attempts, nil
}

// FileAccesses fetches the file access log in server order.
func (c *Client) FileAccesses(ctx context.Context) ([]FileAccessRecord, error) {
	var out struct {
		Accesses []FileAccessRecord `json:"accesses"`
	}
	if err := c.do(ctx, http.MethodGet, PathFileAccess, nil, &out, authorized); err != nil {
		return nil, err
	}
	return out.Accesses, nil
}

// RiskUsers fetches the risk-ranked users in server order.
func (c *Client) RiskUsers(ctx context.Context) ([]RiskUser, error) {
	var out struct {
		RiskUsers []RiskUser `json:"risk_users"`
	}
	if err := c.do(ctx, http.MethodGet, PathRiskUsers, nil, &out, authorized); err != nil {
		return nil, err
	}
	return out.RiskUsers, nil
}

// SuspendUser suspends the account with the given id and returns the server's
// confirmation message. Unknown or already-suspended users come back as an
// *APIError like any other refusal.
func (c *Client) SuspendUser(ctx context.Context, id int) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, SuspendPath(id), nil, &out, authorized); err != nil {
		return "", err
	}
	return out.Message, nil
}

// =============================================================================
// ACCESS REQUESTS
// =============================================================================

// accessRequest carries the path under both field names backends accept.
type accessRequest struct {
	Path     string `json:"path"`
	FilePath string `json:"file_path"`
}

// RequestAccess asks the backend for a verdict on path. A denial (403) is an
// *APIError wrapping ErrForbidden whose Message and RiskLevel are the
// verdict's. A 2xx answer is a grant unless its body says allowed=false.
func (c *Client) RequestAccess(ctx context.Context, path string) (AccessVerdict, error) {
	var out struct {
		Allowed   *bool     `json:"allowed"`
		Message   string    `json:"message"`
		RiskLevel RiskLevel `json:"risk_level"`
	}
	if err := c.do(ctx, http.MethodPost, PathAccessRequest, accessRequest{Path: path, FilePath: path}, &out, authorized); err != nil {
		return AccessVerdict{}, err
	}
	return AccessVerdict{
		Allowed:   out.Allowed == nil || *out.Allowed,
		Message:   out.Message,
		RiskLevel: out.RiskLevel,
	}, nil
}
