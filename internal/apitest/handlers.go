// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package apitest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"

	"github.com/jeranaias/sentinel-tui/internal/api"
)

type claims struct {
	UserID   int      `json:"user_id"`
	Username string   `json:"username"`
	Role     api.Role `json:"role"`
	jwt.RegisteredClaims
}

type ctxKey struct{}

// IssueToken signs a token for the named account. It panics for an unknown
// account.
func (s *Server) IssueToken(username string) string {
	s.mu.Lock()
	u, ok := s.users[username]
	s.mu.Unlock()
	if !ok {
		panic(fmt.Sprintf("apitest: unknown user %q", username))
	}
	return s.sign(u, s.now().Add(TokenTTL))
}

// IssueExpiredToken signs a token for the named account that expired an hour
// ago.
func (s *Server) IssueExpiredToken(username string) string {
	s.mu.Lock()
	u := s.users[username]
	s.mu.Unlock()
	return s.sign(u, s.now().Add(-time.Hour))
}

func (s *Server) sign(u *User, exp time.Time) string {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID:   u.ID,
		Username: u.Username,
		Role:     u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(s.now()),
		},
	})
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		panic(err)
	}
	return signed
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, found := strings.CutPrefix(header, "Bearer ")
		if !found || raw == "" {
			message(w, http.StatusUnauthorized, "Token is missing")
			return
		}

		var c claims
		_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (interface{}, error) {
			return s.secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
		if err != nil {
			message(w, http.StatusUnauthorized, "Token is invalid")
			return
		}

		s.mu.Lock()
		revoked := s.revoked[raw]
		u, ok := s.users[c.Username]
		var user User
		if ok {
			user = *u
		}
		s.mu.Unlock()
		if revoked || !ok {
			message(w, http.StatusUnauthorized, "Token is invalid")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, user)))
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if currentUser(r).Role != api.RoleAdmin {
			message(w, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func currentUser(r *http.Request) User {
	u, _ := r.Context().Value(ctxKey{}).(User)
	return u
}

// =============================================================================
// HANDLERS
// =============================================================================

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		message(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	u, ok := s.users[body.Username]
	if !ok || u.Password != body.Password {
		s.logAttemptLocked(body.Username, api.LoginFailed, false)
		s.mu.Unlock()
		message(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if u.Suspended {
		s.mu.Unlock()
		message(w, http.StatusForbidden, "Account is suspended")
		return
	}
	status := api.LoginSuccess
	if u.Suspicious {
		status = api.LoginSuspicious
	}
	s.logAttemptLocked(u.Username, status, u.Suspicious)
	user := *u
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"token": s.sign(&user, s.now().Add(TokenTTL)),
		"user": map[string]any{
			"username":      user.Username,
			"role":          user.Role,
			"is_suspicious": user.Suspicious,
		},
	})
}

func (s *Server) logAttemptLocked(username string, status api.LoginStatus, suspicious bool) {
	s.attempts = append([]api.LoginAttempt{{
		ID:           len(s.attempts) + 1,
		Username:     username,
		Status:       status,
		Timestamp:    api.Timestamp{Time: s.now().UTC()},
		IPAddress:    "127.0.0.1",
		DeviceInfo:   "sentinel",
		Location:     "Local Network",
		IsSuspicious: suspicious,
	}}, s.attempts...)
}

// restrictedPrefixes deny non-admin access; "/admin/" paths are critical.
var restrictedPrefixes = []string{"/confidential/", "/admin/", "/hr/salary", "/credentials", "/passwords"}

func (s *Server) handleFileAccess(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Path     string `json:"path"`
		FilePath string `json:"file_path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		message(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	path := body.Path
	if path == "" {
		path = body.FilePath
	}
	user := currentUser(r)

	allowed, level := true, api.RiskLow
	for _, prefix := range restrictedPrefixes {
		if strings.Contains(path, prefix) {
			if user.Role != api.RoleAdmin {
				allowed, level = false, api.RiskHigh
				if strings.Contains(path, "/admin/") {
					level = api.RiskCritical
				}
			}
			break
		}
	}

	action, msg, status := api.ActionAllowed, "Access granted", http.StatusOK
	if !allowed {
		action, msg, status = api.ActionDenied, "Access denied", http.StatusForbidden
	}

	s.mu.Lock()
	s.accesses = append([]api.FileAccessRecord{{
		ID:           len(s.accesses) + 1,
		Username:     user.Username,
		FilePath:     path,
		Action:       action,
		RiskLevel:    level,
		Timestamp:    api.Timestamp{Time: s.now().UTC()},
		IsAuthorized: allowed,
	}}, s.accesses...)
	s.mu.Unlock()

	writeJSON(w, status, map[string]any{
		"allowed":    allowed,
		"risk_level": level,
		"message":    msg,
	})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stats != nil {
		writeJSON(w, http.StatusOK, map[string]any{"stats": s.stats})
		return
	}

	var stats api.DashboardStats
	for _, u := range s.users {
		stats.TotalUsers++
		if !u.Suspended {
			stats.ActiveUsers++
		}
	}
	for _, a := range s.attempts {
		if a.Status == api.LoginFailed {
			stats.FailedLogins++
		} else {
			stats.TodayLogins++
		}
	}
	for _, a := range s.accesses {
		if !a.IsAuthorized {
			stats.BlockedFiles++
		}
	}
	stats.RiskUsers = len(s.riskUsers)
	writeJSON(w, http.StatusOK, map[string]any{"stats": stats})
}

func (s *Server) handleLoginAttempts(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"attempts": nonNil(s.attempts)})
}

func (s *Server) handleFileAccessLog(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"accesses": nonNil(s.accesses)})
}

func (s *Server) handleRiskUsers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"risk_users": nonNil(s.riskUsers)})
}

func (s *Server) handleSuspend(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		message(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.userByIDLocked(id)
	if err != nil {
		message(w, http.StatusNotFound, "User not found")
		return
	}
	u.Suspended = true
	message(w, http.StatusOK, fmt.Sprintf("User %s suspended", u.Username))
}

var errNoUser = errors.New("no such user")

func (s *Server) userByIDLocked(id int) (*User, error) {
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, errNoUser
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
