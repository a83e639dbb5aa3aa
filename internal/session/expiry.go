// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpiry returns the exp claim of the current token. The token is not
// verified; the client has no key and the value is only shown to the user.
// Expiry never changes state: the backend's 401 does.
func (m *Manager) TokenExpiry() (time.Time, bool) {
	return TokenExpiry(m.Token())
}

// Remaining returns the time left before the token's exp claim, or false when
// unknown.
func (m *Manager) Remaining() (time.Duration, bool) {
	exp, ok := m.TokenExpiry()
	if !ok {
		return 0, false
	}
	left := exp.Sub(m.now())
	if left < 0 {
		left = 0
	}
	return left, true
}

// TokenExpiry decodes the exp claim of a JWT without verifying it.
func TokenExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// FormatRemaining renders a remaining session time for the status bar.
func FormatRemaining(d time.Duration) string {
	switch {
	case d <= 0:
		return "expired"
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		mins := int(d.Minutes())
		secs := int(d.Seconds()) % 60
		if secs == 0 {
			return fmt.Sprintf("%dm", mins)
		}
		return fmt.Sprintf("%dm %ds", mins, secs)
	default:
		hours := int(d.Hours())
		mins := int(d.Minutes()) % 60
		if mins == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
}
