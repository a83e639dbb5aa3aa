// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// =============================================================================
// ENUMERATIONS
// =============================================================================

// Role is the privilege class of an Identity.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
)

// Valid reports whether r is a role the client knows how to route.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleEmployee
}

// LoginStatus is the outcome recorded for a login attempt.
type LoginStatus string

const (
	LoginSuccess    LoginStatus = "success"
	LoginFailed     LoginStatus = "failed"
	LoginSuspicious LoginStatus = "suspicious"
)

// RiskLevel classifies file access records, access verdicts and risk users.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Rank orders levels from 0 (low) to 3 (critical). Unknown levels rank -1.
func (l RiskLevel) Rank() int {
	switch l {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	case RiskCritical:
		return 3
	default:
		return -1
	}
}

// AccessAction is what the backend did with a file access request.
type AccessAction string

const (
	ActionAllowed AccessAction = "allowed"
	ActionDenied  AccessAction = "denied"
)

// =============================================================================
// ENTITIES
// =============================================================================

// Identity is the authenticated principal. The backend may omit ID.
type Identity struct {
	ID           int    `json:"id,omitempty"`
	Username     string `json:"username"`
	Role         Role   `json:"role"`
	IsSuspicious bool   `json:"is_suspicious"`
}

// IsAdmin reports whether the identity routes to the operator console.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// LoginAttempt is one row of the backend's login log.
type LoginAttempt struct {
	ID           int         `json:"id"`
	Username     string      `json:"username"`
	Status       LoginStatus `json:"status"`
	Timestamp    Timestamp   `json:"timestamp"`
	IPAddress    string      `json:"ip_address"`
	DeviceInfo   string      `json:"device_info"`
	Location     string      `json:"location"`
	IsSuspicious bool        `json:"is_suspicious"`
}

// FileAccessRecord is one row of the backend's file access log.
type FileAccessRecord struct {
	ID           int          `json:"id"`
	Username     string       `json:"username"`
	FilePath     string       `json:"file_path"`
	Action       AccessAction `json:"action"`
	RiskLevel    RiskLevel    `json:"risk_level"`
	Timestamp    Timestamp    `json:"timestamp"`
	IsAuthorized bool         `json:"is_authorized"`
}

// RiskUser is a user with a non-zero risk score. Scores change server-side
// between polls; the client never diffs them.
type RiskUser struct {
	ID              int        `json:"id"`
	Username        string     `json:"username"`
	Email           string     `json:"email"`
	RiskScore       float64    `json:"risk_score"`
	Status          RiskLevel  `json:"status"`
	Reasons         string     `json:"reasons"`
	AnomalyDetected bool       `json:"anomaly_detected"`
	LastLogin       *Timestamp `json:"last_login,omitempty"`
}

// DashboardStats are the backend's aggregate counters.
type DashboardStats struct {
	TotalUsers   int `json:"total_users"`
	ActiveUsers  int `json:"active_users"`
	TodayLogins  int `json:"today_logins"`
	FailedLogins int `json:"failed_logins"`
	BlockedFiles int `json:"blocked_files"`
	RiskUsers    int `json:"risk_users"`
}

// LoginResponse is the body of a successful login.
type LoginResponse struct {
	Token string   `json:"token"`
	User  Identity `json:"user"`
}

// AccessVerdict is the backend's decision on a file access request.
type AccessVerdict struct {
	Allowed   bool      `json:"allowed"`
	Message   string    `json:"message"`
	RiskLevel RiskLevel `json:"risk_level"`
}

// =============================================================================
// TIMESTAMPS
// =============================================================================

// Timestamp decodes the backend's timestamps. RFC 3339 values keep their zone;
// naive ISO-8601 values (no zone) are taken as UTC.
type Timestamp struct {
	time.Time
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses s with the same rules as Timestamp's JSON decoding.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// UnmarshalJSON implements json.Unmarshaler. null and "" leave the zero time.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// At wraps t as a Timestamp.
func At(t time.Time) Timestamp {
	return Timestamp{Time: t}
}
