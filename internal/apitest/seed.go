// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package apitest

import (
	"time"

	"github.com/jeranaias/sentinel-tui/internal/api"
)

// Default accounts.
const (
	AdminUser     = "admin"
	AdminPassword = "admin123"

	EmployeeUser     = "john"
	EmployeePassword = "john123"

	// RiskyUser is flagged suspicious on every login.
	RiskyUser     = "bob"
	RiskyPassword = "bob123"
)

func (s *Server) seed() {
	s.addUserLocked(User{ID: 1, Username: AdminUser, Password: AdminPassword, Role: api.RoleAdmin})
	s.addUserLocked(User{ID: 2, Username: EmployeeUser, Password: EmployeePassword})
	s.addUserLocked(User{ID: 3, Username: RiskyUser, Password: RiskyPassword, Suspicious: true})

	base := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	at := func(min int) api.Timestamp { return api.Timestamp{Time: base.Add(time.Duration(min) * time.Minute)} }

	s.attempts = []api.LoginAttempt{
		{ID: 4, Username: RiskyUser, Status: api.LoginFailed, Timestamp: at(30), IPAddress: "203.0.113.7", DeviceInfo: "curl/8.0", Location: "Unknown"},
		{ID: 3, Username: RiskyUser, Status: api.LoginSuspicious, Timestamp: at(20), IPAddress: "203.0.113.7", DeviceInfo: "curl/8.0", Location: "Unknown", IsSuspicious: true},
		{ID: 2, Username: EmployeeUser, Status: api.LoginSuccess, Timestamp: at(10), IPAddress: "10.0.0.12", DeviceInfo: "Firefox", Location: "Local Network"},
		{ID: 1, Username: RiskyUser, Status: api.LoginFailed, Timestamp: at(0), IPAddress: "203.0.113.7", DeviceInfo: "curl/8.0", Location: "Unknown"},
	}
	s.accesses = []api.FileAccessRecord{
		{ID: 2, Username: RiskyUser, FilePath: "/admin/user_credentials.db", Action: api.ActionDenied, RiskLevel: api.RiskCritical, Timestamp: at(25)},
		{ID: 1, Username: EmployeeUser, FilePath: "/documents/report.pdf", Action: api.ActionAllowed, RiskLevel: api.RiskLow, Timestamp: at(15), IsAuthorized: true},
	}

	lastLogin := at(20)
	s.riskUsers = sortedRiskUsers([]api.RiskUser{
		{ID: 2, Username: EmployeeUser, Email: "john@company.com", RiskScore: 12, Status: api.RiskLow, Reasons: "None"},
		{ID: 3, Username: RiskyUser, Email: "bob@company.com", RiskScore: 78.5, Status: api.RiskHigh,
			Reasons: "Multiple failed logins, Unauthorized file access", AnomalyDetected: true, LastLogin: &lastLogin},
	})
}
