// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package console

import (
	"math"
	"sort"

	"github.com/jeranaias/sentinel-tui/internal/api"
)

// HighlightLimit caps the failed-login and blocked-file highlights.
const HighlightLimit = 5

// FailedLogins returns the failed login attempts, most recent first, at most
// HighlightLimit of them.
func FailedLogins(s *Snapshot) []api.LoginAttempt {
	if s == nil {
		return nil
	}
	var out []api.LoginAttempt
	for _, a := range s.Attempts {
		if a.Status == api.LoginFailed {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp.Time)
	})
	return capped(out)
}

// BlockedFiles returns the unauthorized file accesses, most recent first, at
// most HighlightLimit of them.
func BlockedFiles(s *Snapshot) []api.FileAccessRecord {
	if s == nil {
		return nil
	}
	var out []api.FileAccessRecord
	for _, r := range s.Accesses {
		if !r.IsAuthorized {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp.Time)
	})
	return capped(out)
}

func capped[T any](items []T) []T {
	if len(items) > HighlightLimit {
		return items[:HighlightLimit]
	}
	return items
}

// RiskRanking returns the risk users in the order the backend sent them.
func RiskRanking(s *Snapshot) []api.RiskUser {
	if s == nil {
		return nil
	}
	return s.RiskUsers
}

// Severity is the visual weight of a risk status.
type Severity int

const (
	SeverityUnknown Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// SeverityOf maps a risk status to its Severity.
func SeverityOf(status api.RiskLevel) Severity {
	switch status {
	case api.RiskLow:
		return SeverityLow
	case api.RiskMedium:
		return SeverityMedium
	case api.RiskHigh:
		return SeverityHigh
	case api.RiskCritical:
		return SeverityCritical
	default:
		return SeverityUnknown
	}
}

// BarFill returns how many of width cells a score bar fills: score/100 of
// the width, rounded, clamped to [0, width].
func BarFill(score float64, width int) int {
	if width <= 0 || math.IsNaN(score) {
		return 0
	}
	fill := int(math.Round(score / 100 * float64(width)))
	switch {
	case fill < 0:
		return 0
	case fill > width:
		return width
	default:
		return fill
	}
}
