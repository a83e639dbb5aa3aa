// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package console

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/sentinel-tui/internal/api"
)

func ts(minute int) api.Timestamp {
	return api.Timestamp{Time: time.Date(2025, 5, 1, 10, minute, 0, 0, time.UTC)}
}

func TestFailedLogins(t *testing.T) {
	snap := &Snapshot{Attempts: []api.LoginAttempt{
		{ID: 1, Status: api.LoginFailed, Timestamp: ts(1)},
		{ID: 2, Status: api.LoginSuccess, Timestamp: ts(9)},
		{ID: 3, Status: api.LoginFailed, Timestamp: ts(7)},
		{ID: 4, Status: api.LoginSuspicious, Timestamp: ts(8)},
		{ID: 5, Status: api.LoginFailed, Timestamp: ts(3)},
		{ID: 6, Status: api.LoginFailed, Timestamp: ts(5)},
		{ID: 7, Status: api.LoginFailed, Timestamp: ts(2)},
		{ID: 8, Status: api.LoginFailed, Timestamp: ts(6)},
	}}

	got := FailedLogins(snap)
	require.Len(t, got, HighlightLimit)

	ids := make([]int, len(got))
	for i, a := range got {
		ids[i] = a.ID
	}
	assert.Equal(t, []int{3, 8, 6, 5, 7}, ids)
	assert.Nil(t, FailedLogins(nil))
}

func TestBlockedFiles(t *testing.T) {
	snap := &Snapshot{Accesses: []api.FileAccessRecord{
		{ID: 1, IsAuthorized: true, Timestamp: ts(9)},
		{ID: 2, IsAuthorized: false, Timestamp: ts(1)},
		{ID: 3, IsAuthorized: false, Timestamp: ts(4)},
	}}

	got := BlockedFiles(snap)
	require.Len(t, got, 2)
	assert.Equal(t, 3, got[0].ID)
	assert.Equal(t, 2, got[1].ID)

	assert.Empty(t, BlockedFiles(&Snapshot{}))
}

func TestProjectionsDoNotMutateSnapshot(t *testing.T) {
	snap := &Snapshot{Attempts: []api.LoginAttempt{
		{ID: 1, Status: api.LoginFailed, Timestamp: ts(1)},
		{ID: 2, Status: api.LoginFailed, Timestamp: ts(2)},
	}}
	FailedLogins(snap)
	assert.Equal(t, 1, snap.Attempts[0].ID)
}

func TestRiskRanking_KeepsServerOrder(t *testing.T) {
	users := []api.RiskUser{
		{ID: 1, RiskScore: 10},
		{ID: 2, RiskScore: 90},
		{ID: 3, RiskScore: 50},
	}
	assert.Equal(t, users, RiskRanking(&Snapshot{RiskUsers: users}))
	assert.Nil(t, RiskRanking(nil))
}

func TestSeverityOf(t *testing.T) {
	assert.Equal(t, SeverityLow, SeverityOf(api.RiskLow))
	assert.Equal(t, SeverityMedium, SeverityOf(api.RiskMedium))
	assert.Equal(t, SeverityHigh, SeverityOf(api.RiskHigh))
	assert.Equal(t, SeverityCritical, SeverityOf(api.RiskCritical))
	assert.Equal(t, SeverityUnknown, SeverityOf("elevated"))
}

func TestBarFill(t *testing.T) {
	tests := []struct {
		score float64
		width int
		want  int
	}{
		{0, 20, 0},
		{50, 20, 10},
		{100, 20, 20},
		{87.5, 10, 9},
		{-5, 10, 0},
		{250, 10, 10},
		{math.NaN(), 10, 0},
		{50, 0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BarFill(tt.score, tt.width), "score=%v width=%d", tt.score, tt.width)
	}
}

func TestTabs(t *testing.T) {
	assert.Equal(t, TabLogins, TabDashboard.Next())
	assert.Equal(t, TabDashboard, TabRisks.Next())
	assert.Equal(t, TabRisks, TabDashboard.Prev())
	assert.Equal(t, "Login Attempts", TabLogins.Title())
	assert.Equal(t, "files", TabFiles.String())

	tab, err := ParseTab(" Risks ")
	require.NoError(t, err)
	assert.Equal(t, TabRisks, tab)

	_, err = ParseTab("alerts")
	assert.Error(t, err)
}
