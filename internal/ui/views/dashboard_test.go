// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package views

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/sentinel-tui/internal/api"
	"github.com/jeranaias/sentinel-tui/internal/apitest"
	"github.com/jeranaias/sentinel-tui/internal/console"
	"github.com/jeranaias/sentinel-tui/internal/session"
)

const testGen = 7

type dashboardFixture struct {
	d       *Dashboard
	srv     *apitest.Server
	sched   *fakeScheduler
	deauths *atomic.Int32
}

func newDashboardFixture(t *testing.T) *dashboardFixture {
	t.Helper()
	srv := apitest.New(t)
	client := srv.Client().WithToken(srv.IssueToken(apitest.AdminUser))

	deauths := new(atomic.Int32)
	p := console.NewPoller(client, session.DeauthenticatorFunc(func(error) { deauths.Add(1) }))
	t.Cleanup(p.Stop)

	sched := &fakeScheduler{}
	d := NewDashboard(p, testGen, api.Identity{Username: apitest.AdminUser, Role: api.RoleAdmin}, testTheme(),
		WithScheduler(sched.schedule))
	d.SetSize(140, 40)
	return &dashboardFixture{d: d, srv: srv, sched: sched, deauths: deauths}
}

// start runs Init and applies the first refresh.
func (f *dashboardFixture) start(t *testing.T) {
	t.Helper()
	refreshed := only[RefreshedMsg](t, run(f.d.Init()))
	require.Equal(t, console.Committed, refreshed.Outcome)
	f.d.Update(refreshed)
}

func TestDashboard_InitRefreshesAndArmsTick(t *testing.T) {
	f := newDashboardFixture(t)
	assert.Contains(t, f.d.View(), "Loading")

	f.start(t)
	require.Equal(t, 1, f.sched.count())
	assert.Equal(t, []time.Duration{console.RefreshInterval}, f.sched.delays)

	view := f.d.View()
	assert.Contains(t, view, "Total Users")
	assert.Contains(t, view, "Recent Failed Logins")
	assert.Contains(t, view, "203.0.113.7")
	assert.Contains(t, view, "/admin/user_credentials.db")
}

func TestDashboard_TickChainsRefreshAndNextTick(t *testing.T) {
	f := newDashboardFixture(t)
	f.start(t)

	tick := f.sched.fire(t)
	require.IsType(t, TickMsg{}, tick)

	_, cmd := f.d.Update(tick)
	refreshed := only[RefreshedMsg](t, run(cmd))
	assert.Equal(t, console.Committed, refreshed.Outcome)
	assert.Equal(t, 1, f.sched.count(), "next tick armed")
	assert.Equal(t, 2, f.srv.Calls("/admin/dashboard"))
}

func TestDashboard_TickFromOtherMountOrAfterStopIsDropped(t *testing.T) {
	f := newDashboardFixture(t)
	f.start(t)

	_, cmd := f.d.Update(TickMsg{Gen: testGen + 1, At: time.Now()})
	assert.Nil(t, cmd)

	tick := f.sched.fire(t)
	f.d.Stop()
	f.d.Stop()
	assert.True(t, f.d.Stopped())

	_, cmd = f.d.Update(tick)
	assert.Nil(t, cmd)
	assert.Zero(t, f.sched.count(), "chain ended")
	assert.Equal(t, 1, f.srv.Calls("/admin/dashboard"))
}

func TestDashboard_FailedRefreshKeepsData(t *testing.T) {
	f := newDashboardFixture(t)
	f.start(t)

	f.srv.Fail("/admin/risk-users", apitest.Failure{Status: http.StatusInternalServerError})
	_, cmd := f.d.Update(f.sched.fire(t))
	refreshed := only[RefreshedMsg](t, run(cmd))
	require.Equal(t, console.Failed, refreshed.Outcome)
	f.d.Update(refreshed)

	view := f.d.View()
	assert.Contains(t, view, "refresh failed")
	assert.Contains(t, view, "Total Users")
	assert.Zero(t, f.deauths.Load())

	f.d.Update(RefreshedMsg{Gen: testGen + 1, Outcome: console.Committed})
	assert.Contains(t, f.d.View(), "refresh failed", "other mount's result ignored")
}

func TestDashboard_RendersOnlyAppliedSnapshot(t *testing.T) {
	f := newDashboardFixture(t)

	outcome, err := f.d.poller.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, console.Committed, outcome)
	view := f.d.View()
	assert.Contains(t, view, "Loading", "commit without RefreshedMsg is not shown")
	assert.NotContains(t, view, "Updated")

	f.d.Update(RefreshedMsg{Gen: testGen, Outcome: console.Committed})
	assert.Contains(t, f.d.View(), "Total Users")

	f.srv.SetStats(api.DashboardStats{TotalUsers: 987})
	outcome, err = f.d.poller.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, console.Committed, outcome)
	assert.NotContains(t, f.d.View(), "987", "overview stays on the applied snapshot")

	f.d.Update(RefreshedMsg{Gen: testGen, Outcome: console.Committed})
	assert.Contains(t, f.d.View(), "987")
}

func TestDashboard_UnauthorizedRefreshDeauthenticates(t *testing.T) {
	f := newDashboardFixture(t)
	f.srv.Fail("/admin/login-attempts", apitest.Failure{Status: http.StatusUnauthorized, Message: "Token is invalid"})

	refreshed := only[RefreshedMsg](t, run(f.d.Init()))
	assert.Equal(t, console.Failed, refreshed.Outcome)
	assert.ErrorIs(t, refreshed.Err, api.ErrUnauthorized)
	assert.Equal(t, int32(1), f.deauths.Load())
}

func TestDashboard_TabsAndRows(t *testing.T) {
	f := newDashboardFixture(t)
	f.start(t)

	f.d.Update(press("tab"))
	assert.Equal(t, console.TabLogins, f.d.Tab())
	assert.Contains(t, f.d.View(), "curl/8.0")

	f.d.Update(press("3"))
	assert.Equal(t, console.TabFiles, f.d.Tab())
	assert.Contains(t, f.d.View(), "CRITICAL")

	f.d.Update(press("4"))
	assert.Equal(t, console.TabRisks, f.d.Tab())
	assert.Contains(t, f.d.View(), "bob@company.com")

	f.d.Update(press("tab"))
	assert.Equal(t, console.TabDashboard, f.d.Tab(), "wraps around")
}

func TestDashboard_SuspendConfirmed(t *testing.T) {
	f := newDashboardFixture(t)
	f.start(t)
	f.d.Update(press("4"))

	f.d.Update(press("s"))
	assert.Contains(t, f.d.View(), "suspend bob?")

	_, cmd := f.d.Update(press("y"))
	confirmed := run(cmd)
	_, cmd = f.d.Update(confirmed[0])
	done := only[suspendedMsg](t, run(cmd))
	require.NoError(t, done.err)
	assert.Equal(t, console.Committed, done.result.Refresh)

	f.d.Update(done)
	view := f.d.View()
	assert.Contains(t, view, console.SuspendSucceededMessage)
	assert.Contains(t, view, "User bob suspended")
	assert.Equal(t, 1, f.srv.Calls(api.SuspendPath(3)))

	f.d.Update(press("enter"))
	assert.Contains(t, f.d.View(), "bob@company.com", "notice dismissed")
}

func TestDashboard_SuspendCancelled(t *testing.T) {
	f := newDashboardFixture(t)
	f.start(t)
	f.d.Update(press("4"))

	f.d.Update(press("s"))
	_, cmd := f.d.Update(press("n"))
	_, cmd = f.d.Update(run(cmd)[0])
	assert.Nil(t, cmd)
	assert.Zero(t, f.srv.Calls(api.SuspendPath(3)))
}

func TestDashboard_SuspendOnlyFromRiskTab(t *testing.T) {
	f := newDashboardFixture(t)
	f.start(t)

	f.d.Update(press("s"))
	assert.NotContains(t, f.d.View(), "Are you sure")
}

func TestDashboard_SuspendFailureShowsNotice(t *testing.T) {
	f := newDashboardFixture(t)
	f.start(t)
	f.d.Update(press("4"))
	f.srv.Fail(api.SuspendPath(3), apitest.Failure{Status: http.StatusNotFound, Message: "User not found"})

	f.d.Update(press("s"))
	_, cmd := f.d.Update(press("y"))
	_, cmd = f.d.Update(run(cmd)[0])
	done := only[suspendedMsg](t, run(cmd))
	require.Error(t, done.err)

	f.d.Update(done)
	view := f.d.View()
	assert.Contains(t, view, console.SuspendFailedMessage)
	assert.Contains(t, view, "User not found")
	assert.Equal(t, 1, f.srv.Calls("/admin/dashboard"), "no refresh after a failed suspend")
}
