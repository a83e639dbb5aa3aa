// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package console

import (
	"context"
	"sync"
	"time"

	"github.com/jeranaias/sentinel-tui/internal/api"
)

// tagKey carries a per-cycle tag through the context so every fetch of a
// cycle answers with data stamped by the same tag.
type tagKey struct{}

func withTag(ctx context.Context, tag int) context.Context {
	return context.WithValue(ctx, tagKey{}, tag)
}

type fakeBackend struct {
	mu sync.Mutex

	gate    chan struct{}
	entered chan string
	fail    map[string]error
	delay   func() time.Duration

	dashboardCalls int
	suspended      []int
	suspendErr     error

	inflight    int
	maxInflight int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{fail: make(map[string]error)}
}

func (f *fakeBackend) setGate(g chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = g
}

func (f *fakeBackend) setFail(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, name)
		return
	}
	f.fail[name] = err
}

func (f *fakeBackend) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dashboardCalls
}

func (f *fakeBackend) peak() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInflight
}

func (f *fakeBackend) enter(ctx context.Context, name string) (int, error) {
	f.mu.Lock()
	gate, entered, delay, err := f.gate, f.entered, f.delay, f.fail[name]
	if name == "dashboard" {
		f.dashboardCalls++
	}
	f.inflight++
	if f.inflight > f.maxInflight {
		f.maxInflight = f.inflight
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inflight--
		f.mu.Unlock()
	}()

	if entered != nil {
		entered <- name
	}
	if gate != nil {
		<-gate
	}
	if delay != nil {
		time.Sleep(delay())
	}
	tag, _ := ctx.Value(tagKey{}).(int)
	return tag, err
}

func (f *fakeBackend) Dashboard(ctx context.Context) (api.DashboardStats, error) {
	tag, err := f.enter(ctx, "dashboard")
	if err != nil {
		return api.DashboardStats{}, err
	}
	return api.DashboardStats{TotalUsers: tag}, nil
}

func (f *fakeBackend) LoginAttempts(ctx context.Context) ([]api.LoginAttempt, error) {
	tag, err := f.enter(ctx, "login-attempts")
	if err != nil {
		return nil, err
	}
	return []api.LoginAttempt{{ID: tag, Status: api.LoginFailed}}, nil
}

func (f *fakeBackend) FileAccesses(ctx context.Context) ([]api.FileAccessRecord, error) {
	tag, err := f.enter(ctx, "file-access")
	if err != nil {
		return nil, err
	}
	return []api.FileAccessRecord{{ID: tag}}, nil
}

func (f *fakeBackend) RiskUsers(ctx context.Context) ([]api.RiskUser, error) {
	tag, err := f.enter(ctx, "risk-users")
	if err != nil {
		return nil, err
	}
	return []api.RiskUser{{ID: tag, Username: "bob", Status: api.RiskHigh}}, nil
}

func (f *fakeBackend) SuspendUser(ctx context.Context, id int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.suspendErr != nil {
		return "", f.suspendErr
	}
	f.suspended = append(f.suspended, id)
	return "User bob suspended", nil
}

// tagsOf returns the tag each of the four data sets was stamped with.
func tagsOf(s *Snapshot) [4]int {
	return [4]int{s.Stats.TotalUsers, s.Attempts[0].ID, s.Accesses[0].ID, s.RiskUsers[0].ID}
}

// recordingDeauth counts deauthentication calls.
type recordingDeauth struct {
	mu      sync.Mutex
	reasons []error
}

func (d *recordingDeauth) Deauthenticate(reason error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reasons = append(d.reasons, reason)
}

func (d *recordingDeauth) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.reasons)
}
