// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package console

import (
	"context"
	"time"
)

// CycleReport is delivered to a Runner's callback after every refresh.
type CycleReport struct {
	Outcome  Outcome
	Err      error
	Snapshot *Snapshot
	// Triggered is true for out-of-cycle refreshes requested with Trigger.
	Triggered bool
}

// Runner schedules refreshes without a UI: one immediately, then one every
// interval, plus any requested with Trigger. Refreshes run one at a time on
// the Run goroutine, so they never overlap.
type Runner struct {
	poller   *Poller
	interval time.Duration
	report   func(CycleReport)
	trigger  chan struct{}
}

// NewRunner creates a Runner. interval <= 0 selects RefreshInterval. report
// may be nil.
func NewRunner(p *Poller, interval time.Duration, report func(CycleReport)) *Runner {
	if interval <= 0 {
		interval = RefreshInterval
	}
	if report == nil {
		report = func(CycleReport) {}
	}
	return &Runner{
		poller:   p,
		interval: interval,
		report:   report,
		trigger:  make(chan struct{}, 1),
	}
}

// Trigger requests an out-of-cycle refresh. Requests made while one is
// already pending coalesce.
func (r *Runner) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Run refreshes until ctx is done and returns nil. The Poller is stopped as
// soon as ctx is done, so a cycle in flight at that moment is discarded.
func (r *Runner) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, r.poller.Stop)
	defer func() {
		stop()
		r.poller.Stop()
	}()

	r.refresh(ctx, false)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.refresh(ctx, false)
		case <-r.trigger:
			r.refresh(ctx, true)
		}
	}
}

func (r *Runner) refresh(ctx context.Context, triggered bool) {
	if ctx.Err() != nil {
		return
	}
	outcome, err := r.poller.Refresh(ctx)
	if ctx.Err() != nil {
		return
	}
	r.report(CycleReport{
		Outcome:   outcome,
		Err:       err,
		Snapshot:  r.poller.Snapshot(),
		Triggered: triggered,
	})
}
