// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package console

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/sentinel-tui/internal/api"
	"github.com/jeranaias/sentinel-tui/internal/logging"
	"github.com/jeranaias/sentinel-tui/internal/session"
)

// RefreshInterval is the fixed period between scheduled refreshes.
const RefreshInterval = 5 * time.Second

// ErrStopped is returned by Suspend after Stop.
var ErrStopped = errors.New("console stopped")

// Backend is the subset of *api.Client the console calls.
type Backend interface {
	Dashboard(ctx context.Context) (api.DashboardStats, error)
	LoginAttempts(ctx context.Context) ([]api.LoginAttempt, error)
	FileAccesses(ctx context.Context) ([]api.FileAccessRecord, error)
	RiskUsers(ctx context.Context) ([]api.RiskUser, error)
	SuspendUser(ctx context.Context, id int) (string, error)
}

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is the immutable result of one successful cycle. Never modify a
// Snapshot obtained from a Poller.
type Snapshot struct {
	Cycle     uint64
	Stats     api.DashboardStats
	Attempts  []api.LoginAttempt
	Accesses  []api.FileAccessRecord
	RiskUsers []api.RiskUser
	FetchedAt time.Time
}

// Outcome reports what a Refresh did with its results.
type Outcome int

const (
	// Committed means the cycle's results are now the Snapshot.
	Committed Outcome = iota
	// Stale means a later cycle had already been committed.
	Stale
	// Discarded means the Poller was stopped before the cycle finished.
	Discarded
	// Failed means at least one fetch failed; the Snapshot is unchanged.
	Failed
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case Committed:
		return "committed"
	case Stale:
		return "stale"
	case Discarded:
		return "discarded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// =============================================================================
// POLLER
// =============================================================================

// Option configures a Poller.
type Option func(*Poller)

// WithCycleTimeout bounds each refresh cycle. Zero means unbounded.
func WithCycleTimeout(d time.Duration) Option {
	return func(p *Poller) { p.timeout = d }
}

// WithClock sets the clock used for Snapshot.FetchedAt.
func WithClock(now func() time.Time) Option {
	return func(p *Poller) { p.now = now }
}

// Poller runs refresh cycles against the backend. It is safe for concurrent
// use; overlapping Refresh calls resolve by cycle number.
type Poller struct {
	backend Backend
	deauth  session.Deauthenticator
	timeout time.Duration
	now     func() time.Time

	issued atomic.Uint64
	snap   atomic.Pointer[Snapshot]

	mu        sync.Mutex
	committed uint64
	stopped   bool
	lastErr   error
}

// NewPoller creates a Poller. deauth is invoked when any fetch reports
// api.ErrUnauthorized.
func NewPoller(backend Backend, deauth session.Deauthenticator, opts ...Option) *Poller {
	p := &Poller{
		backend: backend,
		deauth:  deauth,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Snapshot returns the last committed Snapshot, or nil before the first commit.
func (p *Poller) Snapshot() *Snapshot {
	return p.snap.Load()
}

// LastError returns the error of the most recent failed cycle, cleared by
// the next commit.
func (p *Poller) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// Stop makes the Poller discard every result that arrives from now on.
// In-flight fetches are not aborted. Stop is idempotent.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.stopped {
		p.stopped = true
		logging.Debug().Uint64("last_cycle", p.committed).Msg("console poller stopped")
	}
}

// Stopped reports whether Stop has been called.
func (p *Poller) Stopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

// fetchNames label the four fetches in logs, in fetch order.
var fetchNames = [4]string{"dashboard", "login-attempts", "file-access", "risk-users"}

// Refresh runs one cycle: four concurrent fetches, joined, then an
// all-or-nothing commit. The returned error is the first fetch failure.
func (p *Poller) Refresh(ctx context.Context) (Outcome, error) {
	if p.Stopped() {
		return Discarded, nil
	}
	cycle := p.issued.Add(1)

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	var (
		stats    api.DashboardStats
		attempts []api.LoginAttempt
		accesses []api.FileAccessRecord
		users    []api.RiskUser
		errs     [4]error
	)

	// Plain group: one failure must not cancel its siblings, the cycle
	// resolves only when all four have.
	var g errgroup.Group
	g.Go(func() error {
		stats, errs[0] = p.backend.Dashboard(ctx)
		return errs[0]
	})
	g.Go(func() error {
		attempts, errs[1] = p.backend.LoginAttempts(ctx)
		return errs[1]
	})
	g.Go(func() error {
		accesses, errs[2] = p.backend.FileAccesses(ctx)
		return errs[2]
	})
	g.Go(func() error {
		users, errs[3] = p.backend.RiskUsers(ctx)
		return errs[3]
	})
	firstErr := g.Wait()

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		logging.Debug().Uint64("cycle", cycle).Msg("discarding cycle after stop")
		return Discarded, nil
	}

	if firstErr != nil {
		p.lastErr = firstErr
		p.mu.Unlock()
		return Failed, p.fail(cycle, errs)
	}

	if cycle <= p.committed {
		committed := p.committed
		p.mu.Unlock()
		logging.Debug().Uint64("cycle", cycle).Uint64("committed", committed).Msg("dropping stale cycle")
		return Stale, nil
	}

	p.committed = cycle
	p.lastErr = nil
	p.snap.Store(&Snapshot{
		Cycle:     cycle,
		Stats:     stats,
		Attempts:  attempts,
		Accesses:  accesses,
		RiskUsers: users,
		FetchedAt: p.now(),
	})
	p.mu.Unlock()

	logging.Debug().Uint64("cycle", cycle).Int("attempts", len(attempts)).Int("accesses", len(accesses)).
		Int("risk_users", len(users)).Msg("snapshot committed")
	return Committed, nil
}

// fail logs each failed fetch and deauthenticates on a 401. It returns the
// error to report: the authorization failure if there was one, otherwise the
// first failure in fetch order.
func (p *Poller) fail(cycle uint64, errs [4]error) error {
	var first, unauthorized error
	for i, err := range errs {
		if err == nil {
			continue
		}
		if first == nil {
			first = err
		}
		if unauthorized == nil && errors.Is(err, api.ErrUnauthorized) {
			unauthorized = err
		}
		logging.Warn().Uint64("cycle", cycle).Str("fetch", fetchNames[i]).Err(err).
			Msg("refresh fetch failed, keeping previous snapshot")
	}

	if unauthorized != nil {
		if p.deauth != nil {
			p.deauth.Deauthenticate(unauthorized)
		}
		return unauthorized
	}
	return first
}

// =============================================================================
// SUSPEND
// =============================================================================

// SuspendResult is the outcome of a successful suspension.
type SuspendResult struct {
	// Message is the backend's confirmation.
	Message string
	// Refresh is what the follow-up out-of-cycle refresh did.
	Refresh    Outcome
	RefreshErr error
}

// Suspend suspends the user and, on success, immediately runs an
// out-of-cycle Refresh. Interactive confirmation is the caller's job. On
// failure the Snapshot is untouched; a 401 also deauthenticates.
func (p *Poller) Suspend(ctx context.Context, id int, username string) (SuspendResult, error) {
	if p.Stopped() {
		return SuspendResult{}, ErrStopped
	}

	msg, err := p.backend.SuspendUser(ctx, id)
	if err != nil {
		logging.Warn().Int("user_id", id).Str("user", username).Err(err).Msg("suspend failed")
		if errors.Is(err, api.ErrUnauthorized) && p.deauth != nil {
			p.deauth.Deauthenticate(err)
		}
		return SuspendResult{}, err
	}
	logging.Info().Int("user_id", id).Str("user", username).Msg("user suspended")

	outcome, rerr := p.Refresh(ctx)
	return SuspendResult{Message: msg, Refresh: outcome, RefreshErr: rerr}, nil
}

// Operator-facing suspend texts.
const (
	SuspendSucceededMessage = "User suspended successfully"
	SuspendFailedMessage    = "Failed to suspend user"
)

// SuspendPrompt is the confirmation question for suspending username.
func SuspendPrompt(username string) string {
	return fmt.Sprintf("Are you sure you want to suspend %s?", username)
}
