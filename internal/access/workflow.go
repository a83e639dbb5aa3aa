// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package access

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/sentinel-tui/internal/api"
	"github.com/jeranaias/sentinel-tui/internal/logging"
	"github.com/jeranaias/sentinel-tui/internal/session"
)

var (
	// ErrEmptyPath is returned for a blank path. No call is made.
	ErrEmptyPath = errors.New("file path is required")

	// ErrRequestPending is returned while another request is in flight.
	ErrRequestPending = errors.New("an access request is already pending")
)

// Fallbacks used when a denial carries no server message or risk level.
const (
	DeniedMessage   = "Access denied"
	DeniedRiskLevel = api.RiskHigh
)

// DenialNotice is shown under every denied Result.
const DenialNotice = "This access attempt has been logged and reported to administrators."

// Requester is the subset of *api.Client the workflow calls.
type Requester interface {
	RequestAccess(ctx context.Context, path string) (api.AccessVerdict, error)
}

// Result is the outcome of one completed request.
type Result struct {
	Success   bool
	Message   string
	RiskLevel api.RiskLevel

	// Path is the trimmed path that was requested.
	Path string
	At   time.Time

	// Cause is the call error behind a denial the backend did not decide,
	// such as a transport failure or an expired session. Nil otherwise.
	Cause error
}

// Workflow serializes access requests for one session.
type Workflow struct {
	requester Requester
	deauth    session.Deauthenticator
	now       func() time.Time

	mu      sync.Mutex
	pending bool
	result  *Result
}

// NewWorkflow creates a Workflow. deauth is invoked when a request is refused
// with api.ErrUnauthorized; it may be nil.
func NewWorkflow(requester Requester, deauth session.Deauthenticator) *Workflow {
	return &Workflow{
		requester: requester,
		deauth:    deauth,
		now:       time.Now,
	}
}

// Request asks the backend for access to path and records the Result. The
// only errors are ErrEmptyPath and ErrRequestPending; every call outcome,
// including failures, is reported as a Result. There is no client-side
// timeout beyond what ctx imposes.
func (w *Workflow) Request(ctx context.Context, path string) (Result, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, ErrEmptyPath
	}

	w.mu.Lock()
	if w.pending {
		w.mu.Unlock()
		return Result{}, ErrRequestPending
	}
	w.pending = true
	w.result = nil
	w.mu.Unlock()

	verdict, err := w.requester.RequestAccess(ctx, path)
	res := w.resultFor(path, verdict, err)

	if errors.Is(err, api.ErrUnauthorized) && w.deauth != nil {
		w.deauth.Deauthenticate(err)
	}

	w.mu.Lock()
	w.pending = false
	w.result = &res
	w.mu.Unlock()

	event := logging.Info()
	if !res.Success {
		event = logging.Warn().AnErr("cause", err)
	}
	event.Str("path", path).Bool("allowed", res.Success).Str("risk_level", string(res.RiskLevel)).
		Msg("file access requested")

	return res, nil
}

func (w *Workflow) resultFor(path string, verdict api.AccessVerdict, err error) Result {
	res := Result{Path: path, At: w.now()}
	switch {
	case err != nil:
		res.Message = api.MessageOf(err, DeniedMessage)
		res.RiskLevel = api.RiskLevelOf(err, DeniedRiskLevel)
		if !errors.Is(err, api.ErrForbidden) {
			res.Cause = err
		}
	case verdict.Allowed:
		res.Success = true
		res.Message = verdict.Message
		res.RiskLevel = verdict.RiskLevel
	default:
		res.Message = verdict.Message
		if res.Message == "" {
			res.Message = DeniedMessage
		}
		res.RiskLevel = verdict.RiskLevel
		if res.RiskLevel == "" {
			res.RiskLevel = DeniedRiskLevel
		}
	}
	return res
}

// Pending reports whether a request is in flight.
func (w *Workflow) Pending() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending
}

// Result returns the most recently completed Result. It reports false before
// the first request completes and while a request is pending.
func (w *Workflow) Result() (Result, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.result == nil {
		return Result{}, false
	}
	return *w.result, true
}
