// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jeranaias/sentinel-tui/internal/api"
	"github.com/jeranaias/sentinel-tui/internal/logging"
	"github.com/jeranaias/sentinel-tui/internal/store"
)

// =============================================================================
// CONSTANTS AND ERRORS
// =============================================================================

const (
	// SuspiciousLoginNotice is shown once, before the role view mounts, when
	// the backend flags a login as suspicious.
	SuspiciousLoginNotice = "Suspicious login detected! Admin has been notified."

	// LoginFailedMessage is shown when a failed login carries no server message.
	LoginFailedMessage = "Login failed"

	// MissingCredentialsMessage is shown for a blank username or password.
	MissingCredentialsMessage = "Username and password are required"

	// purgeTimeout bounds the store write on forced deauthentication, which
	// has no caller context.
	purgeTimeout = 5 * time.Second
)

var (
	// ErrAlreadyAuthenticated is returned by Login outside the Anonymous state.
	ErrAlreadyAuthenticated = errors.New("already authenticated")

	// ErrLoginInProgress is returned by Login while another Login is waiting
	// on the backend.
	ErrLoginInProgress = errors.New("login already in progress")

	// ErrMissingCredentials is returned by Login for a blank username or password.
	ErrMissingCredentials = errors.New("username and password are required")
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// CredentialStore persists the token and Identity. *store.Store implements it.
type CredentialStore interface {
	Load(ctx context.Context) (store.Credentials, error)
	Save(ctx context.Context, creds store.Credentials) error
	Purge(ctx context.Context) error
}

// Authenticator exchanges credentials for a token. *api.Client implements it.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (api.LoginResponse, error)
}

// Deauthenticator is the transition callback views invoke when an authorized
// call reports that the session is no longer valid.
type Deauthenticator interface {
	Deauthenticate(reason error)
}

// DeauthenticatorFunc adapts a function to Deauthenticator.
type DeauthenticatorFunc func(reason error)

// Deauthenticate calls f(reason).
func (f DeauthenticatorFunc) Deauthenticate(reason error) { f(reason) }

// =============================================================================
// STATE
// =============================================================================

// State is the session state.
type State int

const (
	Anonymous State = iota
	Authenticated
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Authenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// EventKind names a transition.
type EventKind string

const (
	EventRestored        EventKind = "restored"
	EventLogin           EventKind = "login"
	EventLogout          EventKind = "logout"
	EventDeauthenticated EventKind = "deauthenticated"
)

// Event describes one transition.
type Event struct {
	Kind       EventKind
	State      State
	Identity   api.Identity
	Generation uint64
	Reason     error
	At         time.Time
}

// LoginResult is the outcome of a successful Login.
type LoginResult struct {
	Identity   api.Identity
	Generation uint64
	// Notice is SuspiciousLoginNotice for a flagged login, otherwise empty.
	Notice string
}

type loginForm struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// =============================================================================
// MANAGER
// =============================================================================

// Manager is the session state machine. It is safe for concurrent use.
type Manager struct {
	mu sync.Mutex

	store CredentialStore
	auth  Authenticator

	state      State
	identity   api.Identity
	token      string
	generation uint64
	restored   bool
	loggingIn  bool

	subscribers map[int]func(Event)
	nextSubID   int

	now func() time.Time
}

// NewManager creates a Manager in the Anonymous state. Call Restore once at
// startup to pick up a stored session.
func NewManager(credentials CredentialStore, auth Authenticator) *Manager {
	return &Manager{
		store:       credentials,
		auth:        auth,
		subscribers: make(map[int]func(Event)),
		now:         time.Now,
	}
}

// Restore reads the credential store. It only has an effect on its first
// call. A stored token and Identity yield Authenticated; nothing stored
// yields Anonymous. A corrupt record is purged and yields Anonymous.
func (m *Manager) Restore(ctx context.Context) error {
	m.mu.Lock()
	if m.restored {
		m.mu.Unlock()
		return nil
	}
	m.restored = true
	m.mu.Unlock()

	creds, err := m.store.Load(ctx)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		logging.Debug().Msg("no stored session")
		return nil
	case errors.Is(err, store.ErrCorrupt):
		logging.Warn().Err(err).Msg("discarding corrupt stored session")
		if perr := m.store.Purge(ctx); perr != nil {
			return fmt.Errorf("purge corrupt session: %w", perr)
		}
		return nil
	default:
		return fmt.Errorf("restore session: %w", err)
	}

	m.mu.Lock()
	if m.state == Authenticated || m.loggingIn {
		// A login raced ahead of Restore; the newer session wins.
		m.mu.Unlock()
		return nil
	}
	ev := m.authenticateLocked(creds.Identity, creds.Token, EventRestored)
	m.mu.Unlock()

	logging.Info().Str("user", creds.Identity.Username).Str("role", string(creds.Identity.Role)).
		Msg("session restored")
	m.publish(ev)
	return nil
}

// Login authenticates against the backend. It is only valid while Anonymous.
// On success the token and Identity are persisted before the state changes.
// A rejected login returns an error wrapping api.ErrInvalidCredentials and
// leaves the state Anonymous.
func (m *Manager) Login(ctx context.Context, username, password string) (LoginResult, error) {
	username = strings.TrimSpace(username)
	if err := validate.Struct(loginForm{Username: username, Password: password}); err != nil {
		return LoginResult{}, ErrMissingCredentials
	}

	// At most one login runs between this check and the state change.
	m.mu.Lock()
	switch {
	case m.state == Authenticated:
		m.mu.Unlock()
		return LoginResult{}, ErrAlreadyAuthenticated
	case m.loggingIn:
		m.mu.Unlock()
		return LoginResult{}, ErrLoginInProgress
	}
	m.loggingIn = true
	m.mu.Unlock()

	resp, err := m.auth.Login(ctx, username, password)
	if err != nil {
		m.endLogin()
		logging.Info().Str("user", username).Err(err).Msg("login rejected")
		return LoginResult{}, err
	}

	if err := m.store.Save(ctx, store.Credentials{Token: resp.Token, Identity: resp.User}); err != nil {
		m.endLogin()
		return LoginResult{}, fmt.Errorf("persist session: %w", err)
	}

	m.mu.Lock()
	m.loggingIn = false
	if m.state == Authenticated {
		m.mu.Unlock()
		return LoginResult{}, ErrAlreadyAuthenticated
	}
	ev := m.authenticateLocked(resp.User, resp.Token, EventLogin)
	m.mu.Unlock()

	logging.Info().Str("user", resp.User.Username).Str("role", string(resp.User.Role)).
		Bool("suspicious", resp.User.IsSuspicious).Uint64("generation", ev.Generation).Msg("login succeeded")
	m.publish(ev)

	result := LoginResult{Identity: resp.User, Generation: ev.Generation}
	if resp.User.IsSuspicious {
		result.Notice = SuspiciousLoginNotice
	}
	return result, nil
}

func (m *Manager) endLogin() {
	m.mu.Lock()
	m.loggingIn = false
	m.mu.Unlock()
}

// Logout purges the stored credential and returns to Anonymous. Logging out
// while Anonymous is a no-op. The state changes even if the purge fails; the
// purge error is returned.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	if m.state != Authenticated {
		m.mu.Unlock()
		return nil
	}
	ev := m.dropLocked(EventLogout, nil)
	m.mu.Unlock()

	err := m.store.Purge(ctx)
	if err != nil {
		logging.Error().Err(err).Msg("failed to purge stored session on logout")
	}
	logging.Info().Str("user", ev.Identity.Username).Msg("logged out")
	m.publish(ev)
	return err
}

// Deauthenticate forces the transition to Anonymous after an authorization
// failure. It is idempotent.
func (m *Manager) Deauthenticate(reason error) {
	m.deauthenticate(0, false, reason)
}

// DeauthenticatorFor returns a Deauthenticator that only acts while the
// session is still the one with the given generation.
func (m *Manager) DeauthenticatorFor(generation uint64) Deauthenticator {
	return DeauthenticatorFunc(func(reason error) {
		m.deauthenticate(generation, true, reason)
	})
}

func (m *Manager) deauthenticate(generation uint64, bound bool, reason error) {
	m.mu.Lock()
	if m.state != Authenticated || (bound && generation != m.generation) {
		m.mu.Unlock()
		return
	}
	ev := m.dropLocked(EventDeauthenticated, reason)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), purgeTimeout)
	defer cancel()
	if err := m.store.Purge(ctx); err != nil {
		logging.Error().Err(err).Msg("failed to purge stored session on deauthentication")
	}
	logging.Warn().Str("user", ev.Identity.Username).AnErr("reason", reason).Msg("session deauthenticated")
	m.publish(ev)
}

// authenticateLocked must be called with mu held.
func (m *Manager) authenticateLocked(identity api.Identity, token string, kind EventKind) Event {
	m.generation++
	m.state = Authenticated
	m.identity = identity
	m.token = token
	return Event{Kind: kind, State: Authenticated, Identity: identity, Generation: m.generation, At: m.now()}
}

// dropLocked must be called with mu held.
func (m *Manager) dropLocked(kind EventKind, reason error) Event {
	ev := Event{Kind: kind, State: Anonymous, Identity: m.identity, Generation: m.generation, Reason: reason, At: m.now()}
	m.state = Anonymous
	m.identity = api.Identity{}
	m.token = ""
	return ev
}

// =============================================================================
// READ-ONLY SURFACE
// =============================================================================

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Identity returns the current Identity and whether there is one.
func (m *Manager) Identity() (api.Identity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identity, m.state == Authenticated
}

// Token returns the current credential token, or "" when Anonymous.
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// Generation returns the number of the current (or most recent)
// authentication. It increases with every login or restore.
func (m *Manager) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

// IsCurrent reports whether generation is the live session.
func (m *Manager) IsCurrent(generation uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == Authenticated && m.generation == generation
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

// Subscribe registers fn for every transition and returns a function that
// removes it. fn runs on the goroutine that caused the transition, outside
// the manager's lock.
func (m *Manager) Subscribe(fn func(Event)) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subscribers, id)
	}
}

func (m *Manager) publish(ev Event) {
	m.mu.Lock()
	fns := make([]func(Event), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// FailureMessage returns the text to show inline for a failed Login.
func FailureMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingCredentials):
		return MissingCredentialsMessage
	default:
		return api.MessageOf(err, LoginFailedMessage)
	}
}
