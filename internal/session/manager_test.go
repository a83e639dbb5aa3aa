// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/sentinel-tui/internal/api"
	"github.com/jeranaias/sentinel-tui/internal/store"
)

// =============================================================================
// FAKES
// =============================================================================

type memStore struct {
	mu      sync.Mutex
	creds   *store.Credentials
	loadErr error
	saveErr error
	loads   int
	purges  int
}

func (s *memStore) Load(ctx context.Context) (store.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.loadErr != nil {
		return store.Credentials{}, s.loadErr
	}
	if s.creds == nil {
		return store.Credentials{}, store.ErrNotFound
	}
	return *s.creds, nil
}

func (s *memStore) Save(ctx context.Context, c store.Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.creds = &c
	return nil
}

func (s *memStore) Purge(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purges++
	s.creds = nil
	s.loadErr = nil
	return nil
}

func (s *memStore) stored() *store.Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds
}

type fakeAuth struct {
	resp  api.LoginResponse
	err   error
	calls int
}

func (a *fakeAuth) Login(ctx context.Context, username, password string) (api.LoginResponse, error) {
	a.calls++
	return a.resp, a.err
}

var (
	adminIdentity    = api.Identity{Username: "admin", Role: api.RoleAdmin}
	employeeIdentity = api.Identity{Username: "alice", Role: api.RoleEmployee}
)

// =============================================================================
// RESTORE
// =============================================================================

func TestRestore_NothingStored(t *testing.T) {
	m := NewManager(&memStore{}, &fakeAuth{})

	require.NoError(t, m.Restore(context.Background()))
	assert.Equal(t, Anonymous, m.State())
	_, ok := m.Identity()
	assert.False(t, ok)
}

func TestRestore_StoredSession(t *testing.T) {
	st := &memStore{creds: &store.Credentials{Token: "T", Identity: employeeIdentity}}
	m := NewManager(st, &fakeAuth{})

	var events []Event
	m.Subscribe(func(e Event) { events = append(events, e) })

	require.NoError(t, m.Restore(context.Background()))
	assert.Equal(t, Authenticated, m.State())
	id, ok := m.Identity()
	assert.True(t, ok)
	assert.Equal(t, employeeIdentity, id)
	assert.Equal(t, "T", m.Token())
	assert.Equal(t, uint64(1), m.Generation())

	require.Len(t, events, 1)
	assert.Equal(t, EventRestored, events[0].Kind)
}

func TestRestore_ReadsOnce(t *testing.T) {
	st := &memStore{}
	m := NewManager(st, &fakeAuth{})

	require.NoError(t, m.Restore(context.Background()))
	require.NoError(t, m.Restore(context.Background()))
	assert.Equal(t, 1, st.loads)
}

func TestRestore_CorruptIsPurged(t *testing.T) {
	st := &memStore{loadErr: store.ErrCorrupt}
	m := NewManager(st, &fakeAuth{})

	require.NoError(t, m.Restore(context.Background()))
	assert.Equal(t, Anonymous, m.State())
	assert.Equal(t, 1, st.purges)
}

func TestRestore_StoreFailure(t *testing.T) {
	st := &memStore{loadErr: errors.New("disk on fire")}
	m := NewManager(st, &fakeAuth{})

	assert.Error(t, m.Restore(context.Background()))
	assert.Equal(t, Anonymous, m.State())
}

// =============================================================================
// LOGIN
// =============================================================================

func TestLogin_Admin(t *testing.T) {
	st := &memStore{}
	auth := &fakeAuth{resp: api.LoginResponse{Token: "T", User: adminIdentity}}
	m := NewManager(st, auth)

	res, err := m.Login(context.Background(), "admin", "admin123")
	require.NoError(t, err)

	assert.Equal(t, adminIdentity, res.Identity)
	assert.Empty(t, res.Notice)
	assert.Equal(t, m.Generation(), res.Generation)
	assert.Equal(t, Authenticated, m.State())
	assert.True(t, m.IsCurrent(res.Generation))

	saved := st.stored()
	require.NotNil(t, saved, "token and identity must be persisted")
	assert.Equal(t, "T", saved.Token)
	assert.Equal(t, adminIdentity, saved.Identity)
}

func TestLogin_SuspiciousNotice(t *testing.T) {
	flagged := employeeIdentity
	flagged.IsSuspicious = true
	m := NewManager(&memStore{}, &fakeAuth{resp: api.LoginResponse{Token: "T", User: flagged}})

	res, err := m.Login(context.Background(), "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, SuspiciousLoginNotice, res.Notice)
}

func TestLogin_Rejected(t *testing.T) {
	st := &memStore{}
	rejected := &api.APIError{Status: 401, Message: "Invalid credentials"}
	m := NewManager(st, &fakeAuth{err: rejected})

	_, err := m.Login(context.Background(), "admin", "wrong")
	require.Error(t, err)
	assert.Equal(t, Anonymous, m.State())
	assert.Nil(t, st.stored())
	assert.Equal(t, "Invalid credentials", FailureMessage(err))

	// Resubmission is allowed.
	_, err = m.Login(context.Background(), "admin", "wrong again")
	assert.Error(t, err)
}

func TestLogin_BlankFieldsNeverReachBackend(t *testing.T) {
	auth := &fakeAuth{}
	m := NewManager(&memStore{}, auth)

	for _, c := range [][2]string{{"", "pw"}, {"  ", "pw"}, {"admin", ""}} {
		_, err := m.Login(context.Background(), c[0], c[1])
		assert.ErrorIs(t, err, ErrMissingCredentials)
		assert.Equal(t, MissingCredentialsMessage, FailureMessage(err))
	}
	assert.Zero(t, auth.calls)
}

func TestLogin_WhileAuthenticated(t *testing.T) {
	auth := &fakeAuth{resp: api.LoginResponse{Token: "T", User: adminIdentity}}
	m := NewManager(&memStore{}, auth)

	_, err := m.Login(context.Background(), "admin", "admin123")
	require.NoError(t, err)

	_, err = m.Login(context.Background(), "admin", "admin123")
	assert.ErrorIs(t, err, ErrAlreadyAuthenticated)
	assert.Equal(t, 1, auth.calls)
}

func TestLogin_PersistFailure(t *testing.T) {
	st := &memStore{saveErr: errors.New("read-only fs")}
	m := NewManager(st, &fakeAuth{resp: api.LoginResponse{Token: "T", User: adminIdentity}})

	_, err := m.Login(context.Background(), "admin", "admin123")
	require.Error(t, err)
	assert.Equal(t, Anonymous, m.State())
}

// blockingAuth holds every Login until release is closed.
type blockingAuth struct {
	entered chan string
	release chan struct{}
}

func (a *blockingAuth) Login(ctx context.Context, username, password string) (api.LoginResponse, error) {
	a.entered <- username
	<-a.release
	return api.LoginResponse{Token: "T-" + username, User: api.Identity{Username: username, Role: api.RoleEmployee}}, nil
}

func TestLogin_ConcurrentLoginKeepsWinnerCredentials(t *testing.T) {
	st := &memStore{}
	auth := &blockingAuth{entered: make(chan string, 2), release: make(chan struct{})}
	m := NewManager(st, auth)

	type outcome struct {
		res LoginResult
		err error
	}
	first := make(chan outcome, 1)
	go func() {
		res, err := m.Login(context.Background(), "alice", "pw")
		first <- outcome{res, err}
	}()
	require.Equal(t, "alice", <-auth.entered)

	_, err := m.Login(context.Background(), "mallory", "pw")
	assert.ErrorIs(t, err, ErrLoginInProgress)
	assert.Nil(t, st.stored())

	// A restore arriving mid-login yields to it.
	require.NoError(t, st.Save(context.Background(), store.Credentials{Token: "old", Identity: adminIdentity}))
	require.NoError(t, m.Restore(context.Background()))
	assert.Equal(t, Anonymous, m.State())

	close(auth.release)
	got := <-first
	require.NoError(t, got.err)
	assert.Equal(t, "alice", got.res.Identity.Username)
	assert.Len(t, auth.entered, 0, "second login never reached the backend")

	saved := st.stored()
	require.NotNil(t, saved)
	assert.Equal(t, "T-alice", saved.Token)
	identity, ok := m.Identity()
	require.True(t, ok)
	assert.Equal(t, identity, saved.Identity)
	assert.Equal(t, "T-alice", m.Token())
}

func TestLogin_GuardClearedAfterFailure(t *testing.T) {
	st := &memStore{saveErr: errors.New("read-only fs")}
	auth := &fakeAuth{resp: api.LoginResponse{Token: "T", User: adminIdentity}}
	m := NewManager(st, auth)

	_, err := m.Login(context.Background(), "admin", "admin123")
	require.Error(t, err)

	st.mu.Lock()
	st.saveErr = nil
	st.mu.Unlock()
	_, err = m.Login(context.Background(), "admin", "admin123")
	require.NoError(t, err)
	assert.Equal(t, Authenticated, m.State())
	assert.Equal(t, 2, auth.calls)
}

func TestFailureMessage_Fallback(t *testing.T) {
	assert.Equal(t, LoginFailedMessage, FailureMessage(api.ErrBackendUnavailable))
	assert.Equal(t, "", FailureMessage(nil))
}

// =============================================================================
// LOGOUT AND DEAUTHENTICATION
// =============================================================================

func loggedIn(t *testing.T, st *memStore) *Manager {
	t.Helper()
	m := NewManager(st, &fakeAuth{resp: api.LoginResponse{Token: "T", User: adminIdentity}})
	_, err := m.Login(context.Background(), "admin", "admin123")
	require.NoError(t, err)
	return m
}

func TestLogout(t *testing.T) {
	st := &memStore{}
	m := loggedIn(t, st)

	require.NoError(t, m.Logout(context.Background()))
	assert.Equal(t, Anonymous, m.State())
	assert.Empty(t, m.Token())
	assert.Nil(t, st.stored())

	require.NoError(t, m.Logout(context.Background()), "logout while anonymous is a no-op")
	assert.Equal(t, 1, st.purges)
}

func TestDeauthenticate_PurgesAndIsIdempotent(t *testing.T) {
	st := &memStore{}
	m := loggedIn(t, st)

	var kinds []EventKind
	m.Subscribe(func(e Event) { kinds = append(kinds, e.Kind) })

	m.Deauthenticate(api.ErrUnauthorized)
	m.Deauthenticate(api.ErrUnauthorized)

	assert.Equal(t, Anonymous, m.State())
	assert.Nil(t, st.stored())
	assert.Equal(t, 1, st.purges)
	assert.Equal(t, []EventKind{EventDeauthenticated}, kinds)
}

func TestDeauthenticatorFor_IgnoresStaleGeneration(t *testing.T) {
	st := &memStore{}
	m := loggedIn(t, st)
	stale := m.DeauthenticatorFor(m.Generation())

	require.NoError(t, m.Logout(context.Background()))
	res, err := m.Login(context.Background(), "admin", "admin123")
	require.NoError(t, err)

	stale.Deauthenticate(api.ErrUnauthorized)
	assert.Equal(t, Authenticated, m.State(), "a late 401 from an old view must not log out the new session")
	assert.NotNil(t, st.stored())

	m.DeauthenticatorFor(res.Generation).Deauthenticate(api.ErrUnauthorized)
	assert.Equal(t, Anonymous, m.State())
}

func TestDeauthenticate_RestartYieldsAnonymous(t *testing.T) {
	dir := t.TempDir()
	cfg := store.Config{Path: filepath.Join(dir, "s.db"), KeyPath: filepath.Join(dir, "k")}
	ctx := context.Background()

	st, err := store.Open(ctx, cfg)
	require.NoError(t, err)
	m := NewManager(st, &fakeAuth{resp: api.LoginResponse{Token: "T", User: adminIdentity}})
	_, err = m.Login(ctx, "admin", "admin123")
	require.NoError(t, err)

	// A restart here would restore the session.
	st2, err := store.Open(ctx, cfg)
	require.NoError(t, err)
	restored := NewManager(st2, &fakeAuth{})
	require.NoError(t, restored.Restore(ctx))
	assert.Equal(t, Authenticated, restored.State())
	require.NoError(t, st2.Close())

	m.Deauthenticate(api.ErrUnauthorized)
	require.NoError(t, st.Close())

	st3, err := store.Open(ctx, cfg)
	require.NoError(t, err)
	defer st3.Close()
	restarted := NewManager(st3, &fakeAuth{})
	require.NoError(t, restarted.Restore(ctx))
	assert.Equal(t, Anonymous, restarted.State())
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	m := loggedIn(t, &memStore{})
	calls := 0
	unsubscribe := m.Subscribe(func(Event) { calls++ })
	unsubscribe()

	m.Deauthenticate(nil)
	assert.Zero(t, calls)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "anonymous", Anonymous.String())
	assert.Equal(t, "authenticated", Authenticated.String())
	assert.Equal(t, "State(7)", State(7).String())
}

// =============================================================================
// TOKEN EXPIRY
// =============================================================================

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("server-secret"))
	require.NoError(t, err)
	return tok
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(90 * time.Minute).Truncate(time.Second)
	tok := signedToken(t, jwt.MapClaims{"user_id": 1, "exp": exp.Unix()})

	got, ok := TokenExpiry(tok)
	require.True(t, ok)
	assert.True(t, exp.Equal(got))

	_, ok = TokenExpiry("T")
	assert.False(t, ok, "opaque tokens have no expiry")
	_, ok = TokenExpiry(signedToken(t, jwt.MapClaims{"user_id": 1}))
	assert.False(t, ok)
}

func TestManager_Remaining(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tok := signedToken(t, jwt.MapClaims{"exp": now.Add(2 * time.Hour).Unix()})
	m := NewManager(&memStore{}, &fakeAuth{resp: api.LoginResponse{Token: tok, User: adminIdentity}})
	m.now = func() time.Time { return now }

	_, ok := m.Remaining()
	assert.False(t, ok)

	_, err := m.Login(context.Background(), "admin", "admin123")
	require.NoError(t, err)

	left, ok := m.Remaining()
	require.True(t, ok)
	assert.Equal(t, 2*time.Hour, left)
	assert.Equal(t, Authenticated, m.State(), "expiry is informational")
}

func TestFormatRemaining(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "expired"},
		{45 * time.Second, "45s"},
		{5 * time.Minute, "5m"},
		{5*time.Minute + 30*time.Second, "5m 30s"},
		{3 * time.Hour, "3h"},
		{23*time.Hour + 59*time.Minute, "23h 59m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatRemaining(tt.d))
	}
}
