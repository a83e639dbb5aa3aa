// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package apitest

import (
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"

	"github.com/jeranaias/sentinel-tui/internal/api"
)

// TokenTTL is the lifetime of issued tokens.
const TokenTTL = 24 * time.Hour

// User is an account known to the fake backend.
type User struct {
	ID         int
	Username   string
	Email      string
	Password   string
	Role       api.Role
	Suspended  bool
	Suspicious bool
}

// Failure is an injected error response.
type Failure struct {
	Status  int
	Message string
	// RiskLevel is included in the body when set.
	RiskLevel api.RiskLevel
}

// Server is a running fake backend. All methods are safe for concurrent use.
type Server struct {
	srv    *httptest.Server
	secret []byte
	now    func() time.Time

	mu        sync.Mutex
	users     map[string]*User
	nextID    int
	revoked   map[string]bool
	stats     *api.DashboardStats
	attempts  []api.LoginAttempt
	accesses  []api.FileAccessRecord
	riskUsers []api.RiskUser
	failures  map[string]Failure
	calls     map[string]int
	holds     map[string]chan struct{}
}

// New starts a Server seeded with the default accounts and closes it when
// the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := NewServer()
	t.Cleanup(s.Close)
	return s
}

// NewServer starts a Server seeded with the default accounts. The caller
// must Close it.
func NewServer() *Server {
	s := &Server{
		secret:   []byte("apitest-signing-key"),
		now:      time.Now,
		users:    make(map[string]*User),
		nextID:   1,
		revoked:  make(map[string]bool),
		failures: make(map[string]Failure),
		calls:    make(map[string]int),
		holds:    make(map[string]chan struct{}),
	}
	s.seed()
	s.srv = httptest.NewServer(s.routes())
	return s
}

// Close shuts the server down.
func (s *Server) Close() {
	s.mu.Lock()
	for path, ch := range s.holds {
		close(ch)
		delete(s.holds, path)
	}
	s.mu.Unlock()
	s.srv.Close()
}

// BaseURL is the API root to configure clients with.
func (s *Server) BaseURL() string {
	return s.srv.URL + "/api"
}

// Client returns an api client for the server.
func (s *Server) Client() *api.Client {
	return api.NewClient(api.Options{BaseURL: s.BaseURL(), RateLimit: 1000, Burst: 100})
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.record)

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.requireToken)
			r.Post("/files/access", s.handleFileAccess)

			r.Route("/admin", func(r chi.Router) {
				r.Use(s.requireAdmin)
				r.Get("/dashboard", s.handleDashboard)
				r.Get("/login-attempts", s.handleLoginAttempts)
				r.Get("/file-access", s.handleFileAccessLog)
				r.Get("/risk-users", s.handleRiskUsers)
				r.Post("/users/{id}/suspend", s.handleSuspend)
			})
		})
	})
	return r
}

// =============================================================================
// TEST CONTROLS
// =============================================================================

// AddUser registers an account and returns its ID.
func (s *Server) AddUser(u User) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addUserLocked(u)
}

func (s *Server) addUserLocked(u User) int {
	if u.ID == 0 {
		u.ID = s.nextID
	}
	if u.ID >= s.nextID {
		s.nextID = u.ID + 1
	}
	if u.Role == "" {
		u.Role = api.RoleEmployee
	}
	if u.Email == "" {
		u.Email = u.Username + "@company.com"
	}
	s.users[u.Username] = &u
	return u.ID
}

// User returns a copy of the named account.
func (s *Server) User(username string) (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return User{}, false
	}
	return *u, true
}

// Fail makes every request to path (relative to the API root, e.g.
// "/admin/risk-users") answer with f until Clear is called.
func (s *Server) Fail(path string, f Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = f
}

// Clear removes the injected failure for path.
func (s *Server) Clear(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, path)
}

// Hold makes requests to path block until the returned release func is
// called. Release is idempotent.
func (s *Server) Hold(path string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.holds[path] = ch
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.holds[path] == ch {
				delete(s.holds, path)
			}
			s.mu.Unlock()
			close(ch)
		})
	}
}

// Calls returns how many requests reached path.
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// Revoke makes token fail authorization from now on.
func (s *Server) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[token] = true
}

// SetRiskUsers replaces the risk-user list.
func (s *Server) SetRiskUsers(users []api.RiskUser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.riskUsers = users
}

// SetStats pins the dashboard counters. By default they are derived from
// the stored data.
func (s *Server) SetStats(stats api.DashboardStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = &stats
}

// Accesses returns the recorded file access log.
func (s *Server) Accesses() []api.FileAccessRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]api.FileAccessRecord, len(s.accesses))
	copy(out, s.accesses)
	return out
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

func apiPath(r *http.Request) string {
	return strings.TrimPrefix(r.URL.Path, "/api")
}

// record counts the call, applies holds, then injected failures.
func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := apiPath(r)

		s.mu.Lock()
		s.calls[path]++
		hold := s.holds[path]
		s.mu.Unlock()

		if hold != nil {
			select {
			case <-hold:
			case <-r.Context().Done():
				return
			}
		}

		s.mu.Lock()
		f, failing := s.failures[path]
		s.mu.Unlock()
		if failing {
			body := map[string]any{"message": f.Message}
			if f.RiskLevel != "" {
				body["risk_level"] = f.RiskLevel
			}
			writeJSON(w, f.Status, body)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func message(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

// sortedRiskUsers returns risk users by descending score, the order the
// backend serves them in.
func sortedRiskUsers(users []api.RiskUser) []api.RiskUser {
	out := make([]api.RiskUser, len(users))
	copy(out, users)
	sort.SliceStable(out, func(i, j int) bool { return out[i].RiskScore > out[j].RiskScore })
	return out
}
