// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/sentinel-tui/internal/access"
	"github.com/jeranaias/sentinel-tui/internal/api"
	"github.com/jeranaias/sentinel-tui/internal/apitest"
	"github.com/jeranaias/sentinel-tui/internal/session"
)

// =============================================================================
// HARNESS
// =============================================================================

// fakePrompter answers prompts from a fixed script.
type fakePrompter struct {
	answers []string
	asked   []string
}

func (p *fakePrompter) next(prompt string) (string, error) {
	p.asked = append(p.asked, prompt)
	if len(p.answers) == 0 {
		return "", errors.New("no more answers")
	}
	answer := p.answers[0]
	p.answers = p.answers[1:]
	return answer, nil
}

func (p *fakePrompter) Prompt(prompt string) (string, error)         { return p.next(prompt) }
func (p *fakePrompter) PasswordPrompt(prompt string) (string, error) { return p.next(prompt) }
func (p *fakePrompter) Close() error                                 { return nil }

type harness struct {
	t    *testing.T
	srv  *apitest.Server
	home string
}

// newHarness points the config directory at a temp dir and the backend at a
// fake server.
func newHarness(t *testing.T) *harness {
	t.Helper()
	srv := apitest.New(t)
	home := t.TempDir()

	t.Setenv("SENTINEL_HOME", home)
	t.Setenv("SENTINEL_SERVER_URL", srv.BaseURL())
	for _, k := range []string{"SENTINEL_LOG_LEVEL", "SENTINEL_LOG_FORMAT", "SENTINEL_STORE_PATH", "SENTINEL_THEME", "SENTINEL_RATE_LIMIT"} {
		t.Setenv(k, "")
	}
	t.Setenv("NO_COLOR", "1")
	return &harness{t: t, srv: srv, home: home}
}

type result struct {
	stdout string
	stderr string
	err    error
	prompt *fakePrompter
}

// run executes one invocation. answers, when non-nil, replace the terminal
// prompter.
func (h *harness) run(stdin string, answers []string, args ...string) result {
	h.t.Helper()
	var out, errOut bytes.Buffer
	a := newApp(strings.NewReader(stdin), &out, &errOut)

	var p *fakePrompter
	if answers != nil {
		p = &fakePrompter{answers: answers}
		a.newPrompter = func() prompter { return p }
	}

	if args == nil {
		args = []string{}
	}
	cmd := a.rootCommand()
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return result{stdout: out.String(), stderr: errOut.String(), err: err, prompt: p}
}

func (h *harness) login(username, password string) {
	h.t.Helper()
	res := h.run(password+"\n", nil, "login", "-u", username, "--password-stdin")
	require.NoError(h.t, res.err, res.stderr)
}

func decodeResponse(t *testing.T, out string) (JSONResponse, map[string]any) {
	t.Helper()
	var resp JSONResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	data, _ := resp.Data.(map[string]any)
	return resp, data
}

// =============================================================================
// LOGIN / LOGOUT / WHOAMI
// =============================================================================

func TestLogin_PasswordStdin(t *testing.T) {
	h := newHarness(t)

	res := h.run(apitest.AdminPassword+"\n", nil, "login", "-u", apitest.AdminUser, "--password-stdin")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Logged in as admin (admin)")

	res = h.run("", nil, "whoami", "--json")
	require.NoError(t, res.err)
	resp, data := decodeResponse(t, res.stdout)
	assert.True(t, resp.Success)
	assert.Equal(t, "admin", data["username"])
	assert.Equal(t, "admin", data["role"])
	assert.Equal(t, h.srv.BaseURL(), data["server"])
	assert.NotEmpty(t, data["expires_at"])
}

func TestLogin_PromptsForMissingCredentials(t *testing.T) {
	h := newHarness(t)

	res := h.run("", []string{apitest.EmployeeUser, apitest.EmployeePassword}, "login")
	require.NoError(t, res.err)
	assert.Equal(t, []string{"Username: ", "Password: "}, res.prompt.asked)
	assert.Contains(t, res.stdout, "Logged in as john (employee)")

	res = h.run("", nil, "whoami")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "john")
	assert.Contains(t, res.stdout, "employee")
}

func TestLogin_SuspiciousShowsNotice(t *testing.T) {
	h := newHarness(t)

	res := h.run(apitest.RiskyPassword+"\n", nil, "login", "-u", apitest.RiskyUser, "--password-stdin")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, session.SuspiciousLoginNotice)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	h := newHarness(t)

	res := h.run("wrong\n", nil, "login", "-u", apitest.AdminUser, "--password-stdin")
	require.Error(t, res.err)
	assert.Equal(t, ExitAuthError, ExitCode(res.err))
	assert.Contains(t, res.err.Error(), "Invalid credentials")

	res = h.run("", nil, "whoami")
	assert.ErrorIs(t, res.err, errNotLoggedIn)
}

func TestLogin_NeedsTerminalToPrompt(t *testing.T) {
	h := newHarness(t)

	res := h.run("", nil, "login")
	var tty *TTYRequiredError
	assert.True(t, errors.As(res.err, &tty))
}

func TestLogin_AlreadyLoggedIn(t *testing.T) {
	h := newHarness(t)
	h.login(apitest.AdminUser, apitest.AdminPassword)

	res := h.run(apitest.AdminPassword+"\n", nil, "login", "-u", apitest.AdminUser, "--password-stdin")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "already logged in")
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	h.login(apitest.AdminUser, apitest.AdminPassword)

	res := h.run("", nil, "logout")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Logged out admin")

	res = h.run("", nil, "whoami")
	assert.ErrorIs(t, res.err, errNotLoggedIn)
	assert.Equal(t, ExitAuthError, ExitCode(res.err))

	res = h.run("", nil, "logout")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Not logged in")
}

// =============================================================================
// WATCH
// =============================================================================

func TestWatch_Once(t *testing.T) {
	h := newHarness(t)
	h.login(apitest.AdminUser, apitest.AdminPassword)

	res := h.run("", nil, "watch", "--once")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Security Console")
	assert.Contains(t, res.stdout, "Recent failed logins")
	assert.Contains(t, res.stdout, "203.0.113.7")
	assert.Contains(t, res.stdout, "/admin/user_credentials.db")
	assert.Contains(t, res.stdout, "Multiple failed logins")
	assert.Contains(t, res.stdout, "HIGH")
	assert.Equal(t, 1, h.srv.Calls(api.PathRiskUsers))
}

func TestWatch_OnceJSON(t *testing.T) {
	h := newHarness(t)
	h.login(apitest.AdminUser, apitest.AdminPassword)

	res := h.run("", nil, "watch", "--once", "--json", "--limit", "1")
	require.NoError(t, res.err)
	_, data := decodeResponse(t, res.stdout)

	risks, ok := data["risk_users"].([]any)
	require.True(t, ok)
	assert.Len(t, risks, 1, "limit applies to risk users")
	failed, ok := data["failed_logins"].([]any)
	require.True(t, ok)
	assert.Len(t, failed, 2)
}

func TestWatch_Count(t *testing.T) {
	h := newHarness(t)
	h.login(apitest.AdminUser, apitest.AdminPassword)

	res := h.run("", nil, "watch", "--count", "2", "--interval", "20ms")
	require.NoError(t, res.err)
	assert.Equal(t, 2, strings.Count(res.stdout, "Security Console"))
	assert.Equal(t, 2, h.srv.Calls(api.PathDashboard))
}

func TestWatch_RequiresAdmin(t *testing.T) {
	h := newHarness(t)
	h.login(apitest.EmployeeUser, apitest.EmployeePassword)

	res := h.run("", nil, "watch", "--once")
	assert.ErrorIs(t, res.err, errAdminRequired)
	assert.Equal(t, ExitAuthError, ExitCode(res.err))
	assert.Zero(t, h.srv.Calls(api.PathDashboard))
}

func TestWatch_UnauthorizedEndsSession(t *testing.T) {
	h := newHarness(t)
	h.login(apitest.AdminUser, apitest.AdminPassword)
	h.srv.Fail(api.PathLoginAttempts, apitest.Failure{Status: http.StatusUnauthorized, Message: "Token expired"})

	res := h.run("", nil, "watch", "--interval", "20ms")
	assert.ErrorIs(t, res.err, errSessionEnded)

	res = h.run("", nil, "whoami")
	assert.ErrorIs(t, res.err, errNotLoggedIn, "stored session purged")
}

func TestWatch_FailedCycleWarns(t *testing.T) {
	h := newHarness(t)
	h.login(apitest.AdminUser, apitest.AdminPassword)
	h.srv.Fail(api.PathFileAccess, apitest.Failure{Status: http.StatusBadRequest, Message: "nope"})

	res := h.run("", nil, "watch", "--once")
	require.Error(t, res.err)
	assert.Equal(t, ExitGeneralError, ExitCode(res.err))
	assert.NotContains(t, res.stdout, "Security Console")
}

// =============================================================================
// SUSPEND
// =============================================================================

func suspended(t *testing.T, srv *apitest.Server, username string) bool {
	t.Helper()
	u, ok := srv.User(username)
	require.True(t, ok)
	return u.Suspended
}

func TestSuspend_ByNameWithYes(t *testing.T) {
	h := newHarness(t)
	h.login(apitest.AdminUser, apitest.AdminPassword)

	res := h.run("", nil, "suspend", apitest.RiskyUser, "--yes")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "User bob suspended")
	assert.True(t, suspended(t, h.srv, apitest.RiskyUser))
}

func TestSuspend_PromptConfirms(t *testing.T) {
	h := newHarness(t)
	h.login(apitest.AdminUser, apitest.AdminPassword)

	res := h.run("", []string{"y"}, "suspend", "3")
	require.NoError(t, res.err)
	assert.Equal(t, []string{"Are you sure you want to suspend bob? [y/N]: "}, res.prompt.asked)
	assert.True(t, suspended(t, h.srv, apitest.RiskyUser))
}

func TestSuspend_PromptDeclined(t *testing.T) {
	h := newHarness(t)
	h.login(apitest.AdminUser, apitest.AdminPassword)

	res := h.run("", []string{""}, "suspend", apitest.RiskyUser)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Cancelled")
	assert.False(t, suspended(t, h.srv, apitest.RiskyUser))
	assert.Zero(t, h.srv.Calls(api.SuspendPath(3)))
}

func TestSuspend_JSONNeedsYes(t *testing.T) {
	h := newHarness(t)
	h.login(apitest.AdminUser, apitest.AdminPassword)

	res := h.run("", nil, "suspend", apitest.RiskyUser, "--json")
	assert.ErrorIs(t, res.err, errConfirmationRequired)
	assert.False(t, suspended(t, h.srv, apitest.RiskyUser))
}

func TestSuspend_UnknownName(t *testing.T) {
	h := newHarness(t)
	h.login(apitest.AdminUser, apitest.AdminPassword)

	res := h.run("", nil, "suspend", "nobody", "--yes")
	assert.ErrorIs(t, res.err, errUnknownRiskUser)
}

func TestSuspend_BackendFailure(t *testing.T) {
	h := newHarness(t)
	h.login(apitest.AdminUser, apitest.AdminPassword)
	h.srv.Fail(api.SuspendPath(3), apitest.Failure{Status: http.StatusNotFound, Message: "User not found"})

	res := h.run("", nil, "suspend", apitest.RiskyUser, "--yes")
	require.Error(t, res.err)
	assert.Equal(t, "Failed to suspend user: User not found", res.err.Error())
	assert.False(t, suspended(t, h.srv, apitest.RiskyUser))
}

// =============================================================================
// ACCESS / CATALOG
// =============================================================================

func TestAccess_Granted(t *testing.T) {
	h := newHarness(t)
	h.login(apitest.EmployeeUser, apitest.EmployeePassword)

	res := h.run("", nil, "access", "/documents/report.pdf")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Access Granted")
	assert.Contains(t, res.stdout, "LOW")
}

func TestAccess_DeniedExitsTwo(t *testing.T) {
	h := newHarness(t)
	h.login(apitest.EmployeeUser, apitest.EmployeePassword)

	res := h.run("", nil, "access", "/confidential/salary_data.xlsx")
	require.Error(t, res.err)
	assert.Equal(t, ExitAccessDenied, ExitCode(res.err))
	assert.True(t, isSilent(res.err))
	assert.Contains(t, res.stdout, "Access Denied")
	assert.Contains(t, res.stdout, "HIGH")
	assert.Contains(t, res.stdout, access.DenialNotice)
}

func TestAccess_DeniedJSON(t *testing.T) {
	h := newHarness(t)
	h.login(apitest.EmployeeUser, apitest.EmployeePassword)

	res := h.run("", nil, "access", "/admin/user_credentials.db", "--json")
	assert.Equal(t, ExitAccessDenied, ExitCode(res.err))

	resp, data := decodeResponse(t, res.stdout)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, false, data["allowed"])
	assert.Equal(t, "critical", data["risk_level"])
}

func TestAccess_NotLoggedIn(t *testing.T) {
	h := newHarness(t)

	res := h.run("", nil, "access", "/documents/report.pdf")
	assert.ErrorIs(t, res.err, errNotLoggedIn)
	assert.Zero(t, h.srv.Calls(api.PathAccessRequest))
}

func TestAccess_BlankPath(t *testing.T) {
	h := newHarness(t)
	h.login(apitest.EmployeeUser, apitest.EmployeePassword)

	res := h.run("", nil, "access", "  ")
	assert.ErrorIs(t, res.err, access.ErrEmptyPath)
	assert.Zero(t, h.srv.Calls(api.PathAccessRequest))
}

func TestCatalog(t *testing.T) {
	h := newHarness(t)

	res := h.run("", nil, "catalog", "--guidelines")
	require.NoError(t, res.err)
	for _, e := range access.Catalog() {
		assert.Contains(t, res.stdout, e.Name)
	}
	assert.Contains(t, res.stdout, "Access Guidelines")
	assert.Contains(t, res.stdout, "/hr/salary")
}

// =============================================================================
// CONFIG / VERSION
// =============================================================================

func TestConfig_SetAndGet(t *testing.T) {
	h := newHarness(t)

	res := h.run("", nil, "config", "set", "ui.theme", "light")
	require.NoError(t, res.err)

	res = h.run("", nil, "config", "get", "ui.theme")
	require.NoError(t, res.err)
	assert.Equal(t, "light\n", res.stdout)

	raw, err := os.ReadFile(filepath.Join(h.home, "config.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `theme = "light"`)
	assert.NotContains(t, string(raw), h.srv.BaseURL(), "environment overrides are not written back")
}

func TestConfig_SetRejectsInvalid(t *testing.T) {
	h := newHarness(t)

	res := h.run("", nil, "config", "set", "ui.theme", "sepia")
	assert.Equal(t, ExitConfigError, ExitCode(res.err))

	res = h.run("", nil, "config", "set", "ui.nope", "x")
	assert.Equal(t, ExitConfigError, ExitCode(res.err))

	_, err := os.Stat(filepath.Join(h.home, "config.toml"))
	assert.True(t, os.IsNotExist(err))
}

func TestConfig_Init(t *testing.T) {
	h := newHarness(t)

	res := h.run("", nil, "config", "init")
	require.NoError(t, res.err)

	res = h.run("", nil, "config", "init")
	assert.Equal(t, ExitConfigError, ExitCode(res.err))

	res = h.run("", nil, "config", "init", "--force")
	require.NoError(t, res.err)

	res = h.run("", nil, "config", "path")
	require.NoError(t, res.err)
	assert.Equal(t, filepath.Join(h.home, "config.toml")+"\n", res.stdout)
}

func TestConfig_ShowJSON(t *testing.T) {
	h := newHarness(t)

	res := h.run("", nil, "config", "--json")
	require.NoError(t, res.err)
	_, data := decodeResponse(t, res.stdout)
	server, ok := data["server"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, h.srv.BaseURL(), server["url"])
}

func TestServerFlagOverridesConfig(t *testing.T) {
	h := newHarness(t)

	res := h.run("", nil, "--server", "not a url", "whoami")
	assert.Equal(t, ExitConfigError, ExitCode(res.err))
}

func TestVersion(t *testing.T) {
	h := newHarness(t)

	res := h.run("", nil, "version")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "sentinel "+Version)
}

func TestRoot_NeedsTerminal(t *testing.T) {
	h := newHarness(t)

	res := h.run("", nil)
	assert.ErrorIs(t, res.err, errNoTerminal)
}

// =============================================================================
// EXIT CODES
// =============================================================================

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"explicit", &ExitError{Code: ExitAccessDenied}, ExitAccessDenied},
		{"not logged in", errNotLoggedIn, ExitAuthError},
		{"wrapped unauthorized", fmt.Errorf("poll: %w", api.ErrUnauthorized), ExitAuthError},
		{"backend down", fmt.Errorf("poll: %w", api.ErrBackendUnavailable), ExitNetworkError},
		{"other", errors.New("boom"), ExitGeneralError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestReportError_JSONEnvelope(t *testing.T) {
	var out, errOut bytes.Buffer
	a := newApp(strings.NewReader(""), &out, &errOut)
	cmd := a.rootCommand()
	whoami, _, err := cmd.Find([]string{"whoami"})
	require.NoError(t, err)
	// Flag registration resets the field, so set it afterwards.
	a.jsonOutput = true

	a.reportError(whoami, errNotLoggedIn)

	resp, _ := decodeResponse(t, out.String())
	assert.False(t, resp.Success)
	assert.Equal(t, "whoami", resp.Command)
	require.NotNil(t, resp.Error)
	assert.Equal(t, errNotLoggedIn.Error(), *resp.Error)
	assert.Empty(t, errOut.String())
}
