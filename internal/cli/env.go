// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"

	"github.com/jeranaias/sentinel-tui/internal/api"
	"github.com/jeranaias/sentinel-tui/internal/config"
	"github.com/jeranaias/sentinel-tui/internal/session"
	"github.com/jeranaias/sentinel-tui/internal/store"
	"github.com/jeranaias/sentinel-tui/internal/ui"
	"github.com/jeranaias/sentinel-tui/internal/ui/styles"
)

// env is an opened credential store with a restored session.
type env struct {
	cfg     *config.Config
	store   *store.Store
	client  *api.Client
	manager *session.Manager
}

// openEnv opens the credential store and restores any stored session. The
// caller must Close it.
func (a *app) openEnv(ctx context.Context) (*env, error) {
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, store.Config{Path: cfg.Storage.Path, KeyPath: cfg.Storage.KeyPath})
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}

	client := api.NewClient(api.Options{
		BaseURL:         cfg.Server.URL,
		RateLimit:       cfg.Network.RateLimit,
		Burst:           cfg.Network.Burst,
		BreakerFailures: cfg.Network.BreakerFailures,
		BreakerCooldown: cfg.Network.BreakerCooldown(),
		UserAgent:       "sentinel/" + Version,
	})

	manager := session.NewManager(st, client)
	if err := manager.Restore(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return &env{cfg: cfg, store: st, client: client, manager: manager}, nil
}

// Close closes the credential store.
func (e *env) Close() error {
	return e.store.Close()
}

// identity returns the signed-in identity, or errNotLoggedIn.
func (e *env) identity() (api.Identity, error) {
	identity, ok := e.manager.Identity()
	if !ok {
		return api.Identity{}, errNotLoggedIn
	}
	return identity, nil
}

// admin returns the signed-in identity if it is an admin.
func (e *env) admin() (api.Identity, error) {
	identity, err := e.identity()
	if err != nil {
		return identity, err
	}
	if !identity.IsAdmin() {
		return identity, &ExitError{Code: ExitAuthError, Err: errAdminRequired}
	}
	return identity, nil
}

// authed returns a client carrying the session token and a deauthenticator
// bound to the current session generation.
func (e *env) authed() (*api.Client, session.Deauthenticator) {
	return e.client.WithToken(e.manager.Token()), e.manager.DeauthenticatorFor(e.manager.Generation())
}

// sessionEnded wraps err with errSessionEnded when the session was dropped
// while the command ran.
func (e *env) sessionEnded(gen uint64, err error) error {
	if e.manager.IsCurrent(gen) {
		return err
	}
	if err == nil {
		return errSessionEnded
	}
	return fmt.Errorf("%w: %v", errSessionEnded, err)
}

func (e *env) theme() *styles.Theme {
	return styles.NewTheme(e.cfg.UI.Theme)
}

// themeOrDefault returns the configured theme without loading the config.
// Output that is not a terminal never queries the background color.
func (a *app) themeOrDefault() *styles.Theme {
	if !isTerminal(a.stdout) {
		return styles.NewTheme(styles.ModeDark)
	}
	if a.cfg != nil {
		return styles.NewTheme(a.cfg.UI.Theme)
	}
	return styles.NewTheme(styles.ModeAuto)
}

func runUI(ctx context.Context, e *env) error {
	return ui.Run(ctx, ui.Deps{
		Manager: e.manager,
		Client:  e.client,
		Config:  e.cfg,
		Theme:   e.theme(),
	})
}
