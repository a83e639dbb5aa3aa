// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads, validates and saves the sentinel configuration.
//
// Sources, lowest precedence first:
//   - Built-in defaults (Default)
//   - ~/.sentinel/config.toml (or $SENTINEL_HOME/config.toml)
//   - SENTINEL_* environment variables
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	client := api.NewClient(cfg.Server.URL, ...)
//
// Keys can be read and written in dot notation, which is what the
// "sentinel config get/set" commands use:
//
//	v, _ := cfg.Get("server.url")
//	_ = cfg.Set("network.rate_limit", "5")
package config
