// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package console

import (
	"fmt"
	"strings"
)

// Tab selects which projection of the Snapshot is visible. Switching tabs
// never fetches.
type Tab int

const (
	TabDashboard Tab = iota
	TabLogins
	TabFiles
	TabRisks
)

// Tabs lists every tab in display order.
var Tabs = []Tab{TabDashboard, TabLogins, TabFiles, TabRisks}

var tabNames = map[Tab]string{
	TabDashboard: "dashboard",
	TabLogins:    "logins",
	TabFiles:     "files",
	TabRisks:     "risks",
}

var tabTitles = map[Tab]string{
	TabDashboard: "Dashboard",
	TabLogins:    "Login Attempts",
	TabFiles:     "File Access",
	TabRisks:     "Risk Users",
}

// String returns the tab's identifier.
func (t Tab) String() string {
	if name, ok := tabNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Tab(%d)", int(t))
}

// Title returns the tab's display title.
func (t Tab) Title() string {
	return tabTitles[t]
}

// Next returns the following tab, wrapping around.
func (t Tab) Next() Tab {
	return Tab((int(t) + 1) % len(Tabs))
}

// Prev returns the preceding tab, wrapping around.
func (t Tab) Prev() Tab {
	return Tab((int(t) + len(Tabs) - 1) % len(Tabs))
}

// ParseTab parses a tab identifier.
func ParseTab(s string) (Tab, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for tab, name := range tabNames {
		if name == s {
			return tab, nil
		}
	}
	return TabDashboard, fmt.Errorf("unknown tab %q (want dashboard, logins, files or risks)", s)
}
