// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package access

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
)

// Entry is one quick-access file. Safe is a display hint only; the backend
// alone decides whether a request is allowed.
type Entry struct {
	Path string
	Name string
	Safe bool
}

var catalog = []Entry{
	{Path: "/documents/report.pdf", Name: "Report.pdf", Safe: true},
	{Path: "/shared/presentation.pptx", Name: "Presentation.pptx", Safe: true},
	{Path: "/confidential/salary_data.xlsx", Name: "Salary Data (Restricted)", Safe: false},
	{Path: "/admin/user_credentials.db", Name: "Admin Credentials (Restricted)", Safe: false},
	{Path: "/hr/employee_records.xlsx", Name: "Employee Records", Safe: true},
}

// Catalog returns the quick-access list in display order.
func Catalog() []Entry {
	return slices.Clone(catalog)
}

// MonitoringBanner is the notice shown above the request form.
const MonitoringBanner = "All file access attempts are monitored and logged. " +
	"Unauthorized access attempts will be reported to administrators."

var (
	allowedFolders    = []string{"/documents", "/shared", "/reports"}
	restrictedFolders = []string{"/confidential", "/admin", "/hr/salary"}
)

// GuidelinesMarkdown returns the access guidelines as markdown.
func GuidelinesMarkdown() string {
	var b strings.Builder
	b.WriteString("## Access Guidelines\n\n")
	b.WriteString("**Allowed folders**\n\n")
	for _, f := range allowedFolders {
		fmt.Fprintf(&b, "- `%s`\n", f)
	}
	b.WriteString("\n**Restricted folders**\n\n")
	for _, f := range restrictedFolders {
		fmt.Fprintf(&b, "- `%s`\n", f)
	}
	b.WriteString("\n> " + MonitoringBanner + "\n")
	return b.String()
}

// RenderGuidelines renders GuidelinesMarkdown for a terminal of the given
// width with the named glamour style ("dark", "light", "notty" or "auto").
// It falls back to the raw markdown if rendering fails.
func RenderGuidelines(width int, style string) string {
	md := GuidelinesMarkdown()
	if width <= 0 {
		width = 80
	}

	styleOpt := glamour.WithStandardStyle(style)
	if style == "" || style == "auto" {
		styleOpt = glamour.WithAutoStyle()
	}
	r, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(width))
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}
