// PgVault - PostgreSQL Backup and Recovery Engine
// Copyright 2026 PgVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pgvault/pgvault

package cli

import "github.com/charmbracelet/lipgloss"

// ANSI palette colors so output respects the user's terminal theme.
var (
	colorSuccess = lipgloss.Color("2")
	colorWarning = lipgloss.Color("3")
	colorError   = lipgloss.Color("1")
	colorAccent  = lipgloss.Color("6")
	colorMuted   = lipgloss.Color("8")
)

var (
	styleTitle   = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	styleSuccess = lipgloss.NewStyle().Bold(true).Foreground(colorSuccess)
	styleWarning = lipgloss.NewStyle().Bold(true).Foreground(colorWarning)
	styleError   = lipgloss.NewStyle().Bold(true).Foreground(colorError)
	styleMuted   = lipgloss.NewStyle().Foreground(colorMuted)
	styleHeader  = lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Padding(0, 1)
	styleCell    = lipgloss.NewStyle().Padding(0, 1)
	styleBorder  = lipgloss.NewStyle().Foreground(colorMuted)
)

// mark renders a colored yes/no cell.
func mark(ok bool) string {
	if ok {
		return styleSuccess.Render("yes")
	}
	return styleMuted.Render("no")
}
