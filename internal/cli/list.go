// PgVault - PostgreSQL Backup and Recovery Engine
// Copyright 2026 PgVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pgvault/pgvault

package cli

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pgvault/pgvault/internal/backup"
)

func newListCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List backup artifacts, newest first",
		Long: `List backup artifacts across the backup directory and, when remote storage
is configured, the object storage bucket. Files on disk that are not tracked
in the manifest show up as unverified.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			engine, err := app.Engine(ctx)
			if err != nil {
				return err
			}

			entries, err := engine.List(ctx)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				cmd.Println(styleMuted.Render("No backup artifacts found."))
				return nil
			}

			cmd.Println(renderListTable(entries))
			return nil
		},
	}
}

func renderListTable(entries []backup.ListEntry) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styleBorder).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleHeader
			}
			return styleCell
		}).
		Headers("NAME", "KIND", "SIZE", "CREATED", "VERIFIED", "LOCATION")

	for _, entry := range entries {
		t.Row(
			entry.Name,
			string(entry.Kind),
			humanize.IBytes(uint64(entry.SizeBytes)),
			humanize.Time(entry.CreatedAt),
			mark(entry.Verified),
			string(entry.Location),
		)
	}

	return t.Render()
}
