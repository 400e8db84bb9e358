// PgVault - PostgreSQL Backup and Recovery Engine
// Copyright 2026 PgVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pgvault/pgvault

package cli

import (
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newCleanupCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete artifacts older than the retention window",
		Long: `Delete artifacts older than the configured retention window, locally and in
remote storage. Age comes from the timestamp embedded in each artifact name.
Artifacts that never passed verification are kept, as are local artifacts
that were never replicated while remote storage is configured.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := app.Config()
			if err != nil {
				return err
			}
			if !cfg.RetentionEnabled() {
				cmd.Println(styleMuted.Render("Retention is disabled (retention.max_age_days is 0)."))
				return nil
			}

			engine, err := app.Engine(ctx)
			if err != nil {
				return err
			}
			defer app.PushMetrics(ctx)

			result, err := engine.Cleanup(ctx)
			if err != nil {
				return err
			}

			cmd.Println(styleSuccess.Render("Retention pass completed"))
			cmd.Printf("  %s %d local, %d remote\n", styleMuted.Render("Deleted:"), result.DeletedLocal, result.DeletedRemote)
			cmd.Printf("  %s %s\n", styleMuted.Render("Freed:"), humanize.IBytes(uint64(result.FreedBytes)))
			if result.SkippedUnverified > 0 {
				cmd.Printf("  %s %d (never verified)\n", styleMuted.Render("Protected:"), result.SkippedUnverified)
			}
			if result.SkippedUnreplicated > 0 {
				cmd.Printf("  %s %d (never replicated)\n", styleMuted.Render("Protected:"), result.SkippedUnreplicated)
			}
			return nil
		},
	}
}
