// PgVault - PostgreSQL Backup and Recovery Engine
// Copyright 2026 PgVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pgvault/pgvault

package cli

import (
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pgvault/pgvault/internal/logging"
)

func newStatusCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration and artifact inventory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := app.Config()
			if err != nil {
				return err
			}

			engine, err := app.Engine(ctx)
			if err != nil {
				return err
			}
			stats := engine.Stats()

			cmd.Println(styleTitle.Render("Database"))
			cmd.Printf("  %s %s\n", styleMuted.Render("Target:"), logging.SanitizeConnString(cfg.Database.ConnString()))
			cmd.Printf("  %s %s\n", styleMuted.Render("Backup directory:"), cfg.Backup.Directory)
			cmd.Printf("  %s %s\n", styleMuted.Render("WAL archiving:"), enabled(cfg.WALEnabled()))
			cmd.Println()

			cmd.Println(styleTitle.Render("Policies"))
			if cfg.RetentionEnabled() {
				cmd.Printf("  %s %d days\n", styleMuted.Render("Retention:"), cfg.Retention.MaxAgeDays)
			} else {
				cmd.Printf("  %s %s\n", styleMuted.Render("Retention:"), styleMuted.Render("disabled"))
			}
			if cfg.RemoteEnabled() {
				cmd.Printf("  %s s3://%s/%s\n", styleMuted.Render("Replication:"), cfg.Remote.Bucket, cfg.Remote.Prefix)
			} else {
				cmd.Printf("  %s %s\n", styleMuted.Render("Replication:"), styleMuted.Render("disabled"))
			}
			cmd.Printf("  %s %s\n", styleMuted.Render("Notifications:"), enabled(cfg.NotifyEnabled()))
			cmd.Println()

			cmd.Println(styleTitle.Render("Artifacts"))
			cmd.Printf("  %s %d (%d full, %d incremental)\n", styleMuted.Render("Tracked:"),
				stats.Total, stats.FullCount, stats.IncrementalCount)
			cmd.Printf("  %s %d verified, %d replicated\n", styleMuted.Render("Protected:"),
				stats.VerifiedCount, stats.UploadedCount)
			cmd.Printf("  %s %s total, %s average\n", styleMuted.Render("Size:"),
				humanize.IBytes(uint64(stats.TotalSizeBytes)), humanize.IBytes(uint64(stats.AverageSizeBytes)))
			if !stats.NewestAt.IsZero() {
				cmd.Printf("  %s %s\n", styleMuted.Render("Newest:"), humanize.Time(stats.NewestAt))
				cmd.Printf("  %s %s\n", styleMuted.Render("Oldest:"), humanize.Time(stats.OldestAt))
			}
			return nil
		},
	}
}

func enabled(on bool) string {
	if on {
		return styleSuccess.Render("enabled")
	}
	return styleMuted.Render("disabled")
}
