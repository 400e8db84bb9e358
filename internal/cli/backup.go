// PgVault - PostgreSQL Backup and Recovery Engine
// Copyright 2026 PgVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pgvault/pgvault

package cli

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pgvault/pgvault/internal/backup"
)

func newBackupCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup [full|incremental]",
		Short: "Run a backup of the configured database",
		Long: `Run one backup of the configured database.

A full backup snapshots the entire database with pg_dump, compresses it, and
writes a SHA-256 sidecar next to it. An incremental backup bundles the WAL
segments PostgreSQL has marked ready for archiving; with no segments ready it
is a silent no-op. Either kind is verified after production and, when remote
storage is configured, replicated offsite.`,
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"full", "incremental"},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := backup.KindFull
			if len(args) == 1 && args[0] == "incremental" {
				kind = backup.KindIncremental
			}

			ctx := cmd.Context()
			engine, err := app.Engine(ctx)
			if err != nil {
				return err
			}
			defer app.PushMetrics(ctx)

			result, err := engine.Run(ctx, kind)
			if err != nil {
				return err
			}

			printRunResult(cmd, result)
			return nil
		},
	}
	return cmd
}

func printRunResult(cmd *cobra.Command, result *backup.RunResult) {
	if result.Skipped {
		cmd.Println(styleMuted.Render("No WAL segments ready, nothing to archive."))
		return
	}

	a := result.Artifact
	cmd.Println(styleSuccess.Render("Backup completed"))
	cmd.Printf("  %s %s\n", styleMuted.Render("Artifact:"), a.Name)
	cmd.Printf("  %s %s\n", styleMuted.Render("Size:"), humanize.IBytes(uint64(a.SizeBytes)))
	if a.ChecksumSHA256 != "" {
		cmd.Printf("  %s sha256:%s\n", styleMuted.Render("Checksum:"), a.ChecksumSHA256)
	}
	cmd.Printf("  %s %s\n", styleMuted.Render("Verified:"), mark(a.Verified))
	if a.RemoteURI != "" {
		cmd.Printf("  %s %s\n", styleMuted.Render("Remote:"), a.RemoteURI)
	}
	cmd.Printf("  %s %s\n", styleMuted.Render("Duration:"), result.Duration.Round(time.Millisecond))

	for _, warning := range result.Warnings {
		cmd.Println(styleWarning.Render("Warning: ") + warning)
	}
	if len(result.Warnings) > 0 {
		cmd.Println(styleMuted.Render(fmt.Sprintf("Completed with %d warning(s); the artifact is intact locally.", len(result.Warnings))))
	}
}
