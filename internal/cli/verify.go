// PgVault - PostgreSQL Backup and Recovery Engine
// Copyright 2026 PgVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pgvault/pgvault

package cli

import (
	"github.com/spf13/cobra"
)

func newVerifyCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <artifact>",
		Short: "Verify the integrity of a backup artifact",
		Long: `Verify the integrity of a backup artifact on disk.

Full dumps are checked for non-emptiness, against their SHA-256 sidecar, and
for a plausible pg_dump header after decompression. WAL bundles, which carry
no sidecar, are checked for non-emptiness. A passing artifact is recorded as
verified; a failing one is reported but left in place for inspection.`,
		Args: cobra.ExactArgs(1),
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
			defer app.PushMetrics(ctx)

			path := resolveArtifact(cfg, args[0])
			if err := engine.Verify(ctx, path); err != nil {
				return err
			}

			cmd.Println(styleSuccess.Render("Artifact verified: ") + path)
			return nil
		},
	}
}
