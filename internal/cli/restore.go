// PgVault - PostgreSQL Backup and Recovery Engine
// Copyright 2026 PgVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pgvault/pgvault

package cli

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/pgvault/pgvault/internal/backup"
)

func newRestoreCommand(app *App) *cobra.Command {
	var confirm bool
	var allowUnprotected bool

	cmd := &cobra.Command{
		Use:   "restore <artifact>",
		Short: "Restore the database from a full backup artifact",
		Long: `Restore the database from a verified full backup artifact.

The artifact may be a bare name (resolved against the backup directory) or a
path. Before anything is mutated the artifact is verified, a safety backup of
the live database is captured, and the configured dependent services are
stopped. If the restore fails, the safety backup is applied to roll the
database back to its pre-restore state.

This command overwrites the live database and refuses to run without
--confirm.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := app.Config()
			if err != nil {
				return err
			}
			if allowUnprotected {
				cfg.Restore.AllowUnprotected = true
			}

			engine, err := app.Engine(ctx)
			if err != nil {
				return err
			}
			defer app.PushMetrics(ctx)

			result, restoreErr := engine.Restore(ctx, resolveArtifact(cfg, args[0]), confirm)
			printRestoreResult(cmd, result, restoreErr)
			return restoreErr
		},
	}

	cmd.Flags().BoolVar(&confirm, "confirm", false, "acknowledge that the live database will be overwritten")
	cmd.Flags().BoolVar(&allowUnprotected, "allow-unprotected", false, "proceed even if the pre-restore safety backup fails")

	return cmd
}

func printRestoreResult(cmd *cobra.Command, result *backup.RestoreResult, err error) {
	if result == nil {
		return
	}

	for _, warning := range result.Warnings {
		cmd.Println(styleWarning.Render("Warning: ") + warning)
	}

	switch {
	case err == nil:
		cmd.Println(styleSuccess.Render("Restore completed"))
		if result.Safety != nil {
			cmd.Printf("  %s %s\n", styleMuted.Render("Safety backup:"), result.Safety.Name)
		}
		cmd.Printf("  %s %s\n", styleMuted.Render("Duration:"), result.Duration.Round(time.Millisecond))

	case result.Degraded:
		cmd.Println(styleWarning.Render("Restore failed, database rolled back"))
		if result.Safety != nil {
			cmd.Printf("  %s %s\n", styleMuted.Render("Rolled back to:"), result.Safety.Name)
		}
		cmd.Println(styleMuted.Render("  The database is back in its pre-restore state."))

	case result.FinalState == backup.StateFatal:
		cmd.Println(styleError.Render("Restore failed and could not be rolled back"))
		cmd.Println(styleError.Render("  Dependent services remain stopped. Manual intervention required."))

	case errors.Is(err, backup.ErrMissingConfirmation):
		cmd.Println(styleMuted.Render("Refusing to overwrite the live database without --confirm."))

	case result.FinalState == backup.StateServicesRestarted:
		cmd.Println(styleWarning.Render("Restore applied, but dependent services failed to start"))

	default:
		cmd.Printf("%s aborted at state %q; the database was not modified\n", styleError.Render("Restore"), result.FinalState)
	}
}
