// PgVault - PostgreSQL Backup and Recovery Engine
// Copyright 2026 PgVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pgvault/pgvault

// Package cli implements the pgvault command tree.
//
// Every subcommand is a constructor returning a *cobra.Command wired to a
// shared App. Configuration is loaded lazily on first use so commands that
// need no configuration (version, help) work on an unconfigured host.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Execute runs the command tree and returns the process exit code. Commands
// observe SIGINT and SIGTERM through their context; a second signal kills
// the process the usual way.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &App{}
	root := NewRootCommand(app)
	root.SetOut(os.Stdout)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, styleError.Render("Error: ")+err.Error())
		return 1
	}
	return 0
}

// NewRootCommand assembles the pgvault command tree.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "pgvault",
		Short: "PostgreSQL backup and recovery engine",
		Long: `pgvault protects one PostgreSQL database with compressed full snapshots,
incremental WAL archiving, integrity verification, offsite replication to
S3-compatible object storage, and age-based retention.

Configuration is read from pgvault.yaml or /etc/pgvault/pgvault.yaml (or
--config), then overridden by PGVAULT_* environment variables. The database
password comes from PGVAULT_DB_PASSWORD or PGPASSWORD, never from the
command line.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&app.ConfigPath, "config", "c", "", "path to the configuration file")

	root.AddCommand(
		newBackupCommand(app),
		newRestoreCommand(app),
		newVerifyCommand(app),
		newListCommand(app),
		newCleanupCommand(app),
		newStatusCommand(app),
		newVersionCommand(),
	)

	return root
}
