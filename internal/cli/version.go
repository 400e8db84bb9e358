// PgVault - PostgreSQL Backup and Recovery Engine
// Copyright 2026 PgVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pgvault/pgvault

package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Build metadata, set via -ldflags at release time:
//
//	-X github.com/pgvault/pgvault/internal/cli.version=v1.2.0
//	-X github.com/pgvault/pgvault/internal/cli.commit=abc1234
//	-X github.com/pgvault/pgvault/internal/cli.date=2026-08-25
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version and build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(styleTitle.Render("pgvault ") + version)
			cmd.Printf("  %s %s\n", styleMuted.Render("Commit:"), commit)
			cmd.Printf("  %s %s\n", styleMuted.Render("Built:"), date)
			cmd.Printf("  %s %s %s/%s\n", styleMuted.Render("Runtime:"), runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}

// Version returns the build version string for log fields.
func Version() string {
	return fmt.Sprintf("%s (%s)", version, commit)
}
