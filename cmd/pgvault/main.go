// PgVault - PostgreSQL Backup and Recovery Engine
// Copyright 2026 PgVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pgvault/pgvault

// Package main is the entry point for the pgvault command line tool.
//
// PgVault protects a single PostgreSQL database with compressed full
// snapshots, incremental WAL archiving, integrity verification, offsite
// replication, and age-based retention. It is a short-lived process meant
// to run from cron or a systemd timer, not a daemon.
//
// # Commands
//
//	pgvault backup full          Produce, verify, and replicate a full snapshot
//	pgvault backup incremental   Bundle WAL segments PostgreSQL marked ready
//	pgvault restore <artifact>   Restore the database (requires --confirm)
//	pgvault verify <artifact>    Re-run integrity checks on an artifact
//	pgvault list                 List artifacts, locally and in object storage
//	pgvault cleanup              Apply the retention policy
//	pgvault status               Show configuration and artifact inventory
//	pgvault version              Show build information
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (PGVAULT_* prefix)
//   - Config file (--config, $PGVAULT_CONFIG, ./pgvault.yaml, or
//     /etc/pgvault/pgvault.yaml)
//   - Built-in defaults
//
// The database password is read from PGVAULT_DB_PASSWORD (or the standard
// PGPASSWORD) and handed to pg_dump and psql through the environment. It
// never appears on a command line or in a log.
//
// # Typical Setup
//
// Nightly full backup with offsite replication:
//
//	export PGVAULT_DB_HOST=localhost
//	export PGVAULT_DB_NAME=appdb
//	export PGVAULT_DB_USER=postgres
//	export PGPASSWORD=secret
//	export PGVAULT_REMOTE_ENDPOINT=minio.internal:9000
//	export PGVAULT_REMOTE_ACCESS_KEY=pgvault
//	export PGVAULT_REMOTE_SECRET_KEY=...
//	export PGVAULT_REMOTE_BUCKET=pg-backups
//	pgvault backup full
//
// WAL archiving every five minutes (cron):
//
//	*/5 * * * * pgvault backup incremental
//
// Disaster recovery:
//
//	pgvault list
//	pgvault restore appdb_full_20260115_030000.sql.gz --confirm
//
// # Exit Codes
//
// pgvault exits 0 only when the requested operation fully succeeded
// (upload and retention warnings do not fail a backup; they are printed
// and logged). Any other outcome, including a restore that was rolled
// back cleanly, exits 1.
//
// # External Commands
//
// pgvault drives the PostgreSQL client tools rather than reimplementing
// them: pg_dump produces snapshots and psql applies them. Both must be on
// PATH in versions compatible with the target server.
package main

import (
	"os"

	"github.com/pgvault/pgvault/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
