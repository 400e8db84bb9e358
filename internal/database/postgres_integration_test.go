// PgVault - PostgreSQL Backup and Recovery Engine
// Copyright 2026 PgVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pgvault/pgvault

//go:build integration

package database

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pgvault/pgvault/internal/logging"
	"github.com/pgvault/pgvault/internal/testinfra"
)

// TestPostgres_Integration exercises the adapter against a real server:
// connectivity, version query, and a dump/restore round trip through the
// actual pg_dump and psql binaries.
//
// Usage:
//
//	go test -tags integration -run TestPostgres ./internal/database/...
func TestPostgres_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testinfra.SkipIfNoDocker(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pg, err := testinfra.NewPostgresContainer(ctx)
	if err != nil {
		t.Fatalf("Failed to create PostgreSQL container: %v", err)
	}
	defer testinfra.CleanupContainer(t, ctx, pg.Container)

	cfg := pg.DatabaseConfig()
	db := New(cfg, "", logging.Nop())

	if err := db.CheckConnectivity(ctx); err != nil {
		t.Fatalf("CheckConnectivity failed: %v", err)
	}

	version, err := db.ServerVersion(ctx)
	if err != nil {
		t.Fatalf("ServerVersion failed: %v", err)
	}
	if !strings.Contains(version, "PostgreSQL") {
		t.Errorf("Expected PostgreSQL version string, got %q", version)
	}
	t.Logf("Server version: %s", version)

	t.Run("DumpRestoreRoundTrip", func(t *testing.T) {
		testinfra.SkipIfNoClientTools(t)

		// Seed a table the dump must carry
		conn, err := pgx.Connect(ctx, cfg.ConnString())
		if err != nil {
			t.Fatalf("Failed to connect: %v", err)
		}
		if _, err := conn.Exec(ctx, "CREATE TABLE invoices (id serial PRIMARY KEY, total numeric NOT NULL)"); err != nil {
			t.Fatalf("Failed to create table: %v", err)
		}
		if _, err := conn.Exec(ctx, "INSERT INTO invoices (total) VALUES (12.50), (99.99), (0.01)"); err != nil {
			t.Fatalf("Failed to insert rows: %v", err)
		}
		conn.Close(ctx)

		var dump bytes.Buffer
		if err := db.Dump(ctx, &dump); err != nil {
			t.Fatalf("Dump failed: %v", err)
		}
		if !strings.Contains(dump.String(), "CREATE TABLE public.invoices") {
			t.Fatal("Dump does not contain the seeded table")
		}

		// Damage the data, then restore the dump over it
		conn, err = pgx.Connect(ctx, cfg.ConnString())
		if err != nil {
			t.Fatalf("Failed to reconnect: %v", err)
		}
		if _, err := conn.Exec(ctx, "DELETE FROM invoices"); err != nil {
			t.Fatalf("Failed to delete rows: %v", err)
		}
		conn.Close(ctx)

		if err := db.Restore(ctx, bytes.NewReader(dump.Bytes())); err != nil {
			t.Fatalf("Restore failed: %v", err)
		}

		// The restore drops and recreates the database, so reconnect
		conn, err = pgx.Connect(ctx, cfg.ConnString())
		if err != nil {
			t.Fatalf("Failed to connect after restore: %v", err)
		}
		defer conn.Close(ctx)

		var count int
		if err := conn.QueryRow(ctx, "SELECT count(*) FROM invoices").Scan(&count); err != nil {
			t.Fatalf("Failed to count rows: %v", err)
		}
		if count != 3 {
			t.Errorf("Expected 3 rows after restore, got %d", count)
		}
	})
}
