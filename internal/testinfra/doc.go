// PgVault - PostgreSQL Backup and Recovery Engine
// Copyright 2026 PgVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pgvault/pgvault

// Package testinfra provides test infrastructure for integration testing with containers.
//
// This package uses testcontainers-go to manage Docker containers for integration tests,
// providing realistic testing environments that closely match production.
//
// # PostgreSQL Container
//
// PostgresContainer provides a real PostgreSQL server for exercising the
// database adapter and the full backup pipeline:
//
//	func TestBackupFlow(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    ctx := context.Background()
//
//	    pg, err := testinfra.NewPostgresContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer testinfra.CleanupContainer(t, ctx, pg.Container)
//
//	    db := database.New(pg.DatabaseConfig(), "", logging.Nop())
//	    // Dump against a real server...
//	}
//
// # MinIO Container
//
// MinioContainer provides S3-compatible object storage for exercising the
// replication layer against a real S3 API:
//
//	minio, err := testinfra.NewMinioContainer(ctx)
//	store, err := storage.NewMinioStore(minio.StorageConfig("backups"), logging.Nop())
//
// # Benefits Over Mocks
//
// Using real containers provides several advantages:
//   - Tests validate actual wire contracts (PostgreSQL protocol, S3 API)
//   - No mock drift (mocks getting out of sync with real services)
//   - Tests run against production-equivalent services
//
// # CI Considerations
//
// These tests require Docker and the integration build tag. Tests skip
// gracefully when Docker is unavailable, and the database tests
// additionally require the PostgreSQL client tools (pg_dump, psql) on the
// host PATH.
//
// # Network Requirements
//
// First run may need to download container images. Subsequent runs use cached images.
package testinfra
