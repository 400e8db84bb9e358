// PgVault - PostgreSQL Backup and Recovery Engine
// Copyright 2026 PgVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pgvault/pgvault

// Package database adapts one PostgreSQL database for backup and
// restore.
//
// Connectivity checks go through pgx; the dump and restore paths shell
// out to pg_dump and psql so the produced artifacts are standard,
// restorable with stock tooling, and independent of driver-level COPY
// handling. WAL segment accounting reads the archive_status directory
// the way PostgreSQL's own archiver does.
package database

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/pgvault/pgvault/internal/config"
	"github.com/pgvault/pgvault/internal/logging"
)

// maintenanceDB is the database psql connects to for restores. Dumps
// are taken with --create, so the restore script drops and recreates
// the target database and cannot run while connected to it.
const maintenanceDB = "postgres"

// archiveStatusDir is PostgreSQL's WAL archival bookkeeping directory
// under pg_wal.
const archiveStatusDir = "archive_status"

// maxStderrTail bounds how much child stderr is retained for error
// reporting.
const maxStderrTail = 32 * 1024

// Postgres is the adapter for a single PostgreSQL database.
type Postgres struct {
	cfg    config.DatabaseConfig
	walDir string
	logger zerolog.Logger

	// Overridable for tests.
	dumpBin string
	psqlBin string
}

// New returns an adapter for the database described by cfg. walDir is
// the pg_wal directory for segment archiving; empty disables WAL
// methods (they report no work).
func New(cfg config.DatabaseConfig, walDir string, logger zerolog.Logger) *Postgres {
	return &Postgres{
		cfg:     cfg,
		walDir:  walDir,
		logger:  logger.With().Str("component", "database").Str("database", cfg.Name).Logger(),
		dumpBin: "pg_dump",
		psqlBin: "psql",
	}
}

// Name returns the database name.
func (p *Postgres) Name() string {
	return p.cfg.Name
}

// CheckConnectivity verifies the database accepts connections, polling
// up to the configured retry budget before giving up. Returns nil as
// soon as one attempt succeeds.
func (p *Postgres) CheckConnectivity(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= p.cfg.ConnectRetries; attempt++ {
		if err := p.ping(ctx); err != nil {
			lastErr = err
			p.logger.Debug().
				Int("attempt", attempt).
				Int("max_attempts", p.cfg.ConnectRetries).
				Str("error", logging.SanitizeError(err.Error())).
				Msg("connectivity check failed")
		} else {
			return nil
		}

		if attempt < p.cfg.ConnectRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.cfg.ConnectInterval):
			}
		}
	}
	return fmt.Errorf("database %s unreachable after %d attempts: %w",
		p.cfg.Name, p.cfg.ConnectRetries, lastErr)
}

// ping opens one connection and round-trips it.
func (p *Postgres) ping(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, p.cfg.ConnString())
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	return conn.Ping(ctx)
}

// ServerVersion reports the PostgreSQL server version string.
func (p *Postgres) ServerVersion(ctx context.Context) (string, error) {
	conn, err := pgx.Connect(ctx, p.cfg.ConnString())
	if err != nil {
		return "", fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close(ctx)

	var version string
	if err := conn.QueryRow(ctx, "SELECT version()").Scan(&version); err != nil {
		return "", fmt.Errorf("failed to query version: %w", err)
	}
	return version, nil
}

// Dump streams a plain-format SQL dump of the database to w. The dump
// carries --clean --if-exists --create so restoring it drops and
// recreates the database from scratch.
func (p *Postgres) Dump(ctx context.Context, w io.Writer) error {
	args := []string{
		"--format=plain",
		"--clean",
		"--if-exists",
		"--create",
		"--host", p.cfg.Host,
		"--port", strconv.Itoa(p.cfg.Port),
		"--username", p.cfg.User,
		"--no-password",
		p.cfg.Name,
	}

	cmd := exec.CommandContext(ctx, p.dumpBin, args...)
	cmd.Env = p.commandEnv()
	cmd.Stdout = w
	stderr := newTailBuffer(maxStderrTail)
	cmd.Stderr = stderr

	p.logger.Debug().Str("binary", p.dumpBin).Strs("args", args).Msg("starting dump")
	start := time.Now()
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("pg_dump failed: %w: %s", err, logging.SanitizeError(stderr.String()))
	}
	p.logger.Debug().Dur("elapsed", time.Since(start)).Msg("dump finished")
	return nil
}

// Restore feeds a plain-format SQL dump from r into psql. The session
// connects to the maintenance database because the script recreates the
// target. ON_ERROR_STOP makes psql exit non-zero on the first failed
// statement instead of plowing on.
func (p *Postgres) Restore(ctx context.Context, r io.Reader) error {
	args := []string{
		"--no-psqlrc",
		"--quiet",
		"--variable=ON_ERROR_STOP=1",
		"--host", p.cfg.Host,
		"--port", strconv.Itoa(p.cfg.Port),
		"--username", p.cfg.User,
		"--no-password",
		"--dbname", maintenanceDB,
	}

	cmd := exec.CommandContext(ctx, p.psqlBin, args...)
	cmd.Env = p.commandEnv()
	cmd.Stdin = r
	stderr := newTailBuffer(maxStderrTail)
	cmd.Stderr = stderr

	p.logger.Debug().Str("binary", p.psqlBin).Strs("args", args).Msg("starting restore")
	start := time.Now()
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("psql restore failed: %w: %s", err, logging.SanitizeError(stderr.String()))
	}
	p.logger.Debug().Dur("elapsed", time.Since(start)).Msg("restore finished")
	return nil
}

// commandEnv builds the child process environment. The password rides
// in PGPASSWORD so it never appears in process listings.
func (p *Postgres) commandEnv() []string {
	env := os.Environ()
	if p.cfg.Password != "" {
		env = append(env, "PGPASSWORD="+p.cfg.Password)
	}
	return env
}

// ReadyWALSegments returns the absolute paths of WAL segments with a
// .ready marker in archive_status, sorted by name (segment names sort
// in LSN order). Returns (nil, nil) when archiving is disabled or no
// segments are pending.
func (p *Postgres) ReadyWALSegments() ([]string, error) {
	if p.walDir == "" {
		return nil, nil
	}

	statusDir := filepath.Join(p.walDir, archiveStatusDir)
	entries, err := os.ReadDir(statusDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s has no %s directory; expected a pg_wal directory", p.walDir, archiveStatusDir)
		}
		return nil, fmt.Errorf("failed to read %s: %w", statusDir, err)
	}

	var segments []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name, ok := strings.CutSuffix(entry.Name(), ".ready")
		if !ok {
			continue
		}

		segPath := filepath.Join(p.walDir, name)
		if _, err := os.Stat(segPath); err != nil {
			if os.IsNotExist(err) {
				p.logger.Warn().Str("segment", name).Msg("ready marker without segment file, skipping")
				continue
			}
			return nil, fmt.Errorf("failed to stat segment %s: %w", segPath, err)
		}
		segments = append(segments, segPath)
	}

	sort.Strings(segments)
	return segments, nil
}

// MarkWALArchived renames each segment's .ready marker to .done,
// telling PostgreSQL the segment is safe to recycle. A marker that has
// already advanced is skipped.
func (p *Postgres) MarkWALArchived(segments []string) error {
	for _, seg := range segments {
		name := filepath.Base(seg)
		ready := filepath.Join(p.walDir, archiveStatusDir, name+".ready")
		done := filepath.Join(p.walDir, archiveStatusDir, name+".done")

		if err := os.Rename(ready, done); err != nil {
			if os.IsNotExist(err) {
				p.logger.Debug().Str("segment", name).Msg("ready marker already advanced")
				continue
			}
			return fmt.Errorf("failed to mark %s archived: %w", name, err)
		}
	}
	return nil
}

// tailBuffer keeps the last cap bytes written to it. Child stderr can
// be arbitrarily large; only the tail matters for diagnostics.
type tailBuffer struct {
	buf []byte
	cap int
}

func newTailBuffer(capacity int) *tailBuffer {
	return &tailBuffer{cap: capacity}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.cap {
		t.buf = t.buf[len(t.buf)-t.cap:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return strings.TrimSpace(string(t.buf))
}
