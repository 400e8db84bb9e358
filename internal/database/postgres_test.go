// PgVault - PostgreSQL Backup and Recovery Engine
// Copyright 2026 PgVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pgvault/pgvault

package database

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pgvault/pgvault/internal/config"
	"github.com/pgvault/pgvault/internal/logging"
)

func testConfig() config.DatabaseConfig {
	return config.DatabaseConfig{
		Host:            "localhost",
		Port:            5432,
		User:            "postgres",
		Name:            "orders",
		SSLMode:         "disable",
		ConnectRetries:  2,
		ConnectInterval: 10 * time.Millisecond,
	}
}

// newTestAdapter returns an adapter with a discarded logger.
func newTestAdapter(walDir string) *Postgres {
	return New(testConfig(), walDir, logging.Nop())
}

// writeScript drops an executable shell script into dir and returns its
// path. Used to stand in for pg_dump and psql.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("failed to write script %s: %v", name, err)
	}
	return path
}

func TestName(t *testing.T) {
	t.Parallel()

	p := newTestAdapter("")
	if p.Name() != "orders" {
		t.Errorf("Name() = %q, want orders", p.Name())
	}
}

func TestDumpStreamsStdout(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := newTestAdapter("")
	p.dumpBin = writeScript(t, dir, "fake_pg_dump",
		`echo "-- PostgreSQL database dump"
echo "CREATE DATABASE orders;"`)

	var buf bytes.Buffer
	if err := p.Dump(context.Background(), &buf); err != nil {
		t.Fatalf("Dump() failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "-- PostgreSQL database dump") {
		t.Errorf("dump output missing header, got: %q", out)
	}
	if !strings.Contains(out, "CREATE DATABASE orders;") {
		t.Errorf("dump output missing body, got: %q", out)
	}
}

func TestDumpFailureIncludesStderr(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := newTestAdapter("")
	p.dumpBin = writeScript(t, dir, "fake_pg_dump",
		`echo "pg_dump: error: connection to server failed" >&2
exit 2`)

	var buf bytes.Buffer
	err := p.Dump(context.Background(), &buf)
	if err == nil {
		t.Fatal("Dump() should fail when pg_dump exits non-zero")
	}
	if !strings.Contains(err.Error(), "pg_dump failed") {
		t.Errorf("error missing prefix, got: %v", err)
	}
	if !strings.Contains(err.Error(), "connection to server failed") {
		t.Errorf("error missing stderr tail, got: %v", err)
	}
}

func TestRestoreFeedsStdin(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	captured := filepath.Join(dir, "stdin.sql")
	p := newTestAdapter("")
	p.psqlBin = writeScript(t, dir, "fake_psql", "cat > "+captured)

	script := "DROP DATABASE IF EXISTS orders;\nCREATE DATABASE orders;\n"
	if err := p.Restore(context.Background(), strings.NewReader(script)); err != nil {
		t.Fatalf("Restore() failed: %v", err)
	}

	data, err := os.ReadFile(captured)
	if err != nil {
		t.Fatalf("fake psql captured nothing: %v", err)
	}
	if string(data) != script {
		t.Errorf("restore stdin = %q, want %q", string(data), script)
	}
}

func TestRestoreFailureIncludesStderr(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := newTestAdapter("")
	p.psqlBin = writeScript(t, dir, "fake_psql",
		`cat > /dev/null
echo 'psql: error: syntax error at or near "BOGUS"' >&2
exit 3`)

	err := p.Restore(context.Background(), strings.NewReader("BOGUS;"))
	if err == nil {
		t.Fatal("Restore() should fail when psql exits non-zero")
	}
	if !strings.Contains(err.Error(), "psql restore failed") {
		t.Errorf("error missing prefix, got: %v", err)
	}
	if !strings.Contains(err.Error(), "syntax error") {
		t.Errorf("error missing stderr tail, got: %v", err)
	}
}

func TestCheckConnectivityExhaustsRetries(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 9 // discard port; nothing listens here
	p := New(cfg, "", logging.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := p.CheckConnectivity(ctx)
	if err == nil {
		t.Fatal("CheckConnectivity() should fail with no server listening")
	}
	if !strings.Contains(err.Error(), "after 2 attempts") {
		t.Errorf("error should report attempt count, got: %v", err)
	}
}

func TestCheckConnectivityHonorsContext(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 9
	cfg.ConnectRetries = 10
	cfg.ConnectInterval = time.Hour // would stall without ctx
	p := New(cfg, "", logging.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := p.CheckConnectivity(ctx)
	if err == nil {
		t.Fatal("CheckConnectivity() should fail")
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("CheckConnectivity() ignored context, took %v", elapsed)
	}
}

// walFixture builds a pg_wal-shaped tree:
//
//	wal/
//	  000000010000000000000001        (ready)
//	  000000010000000000000002        (ready)
//	  000000010000000000000003        (done, not pending)
//	  archive_status/
//	    000000010000000000000001.ready
//	    000000010000000000000002.ready
//	    000000010000000000000003.done
func walFixture(t *testing.T) string {
	t.Helper()
	walDir := filepath.Join(t.TempDir(), "pg_wal")
	statusDir := filepath.Join(walDir, archiveStatusDir)
	if err := os.MkdirAll(statusDir, 0o750); err != nil {
		t.Fatalf("failed to create fixture: %v", err)
	}

	for _, seg := range []string{
		"000000010000000000000001",
		"000000010000000000000002",
		"000000010000000000000003",
	} {
		if err := os.WriteFile(filepath.Join(walDir, seg), []byte("wal segment "+seg), 0o640); err != nil {
			t.Fatalf("failed to write segment: %v", err)
		}
	}
	for _, marker := range []string{
		"000000010000000000000001.ready",
		"000000010000000000000002.ready",
		"000000010000000000000003.done",
	} {
		if err := os.WriteFile(filepath.Join(statusDir, marker), nil, 0o640); err != nil {
			t.Fatalf("failed to write marker: %v", err)
		}
	}
	return walDir
}

func TestReadyWALSegments(t *testing.T) {
	t.Parallel()

	walDir := walFixture(t)
	p := newTestAdapter(walDir)

	segments, err := p.ReadyWALSegments()
	if err != nil {
		t.Fatalf("ReadyWALSegments() failed: %v", err)
	}

	if len(segments) != 2 {
		t.Fatalf("got %d segments, want 2: %v", len(segments), segments)
	}
	if filepath.Base(segments[0]) != "000000010000000000000001" {
		t.Errorf("segments[0] = %s, want segment 1 first (sorted)", segments[0])
	}
	if filepath.Base(segments[1]) != "000000010000000000000002" {
		t.Errorf("segments[1] = %s, want segment 2", segments[1])
	}
}

func TestReadyWALSegmentsDisabled(t *testing.T) {
	t.Parallel()

	p := newTestAdapter("")
	segments, err := p.ReadyWALSegments()
	if err != nil {
		t.Fatalf("ReadyWALSegments() with no wal dir should be a no-op, got %v", err)
	}
	if segments != nil {
		t.Errorf("expected nil segments, got %v", segments)
	}
}

func TestReadyWALSegmentsMissingStatusDir(t *testing.T) {
	t.Parallel()

	p := newTestAdapter(t.TempDir()) // exists but no archive_status
	_, err := p.ReadyWALSegments()
	if err == nil {
		t.Fatal("expected error for directory without archive_status")
	}
	if !strings.Contains(err.Error(), archiveStatusDir) {
		t.Errorf("error should name archive_status, got: %v", err)
	}
}

func TestReadyWALSegmentsSkipsOrphanMarker(t *testing.T) {
	t.Parallel()

	walDir := walFixture(t)
	// Marker without its segment file.
	orphan := filepath.Join(walDir, archiveStatusDir, "0000000100000000000000FF.ready")
	if err := os.WriteFile(orphan, nil, 0o640); err != nil {
		t.Fatalf("failed to write orphan marker: %v", err)
	}

	p := newTestAdapter(walDir)
	segments, err := p.ReadyWALSegments()
	if err != nil {
		t.Fatalf("ReadyWALSegments() failed: %v", err)
	}
	for _, seg := range segments {
		if strings.HasSuffix(seg, "FF") {
			t.Errorf("orphan marker should be skipped, got %v", segments)
		}
	}
}

func TestMarkWALArchived(t *testing.T) {
	t.Parallel()

	walDir := walFixture(t)
	p := newTestAdapter(walDir)

	segments, err := p.ReadyWALSegments()
	if err != nil {
		t.Fatalf("ReadyWALSegments() failed: %v", err)
	}

	if err := p.MarkWALArchived(segments); err != nil {
		t.Fatalf("MarkWALArchived() failed: %v", err)
	}

	// All markers advanced to .done; nothing left pending.
	remaining, err := p.ReadyWALSegments()
	if err != nil {
		t.Fatalf("ReadyWALSegments() after mark failed: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("expected no pending segments after mark, got %v", remaining)
	}

	for _, seg := range segments {
		done := filepath.Join(walDir, archiveStatusDir, filepath.Base(seg)+".done")
		if _, err := os.Stat(done); err != nil {
			t.Errorf("missing .done marker for %s: %v", filepath.Base(seg), err)
		}
	}
}

func TestMarkWALArchivedToleratesAdvancedMarker(t *testing.T) {
	t.Parallel()

	walDir := walFixture(t)
	p := newTestAdapter(walDir)

	seg := filepath.Join(walDir, "000000010000000000000001")
	ready := filepath.Join(walDir, archiveStatusDir, "000000010000000000000001.ready")
	if err := os.Remove(ready); err != nil {
		t.Fatalf("failed to remove marker: %v", err)
	}

	if err := p.MarkWALArchived([]string{seg}); err != nil {
		t.Errorf("MarkWALArchived() should tolerate missing marker, got %v", err)
	}
}

func TestCommandEnvCarriesPassword(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Password = "hunter2"
	p := New(cfg, "", logging.Nop())

	var found bool
	for _, kv := range p.commandEnv() {
		if kv == "PGPASSWORD=hunter2" {
			found = true
		}
	}
	if !found {
		t.Error("commandEnv() should include PGPASSWORD when password is set")
	}

	p2 := newTestAdapter("")
	for _, kv := range p2.commandEnv() {
		if strings.HasPrefix(kv, "PGPASSWORD=") {
			t.Error("commandEnv() should omit PGPASSWORD when password is empty")
		}
	}
}

func TestTailBufferKeepsTail(t *testing.T) {
	t.Parallel()

	tb := newTailBuffer(8)
	if _, err := tb.Write([]byte("0123456789abcdef")); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}
	if got := tb.String(); got != "89abcdef" {
		t.Errorf("tailBuffer kept %q, want trailing 8 bytes", got)
	}

	tb2 := newTailBuffer(64)
	if _, err := tb2.Write([]byte("  short  ")); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}
	if got := tb2.String(); got != "short" {
		t.Errorf("tailBuffer = %q, want trimmed %q", got, "short")
	}
}
