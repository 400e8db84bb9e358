// PgVault - PostgreSQL Backup and Recovery Engine
// Copyright 2026 PgVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pgvault/pgvault

package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeSegments creates fake WAL segment files and returns their paths in
// name order.
func writeSegments(t *testing.T, names ...string) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, 0, len(names))
	for _, name := range names {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte("wal segment "+name), 0o640); err != nil {
			t.Fatalf("failed to write segment %s: %v", name, err)
		}
		paths = append(paths, p)
	}
	return paths
}

// untar reads a tar.gz bundle into a name-to-content map.
func untar(t *testing.T, path string) map[string]string {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open bundle: %v", err)
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		t.Fatalf("bundle is not gzip: %v", err)
	}
	defer gz.Close()

	contents := make(map[string]string)
	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("failed to read tar entry: %v", err)
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			t.Fatalf("failed to read tar entry %s: %v", header.Name, err)
		}
		contents[header.Name] = string(data)
	}
	return contents
}

func TestProduceIncrementalNoSegments(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	db := newMockDatabase()
	e := mustEngine(t, cfg, db, nil, nil, nil)

	artifact, err := e.produceIncremental(context.Background())
	if err != nil {
		t.Fatalf("produceIncremental() with no segments failed: %v", err)
	}
	if artifact != nil {
		t.Errorf("expected nil artifact for a no-op run, got %+v", artifact)
	}
	if names := dirEntries(t, cfg.Directory); len(names) != 0 {
		t.Errorf("no-op run should write nothing, directory has %v", names)
	}
}

func TestProduceIncremental(t *testing.T) {
	t.Parallel()

	segments := writeSegments(t,
		"000000010000000000000001",
		"000000010000000000000002",
	)

	cfg := testConfig(t)
	db := newMockDatabase()
	db.walSegments = segments
	e := mustEngine(t, cfg, db, nil, nil, nil)

	artifact, err := e.produceIncremental(context.Background())
	if err != nil {
		t.Fatalf("produceIncremental() failed: %v", err)
	}

	if artifact.Kind != KindIncremental {
		t.Errorf("Kind = %q, want %q", artifact.Kind, KindIncremental)
	}
	if !strings.HasPrefix(artifact.Name, "wal_") || !strings.HasSuffix(artifact.Name, walSuffix) {
		t.Errorf("artifact name %q is not a WAL bundle name", artifact.Name)
	}
	if artifact.ChecksumSHA256 != "" {
		t.Error("WAL bundles carry no checksum")
	}

	contents := untar(t, artifact.LocalPath)
	if len(contents) != 2 {
		t.Fatalf("bundle has %d entries, want 2: %v", len(contents), contents)
	}
	for _, seg := range segments {
		base := filepath.Base(seg)
		if contents[base] != "wal segment "+base {
			t.Errorf("bundle entry %s = %q, want original segment content", base, contents[base])
		}
	}

	// Segments are marked archived only after the bundle is durable.
	db.mu.Lock()
	marked := db.marked
	db.mu.Unlock()
	if len(marked) != 1 || len(marked[0]) != 2 {
		t.Errorf("MarkWALArchived calls = %v, want one call with both segments", marked)
	}

	if _, found := e.manifest.byName(artifact.Name); !found {
		t.Error("bundle not registered in manifest")
	}

	// Staging directory and temp files are cleaned up.
	for _, name := range dirEntries(t, cfg.Directory) {
		if strings.HasPrefix(name, ".wal-staging-") || strings.HasSuffix(name, tmpSuffix) {
			t.Errorf("leftover %s in backup directory", name)
		}
	}
}

func TestProduceIncrementalSegmentListError(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	db := newMockDatabase()
	db.walErr = errors.New("archive_status unreadable")
	e := mustEngine(t, cfg, db, nil, nil, nil)

	_, err := e.produceIncremental(context.Background())
	var perr *ProducerError
	if !errors.As(err, &perr) {
		t.Fatalf("error type = %T, want *ProducerError", err)
	}
	if perr.Kind != KindIncremental {
		t.Errorf("ProducerError.Kind = %q, want %q", perr.Kind, KindIncremental)
	}
}

func TestProduceIncrementalMarkFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	segments := writeSegments(t, "000000010000000000000001")

	cfg := testConfig(t)
	db := newMockDatabase()
	db.walSegments = segments
	db.markErr = errors.New("rename failed")
	e := mustEngine(t, cfg, db, nil, nil, nil)

	// The bundle is durable; a failed marker advance means re-archiving
	// next run, not a failed backup.
	artifact, err := e.produceIncremental(context.Background())
	if err != nil {
		t.Fatalf("produceIncremental() should tolerate mark failure, got %v", err)
	}
	if artifact == nil {
		t.Fatal("expected an artifact despite mark failure")
	}
	if _, statErr := os.Stat(artifact.LocalPath); statErr != nil {
		t.Errorf("bundle missing: %v", statErr)
	}
}

func TestProduceIncrementalMissingSegment(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	db := newMockDatabase()
	db.walSegments = []string{filepath.Join(t.TempDir(), "000000010000000000000009")}
	e := mustEngine(t, cfg, db, nil, nil, nil)

	_, err := e.produceIncremental(context.Background())
	if err == nil {
		t.Fatal("produceIncremental() should fail when a segment vanishes")
	}

	// Nothing marked archived, nothing published.
	db.mu.Lock()
	marked := db.marked
	db.mu.Unlock()
	if len(marked) != 0 {
		t.Errorf("no segments should be marked after a failure, got %v", marked)
	}
	for _, name := range dirEntries(t, cfg.Directory) {
		if strings.HasSuffix(name, walSuffix) {
			t.Errorf("partial bundle %s left behind", name)
		}
	}
}
