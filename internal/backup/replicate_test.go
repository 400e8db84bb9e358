// PgVault - PostgreSQL Backup and Recovery Engine
// Copyright 2026 PgVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pgvault/pgvault

package backup

import (
	"context"
	"errors"
	"testing"
)

// producedArtifact runs production and verification, the state an artifact
// is in when the engine hands it to the replicator.
func producedArtifact(t *testing.T, e *Engine) *Artifact {
	t.Helper()
	artifact, err := e.produceFull(context.Background())
	if err != nil {
		t.Fatalf("produceFull() failed: %v", err)
	}
	if err := e.verifyProduced(artifact); err != nil {
		t.Fatalf("verifyProduced() failed: %v", err)
	}
	return artifact
}

func TestUploadWithoutStore(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	e := mustEngine(t, cfg, newMockDatabase(), nil, nil, nil)
	artifact := producedArtifact(t, e)

	if err := e.upload(context.Background(), artifact); err != nil {
		t.Fatalf("upload() without a store should be a no-op, got %v", err)
	}
	if artifact.Uploaded {
		t.Error("Uploaded must stay false without a store")
	}
	if artifact.RemoteURI != "" {
		t.Errorf("RemoteURI = %q, want empty", artifact.RemoteURI)
	}
}

func TestUploadFullArtifact(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	store := &mockStore{}
	e := mustEngine(t, cfg, newMockDatabase(), store, nil, nil)
	artifact := producedArtifact(t, e)

	if err := e.upload(context.Background(), artifact); err != nil {
		t.Fatalf("upload() failed: %v", err)
	}

	wantKey := "backups/" + artifact.Name
	if len(store.puts) != 2 || store.puts[0] != wantKey || store.puts[1] != wantKey+sidecarSuffix {
		t.Errorf("puts = %v, want artifact then sidecar under %q", store.puts, wantKey)
	}
	if !artifact.Uploaded {
		t.Error("Uploaded not flipped after successful replication")
	}
	if artifact.RemoteURI != "s3://test-bucket/"+wantKey {
		t.Errorf("RemoteURI = %q, want store URI", artifact.RemoteURI)
	}

	stored, _ := e.manifest.byName(artifact.Name)
	if !stored.Uploaded || stored.RemoteURI == "" {
		t.Error("manifest entry not updated after upload")
	}
}

func TestUploadRefusesUnverified(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	store := &mockStore{}
	e := mustEngine(t, cfg, newMockDatabase(), store, nil, nil)

	artifact, err := e.produceFull(context.Background())
	if err != nil {
		t.Fatalf("produceFull() failed: %v", err)
	}

	err = e.upload(context.Background(), artifact)
	if !errors.Is(err, ErrArtifactNotVerified) {
		t.Fatalf("upload() of unverified artifact = %v, want ErrArtifactNotVerified", err)
	}
	if len(store.puts) != 0 {
		t.Errorf("nothing may reach the store, puts = %v", store.puts)
	}
}

func TestUploadArtifactFailure(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	store := &mockStore{putErrFor: ".sql.gz"}
	e := mustEngine(t, cfg, newMockDatabase(), store, nil, nil)
	artifact := producedArtifact(t, e)

	err := e.upload(context.Background(), artifact)
	var uerr *UploadError
	if !errors.As(err, &uerr) {
		t.Fatalf("error type = %T, want *UploadError", err)
	}
	if artifact.Uploaded {
		t.Error("Uploaded must stay false after a failed replication")
	}
}

func TestUploadSidecarFailureLeavesNotUploaded(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	store := &mockStore{putErrFor: sidecarSuffix}
	e := mustEngine(t, cfg, newMockDatabase(), store, nil, nil)
	artifact := producedArtifact(t, e)

	err := e.upload(context.Background(), artifact)
	if err == nil {
		t.Fatal("upload() should fail when the sidecar cannot be replicated")
	}

	// Retention treats Uploaded as proof of an offsite copy; half an
	// upload does not count.
	if artifact.Uploaded {
		t.Error("Uploaded must stay false when the sidecar upload failed")
	}
	stored, _ := e.manifest.byName(artifact.Name)
	if stored.Uploaded {
		t.Error("manifest entry must stay not uploaded")
	}
}

func TestUploadIncrementalSkipsSidecar(t *testing.T) {
	t.Parallel()

	segments := writeSegments(t, "000000010000000000000001")
	cfg := testConfig(t)
	db := newMockDatabase()
	db.walSegments = segments
	store := &mockStore{}
	e := mustEngine(t, cfg, db, store, nil, nil)

	artifact, err := e.produceIncremental(context.Background())
	if err != nil {
		t.Fatalf("produceIncremental() failed: %v", err)
	}
	if err := e.verifyProduced(artifact); err != nil {
		t.Fatalf("verifyProduced() failed: %v", err)
	}

	if err := e.upload(context.Background(), artifact); err != nil {
		t.Fatalf("upload() failed: %v", err)
	}
	if len(store.puts) != 1 {
		t.Errorf("WAL bundle upload should be a single put, got %v", store.puts)
	}
}
