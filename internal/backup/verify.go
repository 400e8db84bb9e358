// PgVault - PostgreSQL Backup and Recovery Engine
// Copyright 2026 PgVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pgvault/pgvault

/*
verify.go - Integrity Verifier

Check sequence:
 1. File existence and size > 0
 2. If a checksum sidecar exists, recompute SHA-256 and compare
 3. Full dumps only: decompress the head and require a dump signature

Both call sites run the identical sequence through verifyArtifact: the
post-production gate before upload and retention, and the pre-restore gate
before the live database is touched. Age never shortcuts verification.

Verification failures are reported in the result error, never half-recorded:
a freshly produced artifact that fails is quarantined (file, sidecar, and
manifest entry removed) so no later stage can trust it.
*/

//nolint:staticcheck // File documentation, not package doc
package backup

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/pgvault/pgvault/internal/metrics"
)

// headProbeSize bounds how much decompressed head is inspected for the dump
// signature. Plain dumps carry their banner within the first kilobyte.
const headProbeSize = 4096

// Plain dumps open with a comment banner; custom-format dumps start with the
// PGDMP magic. Either satisfies the signature check.
var (
	plainDumpMarker = []byte("PostgreSQL database dump")
	customDumpMagic = []byte("PGDMP")
)

// Verify runs the integrity checks against the artifact at path and records
// a passing outcome in the manifest, adopting untracked files. It backs the
// verify command.
func (e *Engine) Verify(ctx context.Context, path string) error {
	name := filepath.Base(path)
	kind, createdAt, ok := parseArtifactName(name)
	if !ok {
		return &VerificationError{Path: path, Err: fmt.Errorf("unrecognized artifact name %q", name)}
	}

	lock, err := e.acquireLock(ctx, "verify")
	if err != nil {
		return err
	}
	defer e.releaseLock(lock)

	if err := verifyArtifact(path, kind); err != nil {
		metrics.RecordVerificationFailure()
		return err
	}

	artifact, found := e.manifest.byName(name)
	if !found {
		info, err := os.Stat(path)
		if err != nil {
			return &VerificationError{Path: path, Err: err}
		}
		artifact = Artifact{
			ID:        uuid.NewString(),
			Kind:      kind,
			Name:      name,
			LocalPath: path,
			SizeBytes: info.Size(),
			CreatedAt: createdAt,
		}
		if kind == KindFull {
			if sum, err := readSidecarChecksum(path + sidecarSuffix); err == nil {
				artifact.ChecksumSHA256 = sum
			}
		}
	}
	artifact.Verified = true
	e.manifest.upsert(artifact)
	if err := e.manifest.save(); err != nil {
		e.logger.Warn().Err(err).Msg("Failed to persist manifest after verification")
	}

	e.logger.Info().Str("artifact", name).Msg("Artifact verified")
	return nil
}

// verifyProduced gates a freshly produced artifact: failure quarantines it,
// success marks it verified in the manifest.
func (e *Engine) verifyProduced(a *Artifact) error {
	if err := verifyArtifact(a.LocalPath, a.Kind); err != nil {
		metrics.RecordVerificationFailure()
		e.quarantine(a)
		return err
	}

	a.Verified = true
	e.manifest.upsert(*a)
	if err := e.manifest.save(); err != nil {
		e.logger.Warn().Err(err).Msg("Failed to persist manifest after verification")
	}
	return nil
}

// quarantine removes a corrupt artifact, its sidecar, and its manifest entry.
func (e *Engine) quarantine(a *Artifact) {
	if err := os.Remove(a.LocalPath); err != nil && !os.IsNotExist(err) {
		e.logger.Error().Err(err).Str("artifact", a.Name).Msg("Failed to remove quarantined artifact")
	}
	if err := os.Remove(a.SidecarPath()); err != nil && !os.IsNotExist(err) {
		e.logger.Error().Err(err).Str("artifact", a.Name).Msg("Failed to remove quarantined sidecar")
	}
	e.manifest.remove(a.Name)
	if err := e.manifest.save(); err != nil {
		e.logger.Warn().Err(err).Msg("Failed to persist manifest after quarantine")
	}
}

// verifyArtifact is the single check sequence shared by every gate.
func verifyArtifact(path string, kind ArtifactKind) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return &VerificationError{Path: path, Err: ErrArtifactMissing}
	}
	if err != nil {
		return &VerificationError{Path: path, Err: err}
	}
	if info.Size() == 0 {
		return &VerificationError{Path: path, Err: ErrArtifactEmpty}
	}

	if err := verifySidecar(path); err != nil {
		return &VerificationError{Path: path, Err: err}
	}

	if kind == KindFull {
		if err := verifyDumpSignature(path); err != nil {
			return &VerificationError{Path: path, Err: err}
		}
	}
	return nil
}

// verifySidecar recomputes the artifact checksum when a sidecar exists. A
// missing sidecar is not an error here: WAL bundles never carry one.
func verifySidecar(path string) error {
	expected, err := readSidecarChecksum(path + sidecarSuffix)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	actual, err := fileChecksum(path)
	if err != nil {
		return err
	}
	if actual != expected {
		return fmt.Errorf("%w: sidecar has %s, file is %s", ErrChecksumMismatch, expected, actual)
	}
	return nil
}

// readSidecarChecksum parses the hex digest from a sha256sum-format sidecar.
func readSidecarChecksum(sidecar string) (string, error) {
	data, err := os.ReadFile(sidecar) //nolint:gosec // G304: sidecar sits next to the artifact
	if err != nil {
		return "", err
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 || len(fields[0]) != sha256.Size*2 {
		return "", fmt.Errorf("malformed checksum sidecar %s", filepath.Base(sidecar))
	}
	return strings.ToLower(fields[0]), nil
}

// fileChecksum computes the SHA-256 hex digest of a file.
//
//nolint:gosec // G304: path is an artifact under verification
func fileChecksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close() //nolint:errcheck // Read-only descriptor

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// verifyDumpSignature decompresses the head of a full dump and requires a
// recognizable signature.
//
//nolint:gosec // G304: path is an artifact under verification
func verifyDumpSignature(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close() //nolint:errcheck // Read-only descriptor

	gz, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFormatInvalid, err)
	}
	defer gz.Close() //nolint:errcheck // Read-only descriptor

	head := make([]byte, headProbeSize)
	n, err := io.ReadFull(gz, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %v", ErrFormatInvalid, err)
	}
	head = head[:n]

	if !bytes.HasPrefix(head, customDumpMagic) && !bytes.Contains(head, plainDumpMarker) {
		return ErrFormatInvalid
	}
	return nil
}
