// PgVault - PostgreSQL Backup and Recovery Engine
// Copyright 2026 PgVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pgvault/pgvault

/*
producer.go - Full Snapshot Producer

Streams a logical dump of the whole database through gzip into a temp file,
computing SHA-256 over the compressed bytes in the same pass, then finalizes
atomically: fsync, rename to the final name, and only then write the checksum
sidecar. Later pipeline stages either see a complete artifact with a valid
sidecar or nothing at all.

Failure handling: any error removes the temp file (and the final file if the
sidecar could not be written after rename). No partial artifact survives,
which also makes an operator interrupt safe to re-run.
*/

//nolint:staticcheck // File documentation, not package doc
package backup

import (
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/pgvault/pgvault/internal/metrics"
)

// produceFull captures a full snapshot and registers it in the manifest.
func (e *Engine) produceFull(ctx context.Context) (*Artifact, error) {
	createdAt := time.Now().UTC()
	name := fullArtifactName(e.cfg.Prefix, createdAt)
	finalPath := filepath.Join(e.cfg.Directory, name)
	tmpPath := finalPath + tmpSuffix

	e.logger.Info().Str("artifact", name).Msg("Producing full snapshot")

	hasher := sha256.New()
	if err := e.dumpCompressed(ctx, tmpPath, hasher); err != nil {
		os.Remove(tmpPath) //nolint:errcheck // Best effort cleanup
		return nil, &ProducerError{Kind: KindFull, Err: err}
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath) //nolint:errcheck // Best effort cleanup
		return nil, &ProducerError{Kind: KindFull, Err: fmt.Errorf("failed to finalize artifact: %w", err)}
	}

	checksum := hex.EncodeToString(hasher.Sum(nil))
	if err := writeSidecar(finalPath, checksum); err != nil {
		// Invariant: an artifact without its sidecar is never exposed.
		os.Remove(finalPath) //nolint:errcheck // Best effort cleanup
		return nil, &ProducerError{Kind: KindFull, Err: err}
	}

	info, err := os.Stat(finalPath)
	if err != nil {
		return nil, &ProducerError{Kind: KindFull, Err: fmt.Errorf("failed to stat artifact: %w", err)}
	}

	artifact := &Artifact{
		ID:             uuid.NewString(),
		Kind:           KindFull,
		Name:           name,
		LocalPath:      finalPath,
		SizeBytes:      info.Size(),
		ChecksumSHA256: checksum,
		CreatedAt:      createdAt,
	}

	e.manifest.upsert(*artifact)
	if err := e.manifest.save(); err != nil {
		e.logger.Warn().Err(err).Msg("Failed to persist manifest after snapshot")
	}

	metrics.ObserveArtifactSize(string(KindFull), float64(info.Size()))
	e.logger.Info().
		Str("artifact", name).
		Int64("size_bytes", info.Size()).
		Str("checksum", checksum).
		Msg("Full snapshot produced")

	return artifact, nil
}

// dumpCompressed streams the dump through gzip into path, teeing the
// compressed bytes into hasher.
func (e *Engine) dumpCompressed(ctx context.Context, path string, hasher hash.Hash) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600) //nolint:gosec // G304: path is derived from configured backup directory
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	gz, err := gzip.NewWriterLevel(io.MultiWriter(file, hasher), e.cfg.CompressionLevel)
	if err != nil {
		file.Close() //nolint:errcheck // Best effort cleanup on error
		return fmt.Errorf("invalid compression level: %w", err)
	}

	if err := e.db.Dump(ctx, gz); err != nil {
		gz.Close()   //nolint:errcheck // Best effort cleanup on error
		file.Close() //nolint:errcheck // Best effort cleanup on error
		return err
	}

	if err := gz.Close(); err != nil {
		file.Close() //nolint:errcheck // Best effort cleanup on error
		return fmt.Errorf("failed to flush compressed stream: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close() //nolint:errcheck // Best effort cleanup on error
		return fmt.Errorf("failed to sync artifact: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close artifact: %w", err)
	}
	return nil
}

// writeSidecar emits the checksum sidecar in sha256sum format, atomically.
func writeSidecar(artifactPath, checksum string) error {
	content := fmt.Sprintf("%s  %s\n", checksum, filepath.Base(artifactPath))
	sidecar := artifactPath + sidecarSuffix
	tmp := sidecar + tmpSuffix

	if err := os.WriteFile(tmp, []byte(content), 0o600); err != nil { //nolint:gosec // Sidecar permissions match the artifact
		return fmt.Errorf("failed to write checksum sidecar: %w", err)
	}
	if err := os.Rename(tmp, sidecar); err != nil {
		os.Remove(tmp) //nolint:errcheck // Best effort cleanup
		return fmt.Errorf("failed to finalize checksum sidecar: %w", err)
	}
	return nil
}
