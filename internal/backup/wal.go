// PgVault - PostgreSQL Backup and Recovery Engine
// Copyright 2026 PgVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pgvault/pgvault

/*
wal.go - Incremental WAL Archiver

Bundles write-ahead log segments the server has marked ready-for-archival
into one tar.gz artifact. Zero ready segments is a normal no-op, not an
error: the archiver returns nil so repeated runs between checkpoints stay
idempotent.

Segments are first copied into a hidden staging directory inside the backup
directory, packed from there, and the staging directory is removed. Only
after the bundle is renamed into place are the segments marked archived
(.ready to .done), so a failure at any earlier point leaves them eligible
for the next run.

WAL bundles carry no checksum sidecar. They are validated by replay, not by
standalone structural inspection; verification checks non-emptiness only.
*/

//nolint:staticcheck // File documentation, not package doc
package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/pgvault/pgvault/internal/metrics"
)

// produceIncremental archives ready WAL segments, returning nil when there
// is nothing to archive.
func (e *Engine) produceIncremental(ctx context.Context) (*Artifact, error) {
	segments, err := e.db.ReadyWALSegments()
	if err != nil {
		return nil, &ProducerError{Kind: KindIncremental, Err: err}
	}
	if len(segments) == 0 {
		return nil, nil
	}

	createdAt := time.Now().UTC()
	name := walArtifactName(createdAt)
	finalPath := filepath.Join(e.cfg.Directory, name)
	tmpPath := finalPath + tmpSuffix

	e.logger.Info().Int("segments", len(segments)).Str("artifact", name).Msg("Archiving WAL segments")

	staging, err := os.MkdirTemp(e.cfg.Directory, ".wal-staging-")
	if err != nil {
		return nil, &ProducerError{Kind: KindIncremental, Err: fmt.Errorf("failed to create staging directory: %w", err)}
	}
	defer os.RemoveAll(staging) //nolint:errcheck // Best effort cleanup

	staged, err := stageSegments(segments, staging)
	if err != nil {
		return nil, &ProducerError{Kind: KindIncremental, Err: err}
	}

	if err := e.packSegments(ctx, staged, tmpPath); err != nil {
		os.Remove(tmpPath) //nolint:errcheck // Best effort cleanup
		return nil, &ProducerError{Kind: KindIncremental, Err: err}
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath) //nolint:errcheck // Best effort cleanup
		return nil, &ProducerError{Kind: KindIncremental, Err: fmt.Errorf("failed to finalize artifact: %w", err)}
	}

	// The bundle is durable; advance the server's archive accounting.
	if err := e.db.MarkWALArchived(segments); err != nil {
		e.logger.Warn().Err(err).Msg("Failed to mark WAL segments archived, next run may re-archive them")
	}

	info, err := os.Stat(finalPath)
	if err != nil {
		return nil, &ProducerError{Kind: KindIncremental, Err: fmt.Errorf("failed to stat artifact: %w", err)}
	}

	artifact := &Artifact{
		ID:        uuid.NewString(),
		Kind:      KindIncremental,
		Name:      name,
		LocalPath: finalPath,
		SizeBytes: info.Size(),
		CreatedAt: createdAt,
	}

	e.manifest.upsert(*artifact)
	if err := e.manifest.save(); err != nil {
		e.logger.Warn().Err(err).Msg("Failed to persist manifest after WAL archive")
	}

	metrics.RecordWALSegmentsArchived(len(segments))
	metrics.ObserveArtifactSize(string(KindIncremental), float64(info.Size()))
	e.logger.Info().
		Str("artifact", name).
		Int("segments", len(segments)).
		Int64("size_bytes", info.Size()).
		Msg("WAL segments archived")

	return artifact, nil
}

// stageSegments copies segments into the staging directory under their base
// names, returning the staged paths in input order.
func stageSegments(segments []string, staging string) ([]string, error) {
	staged := make([]string, 0, len(segments))
	for _, seg := range segments {
		dst := filepath.Join(staging, filepath.Base(seg))
		if err := copyFile(seg, dst); err != nil {
			return nil, fmt.Errorf("failed to stage segment %s: %w", filepath.Base(seg), err)
		}
		staged = append(staged, dst)
	}
	return staged, nil
}

//nolint:gosec // G304: paths come from the WAL directory scan
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck // Read-only descriptor

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close() //nolint:errcheck // Best effort cleanup on error
		return err
	}
	return out.Close()
}

// packSegments writes the staged segments into a tar.gz at outPath.
func (e *Engine) packSegments(ctx context.Context, staged []string, outPath string) (err error) {
	file, err := os.OpenFile(outPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600) //nolint:gosec // G304: path is derived from configured backup directory
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	aw, err := newArchiveWriters(file, e.cfg.CompressionLevel)
	if err != nil {
		file.Close() //nolint:errcheck // Best effort cleanup on error
		return err
	}

	defer func() {
		closeErr := aw.Close()
		if err == nil {
			err = closeErr
		}
	}()

	for _, path := range staged {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err := addFileToArchive(aw.tar, path); err != nil {
			return err
		}
	}
	return nil
}

// archiveWriters stacks the gzip and tar writers over the output file.
type archiveWriters struct {
	file *os.File
	tar  *tar.Writer

	// closers are closed in reverse order so each layer flushes into the
	// next before the file is synced
	closers []io.Closer
}

func newArchiveWriters(file *os.File, level int) (*archiveWriters, error) {
	gz, err := gzip.NewWriterLevel(file, level)
	if err != nil {
		return nil, fmt.Errorf("invalid compression level: %w", err)
	}
	tw := tar.NewWriter(gz)
	return &archiveWriters{
		file:    file,
		tar:     tw,
		closers: []io.Closer{gz, tw},
	}, nil
}

func (aw *archiveWriters) Close() error {
	var firstErr error
	for i := len(aw.closers) - 1; i >= 0; i-- {
		if err := aw.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := aw.file.Sync(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := aw.file.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// addFileToArchive writes one file into the tar stream under its base name.
//
//nolint:gosec // G304: paths come from the staging directory
func addFileToArchive(tw *tar.Writer, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", filepath.Base(path), err)
	}
	defer file.Close() //nolint:errcheck // Best effort cleanup

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", filepath.Base(path), err)
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("failed to build tar header for %s: %w", filepath.Base(path), err)
	}
	header.Name = filepath.Base(path)

	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write tar header for %s: %w", header.Name, err)
	}
	if _, err := io.Copy(tw, file); err != nil {
		return fmt.Errorf("failed to archive %s: %w", header.Name, err)
	}
	return nil
}
