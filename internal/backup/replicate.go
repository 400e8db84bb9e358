// PgVault - PostgreSQL Backup and Recovery Engine
// Copyright 2026 PgVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pgvault/pgvault

/*
replicate.go - Remote Replicator

Uploads a verified artifact and, for full dumps, its checksum sidecar to
object storage under the configured key prefix. Replication is strictly
best effort from the run's perspective: an UploadError leaves the artifact
valid locally and degrades to a warning. Uploaded is only flipped when both
the artifact and its sidecar made it, since retention treats Uploaded as the
proof that a copy exists offsite.
*/

//nolint:staticcheck // File documentation, not package doc
package backup

import (
	"context"
	"path"

	"github.com/pgvault/pgvault/internal/metrics"
)

// upload replicates an artifact to object storage. A nil store is a
// successful no-op: a disabled feature is not an error.
func (e *Engine) upload(ctx context.Context, a *Artifact) error {
	if e.store == nil {
		e.logger.Debug().Msg("Remote replication not configured, skipping upload")
		return nil
	}

	key := path.Join(e.cfg.RemotePrefix, a.Name)

	// Only verified artifacts may leave the host.
	if !a.Verified {
		return &UploadError{Key: key, Err: ErrArtifactNotVerified}
	}

	if err := e.store.Put(ctx, a.LocalPath, key); err != nil {
		metrics.RecordUpload(metrics.StatusFailure)
		return &UploadError{Key: key, Err: err}
	}

	if a.Kind == KindFull {
		sidecarKey := key + sidecarSuffix
		if err := e.store.Put(ctx, a.SidecarPath(), sidecarKey); err != nil {
			metrics.RecordUpload(metrics.StatusFailure)
			return &UploadError{Key: sidecarKey, Err: err}
		}
	}

	a.Uploaded = true
	a.RemoteURI = e.store.URI(key)
	e.manifest.upsert(*a)
	if err := e.manifest.save(); err != nil {
		e.logger.Warn().Err(err).Msg("Failed to persist manifest after upload")
	}

	metrics.RecordUpload(metrics.StatusSuccess)
	e.logger.Info().
		Str("artifact", a.Name).
		Str("remote_uri", a.RemoteURI).
		Msg("Artifact replicated to remote storage")
	return nil
}
