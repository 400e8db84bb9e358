// PgVault - PostgreSQL Backup and Recovery Engine
// Copyright 2026 PgVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pgvault/pgvault

/*
retention.go - Retention Manager

Deletes artifacts older than the configured age, locally and remotely.

Protection rules, checked per artifact and logged distinctly:
  - Never delete an artifact that has not passed verification. Untracked
    files in the backup directory fall under this rule until an operator
    verifies them.
  - While remote replication is configured, never delete a local artifact
    that was not uploaded, regardless of age.

Ages are compared as parsed time.Time values. The creation time comes from
the manifest when the artifact is tracked, else from the timestamp embedded
in the file name; remote objects fall back to the listing's LastModified.
String comparison of date tokens is never used: it misorders across month
and year boundaries.

A pass is idempotent; per-file failures accumulate into a CleanupError and
do not stop the pass.
*/

//nolint:staticcheck // File documentation, not package doc
package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/pgvault/pgvault/internal/metrics"
)

// Cleanup applies the retention policy under the operation lock. It backs
// the cleanup command.
func (e *Engine) Cleanup(ctx context.Context) (*CleanupResult, error) {
	lock, err := e.acquireLock(ctx, "cleanup")
	if err != nil {
		return nil, err
	}
	defer e.releaseLock(lock)

	return e.cleanup(ctx)
}

// cleanup applies the retention policy. The caller holds the operation lock.
func (e *Engine) cleanup(ctx context.Context) (*CleanupResult, error) {
	result := &CleanupResult{}
	if e.cfg.MaxAgeDays <= 0 {
		e.logger.Debug().Msg("Retention disabled, skipping cleanup")
		return result, nil
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -e.cfg.MaxAgeDays)
	e.logger.Info().
		Time("cutoff", cutoff).
		Int("max_age_days", e.cfg.MaxAgeDays).
		Msg("Applying retention policy")

	errs := e.cleanupLocal(cutoff, result)
	errs = append(errs, e.cleanupRemote(ctx, cutoff, result)...)

	if result.DeletedLocal > 0 {
		if err := e.manifest.save(); err != nil {
			errs = append(errs, fmt.Errorf("failed to persist manifest after cleanup: %w", err))
		}
	}

	metrics.RecordRetentionDeleted("local", result.DeletedLocal)
	metrics.RecordRetentionDeleted("remote", result.DeletedRemote)
	metrics.RecordRetentionSkipped("unreplicated", result.SkippedUnreplicated)
	metrics.RecordRetentionSkipped("unverified", result.SkippedUnverified)

	if result.DeletedLocal > 0 || result.DeletedRemote > 0 {
		e.logger.Info().
			Int("deleted_local", result.DeletedLocal).
			Int("deleted_remote", result.DeletedRemote).
			Float64("freed_mb", float64(result.FreedBytes)/(1024*1024)).
			Msg("Retention policy applied")
	}

	if len(errs) > 0 {
		return result, &CleanupError{Err: errors.Join(errs...)}
	}
	return result, nil
}

// cleanupLocal deletes expired artifacts from the backup directory.
func (e *Engine) cleanupLocal(cutoff time.Time, result *CleanupResult) []error {
	entries, err := os.ReadDir(e.cfg.Directory)
	if err != nil {
		return []error{fmt.Errorf("failed to scan backup directory: %w", err)}
	}

	var errs []error
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		_, nameTime, ok := parseArtifactName(name)
		if !ok {
			// Sidecars, the manifest, temp files, foreign files.
			continue
		}

		createdAt := nameTime
		tracked, inManifest := e.manifest.byName(name)
		if inManifest {
			createdAt = tracked.CreatedAt
		}
		if !createdAt.Before(cutoff) {
			continue
		}

		if !inManifest || !tracked.Verified {
			result.SkippedUnverified++
			e.logger.Info().Str("artifact", name).Msg("Retention skip: artifact never passed verification")
			continue
		}
		if e.store != nil && !tracked.Uploaded {
			result.SkippedUnreplicated++
			e.logger.Info().Str("artifact", name).Msg("Retention skip: artifact not replicated to remote storage")
			continue
		}

		if err := e.deleteLocalArtifact(name); err != nil {
			errs = append(errs, err)
			continue
		}
		result.DeletedLocal++
		result.FreedBytes += tracked.SizeBytes
		e.logger.Info().Str("artifact", name).Time("created_at", createdAt).Msg("Expired local artifact deleted")
	}
	return errs
}

// deleteLocalArtifact removes an artifact, its sidecar, and its manifest
// entry.
func (e *Engine) deleteLocalArtifact(name string) error {
	p := filepath.Join(e.cfg.Directory, name)
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", name, err)
	}
	if err := os.Remove(p + sidecarSuffix); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete sidecar of %s: %w", name, err)
	}
	e.manifest.remove(name)
	return nil
}

// cleanupRemote deletes expired objects under the remote prefix.
func (e *Engine) cleanupRemote(ctx context.Context, cutoff time.Time, result *CleanupResult) []error {
	if e.store == nil {
		return nil
	}

	objects, err := e.store.List(ctx, e.cfg.RemotePrefix)
	if err != nil {
		return []error{fmt.Errorf("failed to list remote objects: %w", err)}
	}

	var errs []error
	for _, obj := range objects {
		base := path.Base(obj.Key)
		if strings.HasSuffix(base, sidecarSuffix) {
			// Sidecars are removed together with their artifact.
			continue
		}

		createdAt := obj.LastModified
		if _, nameTime, ok := parseArtifactName(base); ok {
			createdAt = nameTime
		}
		if !createdAt.Before(cutoff) {
			continue
		}

		if err := e.store.Remove(ctx, obj.Key); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete remote %s: %w", obj.Key, err))
			continue
		}
		if err := e.store.Remove(ctx, obj.Key+sidecarSuffix); err != nil {
			e.logger.Debug().Err(err).Str("key", obj.Key+sidecarSuffix).Msg("Remote sidecar removal skipped")
		}
		result.DeletedRemote++
		e.logger.Info().Str("key", obj.Key).Time("created_at", createdAt).Msg("Expired remote object deleted")
	}
	return errs
}
