// PgVault - PostgreSQL Backup and Recovery Engine
// Copyright 2026 PgVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pgvault/pgvault

/*
engine.go - Engine Construction and Backup Orchestration

The Engine sequences every operation: backup runs, restores, verification,
retention, and listing. Run executes one backup:

 1. Acquire the exclusive operation lock (ErrOperationInProgress if held)
 2. Connectivity precheck (nothing is written before this passes)
 3. Produce the artifact (full dump or WAL bundle; WAL may no-op)
 4. Verify the artifact (failure quarantines it)
 5. Replicate to object storage (best effort, warning on failure)
 6. Apply the retention policy (best effort, warning on failure)
 7. Emit the terminal notification (fire and forget)

Every step writes a structured log entry whether or not notification
delivery works. Collaborators are injected; nil ObjectStore disables
replication and nil Notifier disables notifications.
*/

//nolint:staticcheck // File documentation, not package doc
package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/pgvault/pgvault/internal/lockfile"
	"github.com/pgvault/pgvault/internal/metrics"
)

// Config carries the engine settings. It is built by the caller from the
// application configuration and passed in at construction.
type Config struct {
	// Directory is the local backup directory
	Directory string

	// Prefix names full artifacts; defaults to the database name
	Prefix string

	// CompressionLevel is the gzip level for dumps and WAL bundles
	CompressionLevel int

	// MaxAgeDays is the retention window; 0 disables retention
	MaxAgeDays int

	// RemotePrefix namespaces object keys when a store is configured
	RemotePrefix string

	// Services are quiesced during restore, in order
	Services []string

	// AllowUnprotected lets a restore proceed when the safety backup
	// cannot be produced. Off by default.
	AllowUnprotected bool

	// NotifyOnSuccess gates info-severity notifications
	NotifyOnSuccess bool

	// NotifyOnFailure gates warning- and error-severity notifications
	NotifyOnFailure bool
}

// Engine orchestrates backup, verification, replication, retention, and
// restore for one PostgreSQL database.
type Engine struct {
	cfg      Config
	db       Database
	store    ObjectStore
	services ServiceRunner
	notifier Notifier

	manifest *manifest
	logger   zerolog.Logger
}

// New constructs an Engine. store and notifier may be nil (replication and
// notifications disabled); services may be nil only when no service names
// are configured.
func New(cfg Config, db Database, store ObjectStore, services ServiceRunner, notifier Notifier, logger zerolog.Logger) (*Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database adapter is required")
	}
	if cfg.Directory == "" {
		return nil, fmt.Errorf("backup directory is required")
	}
	if len(cfg.Services) > 0 && services == nil {
		return nil, fmt.Errorf("service runner is required when services are configured")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = db.Name()
	}

	if err := os.MkdirAll(cfg.Directory, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	man, err := loadManifest(cfg.Directory)
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:      cfg,
		db:       db,
		store:    store,
		services: services,
		notifier: notifier,
		manifest: man,
		logger:   logger.With().Str("component", "backup").Str("database", db.Name()).Logger(),
	}, nil
}

// Run executes one backup of the given kind. It returns the produced
// artifact, or a skipped result for an incremental run with nothing to
// archive. Upload and retention failures degrade to warnings; every other
// failure aborts the run.
func (e *Engine) Run(ctx context.Context, kind ArtifactKind) (*RunResult, error) {
	switch kind {
	case KindFull, KindIncremental:
	default:
		return nil, fmt.Errorf("unknown backup kind %q", kind)
	}

	start := time.Now()

	lock, err := e.acquireLock(ctx, "backup")
	if err != nil {
		return nil, err
	}
	defer e.releaseLock(lock)

	e.logger.Info().Str("kind", string(kind)).Msg("Backup run starting")

	if err := e.db.CheckConnectivity(ctx); err != nil {
		cerr := &ConnectivityError{Err: err}
		e.logger.Error().Err(cerr).Msg("Connectivity precheck failed")
		metrics.RecordBackupRun(string(kind), metrics.StatusFailure)
		e.notify(ctx, "Backup failed", cerr.Error(), SeverityError)
		return nil, cerr
	}
	e.logger.Info().Msg("Connectivity precheck passed")

	var artifact *Artifact
	switch kind {
	case KindFull:
		artifact, err = e.produceFull(ctx)
	case KindIncremental:
		artifact, err = e.produceIncremental(ctx)
	}
	if err != nil {
		e.logger.Error().Err(err).Msg("Artifact production failed")
		metrics.RecordBackupRun(string(kind), metrics.StatusFailure)
		e.notify(ctx, "Backup failed", err.Error(), SeverityError)
		return nil, err
	}
	if artifact == nil {
		e.logger.Debug().Msg("No WAL segments ready, nothing to archive")
		metrics.RecordBackupRun(string(kind), metrics.StatusSkipped)
		return &RunResult{Kind: kind, Skipped: true, Duration: time.Since(start)}, nil
	}

	if err := e.verifyProduced(artifact); err != nil {
		e.logger.Error().Err(err).Str("artifact", artifact.Name).Msg("Artifact failed verification and was quarantined")
		metrics.RecordBackupRun(string(kind), metrics.StatusFailure)
		e.notify(ctx, "Backup failed", err.Error(), SeverityError)
		return nil, err
	}
	e.logger.Info().Str("artifact", artifact.Name).Msg("Artifact verified")

	result := &RunResult{Kind: kind, Artifact: artifact}

	if err := e.upload(ctx, artifact); err != nil {
		e.logger.Warn().Err(err).Str("artifact", artifact.Name).Msg("Remote replication failed, artifact remains local only")
		result.Warnings = append(result.Warnings, err.Error())
		e.notify(ctx, "Backup upload failed", err.Error(), SeverityWarning)
	}

	if _, err := e.cleanup(ctx); err != nil {
		e.logger.Warn().Err(err).Msg("Retention cleanup failed")
		result.Warnings = append(result.Warnings, err.Error())
	}

	result.Duration = time.Since(start)
	metrics.RecordBackupRun(string(kind), metrics.StatusSuccess)
	metrics.ObserveBackupDuration(string(kind), result.Duration.Seconds())

	e.logger.Info().
		Str("artifact", artifact.Name).
		Int64("size_bytes", artifact.SizeBytes).
		Dur("duration", result.Duration).
		Int("warnings", len(result.Warnings)).
		Msg("Backup run completed")

	e.notify(ctx, "Backup completed",
		fmt.Sprintf("%s backup %s (%d bytes) completed in %s with %d warning(s)",
			kind, artifact.Name, artifact.SizeBytes, result.Duration.Round(time.Millisecond), len(result.Warnings)),
		SeverityInfo)

	return result, nil
}

// acquireLock takes the exclusive operation lock, mapping an active lock to
// ErrOperationInProgress.
func (e *Engine) acquireLock(ctx context.Context, owner string) (*lockfile.Lock, error) {
	lock, err := lockfile.Acquire(ctx, e.cfg.Directory, owner)
	if err != nil {
		var active *lockfile.ErrLockActive
		if errors.As(err, &active) {
			return nil, fmt.Errorf("%w: held by %s (pid %d) since %s",
				ErrOperationInProgress, active.Owner, active.PID, active.AcquiredAt.Format(time.RFC3339))
		}
		return nil, fmt.Errorf("failed to acquire operation lock: %w", err)
	}
	return lock, nil
}

func (e *Engine) releaseLock(lock *lockfile.Lock) {
	if err := lock.Release(); err != nil {
		e.logger.Warn().Err(err).Msg("Failed to release operation lock")
	}
}

// notify delivers a notification subject to the configured severity gates.
// Delivery is detached from ctx cancellation so an interrupted run can still
// report its failure. Errors are logged, never returned.
func (e *Engine) notify(ctx context.Context, subject, body, severity string) {
	if e.notifier == nil {
		return
	}
	switch severity {
	case SeverityInfo:
		if !e.cfg.NotifyOnSuccess {
			return
		}
	default:
		if !e.cfg.NotifyOnFailure {
			return
		}
	}

	if err := e.notifier.Notify(context.WithoutCancel(ctx), subject, body, severity); err != nil {
		e.logger.Warn().Err(err).Str("subject", subject).Msg("Notification delivery failed")
	}
}
