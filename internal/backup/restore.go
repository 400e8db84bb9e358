// PgVault - PostgreSQL Backup and Recovery Engine
// Copyright 2026 PgVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pgvault/pgvault

/*
restore.go - Restore Controller

State machine:

	Idle → Verifying → SafetyBackup → ServicesStopped → Restoring
	  → success: ServicesRestarted → Idle
	  → failure: AttemptRollback → rollback ok:   ServicesRestarted → Idle (degraded)
	                             → rollback fail: Fatal (services stay stopped)

Gates, in order:
  - confirmed=false returns ErrMissingConfirmation with zero side effects
  - the target must verify before any service is touched
  - a safety backup of the live database is captured and verified before
    any mutation; failure halts the restore unless AllowUnprotected was
    set explicitly, in which case proceeding is loud and logged

Rollback runs detached from the caller's context: an operator interrupt
that killed the restore must not also kill the attempt to return the
database to its prior state. A failed rollback leaves services stopped
rather than exposing a database in an unknown state.

Degraded success (rollback worked) still returns the original RestoreError:
the requested restore did not happen and the exit code must say so.
*/

//nolint:staticcheck // File documentation, not package doc
package backup

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pgvault/pgvault/internal/metrics"
)

// Restore applies a full artifact to the live database behind the explicit
// confirmation gate.
func (e *Engine) Restore(ctx context.Context, artifactPath string, confirmed bool) (*RestoreResult, error) {
	start := time.Now()
	result := &RestoreResult{Target: artifactPath, FinalState: StateIdle}

	if !confirmed {
		return result, ErrMissingConfirmation
	}

	name := filepath.Base(artifactPath)
	kind, _, ok := parseArtifactName(name)
	if !ok {
		return result, &RestoreError{State: StateIdle, Err: fmt.Errorf("unrecognized artifact name %q", name)}
	}
	if kind != KindFull {
		return result, &RestoreError{State: StateIdle, Err: fmt.Errorf("only full dumps are restorable, %s is a WAL bundle", name)}
	}

	lock, err := e.acquireLock(ctx, "restore")
	if err != nil {
		return result, err
	}
	defer e.releaseLock(lock)

	sess := &RestoreSession{Target: artifactPath, State: StateIdle, StartedAt: start}
	e.logger.Info().Str("target", artifactPath).Msg("Restore starting")

	restoreErr := e.runRestore(ctx, sess, result)

	result.FinalState = sess.State
	result.Safety = sess.Safety
	result.Warnings = sess.Warnings
	result.Duration = time.Since(start)

	switch {
	case restoreErr == nil:
		metrics.RecordRestore("success")
		e.logger.Info().Dur("duration", result.Duration).Msg("Restore completed")
		e.notify(ctx, "Restore completed",
			fmt.Sprintf("restore of %s completed in %s", name, result.Duration.Round(time.Millisecond)),
			SeverityInfo)
	case result.Degraded:
		metrics.RecordRestore("degraded")
		e.notify(ctx, "Restore rolled back",
			fmt.Sprintf("restore of %s failed and was rolled back to the pre-restore state: %v", name, restoreErr),
			SeverityWarning)
	case sess.State == StateFatal:
		metrics.RecordRestore("fatal")
		e.notify(ctx, "Restore failed, manual intervention required",
			fmt.Sprintf("restore of %s failed and could not be rolled back; dependent services remain stopped: %v", name, restoreErr),
			SeverityError)
	default:
		metrics.RecordRestore("aborted")
		e.notify(ctx, "Restore aborted",
			fmt.Sprintf("restore of %s aborted: %v", name, restoreErr),
			SeverityError)
	}

	return result, restoreErr
}

// runRestore drives the state machine. It mutates sess and sets
// result.Degraded when a rollback recovered the prior state.
func (e *Engine) runRestore(ctx context.Context, sess *RestoreSession, result *RestoreResult) error {
	e.transition(sess, StateVerifying)
	if err := verifyArtifact(sess.Target, KindFull); err != nil {
		metrics.RecordVerificationFailure()
		return err
	}

	e.transition(sess, StateSafetyBackup)
	if err := e.captureSafetyBackup(ctx, sess); err != nil {
		if !e.cfg.AllowUnprotected {
			return &RestoreError{State: StateSafetyBackup, Err: fmt.Errorf("safety backup failed, halting (set restore.allow_unprotected to proceed without one): %w", err)}
		}
		sess.Warnings = append(sess.Warnings, fmt.Sprintf("proceeding without a safety backup: %v", err))
		e.logger.Warn().Err(err).Msg("Proceeding without a safety backup; rollback will be impossible")
	}

	e.transition(sess, StateServicesStopped)
	if err := e.stopServices(ctx); err != nil {
		return &RestoreError{State: StateServicesStopped, Err: err}
	}

	e.transition(sess, StateRestoring)
	restoreErr := e.applyArtifact(ctx, sess.Target)
	if restoreErr == nil {
		restoreErr = e.awaitDatabase(ctx)
	}
	if restoreErr != nil {
		return e.rollback(ctx, sess, result, restoreErr)
	}

	e.transition(sess, StateServicesRestarted)
	if err := e.startServices(ctx); err != nil {
		return &RestoreError{State: StateServicesRestarted, Err: err}
	}

	e.transition(sess, StateIdle)
	return nil
}

// captureSafetyBackup snapshots the live database and verifies the result.
func (e *Engine) captureSafetyBackup(ctx context.Context, sess *RestoreSession) error {
	safety, err := e.produceFull(ctx)
	if err != nil {
		return err
	}
	if err := e.verifyProduced(safety); err != nil {
		return err
	}
	sess.Safety = safety
	e.logger.Info().Str("artifact", safety.Name).Msg("Safety backup captured")
	return nil
}

// rollback re-applies the safety artifact after a restore failure. It runs
// detached from ctx cancellation so an interrupt cannot strand the database
// mid-restore.
func (e *Engine) rollback(ctx context.Context, sess *RestoreSession, result *RestoreResult, restoreErr error) error {
	e.logger.Error().Err(restoreErr).Msg("Restore failed, attempting rollback")
	e.transition(sess, StateAttemptRollback)
	rbctx := context.WithoutCancel(ctx)

	if sess.Safety == nil {
		e.transition(sess, StateFatal)
		e.logger.Error().Msg("No safety artifact available; services remain stopped, manual intervention required")
		return &RollbackError{RestoreErr: restoreErr, Err: errors.New("no safety artifact available")}
	}

	if err := e.applyArtifact(rbctx, sess.Safety.LocalPath); err != nil {
		e.transition(sess, StateFatal)
		e.logger.Error().Err(err).Msg("Rollback failed; services remain stopped, manual intervention required")
		return &RollbackError{RestoreErr: restoreErr, Err: err}
	}
	if err := e.awaitDatabase(rbctx); err != nil {
		e.transition(sess, StateFatal)
		e.logger.Error().Err(err).Msg("Database unreachable after rollback; services remain stopped, manual intervention required")
		return &RollbackError{RestoreErr: restoreErr, Err: err}
	}

	e.transition(sess, StateServicesRestarted)
	if err := e.startServices(rbctx); err != nil {
		sess.Warnings = append(sess.Warnings, fmt.Sprintf("service restart failed after rollback: %v", err))
		e.logger.Error().Err(err).Msg("Service restart failed after rollback")
	}

	e.transition(sess, StateIdle)
	result.Degraded = true
	e.logger.Warn().Str("safety", sess.Safety.Name).Msg("Rollback succeeded, database returned to pre-restore state")
	return &RestoreError{State: StateRestoring, Err: restoreErr}
}

// stopServices quiesces the configured services. On failure, whatever was
// stopped is resumed before the error is reported.
func (e *Engine) stopServices(ctx context.Context) error {
	if len(e.cfg.Services) == 0 {
		e.logger.Debug().Msg("No services configured to quiesce")
		return nil
	}
	e.logger.Info().Strs("services", e.cfg.Services).Msg("Stopping dependent services")
	if err := e.services.Stop(ctx, e.cfg.Services); err != nil {
		if startErr := e.services.Start(ctx, e.cfg.Services); startErr != nil {
			e.logger.Error().Err(startErr).Msg("Failed to resume services after stop failure")
		}
		return fmt.Errorf("failed to stop services: %w", err)
	}
	return nil
}

// startServices resumes the configured services in reverse order.
func (e *Engine) startServices(ctx context.Context) error {
	if len(e.cfg.Services) == 0 {
		return nil
	}
	e.logger.Info().Strs("services", e.cfg.Services).Msg("Starting dependent services")
	if err := e.services.Start(ctx, e.cfg.Services); err != nil {
		return fmt.Errorf("failed to start services: %w", err)
	}
	return nil
}

// applyArtifact streams the decompressed dump into the database engine.
//
//nolint:gosec // G304: path has already passed verification
func (e *Engine) applyArtifact(ctx context.Context, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open artifact: %w", err)
	}
	defer file.Close() //nolint:errcheck // Read-only descriptor

	gz, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("failed to decompress artifact: %w", err)
	}
	defer gz.Close() //nolint:errcheck // Read-only descriptor

	return e.db.Restore(ctx, gz)
}

// awaitDatabase confirms the server accepts connections after a restore.
func (e *Engine) awaitDatabase(ctx context.Context) error {
	if err := e.db.CheckConnectivity(ctx); err != nil {
		return fmt.Errorf("database not ready after restore: %w", err)
	}
	return nil
}

// transition advances the state machine, logging every edge.
func (e *Engine) transition(sess *RestoreSession, to RestoreState) {
	e.logger.Info().
		Str("state_from", string(sess.State)).
		Str("state_to", string(to)).
		Msg("Restore state transition")
	sess.State = to
}
