// PgVault - PostgreSQL Backup and Recovery Engine
// Copyright 2026 PgVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pgvault/pgvault

/*
errors.go - Engine Error Taxonomy

Sentinel errors cover conditions callers branch on with errors.Is; typed
errors carry step context and unwrap to their cause for errors.As chains.

Fatality:
  - ConnectivityError, ProducerError, VerificationError: fatal, fail the run
  - UploadError, CleanupError: non-fatal, surfaced as run warnings
  - RestoreError: fatal, triggers the rollback attempt
  - RollbackError: fatal, manual intervention required, services left stopped
*/

//nolint:staticcheck // File documentation, not package doc
package backup

import (
	"errors"
	"fmt"
)

var (
	// ErrOperationInProgress means another backup or restore holds the
	// exclusive operation lock. The caller decides whether to retry.
	ErrOperationInProgress = errors.New("another backup or restore operation is in progress")

	// ErrMissingConfirmation means a restore was requested without the
	// explicit confirmation flag. Nothing was touched.
	ErrMissingConfirmation = errors.New("restore requires explicit confirmation")

	// ErrArtifactMissing means the artifact file does not exist.
	ErrArtifactMissing = errors.New("artifact file does not exist")

	// ErrArtifactEmpty means the artifact file has zero size.
	ErrArtifactEmpty = errors.New("artifact file is empty")

	// ErrChecksumMismatch means the recomputed checksum differs from the
	// sidecar value.
	ErrChecksumMismatch = errors.New("artifact checksum mismatch")

	// ErrFormatInvalid means the decompressed head of a full dump carries
	// no recognizable dump signature.
	ErrFormatInvalid = errors.New("artifact is not a recognizable database dump")

	// ErrArtifactNotVerified guards replication: only verified artifacts
	// may leave the host.
	ErrArtifactNotVerified = errors.New("artifact has not passed verification")
)

// ConnectivityError reports a failed database connectivity precheck. No
// artifact file exists when it is returned.
type ConnectivityError struct {
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("database connectivity check failed: %v", e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// ProducerError reports a failed artifact production. No partial file is
// retained when it is returned.
type ProducerError struct {
	Kind ArtifactKind
	Err  error
}

func (e *ProducerError) Error() string {
	return fmt.Sprintf("%s backup production failed: %v", e.Kind, e.Err)
}

func (e *ProducerError) Unwrap() error { return e.Err }

// VerificationError reports a failed integrity check on an artifact.
type VerificationError struct {
	Path string
	Err  error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verification of %s failed: %v", e.Path, e.Err)
}

func (e *VerificationError) Unwrap() error { return e.Err }

// UploadError reports a failed remote replication. The local artifact
// remains valid; the run continues.
type UploadError struct {
	Key string
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload of %s failed: %v", e.Key, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// CleanupError reports per-file failures accumulated during a retention
// pass. Deletions that succeeded stay deleted.
type CleanupError struct {
	Err error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("retention cleanup failed: %v", e.Err)
}

func (e *CleanupError) Unwrap() error { return e.Err }

// RestoreError reports a restore failure and the state it occurred in.
type RestoreError struct {
	State RestoreState
	Err   error
}

func (e *RestoreError) Error() string {
	return fmt.Sprintf("restore failed in state %s: %v", e.State, e.Err)
}

func (e *RestoreError) Unwrap() error { return e.Err }

// RollbackError reports that the restore failed and the rollback attempt
// also failed or was impossible. Services are left stopped rather than
// exposing a database in an unknown state.
type RollbackError struct {
	RestoreErr error
	Err        error
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("rollback failed after restore failure, manual intervention required: %v (restore failure: %v)", e.Err, e.RestoreErr)
}

func (e *RollbackError) Unwrap() []error { return []error{e.Err, e.RestoreErr} }
