// PgVault - PostgreSQL Backup and Recovery Engine
// Copyright 2026 PgVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pgvault/pgvault

// Package backup implements the PgVault backup and recovery engine.
//
// The engine captures, verifies, replicates, expires, and restores backups of
// a single PostgreSQL database:
//   - Full snapshots (pg_dump plain format, gzip-compressed, SHA-256 sidecar)
//   - Incremental WAL archives (ready-for-archival segments bundled as tar.gz)
//   - Cryptographic verification of every artifact before it is trusted
//   - Optional replication to S3-compatible object storage
//   - Age-based retention with replication-safety protection
//   - Reversible restore with a safety backup and automatic rollback
//
// Artifact lifecycle:
//
//	┌──────────┐    ┌──────────┐    ┌────────────┐    ┌───────────┐
//	│ Producer │───▶│ Verifier │───▶│ Replicator │───▶│ Retention │
//	└──────────┘    └──────────┘    └────────────┘    └───────────┘
//	  creates        Verified=true    Uploaded=true      deletes
//
// One backup or restore runs at a time per target database, enforced by an
// exclusive lock file in the backup directory. All steps are sequential and
// blocking; scheduling is an external concern.
//
// Usage:
//
//	engine, err := backup.New(cfg, db, store, services, notifier, logger)
//	result, err := engine.Run(ctx, backup.KindFull)
//	result, err := engine.Restore(ctx, "/var/backups/pgvault/app_full_20260101_030000.sql.gz", true)
package backup

import (
	"context"
	"io"
	"time"
)

// ArtifactKind identifies what a backup artifact contains.
type ArtifactKind string

const (
	// KindFull is a complete logical dump of the database.
	KindFull ArtifactKind = "full"

	// KindIncremental is a bundle of write-ahead log segments archived
	// since the previous run.
	KindIncremental ArtifactKind = "incremental"
)

// Notification severities passed to the Notifier collaborator.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Artifact is one backup output unit: a full dump or a WAL bundle, plus its
// metadata. Artifacts are created by a producer, flipped Verified by the
// verifier, flipped Uploaded by the replicator, and removed only by the
// retention manager or by quarantine on verification failure.
type Artifact struct {
	// Unique identifier assigned at creation
	ID string `json:"id"`

	// Kind of artifact (full or incremental)
	Kind ArtifactKind `json:"kind"`

	// Name is the artifact file name, unique within the backup directory
	Name string `json:"name"`

	// LocalPath is the absolute path of the artifact file
	LocalPath string `json:"local_path"`

	// RemoteURI is the object storage location after upload (s3://bucket/key)
	RemoteURI string `json:"remote_uri,omitempty"`

	// SizeBytes is the compressed artifact size
	SizeBytes int64 `json:"size_bytes"`

	// ChecksumSHA256 is the hex digest of the compressed file (full dumps only)
	ChecksumSHA256 string `json:"checksum_sha256,omitempty"`

	// CreatedAt is the UTC creation time, also embedded in the file name
	CreatedAt time.Time `json:"created_at"`

	// Verified records that the artifact passed integrity verification
	Verified bool `json:"verified"`

	// Uploaded records that the artifact (and sidecar) reached remote storage
	Uploaded bool `json:"uploaded"`
}

// SidecarPath returns the path of the artifact's checksum sidecar.
func (a *Artifact) SidecarPath() string {
	return a.LocalPath + sidecarSuffix
}

// Database is the database engine adapter consumed by the backup engine.
type Database interface {
	// Name returns the database name, used for artifact prefixes and logs
	Name() string
	// CheckConnectivity confirms the server accepts connections, polling
	// with a bounded retry count
	CheckConnectivity(ctx context.Context) error
	// Dump streams a self-contained logical dump of the database to w
	Dump(ctx context.Context, w io.Writer) error
	// Restore applies a previously dumped stream read from r
	Restore(ctx context.Context, r io.Reader) error
	// ReadyWALSegments returns absolute paths of WAL segments marked
	// ready-for-archival; an empty slice means nothing to archive
	ReadyWALSegments() ([]string, error)
	// MarkWALArchived records the given segments as archived
	MarkWALArchived(segments []string) error
}

// ObjectStore is the remote replication target. A nil ObjectStore disables
// replication; the engine treats that as a successful no-op.
type ObjectStore interface {
	// Put uploads the file at localPath under the given object key
	Put(ctx context.Context, localPath, key string) error
	// List returns objects under the given key prefix
	List(ctx context.Context, prefix string) ([]RemoteObject, error)
	// Remove deletes the object with the given key
	Remove(ctx context.Context, key string) error
	// URI returns the canonical URI for an object key
	URI(key string) string
}

// RemoteObject is one object storage listing entry.
type RemoteObject struct {
	Key          string
	SizeBytes    int64
	LastModified time.Time
}

// ServiceRunner quiesces and resumes the dependent services that must not
// write to the database during a restore.
type ServiceRunner interface {
	// Stop stops services in the listed order, failing fast
	Stop(ctx context.Context, names []string) error
	// Start starts services in reverse order, attempting every one
	Start(ctx context.Context, names []string) error
}

// Notifier delivers operational notifications. Delivery failures are logged
// by the engine and never propagate into run results.
type Notifier interface {
	Notify(ctx context.Context, subject, body, severity string) error
}

// RestoreState is one state of the restore controller's state machine.
type RestoreState string

const (
	// StateIdle is the rest state before and after a restore
	StateIdle RestoreState = "idle"

	// StateVerifying runs integrity verification on the target artifact
	StateVerifying RestoreState = "verifying"

	// StateSafetyBackup captures the live database before any mutation
	StateSafetyBackup RestoreState = "safety_backup"

	// StateServicesStopped has the dependent services quiesced
	StateServicesStopped RestoreState = "services_stopped"

	// StateRestoring applies the target artifact to the database
	StateRestoring RestoreState = "restoring"

	// StateServicesRestarted has the dependent services resumed
	StateServicesRestarted RestoreState = "services_restarted"

	// StateAttemptRollback re-applies the safety artifact after a failure
	StateAttemptRollback RestoreState = "attempt_rollback"

	// StateFatal means rollback was impossible; manual intervention required
	StateFatal RestoreState = "fatal"
)

// RestoreSession tracks one restore invocation. It is ephemeral and never
// persisted beyond log output.
type RestoreSession struct {
	Target    string
	Safety    *Artifact
	State     RestoreState
	StartedAt time.Time
	Warnings  []string
}

// RunResult reports the outcome of one backup run.
type RunResult struct {
	// Kind that was requested
	Kind ArtifactKind `json:"kind"`

	// Artifact produced by the run; nil when Skipped
	Artifact *Artifact `json:"artifact,omitempty"`

	// Skipped is set for an incremental run that found no segments
	Skipped bool `json:"skipped"`

	// Warnings from non-fatal steps (upload, retention)
	Warnings []string `json:"warnings,omitempty"`

	// Duration of the whole run
	Duration time.Duration `json:"duration_ms"`
}

// RestoreResult reports the outcome of one restore invocation.
type RestoreResult struct {
	// Target artifact path
	Target string `json:"target"`

	// Safety artifact captured before mutation; nil when unprotected
	Safety *Artifact `json:"safety,omitempty"`

	// FinalState of the restore state machine
	FinalState RestoreState `json:"final_state"`

	// Degraded is set when the restore failed but rollback returned the
	// database to its prior state
	Degraded bool `json:"degraded"`

	// Warnings raised along the way (safety backup skipped, restart issues)
	Warnings []string `json:"warnings,omitempty"`

	// Duration of the whole invocation
	Duration time.Duration `json:"duration_ms"`
}

// CleanupResult reports the outcome of one retention pass.
type CleanupResult struct {
	// DeletedLocal counts local artifacts removed (sidecars not counted)
	DeletedLocal int `json:"deleted_local"`

	// DeletedRemote counts remote objects removed
	DeletedRemote int `json:"deleted_remote"`

	// SkippedUnreplicated counts age-eligible artifacts protected because
	// they were never uploaded while replication is configured
	SkippedUnreplicated int `json:"skipped_unreplicated"`

	// SkippedUnverified counts age-eligible artifacts protected because
	// they never passed verification
	SkippedUnverified int `json:"skipped_unverified"`

	// FreedBytes is the total size of deleted local artifacts
	FreedBytes int64 `json:"freed_bytes"`
}

// Location describes where a listed artifact exists.
type Location string

const (
	// LocationLocal means the artifact exists only in the backup directory
	LocationLocal Location = "local"

	// LocationRemote means the artifact exists only in object storage
	LocationRemote Location = "remote"

	// LocationBoth means the artifact exists locally and remotely
	LocationBoth Location = "local+remote"
)

// ListEntry is one row of the artifact listing.
type ListEntry struct {
	Artifact

	// Location of the artifact (local, remote, or both)
	Location Location `json:"location"`
}

// Stats summarizes the manifest for the status command.
type Stats struct {
	Total            int       `json:"total"`
	FullCount        int       `json:"full_count"`
	IncrementalCount int       `json:"incremental_count"`
	VerifiedCount    int       `json:"verified_count"`
	UploadedCount    int       `json:"uploaded_count"`
	TotalSizeBytes   int64     `json:"total_size_bytes"`
	AverageSizeBytes int64     `json:"average_size_bytes"`
	NewestAt         time.Time `json:"newest_at"`
	OldestAt         time.Time `json:"oldest_at"`
}
