// PgVault - PostgreSQL Backup and Recovery Engine
// Copyright 2026 PgVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pgvault/pgvault

// Package metrics instruments the backup engine with Prometheus collectors.
//
// PgVault is a batch process, so collectors register on the default registry
// and the CLI pushes them to a Pushgateway after each invocation. Scrape-based
// serving would require a resident process, which PgVault is not.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Status label values shared by the Record helpers.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusSkipped = "skipped"
)

var (
	// BackupRuns counts backup runs by kind and status.
	BackupRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pgvault_backup_runs_total",
			Help: "Total backup runs by kind and status",
		},
		[]string{"kind", "status"},
	)

	// BackupDuration observes whole-run durations. Dumps range from
	// seconds on small databases to hours on large ones.
	BackupDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pgvault_backup_duration_seconds",
			Help:    "Duration of backup runs in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
		[]string{"kind"},
	)

	// ArtifactSizeBytes observes compressed artifact sizes.
	ArtifactSizeBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pgvault_artifact_size_bytes",
			Help:    "Compressed artifact sizes in bytes",
			Buckets: prometheus.ExponentialBuckets(1<<20, 4, 10), // 1 MiB .. 256 GiB
		},
		[]string{"kind"},
	)

	// VerificationFailures counts artifacts that failed integrity checks.
	VerificationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pgvault_verification_failures_total",
			Help: "Total artifact verification failures",
		},
	)

	// Uploads counts replication attempts by status.
	Uploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pgvault_uploads_total",
			Help: "Total artifact upload attempts by status",
		},
		[]string{"status"},
	)

	// RetentionDeleted counts artifacts deleted by retention, by location.
	RetentionDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pgvault_retention_deleted_total",
			Help: "Total artifacts deleted by retention, by location",
		},
		[]string{"location"},
	)

	// RetentionSkipped counts age-eligible artifacts protected from
	// deletion, by reason (unreplicated, unverified).
	RetentionSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pgvault_retention_skipped_total",
			Help: "Total age-eligible artifacts protected from deletion, by reason",
		},
		[]string{"reason"},
	)

	// WALSegmentsArchived counts segments bundled into incremental artifacts.
	WALSegmentsArchived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pgvault_wal_segments_archived_total",
			Help: "Total WAL segments bundled into incremental artifacts",
		},
	)

	// RestoreRuns counts restore invocations by outcome
	// (success, degraded, aborted, fatal).
	RestoreRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pgvault_restore_runs_total",
			Help: "Total restore invocations by outcome",
		},
		[]string{"outcome"},
	)
)

// RecordBackupRun records one backup run outcome.
func RecordBackupRun(kind, status string) {
	BackupRuns.WithLabelValues(kind, status).Inc()
}

// ObserveBackupDuration records a whole-run duration.
func ObserveBackupDuration(kind string, seconds float64) {
	BackupDuration.WithLabelValues(kind).Observe(seconds)
}

// ObserveArtifactSize records a produced artifact's compressed size.
func ObserveArtifactSize(kind string, bytes float64) {
	ArtifactSizeBytes.WithLabelValues(kind).Observe(bytes)
}

// RecordVerificationFailure records one failed integrity check.
func RecordVerificationFailure() {
	VerificationFailures.Inc()
}

// RecordUpload records one replication attempt.
func RecordUpload(status string) {
	Uploads.WithLabelValues(status).Inc()
}

// RecordRetentionDeleted records artifacts deleted in a retention pass.
func RecordRetentionDeleted(location string, n int) {
	RetentionDeleted.WithLabelValues(location).Add(float64(n))
}

// RecordRetentionSkipped records artifacts protected in a retention pass.
func RecordRetentionSkipped(reason string, n int) {
	RetentionSkipped.WithLabelValues(reason).Add(float64(n))
}

// RecordWALSegmentsArchived records segments bundled by an incremental run.
func RecordWALSegmentsArchived(n int) {
	WALSegmentsArchived.Add(float64(n))
}

// RecordRestore records one restore invocation outcome.
func RecordRestore(outcome string) {
	RestoreRuns.WithLabelValues(outcome).Inc()
}
