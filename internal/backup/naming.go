// PgVault - PostgreSQL Backup and Recovery Engine
// Copyright 2026 PgVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pgvault/pgvault

package backup

import (
	"fmt"
	"regexp"
	"time"
)

// Artifact file naming. Timestamps are UTC so that names parse back to the
// exact creation instant regardless of host timezone changes. Retention
// compares parsed time.Time values, never the name strings themselves:
// lexicographic comparison of date tokens misorders across format changes.
const (
	// timestampLayout is the artifact name timestamp format.
	timestampLayout = "20060102_150405"

	// fullSuffix terminates full dump artifact names.
	fullSuffix = ".sql.gz"

	// walSuffix terminates WAL bundle artifact names.
	walSuffix = ".tar.gz"

	// sidecarSuffix terminates checksum sidecar names.
	sidecarSuffix = ".sha256"

	// tmpSuffix marks in-progress files, never exposed as artifacts.
	tmpSuffix = ".tmp"
)

var (
	fullNameRe = regexp.MustCompile(`^(.+)_full_(\d{8}_\d{6})\.sql\.gz$`)
	walNameRe  = regexp.MustCompile(`^wal_(\d{8}_\d{6})\.tar\.gz$`)
)

// fullArtifactName renders {prefix}_full_{timestamp}.sql.gz.
func fullArtifactName(prefix string, ts time.Time) string {
	return fmt.Sprintf("%s_full_%s%s", prefix, ts.UTC().Format(timestampLayout), fullSuffix)
}

// walArtifactName renders wal_{timestamp}.tar.gz.
func walArtifactName(ts time.Time) string {
	return fmt.Sprintf("wal_%s%s", ts.UTC().Format(timestampLayout), walSuffix)
}

// parseArtifactName recognizes artifact file names and extracts the kind and
// the embedded creation time. Returns ok=false for anything that is not a
// PgVault artifact (sidecars, temp files, foreign files).
func parseArtifactName(name string) (kind ArtifactKind, createdAt time.Time, ok bool) {
	if m := fullNameRe.FindStringSubmatch(name); m != nil {
		ts, err := time.ParseInLocation(timestampLayout, m[2], time.UTC)
		if err != nil {
			return "", time.Time{}, false
		}
		return KindFull, ts, true
	}
	if m := walNameRe.FindStringSubmatch(name); m != nil {
		ts, err := time.ParseInLocation(timestampLayout, m[1], time.UTC)
		if err != nil {
			return "", time.Time{}, false
		}
		return KindIncremental, ts, true
	}
	return "", time.Time{}, false
}
