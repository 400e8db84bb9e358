// PgVault - PostgreSQL Backup and Recovery Engine
// Copyright 2026 PgVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pgvault/pgvault

package backup

import (
	"testing"
	"time"
)

func TestFullArtifactName(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 15, 3, 0, 0, 0, time.UTC)
	got := fullArtifactName("appdb", ts)
	want := "appdb_full_20260115_030000.sql.gz"
	if got != want {
		t.Errorf("fullArtifactName() = %q, want %q", got, want)
	}
}

func TestFullArtifactNameConvertsToUTC(t *testing.T) {
	t.Parallel()

	// 03:00 at UTC+5 is 22:00 the previous day in UTC.
	zone := time.FixedZone("UTC+5", 5*3600)
	ts := time.Date(2026, 1, 15, 3, 0, 0, 0, zone)
	got := fullArtifactName("appdb", ts)
	want := "appdb_full_20260114_220000.sql.gz"
	if got != want {
		t.Errorf("fullArtifactName() = %q, want UTC-normalized %q", got, want)
	}
}

func TestWALArtifactName(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 3, 31, 23, 59, 59, 0, time.UTC)
	got := walArtifactName(ts)
	want := "wal_20260331_235959.tar.gz"
	if got != want {
		t.Errorf("walArtifactName() = %q, want %q", got, want)
	}
}

func TestParseArtifactName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		wantKind ArtifactKind
		wantTime time.Time
		wantOK   bool
	}{
		{
			name:     "full dump",
			input:    "appdb_full_20260115_030000.sql.gz",
			wantKind: KindFull,
			wantTime: time.Date(2026, 1, 15, 3, 0, 0, 0, time.UTC),
			wantOK:   true,
		},
		{
			name:     "prefix containing underscores",
			input:    "my_app_db_full_20260115_030000.sql.gz",
			wantKind: KindFull,
			wantTime: time.Date(2026, 1, 15, 3, 0, 0, 0, time.UTC),
			wantOK:   true,
		},
		{
			name:     "wal bundle",
			input:    "wal_20260115_040500.tar.gz",
			wantKind: KindIncremental,
			wantTime: time.Date(2026, 1, 15, 4, 5, 0, 0, time.UTC),
			wantOK:   true,
		},
		{
			name:   "checksum sidecar",
			input:  "appdb_full_20260115_030000.sql.gz.sha256",
			wantOK: false,
		},
		{
			name:   "in-progress temp file",
			input:  "appdb_full_20260115_030000.sql.gz.tmp",
			wantOK: false,
		},
		{
			name:   "manifest",
			input:  "manifest.json",
			wantOK: false,
		},
		{
			name:   "foreign file",
			input:  "notes.txt",
			wantOK: false,
		},
		{
			name:   "impossible calendar date",
			input:  "appdb_full_20261341_030000.sql.gz",
			wantOK: false,
		},
		{
			name:   "wal bundle with wrong extension",
			input:  "wal_20260115_040500.sql.gz",
			wantOK: false,
		},
		{
			name:   "missing timestamp",
			input:  "appdb_full_.sql.gz",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			kind, createdAt, ok := parseArtifactName(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("parseArtifactName(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if !tt.wantOK {
				return
			}
			if kind != tt.wantKind {
				t.Errorf("kind = %q, want %q", kind, tt.wantKind)
			}
			if !createdAt.Equal(tt.wantTime) {
				t.Errorf("createdAt = %v, want %v", createdAt, tt.wantTime)
			}
		})
	}
}

func TestNameRoundTrip(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 12, 31, 23, 0, 0, 0, time.UTC)

	kind, parsed, ok := parseArtifactName(fullArtifactName("orders", ts))
	if !ok || kind != KindFull || !parsed.Equal(ts) {
		t.Errorf("full name round trip lost information: kind=%q parsed=%v ok=%v", kind, parsed, ok)
	}

	kind, parsed, ok = parseArtifactName(walArtifactName(ts))
	if !ok || kind != KindIncremental || !parsed.Equal(ts) {
		t.Errorf("wal name round trip lost information: kind=%q parsed=%v ok=%v", kind, parsed, ok)
	}
}
