// PgVault - PostgreSQL Backup and Recovery Engine
// Copyright 2026 PgVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pgvault/pgvault

/*
manifest.go - Artifact Metadata Store

The manifest persists per-artifact state (verified, uploaded, checksum,
creation time) across invocations as manifest.json in the backup directory.
Artifacts are keyed by file name, which embeds the creation timestamp and is
unique within one backup directory.

Saves are atomic: marshal to a temp file, then rename over the previous
manifest. A crash mid-save leaves the old manifest intact. The file is 0600
like the artifacts it describes.

The manifest stores value copies. Engine code mutates its own Artifact and
calls upsert; nothing outside this file holds a pointer into the store.
*/

//nolint:staticcheck // File documentation, not package doc
package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// manifestName is the metadata file name inside the backup directory.
const manifestName = "manifest.json"

// manifest is the in-memory view of manifest.json.
type manifest struct {
	path string

	mu   sync.Mutex
	data manifestData
}

type manifestData struct {
	// UpdatedAt is the time of the last save
	UpdatedAt time.Time `json:"updated_at"`

	// Artifacts known to this backup directory
	Artifacts []Artifact `json:"artifacts"`
}

// loadManifest reads the manifest from dir, returning an empty store when no
// manifest exists yet.
func loadManifest(dir string) (*manifest, error) {
	m := &manifest{path: filepath.Join(dir, manifestName)}

	data, err := os.ReadFile(m.path) //nolint:gosec // G304: path is derived from configured backup directory
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	if err := json.Unmarshal(data, &m.data); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", m.path, err)
	}
	return m, nil
}

// save writes the manifest atomically.
func (m *manifest) save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked()
}

func (m *manifest) saveLocked() error {
	m.data.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(&m.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	tmp := m.path + tmpSuffix
	if err := os.WriteFile(tmp, data, 0o600); err != nil { //nolint:gosec // Manifest permissions are intentionally restricted
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		os.Remove(tmp) //nolint:errcheck // Best effort cleanup
		return fmt.Errorf("failed to finalize manifest: %w", err)
	}
	return nil
}

// upsert inserts or replaces the artifact keyed by Name.
func (m *manifest) upsert(a Artifact) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.data.Artifacts {
		if m.data.Artifacts[i].Name == a.Name {
			m.data.Artifacts[i] = a
			return
		}
	}
	m.data.Artifacts = append(m.data.Artifacts, a)
}

// remove drops the artifact keyed by Name, tolerating absence.
func (m *manifest) remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.data.Artifacts {
		if m.data.Artifacts[i].Name == name {
			m.data.Artifacts = append(m.data.Artifacts[:i], m.data.Artifacts[i+1:]...)
			return
		}
	}
}

// byName returns a copy of the artifact keyed by Name.
func (m *manifest) byName(name string) (Artifact, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.data.Artifacts {
		if m.data.Artifacts[i].Name == name {
			return m.data.Artifacts[i], true
		}
	}
	return Artifact{}, false
}

// all returns copies of every artifact, newest first.
func (m *manifest) all() []Artifact {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Artifact, len(m.data.Artifacts))
	copy(out, m.data.Artifacts)
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
