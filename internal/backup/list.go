// PgVault - PostgreSQL Backup and Recovery Engine
// Copyright 2026 PgVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pgvault/pgvault

package backup

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
)

// List enumerates local and, when configured, remote artifacts, newest
// first. It is read-only: untracked local files appear with Verified=false
// and are not adopted into the manifest.
func (e *Engine) List(ctx context.Context) ([]ListEntry, error) {
	byName := make(map[string]*ListEntry)

	entries, err := os.ReadDir(e.cfg.Directory)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to scan backup directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		kind, nameTime, ok := parseArtifactName(name)
		if !ok {
			continue
		}

		artifact, found := e.manifest.byName(name)
		if !found {
			info, statErr := entry.Info()
			if statErr != nil {
				continue
			}
			artifact = Artifact{
				Kind:      kind,
				Name:      name,
				LocalPath: filepath.Join(e.cfg.Directory, name),
				SizeBytes: info.Size(),
				CreatedAt: nameTime,
			}
		}
		byName[name] = &ListEntry{Artifact: artifact, Location: LocationLocal}
	}

	if e.store != nil {
		objects, err := e.store.List(ctx, e.cfg.RemotePrefix)
		if err != nil {
			return nil, fmt.Errorf("failed to list remote objects: %w", err)
		}
		for _, obj := range objects {
			base := path.Base(obj.Key)
			kind, nameTime, ok := parseArtifactName(base)
			if !ok {
				continue
			}
			if existing, present := byName[base]; present {
				existing.Location = LocationBoth
				if existing.RemoteURI == "" {
					existing.RemoteURI = e.store.URI(obj.Key)
				}
				continue
			}
			byName[base] = &ListEntry{
				Artifact: Artifact{
					Kind:      kind,
					Name:      base,
					RemoteURI: e.store.URI(obj.Key),
					SizeBytes: obj.SizeBytes,
					CreatedAt: nameTime,
					Uploaded:  true,
				},
				Location: LocationRemote,
			}
		}
	}

	out := make([]ListEntry, 0, len(byName))
	for _, entry := range byName {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Name < out[j].Name
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Stats summarizes the manifest on demand. It backs the status command.
func (e *Engine) Stats() *Stats {
	artifacts := e.manifest.all()
	stats := &Stats{Total: len(artifacts)}

	for i := range artifacts {
		a := &artifacts[i]
		switch a.Kind {
		case KindFull:
			stats.FullCount++
		case KindIncremental:
			stats.IncrementalCount++
		}
		if a.Verified {
			stats.VerifiedCount++
		}
		if a.Uploaded {
			stats.UploadedCount++
		}
		stats.TotalSizeBytes += a.SizeBytes

		if stats.NewestAt.IsZero() || a.CreatedAt.After(stats.NewestAt) {
			stats.NewestAt = a.CreatedAt
		}
		if stats.OldestAt.IsZero() || a.CreatedAt.Before(stats.OldestAt) {
			stats.OldestAt = a.CreatedAt
		}
	}

	if stats.Total > 0 {
		stats.AverageSizeBytes = stats.TotalSizeBytes / int64(stats.Total)
	}
	return stats
}
