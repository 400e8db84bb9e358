// PgVault - PostgreSQL Backup and Recovery Engine
// Copyright 2026 PgVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pgvault/pgvault

// Package lockfile provides advisory file locks for backup directories.
//
// A lock guards a backup directory against concurrent pgvault runs: two
// processes producing or deleting artifacts in the same directory would
// corrupt the manifest. Acquisition never blocks; a held lock surfaces
// immediately as *ErrLockActive so the caller can report and exit.
//
// Locks left behind by crashed processes are taken over: the lock file
// records the holder's PID, and a PID that no longer maps to a live
// process is treated as stale.
package lockfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/goccy/go-json"
)

// LockFileName is created inside the guarded directory.
const LockFileName = ".pgvault.lock"

// ErrLockActive reports that another live process holds the lock.
type ErrLockActive struct {
	// Path of the lock file.
	Path string
	// PID of the holding process.
	PID int
	// Owner is the identity string the holder passed to Acquire.
	Owner string
	// AcquiredAt is when the holder took the lock.
	AcquiredAt time.Time
}

func (e *ErrLockActive) Error() string {
	return fmt.Sprintf("lock %s held by %s (pid %d) since %s",
		e.Path, e.Owner, e.PID, e.AcquiredAt.Format(time.RFC3339))
}

// lockInfo is the JSON payload written into the lock file.
type lockInfo struct {
	PID        int       `json:"pid"`
	Owner      string    `json:"owner"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// Lock is a held directory lock. Release must be called exactly once.
type Lock struct {
	path string
}

// Acquire takes the lock for dir, identifying this process as owner.
// It returns *ErrLockActive without waiting when another live process
// holds the lock. A lock whose recorded PID is dead is removed and
// acquisition retried once.
func Acquire(ctx context.Context, dir, owner string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create lock directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, LockFileName)

	for attempt := 0; attempt < 2; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		lock, err := tryCreate(path, owner)
		if err == nil {
			return lock, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to create lock file %s: %w", path, err)
		}

		info, readErr := readInfo(path)
		if readErr == nil && processAlive(info.PID) {
			return nil, &ErrLockActive{
				Path:       path,
				PID:        info.PID,
				Owner:      info.Owner,
				AcquiredAt: info.AcquiredAt,
			}
		}

		// Stale or unreadable lock: remove and retry. A concurrent
		// acquirer may win the retry; the second attempt then reports
		// ErrLockActive normally.
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			return nil, fmt.Errorf("failed to remove stale lock %s: %w", path, rmErr)
		}
	}

	return nil, fmt.Errorf("failed to acquire lock %s after stale takeover", path)
}

// tryCreate creates the lock file exclusively and writes holder info.
func tryCreate(path, owner string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, err
	}

	info := lockInfo{
		PID:        os.Getpid(),
		Owner:      owner,
		AcquiredAt: time.Now().UTC(),
	}
	data, err := json.Marshal(info)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("failed to encode lock info: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("failed to write lock info: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to close lock file: %w", err)
	}

	return &Lock{path: path}, nil
}

// readInfo parses holder info from an existing lock file.
func readInfo(path string) (lockInfo, error) {
	var info lockInfo
	data, err := os.ReadFile(path)
	if err != nil {
		return info, err
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return info, fmt.Errorf("corrupt lock file %s: %w", path, err)
	}
	if info.PID <= 0 {
		return info, fmt.Errorf("corrupt lock file %s: missing pid", path)
	}
	return info, nil
}

// processAlive reports whether pid maps to a live process. Signal 0
// performs the existence check without delivering anything.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// Release removes the lock file. Safe to call if the file has already
// vanished.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to release lock %s: %w", l.path, err)
	}
	return nil
}

// Path returns the lock file location, for logging.
func (l *Lock) Path() string {
	return l.path
}
