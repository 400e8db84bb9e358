// PgVault - PostgreSQL Backup and Recovery Engine
// Copyright 2026 PgVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pgvault/pgvault

package backup

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pgvault/pgvault/internal/logging"
)

// mockDumpContent opens with the plain dump banner so produced snapshots
// pass signature verification.
const mockDumpContent = `--
-- PostgreSQL database dump
--

CREATE DATABASE appdb;
`

// mockDatabase implements Database with scriptable failures. Error slices
// are consumed one call at a time; an exhausted slice means success.
type mockDatabase struct {
	mu sync.Mutex

	name        string
	dumpContent string
	dumpErr     error
	restoreErrs []error
	connectErrs []error
	walSegments []string
	walErr      error
	markErr     error

	dumps    int
	connects int
	restores []string
	marked   [][]string
}

func newMockDatabase() *mockDatabase {
	return &mockDatabase{name: "appdb", dumpContent: mockDumpContent}
}

func (m *mockDatabase) Name() string { return m.name }

func (m *mockDatabase) CheckConnectivity(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connects++
	return m.popErr(&m.connectErrs)
}

func (m *mockDatabase) Dump(_ context.Context, w io.Writer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dumps++
	if m.dumpErr != nil {
		return m.dumpErr
	}
	_, err := io.WriteString(w, m.dumpContent)
	return err
}

func (m *mockDatabase) Restore(_ context.Context, r io.Reader) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.restores = append(m.restores, string(data))
	return m.popErr(&m.restoreErrs)
}

func (m *mockDatabase) ReadyWALSegments() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.walSegments, m.walErr
}

func (m *mockDatabase) MarkWALArchived(segments []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marked = append(m.marked, segments)
	return m.markErr
}

// popErr consumes the first scripted error, nil once exhausted.
func (m *mockDatabase) popErr(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

// mockStore implements ObjectStore in memory.
type mockStore struct {
	mu sync.Mutex

	putErrFor string // keys containing this substring fail
	listErr   error
	removeErr error
	objects   []RemoteObject

	puts    []string
	removed []string
}

func (s *mockStore) Put(_ context.Context, _, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErrFor != "" && strings.Contains(key, s.putErrFor) {
		return errMockStore
	}
	s.puts = append(s.puts, key)
	return nil
}

func (s *mockStore) List(context.Context, string) ([]RemoteObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]RemoteObject, len(s.objects))
	copy(out, s.objects)
	return out, nil
}

func (s *mockStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removeErr != nil {
		return s.removeErr
	}
	s.removed = append(s.removed, key)
	return nil
}

func (s *mockStore) URI(key string) string { return "s3://test-bucket/" + key }

// removedKeys returns a copy of the removed key list.
func (s *mockStore) removedKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.removed))
	copy(out, s.removed)
	return out
}

// mockServices implements ServiceRunner, counting invocations.
type mockServices struct {
	mu sync.Mutex

	stopErr  error
	startErr error

	stops  int
	starts int
}

func (m *mockServices) Stop(_ context.Context, _ []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	return m.stopErr
}

func (m *mockServices) Start(_ context.Context, _ []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts++
	return m.startErr
}

func (m *mockServices) counts() (stops, starts int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops, m.starts
}

// mockNotifier implements Notifier, recording deliveries.
type mockNotifier struct {
	mu sync.Mutex

	err  error
	sent []notification
}

type notification struct {
	subject  string
	severity string
}

func (m *mockNotifier) Notify(_ context.Context, subject, _, severity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, notification{subject: subject, severity: severity})
	return m.err
}

func (m *mockNotifier) deliveries() []notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]notification, len(m.sent))
	copy(out, m.sent)
	return out
}

func (m *mockNotifier) severities() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, n := range m.sent {
		out = append(out, n.severity)
	}
	return out
}

var errMockStore = mockErr("object storage unavailable")

// mockErr is a comparable error for errors.Is assertions.
type mockErr string

func (e mockErr) Error() string { return string(e) }

// testConfig returns an engine config rooted in a fresh temp directory.
// Retention and notifications default off; tests opt in per scenario.
func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		Directory:        t.TempDir(),
		Prefix:           "appdb",
		CompressionLevel: 6,
		RemotePrefix:     "backups",
	}
}

// mustEngine builds an Engine or fails the test. Pass nil for collaborators
// the scenario does without.
func mustEngine(t *testing.T, cfg Config, db Database, store ObjectStore, services ServiceRunner, notifier Notifier) *Engine {
	t.Helper()
	engine, err := New(cfg, db, store, services, notifier, logging.Nop())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return engine
}

// backdatedFullName renders a full artifact name whose embedded timestamp
// lies age in the past.
func backdatedFullName(prefix string, age time.Duration) string {
	return fullArtifactName(prefix, time.Now().UTC().Add(-age))
}

// backdatedWALName renders a WAL bundle name whose embedded timestamp lies
// age in the past.
func backdatedWALName(age time.Duration) string {
	return walArtifactName(time.Now().UTC().Add(-age))
}
