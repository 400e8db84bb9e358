// PgVault - PostgreSQL Backup and Recovery Engine
// Copyright 2026 PgVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pgvault/pgvault

package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pgvault/pgvault/internal/logging"
)

// fakeManager writes a script that logs each invocation to a file and
// fails for any service named in failFor.
func fakeManager(t *testing.T, logPath string, failFor string) string {
	t.Helper()
	dir := t.TempDir()
	script := "#!/bin/sh\necho \"$@\" >> " + logPath + "\n"
	if failFor != "" {
		script += "case \"$@\" in *" + failFor + "*) echo 'unit not found' >&2; exit 5;; esac\n"
	}
	script += "exit 0\n"

	path := filepath.Join(dir, "fake_systemctl")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("failed to write fake manager: %v", err)
	}
	return path
}

// invocations reads the fake manager's log, one line per call.
func invocations(t *testing.T, logPath string) []string {
	t.Helper()
	data, err := os.ReadFile(logPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("failed to read invocation log: %v", err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func newTestRunner(t *testing.T, manager, failFor string) (*Runner, string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "calls.log")
	r := NewRunner(manager, logging.Nop())
	r.bin = fakeManager(t, logPath, failFor)
	return r, logPath
}

func TestStopOrder(t *testing.T) {
	t.Parallel()

	r, logPath := newTestRunner(t, "systemctl", "")
	err := r.Stop(context.Background(), []string{"app", "worker", "scheduler"})
	if err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}

	calls := invocations(t, logPath)
	want := []string{"stop app", "stop worker", "stop scheduler"}
	if len(calls) != len(want) {
		t.Fatalf("got %d calls, want %d: %v", len(calls), len(want), calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, calls[i], want[i])
		}
	}
}

func TestStopFailsFast(t *testing.T) {
	t.Parallel()

	r, logPath := newTestRunner(t, "systemctl", "worker")
	err := r.Stop(context.Background(), []string{"app", "worker", "scheduler"})
	if err == nil {
		t.Fatal("Stop() should fail when a service cannot be stopped")
	}
	if !strings.Contains(err.Error(), "worker") {
		t.Errorf("error should name the failing service, got: %v", err)
	}
	if !strings.Contains(err.Error(), "unit not found") {
		t.Errorf("error should carry manager output, got: %v", err)
	}

	// scheduler is never reached.
	for _, call := range invocations(t, logPath) {
		if strings.Contains(call, "scheduler") {
			t.Errorf("Stop() continued past the failure: %v", call)
		}
	}
}

func TestStartReverseOrder(t *testing.T) {
	t.Parallel()

	r, logPath := newTestRunner(t, "systemctl", "")
	err := r.Start(context.Background(), []string{"app", "worker", "scheduler"})
	if err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	calls := invocations(t, logPath)
	want := []string{"start scheduler", "start worker", "start app"}
	if len(calls) != len(want) {
		t.Fatalf("got %d calls, want %d: %v", len(calls), len(want), calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, calls[i], want[i])
		}
	}
}

func TestStartAttemptsAllDespiteFailure(t *testing.T) {
	t.Parallel()

	r, logPath := newTestRunner(t, "systemctl", "worker")
	err := r.Start(context.Background(), []string{"app", "worker", "scheduler"})
	if err == nil {
		t.Fatal("Start() should report the failed service")
	}
	if !strings.Contains(err.Error(), "worker") {
		t.Errorf("error should name the failing service, got: %v", err)
	}

	// app still gets its start attempt after worker fails.
	var sawApp bool
	for _, call := range invocations(t, logPath) {
		if call == "start app" {
			sawApp = true
		}
	}
	if !sawApp {
		t.Error("Start() should attempt remaining services after a failure")
	}
}

func TestServiceManagerArgumentOrder(t *testing.T) {
	t.Parallel()

	r, logPath := newTestRunner(t, "service", "")
	if err := r.Stop(context.Background(), []string{"nginx"}); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}

	calls := invocations(t, logPath)
	if len(calls) != 1 || calls[0] != "nginx stop" {
		t.Errorf("service wrapper should be invoked as 'service <name> stop', got %v", calls)
	}
}

func TestEmptyServiceList(t *testing.T) {
	t.Parallel()

	r, logPath := newTestRunner(t, "systemctl", "")
	if err := r.Stop(context.Background(), nil); err != nil {
		t.Errorf("Stop(nil) = %v, want nil", err)
	}
	if err := r.Start(context.Background(), nil); err != nil {
		t.Errorf("Start(nil) = %v, want nil", err)
	}
	if calls := invocations(t, logPath); calls != nil {
		t.Errorf("no services should be invoked, got %v", calls)
	}
}
