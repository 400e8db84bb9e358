// PgVault - PostgreSQL Backup and Recovery Engine
// Copyright 2026 PgVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pgvault/pgvault

//go:build integration

package testinfra

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
)

// CapturedNotification is one decoded pgvault webhook delivery.
type CapturedNotification struct {
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Severity  string    `json:"severity"`
	Host      string    `json:"host"`
	Timestamp time.Time `json:"timestamp"`
}

// WebhookRecorder is an HTTP server capturing notification deliveries for
// verification. Notification sending is fire and forget, so assertions
// should go through WaitForNotifications rather than reading immediately.
type WebhookRecorder struct {
	Server *httptest.Server

	// ResponseStatus is the HTTP status to return (default 200).
	ResponseStatus int

	mu       sync.Mutex
	captured []CapturedNotification
}

// NewWebhookRecorder starts the recording server. Callers own Close.
func NewWebhookRecorder(t *testing.T) *WebhookRecorder {
	t.Helper()

	rec := &WebhookRecorder{ResponseStatus: http.StatusOK}
	rec.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		var n CapturedNotification
		if err := json.Unmarshal(body, &n); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		rec.mu.Lock()
		rec.captured = append(rec.captured, n)
		rec.mu.Unlock()

		w.WriteHeader(rec.ResponseStatus)
	}))

	return rec
}

// URL returns the server URL for the notify configuration.
func (r *WebhookRecorder) URL() string {
	return r.Server.URL
}

// Close shuts down the server.
func (r *WebhookRecorder) Close() {
	r.Server.Close()
}

// Notifications returns a copy of everything captured so far.
func (r *WebhookRecorder) Notifications() []CapturedNotification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CapturedNotification, len(r.captured))
	copy(out, r.captured)
	return out
}

// WaitForNotifications waits until at least n deliveries arrived.
func (r *WebhookRecorder) WaitForNotifications(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		r.mu.Lock()
		count := len(r.captured)
		r.mu.Unlock()
		if count >= n {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return false
}
