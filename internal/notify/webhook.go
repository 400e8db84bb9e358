// PgVault - PostgreSQL Backup and Recovery Engine
// Copyright 2026 PgVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pgvault/pgvault

// Package notify delivers operator notifications. The single
// implementation POSTs a JSON document to a configured webhook URL,
// which covers Slack-compatible receivers, ntfy, and plain HTTP
// collectors alike.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/pgvault/pgvault/internal/backup"
)

// Webhook implements backup.Notifier by POSTing JSON to a fixed URL.
type Webhook struct {
	url        string
	httpClient *http.Client
	logger     zerolog.Logger
}

var _ backup.Notifier = (*Webhook)(nil)

// payload is the JSON document delivered to the webhook.
type payload struct {
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Severity  string    `json:"severity"`
	Host      string    `json:"host"`
	Timestamp time.Time `json:"timestamp"`
}

// NewWebhook builds a webhook notifier. The client timeout bounds each
// delivery even when the caller's context carries no deadline; zero
// timeout defaults to 10 seconds.
func NewWebhook(url string, timeout time.Duration, logger zerolog.Logger) *Webhook {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Webhook{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.With().Str("component", "notify").Logger(),
	}
}

// Notify delivers one notification. Severity is one of "info",
// "warning", "error" and is carried verbatim in the payload.
func (w *Webhook) Notify(ctx context.Context, subject, body, severity string) error {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}

	data, err := json.Marshal(payload{
		Subject:   subject,
		Body:      body,
		Severity:  severity,
		Host:      host,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver notification: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	w.logger.Debug().Str("subject", subject).Str("severity", severity).Msg("Notification delivered")
	return nil
}
