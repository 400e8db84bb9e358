// PgVault - PostgreSQL Backup and Recovery Engine
// Copyright 2026 PgVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pgvault/pgvault

package metrics

import (
	"context"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Push sends the default registry to a Pushgateway, grouped by job and
// instance. The push replaces the group so gauges from a prior run do not
// linger. Callers treat failures as best effort: a missing gateway never
// fails a backup.
func Push(ctx context.Context, url, job string) error {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}

	return push.New(url, job).
		Gatherer(prometheus.DefaultGatherer).
		Grouping("instance", host).
		PushContext(ctx)
}
