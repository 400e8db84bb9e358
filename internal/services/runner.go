// PgVault - PostgreSQL Backup and Recovery Engine
// Copyright 2026 PgVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pgvault/pgvault

// Package services stops and starts the services that depend on the
// database, so a restore never runs under live application writes.
//
// Two init system styles are supported: systemctl ("systemctl stop
// nginx") and the legacy service wrapper ("service nginx stop").
package services

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pgvault/pgvault/internal/backup"
)

// Runner controls services through the host's init system.
type Runner struct {
	manager string
	logger  zerolog.Logger

	// Overridable for tests.
	bin string
}

var _ backup.ServiceRunner = (*Runner)(nil)

// NewRunner returns a runner using the given manager command, either
// "systemctl" or "service".
func NewRunner(manager string, logger zerolog.Logger) *Runner {
	return &Runner{
		manager: manager,
		logger:  logger.With().Str("component", "services").Logger(),
		bin:     manager,
	}
}

// Stop stops the named services in order, failing fast on the first
// error. The caller decides whether to restart the ones already stopped.
func (r *Runner) Stop(ctx context.Context, names []string) error {
	for _, name := range names {
		if err := r.run(ctx, "stop", name); err != nil {
			return err
		}
	}
	return nil
}

// Start starts the named services in reverse of the given order, the
// mirror of how Stop took them down. Every service is attempted even
// when an earlier one fails; the failures come back joined.
func (r *Runner) Start(ctx context.Context, names []string) error {
	var errs []error
	for i := len(names) - 1; i >= 0; i-- {
		if err := r.run(ctx, "start", names[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// run invokes the manager for one service. The service wrapper takes
// "service <name> <action>", systemctl takes "systemctl <action> <name>".
func (r *Runner) run(ctx context.Context, action, name string) error {
	var cmd *exec.Cmd
	if r.manager == "service" {
		cmd = exec.CommandContext(ctx, r.bin, name, action)
	} else {
		cmd = exec.CommandContext(ctx, r.bin, action, name)
	}

	out, err := cmd.CombinedOutput()
	if err != nil {
		detail := strings.TrimSpace(string(out))
		if detail != "" {
			return fmt.Errorf("failed to %s service %s: %w: %s", action, name, err, detail)
		}
		return fmt.Errorf("failed to %s service %s: %w", action, name, err)
	}

	r.logger.Info().Str("service", name).Str("action", action).Msg("Service state changed")
	return nil
}
