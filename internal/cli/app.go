// PgVault - PostgreSQL Backup and Recovery Engine
// Copyright 2026 PgVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pgvault/pgvault

/*
app.go - Shared Command State and Engine Wiring

The App carries the loaded configuration and logger across subcommands and
assembles the backup engine from its collaborators: the PostgreSQL adapter,
the optional object store, the service runner, and the optional webhook
notifier. Collaborators stay nil interfaces when their configuration section
is absent; the engine treats nil as disabled.
*/

//nolint:staticcheck // File documentation, not package doc
package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pgvault/pgvault/internal/backup"
	"github.com/pgvault/pgvault/internal/config"
	"github.com/pgvault/pgvault/internal/database"
	"github.com/pgvault/pgvault/internal/logging"
	"github.com/pgvault/pgvault/internal/metrics"
	"github.com/pgvault/pgvault/internal/notify"
	"github.com/pgvault/pgvault/internal/services"
	"github.com/pgvault/pgvault/internal/storage"
)

// App is the state shared by all subcommands.
type App struct {
	// ConfigPath is bound to the --config flag
	ConfigPath string

	cfg    *config.Config
	logger zerolog.Logger
	loaded bool
}

// Config loads and validates the configuration on first call.
func (a *App) Config() (*config.Config, error) {
	if a.loaded {
		return a.cfg, nil
	}

	cfg, err := config.LoadFrom(a.ConfigPath)
	if err != nil {
		return nil, err
	}

	a.cfg = cfg
	a.logger = logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	a.logger.Debug().
		Str("version", Version()).
		Str("database", cfg.Database.Name).
		Msg("Configuration loaded")
	a.loaded = true
	return a.cfg, nil
}

// Logger returns the configured logger. Valid only after Config succeeded.
func (a *App) Logger() zerolog.Logger {
	return a.logger
}

// Engine builds the backup engine from the configuration. Remote storage is
// reachable before this returns: the bucket check runs here so a typo in the
// endpoint surfaces at startup, not mid-upload.
func (a *App) Engine(ctx context.Context) (*backup.Engine, error) {
	cfg, err := a.Config()
	if err != nil {
		return nil, err
	}

	db := database.New(cfg.Database, cfg.Backup.WALDirectory, a.logger)

	var store backup.ObjectStore
	if cfg.RemoteEnabled() {
		ms, err := storage.NewMinioStore(storage.Config{
			Endpoint:  cfg.Remote.Endpoint,
			AccessKey: cfg.Remote.AccessKey,
			SecretKey: cfg.Remote.SecretKey,
			Bucket:    cfg.Remote.Bucket,
			UseSSL:    cfg.Remote.UseSSL,
		}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to configure object storage: %w", err)
		}
		if err := ms.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("object storage unavailable: %w", err)
		}
		store = ms
	}

	var runner backup.ServiceRunner
	if len(cfg.Services.Names) > 0 {
		runner = services.NewRunner(cfg.Services.Manager, a.logger)
	}

	var notifier backup.Notifier
	if cfg.NotifyEnabled() {
		notifier = notify.NewWebhook(cfg.Notify.WebhookURL, cfg.Notify.Timeout, a.logger)
	}

	return backup.New(backup.Config{
		Directory:        cfg.Backup.Directory,
		Prefix:           cfg.EffectivePrefix(),
		CompressionLevel: cfg.Backup.CompressionLevel,
		MaxAgeDays:       cfg.Retention.MaxAgeDays,
		RemotePrefix:     cfg.Remote.Prefix,
		Services:         cfg.Services.Names,
		AllowUnprotected: cfg.Restore.AllowUnprotected,
		NotifyOnSuccess:  cfg.Notify.OnSuccess,
		NotifyOnFailure:  cfg.Notify.OnFailure,
	}, db, store, runner, notifier, a.logger)
}

// PushMetrics ships the collected metrics to the Pushgateway when one is
// configured. Failures are logged, never returned: observability must not
// fail an otherwise successful run.
func (a *App) PushMetrics(ctx context.Context) {
	if !a.loaded || a.cfg.Metrics.PushgatewayURL == "" {
		return
	}
	if err := metrics.Push(ctx, a.cfg.Metrics.PushgatewayURL, a.cfg.Metrics.Job); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to push metrics")
	}
}

// resolveArtifact turns a bare artifact name into a path under the backup
// directory. Absolute or relative paths pass through untouched.
func resolveArtifact(cfg *config.Config, arg string) string {
	if filepath.IsAbs(arg) || strings.ContainsRune(arg, filepath.Separator) {
		return arg
	}
	return filepath.Join(cfg.Backup.Directory, arg)
}
