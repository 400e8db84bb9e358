// PgVault - PostgreSQL Backup and Recovery Engine
// Copyright 2026 PgVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pgvault/pgvault

// Package config loads and validates pgvault configuration.
//
// Configuration is layered from three sources, later sources overriding
// earlier ones:
//
//  1. Built-in defaults
//  2. YAML config file (pgvault.yaml, /etc/pgvault/pgvault.yaml, or the
//     path given via PGVAULT_CONFIG / --config)
//  3. PGVAULT_* environment variables
//
// The loaded Config is constructed once in main and passed to components
// explicitly; this package holds no global state beyond the validator
// instance, which is stateless.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration for all pgvault commands.
type Config struct {
	Database  DatabaseConfig  `koanf:"database"`
	Backup    BackupConfig    `koanf:"backup"`
	Retention RetentionConfig `koanf:"retention"`
	Remote    RemoteConfig    `koanf:"remote"`
	Services  ServicesConfig  `koanf:"services"`
	Restore   RestoreConfig   `koanf:"restore"`
	Notify    NotifyConfig    `koanf:"notify"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// DatabaseConfig identifies the PostgreSQL database under protection.
// One pgvault invocation protects exactly one database.
type DatabaseConfig struct {
	// Host of the PostgreSQL server (PGVAULT_DB_HOST).
	Host string `koanf:"host" validate:"required"`

	// Port of the PostgreSQL server (PGVAULT_DB_PORT).
	Port int `koanf:"port" validate:"min=1,max=65535"`

	// User for connections and pg_dump/psql invocations (PGVAULT_DB_USER).
	User string `koanf:"user" validate:"required"`

	// Password for the user (PGVAULT_DB_PASSWORD). Passed to child
	// processes via PGPASSWORD, never on the command line.
	Password string `koanf:"password"`

	// Name of the database to back up (PGVAULT_DB_NAME). Required.
	Name string `koanf:"name"`

	// SSLMode for connections (PGVAULT_DB_SSLMODE).
	SSLMode string `koanf:"sslmode" validate:"oneof=disable allow prefer require verify-ca verify-full"`

	// ConnectRetries bounds the connectivity precheck before an
	// operation is abandoned (PGVAULT_DB_CONNECT_RETRIES).
	ConnectRetries int `koanf:"connect_retries" validate:"min=1,max=60"`

	// ConnectInterval is the pause between connectivity attempts
	// (PGVAULT_DB_CONNECT_INTERVAL).
	ConnectInterval time.Duration `koanf:"connect_interval"`
}

// ConnString builds a libpq keyword/value connection string for the
// configured database. The password is included only when set; callers
// must pass the result through logging.SanitizeConnString before
// logging it.
func (d DatabaseConfig) ConnString() string {
	parts := []string{
		fmt.Sprintf("host=%s", d.Host),
		fmt.Sprintf("port=%d", d.Port),
		fmt.Sprintf("user=%s", d.User),
		fmt.Sprintf("dbname=%s", d.Name),
		fmt.Sprintf("sslmode=%s", d.SSLMode),
	}
	if d.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", d.Password))
	}
	return strings.Join(parts, " ")
}

// BackupConfig controls where and how backup artifacts are produced.
type BackupConfig struct {
	// Directory receives all backup artifacts and the manifest
	// (PGVAULT_BACKUP_DIRECTORY).
	Directory string `koanf:"directory" validate:"required"`

	// Prefix names artifacts; empty means use the database name
	// (PGVAULT_BACKUP_PREFIX).
	Prefix string `koanf:"prefix"`

	// WALDirectory is the PostgreSQL WAL directory (pg_wal) to archive
	// segments from. Empty disables incremental archiving
	// (PGVAULT_BACKUP_WAL_DIRECTORY).
	WALDirectory string `koanf:"wal_directory"`

	// CompressionLevel is the gzip level for snapshots and WAL bundles,
	// 0 (store) through 9 (best) (PGVAULT_BACKUP_COMPRESSION_LEVEL).
	CompressionLevel int `koanf:"compression_level" validate:"min=0,max=9"`
}

// RetentionConfig controls local and remote artifact expiry.
type RetentionConfig struct {
	// MaxAgeDays is the retention window. Artifacts strictly older than
	// now minus this many days become deletion candidates. Zero
	// disables retention entirely (PGVAULT_RETENTION_MAX_AGE_DAYS).
	MaxAgeDays int `koanf:"max_age_days" validate:"min=0,max=36500"`
}

// RemoteConfig describes the S3-compatible replication target. An empty
// Endpoint disables replication; local operation is then fully
// self-contained.
type RemoteConfig struct {
	// Endpoint of the S3-compatible service, host:port without scheme
	// (PGVAULT_REMOTE_ENDPOINT).
	Endpoint string `koanf:"endpoint"`

	// AccessKey for the service (PGVAULT_REMOTE_ACCESS_KEY).
	AccessKey string `koanf:"access_key"`

	// SecretKey for the service (PGVAULT_REMOTE_SECRET_KEY).
	SecretKey string `koanf:"secret_key"`

	// Bucket receiving replicated artifacts (PGVAULT_REMOTE_BUCKET).
	Bucket string `koanf:"bucket"`

	// Prefix under the bucket for this installation's objects
	// (PGVAULT_REMOTE_PREFIX).
	Prefix string `koanf:"prefix"`

	// UseSSL toggles TLS for the endpoint (PGVAULT_REMOTE_USE_SSL).
	UseSSL bool `koanf:"use_ssl"`
}

// ServicesConfig lists dependent services stopped around a restore.
type ServicesConfig struct {
	// Names of services to stop before restoring and start after,
	// in stop order (PGVAULT_SERVICES_NAMES, comma-separated).
	Names []string `koanf:"names"`

	// Manager is the init system command used to control services
	// (PGVAULT_SERVICES_MANAGER).
	Manager string `koanf:"manager" validate:"oneof=systemctl service"`
}

// RestoreConfig controls restore safety behavior.
type RestoreConfig struct {
	// AllowUnprotected permits a restore to proceed when the
	// pre-restore safety backup cannot be produced. Off by default;
	// without it a failed safety backup halts the restore
	// (PGVAULT_RESTORE_ALLOW_UNPROTECTED).
	AllowUnprotected bool `koanf:"allow_unprotected"`
}

// NotifyConfig controls operator notifications. An empty WebhookURL
// disables them.
type NotifyConfig struct {
	// WebhookURL receives JSON notifications via POST
	// (PGVAULT_NOTIFY_WEBHOOK_URL).
	WebhookURL string `koanf:"webhook_url"`

	// OnSuccess sends a notification after successful operations
	// (PGVAULT_NOTIFY_ON_SUCCESS).
	OnSuccess bool `koanf:"on_success"`

	// OnFailure sends a notification after failed operations
	// (PGVAULT_NOTIFY_ON_FAILURE).
	OnFailure bool `koanf:"on_failure"`

	// Timeout bounds each webhook delivery (PGVAULT_NOTIFY_TIMEOUT).
	Timeout time.Duration `koanf:"timeout"`
}

// MetricsConfig controls metric pushes after each command. pgvault is a
// short-lived process, so metrics go to a Pushgateway rather than being
// scraped. An empty PushgatewayURL disables pushes.
type MetricsConfig struct {
	// PushgatewayURL is the Prometheus Pushgateway base URL
	// (PGVAULT_METRICS_PUSHGATEWAY_URL).
	PushgatewayURL string `koanf:"pushgateway_url"`

	// Job is the Pushgateway job label (PGVAULT_METRICS_JOB).
	Job string `koanf:"job"`
}

// LoggingConfig mirrors logging.Config for the koanf layer.
type LoggingConfig struct {
	// Level: trace, debug, info, warn, error (PGVAULT_LOG_LEVEL).
	Level string `koanf:"level"`

	// Format: "console" or "json" (PGVAULT_LOG_FORMAT).
	Format string `koanf:"format" validate:"oneof=json console"`

	// Caller adds file:line to log events (PGVAULT_LOG_CALLER).
	Caller bool `koanf:"caller"`
}

// defaultConfig returns the built-in defaults. These load first and are
// overridden by the config file and environment.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "postgres",
			Password:        "",
			Name:            "",
			SSLMode:         "disable",
			ConnectRetries:  5,
			ConnectInterval: 3 * time.Second,
		},
		Backup: BackupConfig{
			Directory:        "/var/backups/pgvault",
			Prefix:           "", // falls back to database.name
			WALDirectory:     "",
			CompressionLevel: 6,
		},
		Retention: RetentionConfig{
			MaxAgeDays: 30,
		},
		Remote: RemoteConfig{
			Endpoint:  "",
			AccessKey: "",
			SecretKey: "",
			Bucket:    "",
			Prefix:    "pgvault",
			UseSSL:    true,
		},
		Services: ServicesConfig{
			Names:   []string{},
			Manager: "systemctl",
		},
		Restore: RestoreConfig{
			AllowUnprotected: false,
		},
		Notify: NotifyConfig{
			WebhookURL: "",
			OnSuccess:  true,
			OnFailure:  true,
			Timeout:    10 * time.Second,
		},
		Metrics: MetricsConfig{
			PushgatewayURL: "",
			Job:            "pgvault",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Caller: false,
		},
	}
}

// EffectivePrefix returns the artifact name prefix: backup.prefix when
// set, otherwise the database name.
func (c *Config) EffectivePrefix() string {
	if c.Backup.Prefix != "" {
		return c.Backup.Prefix
	}
	return c.Database.Name
}

// RemoteEnabled reports whether offsite replication is configured.
func (c *Config) RemoteEnabled() bool {
	return c.Remote.Endpoint != ""
}

// WALEnabled reports whether incremental WAL archiving is configured.
func (c *Config) WALEnabled() bool {
	return c.Backup.WALDirectory != ""
}

// NotifyEnabled reports whether webhook notifications are configured.
func (c *Config) NotifyEnabled() bool {
	return c.Notify.WebhookURL != ""
}

// RetentionEnabled reports whether age-based expiry is configured.
func (c *Config) RetentionEnabled() bool {
	return c.Retention.MaxAgeDays > 0
}
