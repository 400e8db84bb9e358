// PgVault - PostgreSQL Backup and Recovery Engine
// Copyright 2026 PgVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pgvault/pgvault

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"pgvault.yaml",
	"pgvault.yml",
	"/etc/pgvault/pgvault.yaml",
	"/etc/pgvault/pgvault.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "PGVAULT_CONFIG"

// Load loads configuration with layered sources:
//  1. Defaults: built-in values from defaultConfig
//  2. Config file: optional YAML file, first found in DefaultConfigPaths
//     or the path in PGVAULT_CONFIG
//  3. Environment variables: PGVAULT_* overrides anything below
//
// The result is validated before being returned.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom is Load with an explicit config file path, as given by the
// --config flag. An empty path falls back to the normal search; a
// non-empty path that does not exist is an error rather than a silent
// skip.
func LoadFrom(path string) (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional unless explicitly given)
	if path == "" {
		path = findConfigFile()
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// Layer 3: environment variables (highest priority)
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Post-process slice fields from comma-separated strings
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file, env var override first.
// Returns the first path that exists, or empty string.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths lists config paths parsed as comma-separated slices
// when they arrive as strings from the environment.
var sliceConfigPaths = []string{
	"services.names",
}

// processSliceFields converts comma-separated string values to slices
// for known slice fields. Env vars come in as strings; the config
// expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML or defaults): nothing to do.
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config
// paths. Only explicitly mapped variables participate; everything else
// in the process environment is ignored by returning "".
//
// Examples:
//   - PGVAULT_DB_NAME -> database.name
//   - PGVAULT_BACKUP_DIRECTORY -> backup.directory
//   - PGVAULT_REMOTE_ENDPOINT -> remote.endpoint
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Database connection
		"pgvault_db_host":             "database.host",
		"pgvault_db_port":             "database.port",
		"pgvault_db_user":             "database.user",
		"pgvault_db_password":         "database.password",
		"pgvault_db_name":             "database.name",
		"pgvault_db_sslmode":          "database.sslmode",
		"pgvault_db_connect_retries":  "database.connect_retries",
		"pgvault_db_connect_interval": "database.connect_interval",

		// Backup production
		"pgvault_backup_directory":         "backup.directory",
		"pgvault_backup_prefix":            "backup.prefix",
		"pgvault_backup_wal_directory":     "backup.wal_directory",
		"pgvault_backup_compression_level": "backup.compression_level",

		// Retention
		"pgvault_retention_max_age_days": "retention.max_age_days",

		// Offsite replication
		"pgvault_remote_endpoint":   "remote.endpoint",
		"pgvault_remote_access_key": "remote.access_key",
		"pgvault_remote_secret_key": "remote.secret_key",
		"pgvault_remote_bucket":     "remote.bucket",
		"pgvault_remote_prefix":     "remote.prefix",
		"pgvault_remote_use_ssl":    "remote.use_ssl",

		// Dependent services
		"pgvault_services_names":   "services.names",
		"pgvault_services_manager": "services.manager",

		// Restore safety
		"pgvault_restore_allow_unprotected": "restore.allow_unprotected",

		// Notifications
		"pgvault_notify_webhook_url": "notify.webhook_url",
		"pgvault_notify_on_success":  "notify.on_success",
		"pgvault_notify_on_failure":  "notify.on_failure",
		"pgvault_notify_timeout":     "notify.timeout",

		// Metrics
		"pgvault_metrics_pushgateway_url": "metrics.pushgateway_url",
		"pgvault_metrics_job":             "metrics.job",

		// Logging
		"pgvault_log_level":  "logging.level",
		"pgvault_log_format": "logging.format",
		"pgvault_log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// Unmapped variables are skipped entirely.
	return ""
}
