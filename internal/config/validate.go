// PgVault - PostgreSQL Backup and Recovery Engine
// Copyright 2026 PgVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pgvault/pgvault

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// singleton validator instance; stateless and safe for concurrent use.
var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks that required configuration is present and valid.
// Field-level constraints live in `validate` struct tags; cross-field
// rules that tags cannot express are checked per section below.
func (c *Config) Validate() error {
	if err := getValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, translateFieldError(fe))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateRemote(); err != nil {
		return err
	}
	return c.validateNotify()
}

// validateDatabase checks connection settings tags cannot express.
func (c *Config) validateDatabase() error {
	if c.Database.Name == "" {
		return fmt.Errorf("database.name (PGVAULT_DB_NAME) is required")
	}
	if c.Database.ConnectInterval < 100*time.Millisecond || c.Database.ConnectInterval > 10*time.Minute {
		return fmt.Errorf("database.connect_interval must be between 100ms and 10m, got %s", c.Database.ConnectInterval)
	}
	return nil
}

// validateRemote requires complete credentials once an endpoint is set.
// A partially configured remote is a misconfiguration, not a disabled
// remote.
func (c *Config) validateRemote() error {
	if !c.RemoteEnabled() {
		return nil
	}

	if c.Remote.AccessKey == "" {
		return fmt.Errorf("remote.access_key (PGVAULT_REMOTE_ACCESS_KEY) is required when remote.endpoint is set")
	}
	if c.Remote.SecretKey == "" {
		return fmt.Errorf("remote.secret_key (PGVAULT_REMOTE_SECRET_KEY) is required when remote.endpoint is set")
	}
	if c.Remote.Bucket == "" {
		return fmt.Errorf("remote.bucket (PGVAULT_REMOTE_BUCKET) is required when remote.endpoint is set")
	}
	if strings.Contains(c.Remote.Endpoint, "://") {
		return fmt.Errorf("remote.endpoint should be host:port without a scheme, got %q; use remote.use_ssl to select TLS", c.Remote.Endpoint)
	}
	return nil
}

// validateNotify checks the webhook URL when notifications are enabled.
func (c *Config) validateNotify() error {
	if !c.NotifyEnabled() {
		return nil
	}
	return validateHTTPURL(c.Notify.WebhookURL, "notify.webhook_url")
}

// validateHTTPURL validates a URL for HTTP/HTTPS delivery: scheme and
// host must be present. Paths are allowed; webhooks commonly carry
// routing segments.
func validateHTTPURL(rawURL, fieldName string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %s", fieldName, parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}

	return nil
}

// translateError templates, keyed by validation tag.
var errorMessageTemplates = map[string]string{
	"required": "%s is required",
}

var errorMessageWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"min":   "%s must be at least %s",
	"max":   "%s must be at most %s",
}

// translateFieldError converts a validator.FieldError to a readable
// message using the dotted field path without the root struct name.
func translateFieldError(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	tag := fe.Tag()
	param := fe.Param()

	if template, ok := errorMessageTemplates[tag]; ok {
		return fmt.Sprintf(template, field)
	}
	if template, ok := errorMessageWithParam[tag]; ok {
		return fmt.Sprintf(template, field, param)
	}
	return fmt.Sprintf("%s failed %s validation", field, tag)
}
