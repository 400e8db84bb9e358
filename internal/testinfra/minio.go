// PgVault - PostgreSQL Backup and Recovery Engine
// Copyright 2026 PgVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pgvault/pgvault

//go:build integration

package testinfra

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pgvault/pgvault/internal/storage"
)

const (
	// DefaultMinioImage is the official MinIO server image
	DefaultMinioImage = "minio/minio:latest"

	// DefaultMinioPort is the S3 API port
	DefaultMinioPort = "9000"

	testAccessKey = "pgvault"
	testSecretKey = "pgvault-test-secret"
)

// MinioContainer represents a running MinIO server for testing.
type MinioContainer struct {
	testcontainers.Container
	Endpoint  string
	AccessKey string
	SecretKey string
}

// MinioOption configures the MinIO container.
type MinioOption func(*minioConfig)

type minioConfig struct {
	image        string
	startTimeout time.Duration
}

// WithMinioImage sets a custom MinIO Docker image.
func WithMinioImage(image string) MinioOption {
	return func(c *minioConfig) {
		c.image = image
	}
}

// WithMinioStartTimeout sets the startup wait timeout.
func WithMinioStartTimeout(timeout time.Duration) MinioOption {
	return func(c *minioConfig) {
		c.startTimeout = timeout
	}
}

// NewMinioContainer creates and starts a MinIO container serving the S3 API.
func NewMinioContainer(ctx context.Context, opts ...MinioOption) (*MinioContainer, error) {
	cfg := &minioConfig{
		image:        DefaultMinioImage,
		startTimeout: 60 * time.Second,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	req := testcontainers.ContainerRequest{
		Image:        cfg.image,
		ExposedPorts: []string{DefaultMinioPort + "/tcp"},
		Cmd:          []string{"server", "/data"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     testAccessKey,
			"MINIO_ROOT_PASSWORD": testSecretKey,
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort(DefaultMinioPort+"/tcp"),
			wait.ForHTTP("/minio/health/live").WithPort(DefaultMinioPort+"/tcp"),
		).WithStartupTimeout(cfg.startTimeout),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, DefaultMinioPort)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get mapped port: %w", err)
	}

	return &MinioContainer{
		Container: container,
		Endpoint:  fmt.Sprintf("%s:%s", host, port.Port()),
		AccessKey: testAccessKey,
		SecretKey: testSecretKey,
	}, nil
}

// StorageConfig returns an object storage configuration pointing at the
// container.
func (c *MinioContainer) StorageConfig(bucket string) storage.Config {
	return storage.Config{
		Endpoint:  c.Endpoint,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		Bucket:    bucket,
		UseSSL:    false,
	}
}
