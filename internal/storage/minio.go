// PgVault - PostgreSQL Backup and Recovery Engine
// Copyright 2026 PgVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pgvault/pgvault

// Package storage provides the S3-compatible object store backing remote
// artifact replication. Any endpoint speaking the S3 API works: MinIO, AWS
// S3, Ceph RGW, Backblaze B2.
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"

	"github.com/pgvault/pgvault/internal/backup"
)

// Config carries the object storage connection settings.
type Config struct {
	// Endpoint is host:port, without a URL scheme; UseSSL selects TLS
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinioStore implements backup.ObjectStore against an S3-compatible
// endpoint.
type MinioStore struct {
	client *minio.Client
	bucket string
	logger zerolog.Logger
}

var _ backup.ObjectStore = (*MinioStore)(nil)

// NewMinioStore builds the client. No network traffic happens here; call
// EnsureBucket to validate the connection.
func NewMinioStore(cfg Config, logger zerolog.Logger) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object storage client: %w", err)
	}

	return &MinioStore{
		client: client,
		bucket: cfg.Bucket,
		logger: logger.With().Str("component", "storage").Str("bucket", cfg.Bucket).Logger(),
	}, nil
}

// EnsureBucket verifies the configured bucket is reachable, creating it
// when absent.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
		}
		s.logger.Info().Msg("Created object storage bucket")
	}
	return nil
}

// Put uploads the file at localPath under the given object key.
func (s *MinioStore) Put(ctx context.Context, localPath, key string) error {
	info, err := s.client.FPutObject(ctx, s.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: contentTypeFor(key),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}

	s.logger.Debug().Str("key", key).Int64("size_bytes", info.Size).Msg("Object uploaded")
	return nil
}

// List returns objects under the given key prefix.
func (s *MinioStore) List(ctx context.Context, prefix string) ([]backup.RemoteObject, error) {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	var objects []backup.RemoteObject
	for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list objects under %s: %w", prefix, object.Err)
		}
		objects = append(objects, backup.RemoteObject{
			Key:          object.Key,
			SizeBytes:    object.Size,
			LastModified: object.LastModified,
		})
	}
	return objects, nil
}

// Remove deletes the object with the given key. Removing an absent key is
// not an error, matching S3 semantics.
func (s *MinioStore) Remove(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}

	s.logger.Debug().Str("key", key).Msg("Object removed")
	return nil
}

// URI returns the canonical s3:// URI for an object key.
func (s *MinioStore) URI(key string) string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, key)
}

func contentTypeFor(key string) string {
	if strings.HasSuffix(key, ".sha256") {
		return "text/plain"
	}
	return "application/gzip"
}
