// Package storage archives downloaded attachments to S3-compatible object
// storage (Tigris, MinIO, R2). The archive is optional: with no bucket
// configured every call is a no-op and attachments stay on local disk only.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "github.com/nineylabs/placefeed/internal/config"
)

// Archive uploads attachment files keyed by their review fingerprint bucket.
type Archive struct {
	client  *s3.Client
	bucket  string
	enabled bool
	logger  *slog.Logger
}

func NewArchive(cfg *appconfig.Config, logger *slog.Logger) (*Archive, error) {
	logger = logger.With("component", "storage")
	if !cfg.StorageEnabled {
		logger.Info("attachment archive disabled, no bucket configured")
		return &Archive{logger: logger}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.StorageRegion),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.StorageAccessKey,
			cfg.StorageSecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.StorageEndpoint)
		o.UsePathStyle = true // S3-compatible services need path-style addressing
	})

	logger.Info("attachment archive initialized", "bucket", cfg.StorageBucket, "endpoint", cfg.StorageEndpoint)
	return &Archive{
		client:  client,
		bucket:  cfg.StorageBucket,
		enabled: true,
		logger:  logger,
	}, nil
}

func (a *Archive) IsEnabled() bool { return a.enabled }

// ArchiveFiles uploads each local file under bucketKey/. Failures are logged
// and skipped; archival is best effort and never fails the crawl.
func (a *Archive) ArchiveFiles(ctx context.Context, bucketKey string, localPaths []string) {
	if !a.enabled {
		return
	}
	for _, local := range localPaths {
		if err := a.put(ctx, bucketKey, local); err != nil {
			a.logger.Warn("archiving attachment failed", "path", local, "error", err)
		}
	}
}

func (a *Archive) put(ctx context.Context, bucketKey, local string) error {
	f, err := os.Open(local)
	if err != nil {
		return err
	}
	defer f.Close()

	key := path.Join(bucketKey, filepath.Base(local))
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentTypeFor(local)),
	})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", key, err)
	}
	a.logger.Debug("attachment archived", "key", key)
	return nil
}

func contentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	}
	return "application/octet-stream"
}
