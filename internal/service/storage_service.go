package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	appconfig "github.com/jmylchreest/autoreach-api/internal/config"
	"github.com/jmylchreest/autoreach-api/internal/models"
)

// Archive key prefixes.
const (
	AnalysisArchivePrefix = "analyses/"
	AEOArchivePrefix      = "aeo/"
)

// ErrStorageDisabled is returned by reads when no bucket is configured.
var ErrStorageDisabled = errors.New("storage is not enabled")

// StorageService archives analysis results and AEO reports to S3-compatible storage.
type StorageService struct {
	client  *s3.Client
	bucket  string
	enabled bool
	logger  *slog.Logger
}

// NewStorageService creates a new storage service.
func NewStorageService(cfg *appconfig.Config, logger *slog.Logger) (*StorageService, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "storage")

	if !cfg.StorageEnabled {
		logger.Info("storage service disabled - no bucket configured")
		return &StorageService{enabled: false, logger: logger}, nil
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(cfg.StorageRegion),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.StorageAccessKey,
			cfg.StorageSecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.StorageEndpoint)
		o.UsePathStyle = true
		// Tigris and MinIO reject the streaming checksum trailers sent by default.
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	logger.Info("storage service initialized",
		"bucket", cfg.StorageBucket,
		"endpoint", cfg.StorageEndpoint,
	)

	return &StorageService{
		client:  client,
		bucket:  cfg.StorageBucket,
		enabled: true,
		logger:  logger,
	}, nil
}

// IsEnabled returns whether storage is configured and available.
func (s *StorageService) IsEnabled() bool {
	return s.enabled
}

// ArchiveAnalysis writes a finished analysis result to analyses/{id}.json.
// It returns an empty key when storage is disabled.
func (s *StorageService) ArchiveAnalysis(ctx context.Context, id string, result *models.AnalysisResult) (string, error) {
	return s.putJSON(ctx, AnalysisArchivePrefix+id+".json", result)
}

// ArchiveAEOReport writes a report to aeo/{id}.json.
// It returns an empty key when storage is disabled.
func (s *StorageService) ArchiveAEOReport(ctx context.Context, report *models.AEOReport) (string, error) {
	return s.putJSON(ctx, AEOArchivePrefix+report.ID+".json", report)
}

func (s *StorageService) putJSON(ctx context.Context, key string, v any) (string, error) {
	if !s.enabled {
		return "", nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal archive %s: %w", key, err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to store archive %s: %w", key, err)
	}

	s.logger.Info("stored archive", "key", key, "size_bytes", len(data))
	return key, nil
}

// GetArchived returns the raw JSON stored under key.
func (s *StorageService) GetArchived(ctx context.Context, key string) ([]byte, error) {
	if !s.enabled {
		return nil, ErrStorageDisabled
	}

	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get archive %s: %w", key, err)
	}
	defer func() { _ = output.Body.Close() }()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive %s: %w", key, err)
	}
	return data, nil
}

// GetIfChanged reads key unless its ETag still equals etag. It returns the
// body and new ETag, or changed=false when the object is unmodified. A
// missing object yields an error wrapping fs.ErrNotExist.
func (s *StorageService) GetIfChanged(ctx context.Context, key, etag string) ([]byte, string, bool, error) {
	if !s.enabled {
		return nil, "", false, ErrStorageDisabled
	}

	input := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if etag != "" {
		input.IfNoneMatch = aws.String(etag)
	}

	output, err := s.client.GetObject(ctx, input)
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, "", false, fmt.Errorf("%w: %s", fs.ErrNotExist, key)
		}
		var status interface{ HTTPStatusCode() int }
		if errors.As(err, &status) {
			switch status.HTTPStatusCode() {
			case http.StatusNotModified:
				return nil, etag, false, nil
			case http.StatusNotFound:
				return nil, "", false, fmt.Errorf("%w: %s", fs.ErrNotExist, key)
			}
		}
		return nil, "", false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	defer func() { _ = output.Body.Close() }()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, aws.ToString(output.ETag), true, nil
}

// PresignedURL returns a time-limited download URL for key.
func (s *StorageService) PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if !s.enabled {
		return "", ErrStorageDisabled
	}
	if expiry == 0 {
		expiry = time.Hour
	}

	presignClient := s3.NewPresignClient(s.client)
	req, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return req.URL, nil
}

// DeleteOldArchives deletes analysis and AEO archives last modified before
// now minus maxAge. It returns the number of deleted objects.
func (s *StorageService) DeleteOldArchives(ctx context.Context, maxAge time.Duration) (int, error) {
	if !s.enabled {
		return 0, nil
	}

	cutoff := time.Now().Add(-maxAge)
	deleted := 0

	for _, prefix := range []string{AnalysisArchivePrefix, AEOArchivePrefix} {
		paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
			Bucket: aws.String(s.bucket),
			Prefix: aws.String(prefix),
		})

		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return deleted, fmt.Errorf("failed to list objects: %w", err)
			}

			for _, obj := range page.Contents {
				if obj.LastModified == nil || !obj.LastModified.Before(cutoff) {
					continue
				}
				_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
					Bucket: aws.String(s.bucket),
					Key:    obj.Key,
				})
				if err != nil {
					s.logger.Warn("failed to delete old archive", "key", aws.ToString(obj.Key), "error", err)
					continue
				}
				deleted++
			}
		}
	}

	s.logger.Info("archive cleanup completed", "deleted_count", deleted, "max_age", maxAge.String())
	return deleted, nil
}
