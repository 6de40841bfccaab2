package repository

import (
	"bytes"
	"context"
	"fmt"

	"aerorelay-service/internal/domain/entity"
	"aerorelay-service/internal/domain/repository"
	"aerorelay-service/pkg/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// S3ArchiveConfig names the bucket raw payloads are written to.
// Endpoint and static keys are only needed for S3-compatible stores such as MinIO.
type S3ArchiveConfig struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3RawArchive keeps upstream flight status payloads in S3
type S3RawArchive struct {
	client objectPutter
	bucket string
	logger logger.Logger
}

// NewS3RawArchive creates a new S3 backed raw payload archive
func NewS3RawArchive(ctx context.Context, cfg S3ArchiveConfig, logger logger.Logger) (repository.RawArchive, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3RawArchive(client, cfg.Bucket, logger), nil
}

func newS3RawArchive(client objectPutter, bucket string, logger logger.Logger) *S3RawArchive {
	return &S3RawArchive{
		client: client,
		bucket: bucket,
		logger: logger,
	}
}

// Store writes the payload body and returns its object key
func (a *S3RawArchive) Store(ctx context.Context, journeyID string, payload *entity.UpstreamPayload) (string, error) {
	key := archiveKey(journeyID, payload)

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload.Body),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"variant":    payload.Variant,
			"fetched-at": payload.FetchedAt.UTC().Format("2006-01-02T15:04:05Z"),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to archive payload: %w", err)
	}

	a.logger.Debug("Archived upstream payload", "bucket", a.bucket, "key", key)
	return key, nil
}

func archiveKey(journeyID string, payload *entity.UpstreamPayload) string {
	d := payload.Departure.UTC()
	return fmt.Sprintf("raw/%s%s/%04d-%02d-%02d/%s-%s.json",
		payload.Carrier, payload.FlightNumber,
		d.Year(), int(d.Month()), d.Day(),
		journeyID, uuid.NewString())
}
