package export

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ArtifactConfig configures the export artifact bucket.
type ArtifactConfig struct {
	Bucket       string
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// ArtifactStore uploads rendered report exports to S3-compatible storage.
type ArtifactStore struct {
	client *s3.Client
	bucket string
}

// NewArtifactStore creates an artifact store. Static credentials are used
// when provided (MinIO or explicit keys), the default credential chain
// otherwise.
func NewArtifactStore(ctx context.Context, cfg ArtifactConfig) (*ArtifactStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("artifact bucket is required")
	}

	var awsCfg aws.Config
	var err error
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKey, cfg.SecretKey, "")),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	}
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.UsePathStyle {
			o.UsePathStyle = true
		}
	})
	return &ArtifactStore{client: client, bucket: cfg.Bucket}, nil
}

// ArtifactKey is the object key for one exported report.
func ArtifactKey(reportID string, format Format, at time.Time) string {
	return fmt.Sprintf("reports/%s/%s.%s", reportID, at.UTC().Format("20060102T150405Z"), format.Extension())
}

// Upload stores a rendered export and returns its object key.
func (s *ArtifactStore) Upload(ctx context.Context, reportID string, format Format, data []byte) (string, error) {
	key := ArtifactKey(reportID, format, time.Now())
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(format.ContentType()),
	})
	if err != nil {
		return "", fmt.Errorf("upload artifact: %w", err)
	}
	return key, nil
}
