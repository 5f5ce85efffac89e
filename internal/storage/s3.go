package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/xerrors"
)

type s3Storage struct {
	client *s3.Client
	config S3Config
}

type S3Config struct {
	Bucket string
	Prefix string
	// EndpointURL points the client at an S3 compatible store such as R2 or MinIO.
	EndpointURL string
	// PublicURL is the public base the bucket is served from. Without it
	// Put returns an s3:// URL.
	PublicURL string
}

func NewS3Storage(ctx context.Context, s S3Config) (Storage, error) {
	if s.Bucket == "" {
		return nil, xerrors.New("bucket is required")
	}

	c, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, xerrors.Errorf("failed to load AWS config: %w", err)
	}
	s3Client := s3.NewFromConfig(c, func(o *s3.Options) {
		if s.EndpointURL != "" {
			o.BaseEndpoint = aws.String(s.EndpointURL)
		}
		o.UsePathStyle = true
	})

	return &s3Storage{
		client: s3Client,
		config: s,
	}, nil
}

func (s *s3Storage) Put(ctx context.Context, key string, data []byte) (string, error) {
	objectKey := path.Join(s.config.Prefix, key)

	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.config.Bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(http.DetectContentType(data)),
	}); err != nil {
		return "", xerrors.Errorf("failed to upload to S3: %w", err)
	}

	if s.config.PublicURL != "" {
		return fmt.Sprintf("%s/%s", strings.TrimSuffix(s.config.PublicURL, "/"), objectKey), nil
	}
	return fmt.Sprintf("s3://%s/%s", s.config.Bucket, objectKey), nil
}
