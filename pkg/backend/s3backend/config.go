// Package s3backend implements an alternate host.Backend (C7) that
// resolves semihosting file operations against objects in an S3 bucket
// instead of a local sandbox root, demonstrating that internal/host is
// backend-agnostic: swapping internal/sandbox.Backend for this one
// requires no change to C1-C4.
package s3backend

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ClientConfig mirrors the teacher's NewS3ClientFromConfig helper: the
// handful of fields a YAML config file needs to stand up an S3 client,
// including S3-compatible endpoints (MinIO, localstack) via a non-empty
// Endpoint and ForcePathStyle.
type ClientConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	ForcePathStyle  bool
}

// NewClient builds an s3.Client from cfg.
func NewClient(ctx context.Context, cfg ClientConfig) (*s3.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = &cfg.Endpoint
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})
	return client, nil
}
