package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Storage holds table data and metadata files under slash-separated paths.
type Storage interface {
	Write(ctx context.Context, filepath string, data io.Reader) error
	Read(ctx context.Context, filepath string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// ErrNotExist is wrapped by Read when the file does not exist.
var ErrNotExist = errors.New("file does not exist")

// Open returns the storage backend named by kind ("local" or "s3").
func Open(ctx context.Context, kind, basePath, bucket, prefix, region string) (Storage, error) {
	switch kind {
	case "", "local":
		return NewLocalStorage(basePath), nil
	case "s3":
		opts := []func(*config.LoadOptions) error{}
		if region != "" {
			opts = append(opts, config.WithRegion(region))
		}
		awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("loading aws config: %w", err)
		}
		return NewS3Storage(s3.NewFromConfig(awsCfg), bucket, prefix), nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", kind)
	}
}
