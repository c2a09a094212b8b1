package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Storage keeps files as objects under an optional key prefix.
type S3Storage struct {
	client *s3.Client
	bucket string
	prefix string
}

func NewS3Storage(client *s3.Client, bucket, prefix string) *S3Storage {
	return &S3Storage{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

func (s *S3Storage) key(p string) string {
	return path.Join(s.prefix, p)
}

func (s *S3Storage) Write(ctx context.Context, p string, data io.Reader) error {
	// PutObject needs a seekable body to sign the payload.
	body, ok := data.(io.ReadSeeker)
	if !ok {
		staged, err := io.ReadAll(data)
		if err != nil {
			return fmt.Errorf("staging %s: %w", p, err)
		}
		body = bytes.NewReader(staged)
	}

	key := s.key(p)
	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	}); err != nil {
		return fmt.Errorf("putting s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

func (s *S3Storage) Read(ctx context.Context, p string) (io.ReadCloser, error) {
	key := s.key(p)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var missing *s3types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, fmt.Errorf("s3://%s/%s: %w", s.bucket, key, ErrNotExist)
		}
		return nil, fmt.Errorf("getting s3://%s/%s: %w", s.bucket, key, err)
	}
	return out.Body, nil
}

// List returns the paths below prefix, relative to the storage root.
func (s *S3Storage) List(ctx context.Context, prefix string) ([]string, error) {
	root := ""
	if s.prefix != "" {
		root = s.prefix + "/"
	}

	listPrefix := s.key(prefix)
	if listPrefix != "" {
		listPrefix += "/"
	}

	var files []string
	pages := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(listPrefix),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing s3://%s/%s: %w", s.bucket, s.key(prefix), err)
		}
		for _, obj := range page.Contents {
			files = append(files, strings.TrimPrefix(aws.ToString(obj.Key), root))
		}
	}
	sort.Strings(files)
	return files, nil
}
