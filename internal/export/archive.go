package export

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Archive stores rendered exports in an S3 compatible bucket.
type Archive struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

func NewArchive(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool, expiry time.Duration) (*Archive, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	return &Archive{client: client, bucket: bucket, expiry: expiry}, nil
}

// Store uploads the export and returns a presigned download URL.
func (a *Archive) Store(ctx context.Context, name string, result *Result) (string, error) {
	_, err := a.client.PutObject(ctx, a.bucket, name, bytes.NewReader(result.Data), int64(len(result.Data)), minio.PutObjectOptions{
		ContentType: result.MimeType,
	})
	if err != nil {
		return "", fmt.Errorf("upload export: %w", err)
	}
	params := url.Values{}
	params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	signed, err := a.client.PresignedGetObject(ctx, a.bucket, name, a.expiry, params)
	if err != nil {
		return "", fmt.Errorf("presign export: %w", err)
	}
	return signed.String(), nil
}
