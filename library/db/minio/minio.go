// Package minio builds S3-compatible clients.
package minio

import (
	"context"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Laisky/laisky-chart-files/library/log"
)

// DialInfo describes an S3 endpoint and the bucket to use on it.
type DialInfo struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Secure    bool
}

// NewClient connects to the endpoint and creates the bucket when it is missing.
func NewClient(ctx context.Context, dialInfo DialInfo) (*minio.Client, error) {
	if dialInfo.Endpoint == "" {
		return nil, errors.New("minio endpoint is empty")
	}
	if dialInfo.Bucket == "" {
		return nil, errors.New("minio bucket is empty")
	}

	cli, err := minio.New(dialInfo.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(dialInfo.AccessKey, dialInfo.SecretKey, ""),
		Secure: dialInfo.Secure,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "new minio client for %s", dialInfo.Endpoint)
	}

	exists, err := cli.BucketExists(ctx, dialInfo.Bucket)
	if err != nil {
		return nil, errors.Wrapf(err, "check bucket %s", dialInfo.Bucket)
	}
	if !exists {
		if err = cli.MakeBucket(ctx, dialInfo.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, errors.Wrapf(err, "make bucket %s", dialInfo.Bucket)
		}
		log.Logger.Info("created minio bucket", zap.String("bucket", dialInfo.Bucket))
	}

	return cli, nil
}
