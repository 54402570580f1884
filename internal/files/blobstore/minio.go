package blobstore

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/Laisky/errors/v2"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
)

const minioNoSuchKey = "NoSuchKey"

// Minio keeps blobs as objects in an S3-compatible bucket.
// Refs are random UUIDs; the object key is prefix/ref.
type Minio struct {
	cli    *minio.Client
	bucket string
	prefix string
}

// NewMinio wraps an already connected client.
func NewMinio(cli *minio.Client, bucket, prefix string) *Minio {
	return &Minio{
		cli:    cli,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

func (s *Minio) objectKey(ref string) string {
	if s.prefix == "" {
		return ref
	}

	return path.Join(s.prefix, ref)
}

// Put uploads r under a new ref.
func (s *Minio) Put(ctx context.Context, r io.Reader, opt PutOption) (string, error) {
	ref := uuid.NewString()
	size := opt.Size
	if size <= 0 {
		size = -1
	}

	_, err := s.cli.PutObject(ctx, s.bucket, s.objectKey(ref), r, size,
		minio.PutObjectOptions{
			ContentType: opt.ContentType,
			UserMetadata: map[string]string{
				"filename": opt.Filename,
			},
		})
	if err != nil {
		return "", errors.Wrapf(err, "put object %s", ref)
	}

	return ref, nil
}

// Exists stats the object.
func (s *Minio) Exists(ctx context.Context, ref string) (bool, error) {
	if !s.ValidRef(ref) {
		return false, nil
	}

	_, err := s.cli.StatObject(ctx, s.bucket, s.objectKey(ref), minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == minioNoSuchKey {
			return false, nil
		}
		return false, errors.Wrapf(err, "stat object %s", ref)
	}

	return true, nil
}

// Get opens the object. GetObject is lazy, so the object is stat'ed first
// to turn a missing key into ErrBlobNotFound.
func (s *Minio) Get(ctx context.Context, ref string) (io.ReadCloser, error) {
	if !s.ValidRef(ref) {
		return nil, errors.WithStack(ErrBlobNotFound)
	}

	obj, err := s.cli.GetObject(ctx, s.bucket, s.objectKey(ref), minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrapf(err, "get object %s", ref)
	}
	if _, err = obj.Stat(); err != nil {
		_ = obj.Close()
		if minio.ToErrorResponse(err).Code == minioNoSuchKey {
			return nil, errors.WithStack(ErrBlobNotFound)
		}
		return nil, errors.Wrapf(err, "stat object %s", ref)
	}

	return obj, nil
}

// Delete removes the object. S3 deletes of missing keys succeed.
func (s *Minio) Delete(ctx context.Context, ref string) error {
	if !s.ValidRef(ref) {
		return nil
	}

	if err := s.cli.RemoveObject(ctx, s.bucket, s.objectKey(ref), minio.RemoveObjectOptions{}); err != nil {
		return errors.Wrapf(err, "remove object %s", ref)
	}

	return nil
}

// ValidRef accepts canonical UUID strings.
func (s *Minio) ValidRef(ref string) bool {
	return validUUID(ref)
}

// Close is a no-op, the minio client holds no persistent connection.
func (s *Minio) Close(context.Context) error {
	return nil
}

func validUUID(ref string) bool {
	if len(ref) != 36 {
		return false
	}
	_, err := uuid.Parse(ref)
	return err == nil
}
