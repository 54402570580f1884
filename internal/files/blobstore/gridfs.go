package blobstore

import (
	"context"
	"io"
	"time"

	"github.com/Laisky/errors/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Laisky/laisky-chart-files/library/db/mongo"
)

// DefaultGridFSBucket is the bucket name used when none is configured.
const DefaultGridFSBucket = "uploads"

// GridFS keeps blobs in a MongoDB GridFS bucket. Refs are ObjectID hex strings.
type GridFS struct {
	db     mongo.DB
	name   string
	bucket *gridfs.Bucket
}

// NewGridFS opens bucketName on db. The store owns db and closes it.
func NewGridFS(db mongo.DB, bucketName string) (*GridFS, error) {
	if bucketName == "" {
		bucketName = DefaultGridFSBucket
	}

	bucket, err := gridfs.NewBucket(db.CurrentDB(), options.GridFSBucket().SetName(bucketName))
	if err != nil {
		return nil, errors.Wrapf(err, "open gridfs bucket %s", bucketName)
	}

	return &GridFS{db: db, name: bucketName, bucket: bucket}, nil
}

// bucketFor returns the shared bucket, or a fresh one bound to ctx's deadline.
// GridFS streams take deadlines, not contexts, and the deadline is bucket state.
func (s *GridFS) bucketFor(ctx context.Context, write bool) (*gridfs.Bucket, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return s.bucket, nil
	}

	bucket, err := gridfs.NewBucket(s.db.CurrentDB(), options.GridFSBucket().SetName(s.name))
	if err != nil {
		return nil, errors.Wrapf(err, "open gridfs bucket %s", s.name)
	}
	setDeadline := bucket.SetReadDeadline
	if write {
		setDeadline = bucket.SetWriteDeadline
	}
	if err = setDeadline(deadline); err != nil {
		return nil, errors.Wrapf(err, "set deadline %s", deadline.Format(time.RFC3339))
	}

	return bucket, nil
}

// Put streams r into a new GridFS file within ctx's deadline.
func (s *GridFS) Put(ctx context.Context, r io.Reader, opt PutOption) (string, error) {
	bucket, err := s.bucketFor(ctx, true)
	if err != nil {
		return "", errors.WithStack(err)
	}

	uploadOpts := options.GridFSUpload().
		SetMetadata(bson.M{"content_type": opt.ContentType})

	id, err := bucket.UploadFromStream(opt.Filename, r, uploadOpts)
	if err != nil {
		return "", errors.Wrap(err, "upload to gridfs")
	}

	return id.Hex(), nil
}

// Exists looks the file document up in `<bucket>.files`.
func (s *GridFS) Exists(ctx context.Context, ref string) (bool, error) {
	id, err := primitive.ObjectIDFromHex(ref)
	if err != nil {
		return false, nil
	}

	n, err := s.db.GetCol(s.name+".files").
		CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, errors.Wrapf(err, "find gridfs file %s", ref)
	}

	return n > 0, nil
}

// Get opens a download stream, bound to ctx's deadline when it has one.
func (s *GridFS) Get(ctx context.Context, ref string) (io.ReadCloser, error) {
	id, err := primitive.ObjectIDFromHex(ref)
	if err != nil {
		return nil, errors.WithStack(ErrBlobNotFound)
	}

	bucket, err := s.bucketFor(ctx, false)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	stream, err := bucket.OpenDownloadStream(id)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, errors.WithStack(ErrBlobNotFound)
		}
		return nil, errors.Wrapf(err, "open gridfs stream %s", ref)
	}

	return stream, nil
}

// Delete removes the file and its chunks. Missing files are not an error.
func (s *GridFS) Delete(ctx context.Context, ref string) error {
	id, err := primitive.ObjectIDFromHex(ref)
	if err != nil {
		return nil
	}

	if err = s.bucket.DeleteContext(ctx, id); err != nil && !errors.Is(err, gridfs.ErrFileNotFound) {
		return errors.Wrapf(err, "delete gridfs file %s", ref)
	}

	return nil
}

// ValidRef accepts 24 hex digit ObjectIDs only.
func (s *GridFS) ValidRef(ref string) bool {
	_, err := primitive.ObjectIDFromHex(ref)
	return err == nil
}

// Close releases the mongo handle.
func (s *GridFS) Close(ctx context.Context) error {
	return s.db.Close(ctx)
}
