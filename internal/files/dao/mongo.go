package dao

import (
	"context"
	"time"

	"github.com/Laisky/errors/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	mongoLib "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Laisky/laisky-chart-files/internal/files/model"
	"github.com/Laisky/laisky-chart-files/library/db/mongo"
)

const colFiles = "files"

// Mongo stores descriptors in the `files` collection.
type Mongo struct {
	db  mongo.DB
	now func() time.Time
}

// NewMongo wraps db and ensures the owner listing index. The store owns db.
func NewMongo(ctx context.Context, db mongo.DB) (*Mongo, error) {
	d := &Mongo{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}

	_, err := d.GetFilesCol().Indexes().CreateOne(ctx, mongoLib.IndexModel{
		Keys: bson.D{
			{Key: "owner_id", Value: 1},
			{Key: "created_at", Value: -1},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "create owner index")
	}

	return d, nil
}

// GetFilesCol returns the descriptor collection.
func (d *Mongo) GetFilesCol() *mongoLib.Collection {
	return d.db.GetCol(colFiles)
}

// Insert writes a copy of desc with a new ID and CreatedAt.
func (d *Mongo) Insert(ctx context.Context, desc *model.FileDescriptor) (*model.FileDescriptor, error) {
	doc := *desc
	doc.ID = primitive.NewObjectID()
	doc.CreatedAt = d.now().Truncate(time.Millisecond)

	if _, err := d.GetFilesCol().InsertOne(ctx, &doc); err != nil {
		return nil, errors.Wrap(err, "insert file")
	}

	return &doc, nil
}

// FindByID loads one descriptor.
func (d *Mongo) FindByID(ctx context.Context, id string) (*model.FileDescriptor, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}

	raw, err := d.GetFilesCol().FindOne(ctx, bson.M{"_id": oid}).DecodeBytes()
	if err != nil {
		if mongo.NotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "find file %s", id)
	}

	return decodeFile(raw), nil
}

// FindByOwner lists the owner's descriptors.
func (d *Mongo) FindByOwner(ctx context.Context, ownerID string) ([]*model.FileDescriptor, error) {
	return d.find(ctx, bson.M{"owner_id": ownerID}, options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

// FindRecent lists the newest descriptors of every owner.
func (d *Mongo) FindRecent(ctx context.Context, limit int) ([]*model.FileDescriptor, error) {
	return d.find(ctx, bson.M{}, options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)))
}

func (d *Mongo) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*model.FileDescriptor, error) {
	cur, err := d.GetFilesCol().Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(err, "find files")
	}

	defer cur.Close(ctx) //nolint:errcheck

	descs := []*model.FileDescriptor{}
	for cur.Next(ctx) {
		descs = append(descs, decodeFile(cur.Current))
	}
	if err = cur.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate files")
	}

	return descs, nil
}

// decodeFile never fails. A document that does not fit the current schema,
// for example size stored as a subdocument, comes back with only its id,
// owner and filename. Its empty BlobRef makes read paths purge it instead of
// failing the whole listing. A blob_ref stored as an ObjectID decodes as its
// hex string.
func decodeFile(raw bson.Raw) *model.FileDescriptor {
	desc := new(model.FileDescriptor)
	if err := bson.Unmarshal(raw, desc); err == nil {
		return desc
	}

	desc = new(model.FileDescriptor)
	desc.ID, _ = raw.Lookup("_id").ObjectIDOK()
	desc.OwnerID, _ = raw.Lookup("owner_id").StringValueOK()
	desc.Filename, _ = raw.Lookup("filename").StringValueOK()
	return desc
}

// DeleteByID removes one descriptor.
func (d *Mongo) DeleteByID(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil
	}

	if _, err = d.GetFilesCol().DeleteOne(ctx, bson.M{"_id": oid}); err != nil {
		return errors.Wrapf(err, "delete file %s", id)
	}

	return nil
}

// Count returns the number of descriptors.
func (d *Mongo) Count(ctx context.Context) (int64, error) {
	n, err := d.GetFilesCol().CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, errors.Wrap(err, "count files")
	}

	return n, nil
}

// Scan walks the collection with a cursor.
func (d *Mongo) Scan(ctx context.Context, fn func(*model.FileDescriptor) error) (err error) {
	cur, err := d.GetFilesCol().Find(ctx, bson.M{})
	if err != nil {
		return errors.Wrap(err, "scan files")
	}
	defer func() {
		if cerr := cur.Close(ctx); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "close cursor")
		}
	}()

	for cur.Next(ctx) {
		if err = fn(decodeFile(cur.Current)); err != nil {
			return err
		}
	}

	return errors.WithStack(cur.Err())
}

// Close releases the mongo handle.
func (d *Mongo) Close(ctx context.Context) error {
	return d.db.Close(ctx)
}
