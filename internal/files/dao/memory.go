package dao

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Laisky/laisky-chart-files/internal/files/model"
)

// Memory keeps descriptors in process memory. It backs dry runs and tests.
type Memory struct {
	mu    sync.RWMutex
	files map[primitive.ObjectID]model.FileDescriptor
	now   func() time.Time
}

// NewMemory creates an empty store. now defaults to time.Now in UTC.
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &Memory{
		files: make(map[primitive.ObjectID]model.FileDescriptor),
		now:   now,
	}
}

// Insert stores a copy of desc with a new ID and CreatedAt.
func (d *Memory) Insert(_ context.Context, desc *model.FileDescriptor) (*model.FileDescriptor, error) {
	doc := *desc
	doc.ID = primitive.NewObjectID()
	doc.CreatedAt = d.now()

	d.mu.Lock()
	d.files[doc.ID] = doc
	d.mu.Unlock()

	return &doc, nil
}

// Put stores desc as is, keeping its ID. Used to seed legacy records.
func (d *Memory) Put(desc model.FileDescriptor) {
	d.mu.Lock()
	d.files[desc.ID] = desc
	d.mu.Unlock()
}

// FindByID returns a copy of the descriptor.
func (d *Memory) FindByID(_ context.Context, id string) (*model.FileDescriptor, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}

	d.mu.RLock()
	doc, ok := d.files[oid]
	d.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	return &doc, nil
}

// FindByOwner lists the owner's descriptors, newest first.
func (d *Memory) FindByOwner(_ context.Context, ownerID string) ([]*model.FileDescriptor, error) {
	return d.filter(func(desc *model.FileDescriptor) bool {
		return desc.OwnerID == ownerID
	}, 0), nil
}

// FindRecent lists the newest descriptors.
func (d *Memory) FindRecent(_ context.Context, limit int) ([]*model.FileDescriptor, error) {
	return d.filter(func(*model.FileDescriptor) bool { return true }, limit), nil
}

func (d *Memory) filter(keep func(*model.FileDescriptor) bool, limit int) []*model.FileDescriptor {
	d.mu.RLock()
	descs := []*model.FileDescriptor{}
	for _, doc := range d.files {
		doc := doc
		if keep(&doc) {
			descs = append(descs, &doc)
		}
	}
	d.mu.RUnlock()

	sort.Slice(descs, func(i, j int) bool {
		if descs[i].CreatedAt.Equal(descs[j].CreatedAt) {
			return descs[i].ID.Hex() > descs[j].ID.Hex()
		}
		return descs[i].CreatedAt.After(descs[j].CreatedAt)
	})
	if limit > 0 && len(descs) > limit {
		descs = descs[:limit]
	}

	return descs
}

// DeleteByID drops the descriptor.
func (d *Memory) DeleteByID(_ context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil
	}

	d.mu.Lock()
	delete(d.files, oid)
	d.mu.Unlock()

	return nil
}

// Count returns the number of descriptors.
func (d *Memory) Count(context.Context) (int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return int64(len(d.files)), nil
}

// Scan visits a snapshot, so fn may delete while scanning.
func (d *Memory) Scan(_ context.Context, fn func(*model.FileDescriptor) error) error {
	for _, desc := range d.filter(func(*model.FileDescriptor) bool { return true }, 0) {
		if err := fn(desc); err != nil {
			return err
		}
	}

	return nil
}

// Close discards every descriptor.
func (d *Memory) Close(context.Context) error {
	d.mu.Lock()
	d.files = make(map[primitive.ObjectID]model.FileDescriptor)
	d.mu.Unlock()

	return nil
}
