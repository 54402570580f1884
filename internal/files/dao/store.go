// Package dao persists file descriptors.
package dao

import (
	"context"

	"github.com/Laisky/laisky-chart-files/internal/files/model"
)

// Store is the metadata capability consumed by the file service.
type Store interface {
	// Insert assigns ID and CreatedAt and persists the descriptor.
	Insert(ctx context.Context, desc *model.FileDescriptor) (*model.FileDescriptor, error)
	// FindByID returns nil, nil when id is malformed or unknown.
	FindByID(ctx context.Context, id string) (*model.FileDescriptor, error)
	// FindByOwner returns the owner's descriptors, newest first.
	FindByOwner(ctx context.Context, ownerID string) ([]*model.FileDescriptor, error)
	// DeleteByID is idempotent.
	DeleteByID(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
	// FindRecent returns at most limit descriptors, newest first.
	FindRecent(ctx context.Context, limit int) ([]*model.FileDescriptor, error)
	// Scan calls fn for every descriptor and stops at the first error.
	Scan(ctx context.Context, fn func(*model.FileDescriptor) error) error
	Close(ctx context.Context) error
}
