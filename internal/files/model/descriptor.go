// Package model defines the file descriptor and the errors the file
// service surfaces to callers.
package model

import (
	"path/filepath"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FileDescriptor is the metadata of one uploaded file.
// BlobRef points at the blob holding its bytes; the blob has no back-pointer.
type FileDescriptor struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Filename    string             `bson:"filename" json:"filename" validate:"required"`
	BlobRef     string             `bson:"blob_ref" json:"blob_ref" validate:"required"`
	Size        int64              `bson:"size" json:"size" validate:"gte=0"`
	ContentType string             `bson:"content_type" json:"content_type"`
	OwnerID     string             `bson:"owner_id" json:"owner_id" validate:"required"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
}

// Extension returns the lower-cased filename extension without the dot,
// or "unknown" when there is none.
func (d *FileDescriptor) Extension() string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(d.Filename)), ".")
	if ext == "" {
		return "unknown"
	}

	return ext
}

// Stats summarizes every stored descriptor for the admin dashboard.
type Stats struct {
	TotalFiles   int64             `json:"total_files"`
	RecentFiles  []*FileDescriptor `json:"recent_files"`
	Distribution map[string]int64  `json:"distribution"`
}
