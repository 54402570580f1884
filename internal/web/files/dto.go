package files

import (
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/jinzhu/copier"

	"github.com/Laisky/laisky-chart-files/internal/files/dataset"
	"github.com/Laisky/laisky-chart-files/internal/files/model"
)

// File is the public view of a descriptor. The blob ref stays internal.
type File struct {
	ID          string    `json:"id" copier:"-"`
	Filename    string    `json:"filename"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	OwnerID     string    `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
}

func toFile(desc *model.FileDescriptor) (*File, error) {
	f := new(File)
	if err := copier.Copy(f, desc); err != nil {
		return nil, errors.Wrap(err, "copy")
	}
	f.ID = desc.ID.Hex()

	return f, nil
}

func toFiles(descs []*model.FileDescriptor) ([]*File, error) {
	files := make([]*File, 0, len(descs))
	for _, desc := range descs {
		f, err := toFile(desc)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}

	return files, nil
}

// Content is a parsed file.
type Content struct {
	File *File            `json:"file"`
	Data *dataset.Dataset `json:"data"`
}

// Stats is the admin dashboard summary.
type Stats struct {
	TotalFiles   int64            `json:"total_files"`
	RecentFiles  []*File          `json:"recent_files"`
	Distribution map[string]int64 `json:"distribution"`
}
