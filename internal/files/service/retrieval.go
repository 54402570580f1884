package service

import (
	"context"
	"io"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"

	"github.com/Laisky/laisky-chart-files/internal/files/blobstore"
	"github.com/Laisky/laisky-chart-files/internal/files/dataset"
	"github.com/Laisky/laisky-chart-files/internal/files/model"
)

// scope decides whether a caller may see a descriptor.
type scope func(*model.FileDescriptor) bool

func ownedBy(ownerID string) scope {
	return func(desc *model.FileDescriptor) bool {
		return ownerID != "" && desc.OwnerID == ownerID
	}
}

func anyOwner(*model.FileDescriptor) bool { return true }

// ListFiles returns the owner's files, newest first.
// Descriptors with an unusable blob reference are purged and left out.
func (s *Service) ListFiles(ctx context.Context, ownerID string) ([]*model.FileDescriptor, error) {
	if ownerID == "" {
		return nil, model.ValidationError("owner is required")
	}

	descs, err := s.meta.FindByOwner(ctx, ownerID)
	if err != nil {
		return nil, model.MetadataError("list files", err)
	}

	valid := make([]*model.FileDescriptor, 0, len(descs))
	for _, desc := range descs {
		if s.blobs.ValidRef(desc.BlobRef) {
			valid = append(valid, desc)
			continue
		}
		s.purge(ctx, desc, purgeList)
	}

	return valid, nil
}

// GetFile returns the owner's file. Missing and foreign files look the same.
func (s *Service) GetFile(ctx context.Context, fileID, ownerID string) (*model.FileDescriptor, error) {
	return s.resolve(ctx, fileID, ownedBy(ownerID))
}

// DeleteFile removes the owner's file.
func (s *Service) DeleteFile(ctx context.Context, fileID, ownerID string) error {
	desc, err := s.resolve(ctx, fileID, ownedBy(ownerID))
	if err != nil {
		return err
	}

	return s.remove(ctx, desc)
}

// DownloadContent opens the owner's file. The caller closes the reader.
func (s *Service) DownloadContent(ctx context.Context, fileID, ownerID string) (*model.FileDescriptor, io.ReadCloser, error) {
	return s.download(ctx, fileID, ownedBy(ownerID))
}

// ParseContent parses the owner's file into chartable records.
func (s *Service) ParseContent(ctx context.Context, fileID, ownerID string) (*dataset.Dataset, error) {
	return s.parse(ctx, fileID, ownedBy(ownerID))
}

func (s *Service) resolve(ctx context.Context, fileID string, visible scope) (*model.FileDescriptor, error) {
	desc, err := s.meta.FindByID(ctx, fileID)
	if err != nil {
		return nil, model.MetadataError("load file metadata", err)
	}
	if desc == nil || !visible(desc) {
		return nil, model.NotFoundError()
	}

	if !s.blobs.ValidRef(desc.BlobRef) {
		s.purge(ctx, desc, purgeGet)
		return nil, model.CorruptRecordError(errors.Errorf("invalid blob ref %q", desc.BlobRef))
	}

	return desc, nil
}

// remove deletes the blob first. A failed blob delete leaves an orphan
// behind but never keeps the descriptor alive.
func (s *Service) remove(ctx context.Context, desc *model.FileDescriptor) error {
	logger := s.LoggerFromContext(ctx).With(
		zap.String("file_id", desc.ID.Hex()),
		zap.String("blob_ref", desc.BlobRef),
		zap.String("owner_id", desc.OwnerID),
	)

	if err := s.blobs.Delete(ctx, desc.BlobRef); err != nil {
		blobCleanupFailures.WithLabelValues(stageDelete).Inc()
		logger.Warn("delete blob, keep deleting metadata", zap.Error(err))
	}

	if err := s.meta.DeleteByID(ctx, desc.ID.Hex()); err != nil {
		return model.MetadataError("delete file metadata", err)
	}

	logger.Info("file deleted")
	return nil
}

func (s *Service) download(ctx context.Context, fileID string, visible scope) (*model.FileDescriptor, io.ReadCloser, error) {
	desc, err := s.resolve(ctx, fileID, visible)
	if err != nil {
		return nil, nil, err
	}

	rc, err := s.blobs.Get(ctx, desc.BlobRef)
	if err != nil {
		if errors.Is(err, blobstore.ErrBlobNotFound) {
			return nil, nil, model.NewError(model.ErrCodeStorage, "file content is missing", false, err)
		}
		return nil, nil, model.StorageError("read file content", err)
	}

	return desc, rc, nil
}

func (s *Service) parse(ctx context.Context, fileID string, visible scope) (*dataset.Dataset, error) {
	desc, rc, err := s.download(ctx, fileID, visible)
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck

	ds, err := dataset.Parse(desc.ContentType, desc.Filename, rc)
	if err != nil {
		if errors.Is(err, dataset.ErrLegacyWorkbook) {
			return nil, model.NewError(model.ErrCodeValidation,
				"legacy .xls workbooks cannot be charted, save the file as .xlsx", false, err)
		}
		return nil, model.NewError(model.ErrCodeValidation, "file content cannot be parsed", false, err)
	}

	return ds, nil
}

// purge drops a descriptor whose blob reference is unusable. Failures are
// logged; the next read retries.
func (s *Service) purge(ctx context.Context, desc *model.FileDescriptor, path string) bool {
	err := s.meta.DeleteByID(context.WithoutCancel(ctx), desc.ID.Hex())
	s.warnOnError(ctx, err, "purge corrupt file descriptor",
		zap.String("file_id", desc.ID.Hex()),
		zap.String("blob_ref", desc.BlobRef),
		zap.String("path", path))
	if err != nil {
		return false
	}

	purgedDescriptors.WithLabelValues(path).Inc()
	return true
}
