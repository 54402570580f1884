package service

import (
	"context"
	"io"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"

	"github.com/Laisky/laisky-chart-files/internal/files/blobstore"
	"github.com/Laisky/laisky-chart-files/internal/files/model"
)

// errPayloadTooLarge aborts a blob write whose payload outgrew its limit.
var errPayloadTooLarge = errors.New("payload exceeds size limit")

// Upload is one file handed to Ingest.
type Upload struct {
	Payload io.Reader `validate:"required"`
	// Size is the declared length. Zero means unknown.
	Size        int64  `validate:"gte=0"`
	Filename    string `validate:"required"`
	ContentType string
	OwnerID     string `validate:"required"`
}

// Ingest stores the payload, verifies the blob landed, then records its
// descriptor. Either both the blob and the descriptor exist afterwards or
// neither does.
func (s *Service) Ingest(ctx context.Context, up Upload) (desc *model.FileDescriptor, err error) {
	logger := s.LoggerFromContext(ctx).With(
		zap.String("owner_id", up.OwnerID),
		zap.String("filename", up.Filename),
		zap.Int64("size", up.Size),
	)
	defer func() {
		outcome := outcomeOK
		if typed, ok := model.AsError(err); ok {
			outcome = string(typed.Code)
		}
		ingestTotal.WithLabelValues(outcome).Inc()
	}()

	if err = s.validateUpload(up); err != nil {
		return nil, err
	}

	limit := s.settings.MaxUploadBytes
	if up.Size > 0 && up.Size < limit {
		limit = up.Size
	}
	payload := &limitedReader{r: up.Payload, remain: limit}
	ref, err := s.blobs.Put(ctx, payload, blobstore.PutOption{
		Filename:    up.Filename,
		ContentType: up.ContentType,
		Size:        up.Size,
	})
	if err != nil {
		if errors.Is(err, errPayloadTooLarge) {
			return nil, model.ValidationError("file is larger than declared or allowed")
		}
		return nil, model.StorageError("store file content", err)
	}
	logger = logger.With(zap.String("blob_ref", ref))

	exists, err := s.blobs.Exists(ctx, ref)
	if err != nil || !exists {
		if err == nil {
			err = errors.Errorf("blob %s not found after write", ref)
		}
		s.removeOrphan(ctx, ref)
		return nil, model.StorageError("verify stored file", err)
	}

	desc, err = s.meta.Insert(ctx, &model.FileDescriptor{
		Filename:    up.Filename,
		BlobRef:     ref,
		Size:        limit - payload.remain,
		ContentType: up.ContentType,
		OwnerID:     up.OwnerID,
	})
	if err != nil {
		s.removeOrphan(ctx, ref)
		return nil, model.MetadataError("save file metadata", err)
	}

	logger.Info("file uploaded", zap.String("file_id", desc.ID.Hex()))
	return desc, nil
}

// removeOrphan deletes a blob that no descriptor will ever point to.
func (s *Service) removeOrphan(ctx context.Context, ref string) {
	err := s.blobs.Delete(context.WithoutCancel(ctx), ref)
	if err != nil {
		blobCleanupFailures.WithLabelValues(stageIngest).Inc()
	}
	s.warnOnError(ctx, err, "remove orphaned blob", zap.String("blob_ref", ref))
}

// limitedReader fails once more than remain bytes have been read.
type limitedReader struct {
	r      io.Reader
	remain int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remain < 0 {
		return 0, errPayloadTooLarge
	}
	// read one byte past the limit to detect overflow
	if int64(len(p)) > l.remain+1 {
		p = p[:l.remain+1]
	}

	n, err := l.r.Read(p)
	l.remain -= int64(n)
	if l.remain < 0 {
		return n, errPayloadTooLarge
	}

	return n, err
}
