package service

import (
	"context"
	"fmt"

	"github.com/Laisky/zap"

	"github.com/Laisky/laisky-chart-files/internal/files/model"
)

// Sweep purges every descriptor whose blob reference is empty or not in the
// blob store's format, and returns how many were removed. It does not ask
// the blob store whether the referenced blob still exists.
func (s *Service) Sweep(ctx context.Context) (int64, error) {
	logger := s.LoggerFromContext(ctx)

	// collect first, so no delete runs while the scan cursor is open
	var corrupt []*model.FileDescriptor
	err := s.meta.Scan(ctx, func(desc *model.FileDescriptor) error {
		if !s.blobs.ValidRef(desc.BlobRef) {
			corrupt = append(corrupt, desc)
		}
		return nil
	})
	if err != nil {
		return 0, model.MetadataError("scan file metadata", err)
	}

	var removed, failed int64
	for _, desc := range corrupt {
		if s.purge(ctx, desc, purgeSweep) {
			removed++
		} else {
			failed++
		}
	}

	logger.Info("swept corrupt file descriptors",
		zap.Int64("removed", removed),
		zap.Int64("failed", failed))
	if failed > 0 {
		return removed, model.MetadataError(fmt.Sprintf("%d corrupt descriptors could not be removed", failed), nil)
	}

	return removed, nil
}
