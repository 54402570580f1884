// Package service implements the upload pipeline and the owner-scoped
// lookup and deletion of stored files.
package service

import (
	"context"

	"github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v7"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"

	"github.com/Laisky/laisky-chart-files/internal/files/blobstore"
	"github.com/Laisky/laisky-chart-files/internal/files/dao"
	"github.com/Laisky/laisky-chart-files/library/log"
)

// Service coordinates the blob store and the metadata store.
type Service struct {
	blobs    blobstore.Store
	meta     dao.Store
	settings Settings
	logger   logSDK.Logger
}

// NewService wires the stores. Both stores are required.
func NewService(blobs blobstore.Store, meta dao.Store, settings Settings, logger logSDK.Logger) (*Service, error) {
	if blobs == nil {
		return nil, errors.New("blob store is required")
	}
	if meta == nil {
		return nil, errors.New("metadata store is required")
	}
	if logger == nil {
		logger = log.Logger.Named("files_service")
	}
	if settings.MaxUploadBytes <= 0 {
		settings.MaxUploadBytes = defaultMaxUploadBytes
	}

	return &Service{
		blobs:    blobs,
		meta:     meta,
		settings: settings,
		logger:   logger,
	}, nil
}

// Settings returns the settings the service runs with.
func (s *Service) Settings() Settings {
	return s.settings
}

// Close closes both stores, reporting the first failure.
func (s *Service) Close(ctx context.Context) error {
	blobErr := s.blobs.Close(ctx)
	metaErr := s.meta.Close(ctx)
	if blobErr != nil {
		return errors.Wrap(blobErr, "close blob store")
	}
	if metaErr != nil {
		return errors.Wrap(metaErr, "close metadata store")
	}

	return nil
}

// LoggerFromContext returns the request-scoped logger when available.
func (s *Service) LoggerFromContext(ctx context.Context) logSDK.Logger {
	if ctx != nil {
		if ctxLogger := gmw.GetLogger(ctx); ctxLogger != nil {
			return ctxLogger
		}
	}
	if s != nil && s.logger != nil {
		return s.logger
	}
	return log.Logger.Named("files_fallback")
}

// warnOnError logs a failure that the caller deliberately swallows.
func (s *Service) warnOnError(ctx context.Context, err error, msg string, fields ...zap.Field) {
	if err == nil {
		return
	}
	s.LoggerFromContext(ctx).Warn(msg, append(fields, zap.Error(err))...)
}
