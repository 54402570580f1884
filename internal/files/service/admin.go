package service

import (
	"context"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/Laisky/laisky-chart-files/internal/files/dataset"
	"github.com/Laisky/laisky-chart-files/internal/files/model"
)

// recentFilesLimit is how many files Stats reports as recent.
const recentFilesLimit = 5

// AdminScope runs operations across owners. Every call still names its target.
type AdminScope struct {
	svc *Service
}

// Admin returns the elevated scope. Callers must have checked the role.
func (s *Service) Admin() *AdminScope {
	return &AdminScope{svc: s}
}

// ListOwnerFiles lists another user's files with the same purge as ListFiles.
func (a *AdminScope) ListOwnerFiles(ctx context.Context, ownerID string) ([]*model.FileDescriptor, error) {
	return a.svc.ListFiles(ctx, ownerID)
}

// GetFile returns any file.
func (a *AdminScope) GetFile(ctx context.Context, fileID string) (*model.FileDescriptor, error) {
	return a.svc.resolve(ctx, fileID, anyOwner)
}

// DownloadContent opens any file.
func (a *AdminScope) DownloadContent(ctx context.Context, fileID string) (*model.FileDescriptor, io.ReadCloser, error) {
	return a.svc.download(ctx, fileID, anyOwner)
}

// ParseContent parses any file.
func (a *AdminScope) ParseContent(ctx context.Context, fileID string) (*dataset.Dataset, error) {
	return a.svc.parse(ctx, fileID, anyOwner)
}

// DeleteFile removes any file.
func (a *AdminScope) DeleteFile(ctx context.Context, fileID string) error {
	desc, err := a.svc.resolve(ctx, fileID, anyOwner)
	if err != nil {
		return err
	}

	return a.svc.remove(ctx, desc)
}

// Stats counts every file, lists the newest ones and groups all files by extension.
func (a *AdminScope) Stats(ctx context.Context) (*model.Stats, error) {
	stats := &model.Stats{Distribution: map[string]int64{}}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.TotalFiles, err = a.svc.meta.Count(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.RecentFiles, err = a.svc.meta.FindRecent(gctx, recentFilesLimit)
		return err
	})
	g.Go(func() error {
		return a.svc.meta.Scan(gctx, func(desc *model.FileDescriptor) error {
			stats.Distribution[desc.Extension()]++
			return nil
		})
	})
	if err := g.Wait(); err != nil {
		return nil, model.MetadataError("load file stats", err)
	}

	return stats, nil
}
