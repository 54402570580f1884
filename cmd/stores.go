package cmd

import (
	"context"

	"github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"
	"github.com/Laisky/zap"

	"github.com/Laisky/laisky-chart-files/internal/files/blobstore"
	"github.com/Laisky/laisky-chart-files/internal/files/dao"
	"github.com/Laisky/laisky-chart-files/internal/files/service"
	"github.com/Laisky/laisky-chart-files/library/db/minio"
	"github.com/Laisky/laisky-chart-files/library/db/mongo"
	"github.com/Laisky/laisky-chart-files/library/log"
)

const (
	blobBackendGridFS = "gridfs"
	blobBackendMinio  = "minio"
)

// openService builds the file service from configuration.
func openService(ctx context.Context) (*service.Service, error) {
	blobs, meta, err := openStores(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	svc, err := service.NewService(blobs, meta, service.LoadSettingsFromConfig(), log.Logger.Named("files"))
	if err != nil {
		closeStore(ctx, "blob", blobs)
		closeStore(ctx, "metadata", meta)
		return nil, errors.Wrap(err, "new file service")
	}

	return svc, nil
}

func openStores(ctx context.Context) (blobstore.Store, dao.Store, error) {
	if gconfig.Shared.GetBool("dry") {
		log.Logger.Warn("dry run, files are kept in memory only")
		return blobstore.NewMemory(), dao.NewMemory(nil), nil
	}

	dialInfo := filesDialInfo()
	metaDB, err := mongo.NewDB(ctx, dialInfo)
	if err != nil {
		return nil, nil, errors.Wrap(err, "connect metadata db")
	}
	meta, err := dao.NewMongo(ctx, metaDB)
	if err != nil {
		_ = metaDB.Close(ctx)
		return nil, nil, errors.Wrap(err, "new metadata store")
	}

	blobs, err := openBlobStore(ctx, dialInfo)
	if err != nil {
		closeStore(ctx, "metadata", meta)
		return nil, nil, errors.WithStack(err)
	}

	return blobs, meta, nil
}

func openBlobStore(ctx context.Context, dialInfo mongo.DialInfo) (blobstore.Store, error) {
	switch backend := gconfig.Shared.GetString("settings.files.blob_backend"); backend {
	case "", blobBackendGridFS:
		// second handle on the same client
		blobDB, err := mongo.NewDB(ctx, dialInfo)
		if err != nil {
			return nil, errors.Wrap(err, "connect gridfs db")
		}
		store, err := blobstore.NewGridFS(blobDB, gconfig.Shared.GetString("settings.files.gridfs.bucket"))
		if err != nil {
			_ = blobDB.Close(ctx)
			return nil, errors.Wrap(err, "new gridfs store")
		}
		return store, nil
	case blobBackendMinio:
		bucket := gconfig.Shared.GetString("settings.files.minio.bucket")
		cli, err := minio.NewClient(ctx, minio.DialInfo{
			Endpoint:  gconfig.Shared.GetString("settings.files.minio.endpoint"),
			AccessKey: gconfig.Shared.GetString("settings.files.minio.access_key"),
			SecretKey: gconfig.Shared.GetString("settings.files.minio.secret_key"),
			Bucket:    bucket,
			Secure:    gconfig.Shared.GetBool("settings.files.minio.secure"),
		})
		if err != nil {
			return nil, errors.Wrap(err, "connect minio")
		}
		return blobstore.NewMinio(cli, bucket, gconfig.Shared.GetString("settings.files.minio.prefix")), nil
	default:
		return nil, errors.Errorf("unknown blob backend %q", backend)
	}
}

func filesDialInfo() mongo.DialInfo {
	return mongo.DialInfo{
		Addr:   gconfig.Shared.GetString("settings.db.files.addr"),
		DBName: gconfig.Shared.GetString("settings.db.files.db"),
		User:   gconfig.Shared.GetString("settings.db.files.user"),
		Pwd:    gconfig.Shared.GetString("settings.db.files.pwd"),
		AuthDB: gconfig.Shared.GetString("settings.db.files.auth_db"),
	}
}

type closer interface {
	Close(ctx context.Context) error
}

func closeStore(ctx context.Context, name string, c closer) {
	if err := c.Close(context.WithoutCancel(ctx)); err != nil {
		log.Logger.Warn("close store", zap.String("store", name), zap.Error(err))
	}
}
