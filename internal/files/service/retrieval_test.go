package service

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/Laisky/errors/v2"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Laisky/laisky-chart-files/internal/files/blobstore"
	"github.com/Laisky/laisky-chart-files/internal/files/model"
)

// seedCorrupt stores a descriptor whose blob ref the blob store never issues.
func seedCorrupt(meta *faultyMeta, owner string) primitive.ObjectID {
	id := primitive.NewObjectID()
	meta.Put(model.FileDescriptor{
		ID:       id,
		Filename: "legacy.xml",
		BlobRef:  "not-a-ref",
		OwnerID:  owner,
	})
	return id
}

func TestListFilesNewestFirst(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	first, err := svc.Ingest(ctx, xmlUpload("user1", "a.xml", validXML))
	require.NoError(t, err)
	second, err := svc.Ingest(ctx, xmlUpload("user1", "b.xml", validXML))
	require.NoError(t, err)
	_, err = svc.Ingest(ctx, xmlUpload("user2", "c.xml", validXML))
	require.NoError(t, err)

	files, err := svc.ListFiles(ctx, "user1")
	require.NoError(t, err)
	require.Len(t, files, 2)
	require.Equal(t, second.ID, files[0].ID)
	require.Equal(t, first.ID, files[1].ID)
}

func TestListFilesPurgesCorruptDescriptors(t *testing.T) {
	ctx := context.Background()
	svc, _, meta := newTestService(t)

	good, err := svc.Ingest(ctx, xmlUpload("user1", "a.xml", validXML))
	require.NoError(t, err)
	badID := seedCorrupt(meta, "user1")

	files, err := svc.ListFiles(ctx, "user1")
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, good.ID, files[0].ID)

	got, err := meta.FindByID(ctx, badID.Hex())
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestListFilesMetadataFailure(t *testing.T) {
	svc, _, meta := newTestService(t)
	meta.findErr = errors.New("no primary")

	_, err := svc.ListFiles(context.Background(), "user1")
	requireCode(t, err, model.ErrCodeMetadata)
}

func TestListFilesPurgeFailureStillFilters(t *testing.T) {
	ctx := context.Background()
	svc, _, meta := newTestService(t)
	badID := seedCorrupt(meta, "user1")
	meta.deleteErr = errors.New("no primary")

	files, err := svc.ListFiles(ctx, "user1")
	require.NoError(t, err)
	require.Empty(t, files)

	meta.deleteErr = nil
	got, err := meta.FindByID(ctx, badID.Hex())
	require.NoError(t, err)
	require.NotNil(t, got, "purge is retried on the next read")
}

func TestGetFileOwnerScoping(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	desc, err := svc.Ingest(ctx, xmlUpload("user2", "a.xml", validXML))
	require.NoError(t, err)

	_, err = svc.GetFile(ctx, desc.ID.Hex(), "user1")
	requireCode(t, err, model.ErrCodeNotFound)
	foreignErr := err

	_, err = svc.GetFile(ctx, primitive.NewObjectID().Hex(), "user1")
	requireCode(t, err, model.ErrCodeNotFound)
	require.Equal(t, foreignErr.Error(), err.Error(), "absent and foreign files look the same")

	_, err = svc.GetFile(ctx, "malformed", "user1")
	requireCode(t, err, model.ErrCodeNotFound)

	got, err := svc.GetFile(ctx, desc.ID.Hex(), "user2")
	require.NoError(t, err)
	require.Equal(t, desc.ID, got.ID)
}

func TestGetFileCorruptRecord(t *testing.T) {
	ctx := context.Background()
	svc, _, meta := newTestService(t)
	badID := seedCorrupt(meta, "user1")

	_, err := svc.GetFile(ctx, badID.Hex(), "user2")
	requireCode(t, err, model.ErrCodeNotFound)

	_, err = svc.GetFile(ctx, badID.Hex(), "user1")
	requireCode(t, err, model.ErrCodeCorruptRecord)

	_, err = svc.GetFile(ctx, badID.Hex(), "user1")
	requireCode(t, err, model.ErrCodeNotFound)
}

func TestDeleteFileTwice(t *testing.T) {
	ctx := context.Background()
	svc, blobs, meta := newTestService(t)

	desc, err := svc.Ingest(ctx, xmlUpload("user1", "a.xml", validXML))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteFile(ctx, desc.ID.Hex(), "user1"))
	err = svc.DeleteFile(ctx, desc.ID.Hex(), "user1")
	requireCode(t, err, model.ErrCodeNotFound)

	ok, err := blobs.Exists(ctx, desc.BlobRef)
	require.NoError(t, err)
	require.False(t, ok)
	got, err := meta.FindByID(ctx, desc.ID.Hex())
	require.NoError(t, err)
	require.Nil(t, got)

	require.NoError(t, blobs.Delete(ctx, desc.BlobRef), "deleting an absent blob is not an error")
}

func TestDeleteFileConcurrent(t *testing.T) {
	ctx := context.Background()

	for round := 0; round < 50; round++ {
		svc, blobs, meta := newTestService(t)
		desc, err := svc.Ingest(ctx, xmlUpload("user1", "a.xml", validXML))
		require.NoError(t, err)

		var (
			wg   sync.WaitGroup
			errs = make([]error, 2)
		)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = svc.DeleteFile(ctx, desc.ID.Hex(), "user1")
			}(i)
		}
		wg.Wait()

		for _, err := range errs {
			if err != nil {
				requireCode(t, err, model.ErrCodeNotFound)
			}
		}
		got, err := meta.FindByID(ctx, desc.ID.Hex())
		require.NoError(t, err)
		require.Nil(t, got)
		require.Zero(t, blobs.Len())
	}
}

func TestDeleteFileOtherOwner(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	desc, err := svc.Ingest(ctx, xmlUpload("user2", "a.xml", validXML))
	require.NoError(t, err)

	err = svc.DeleteFile(ctx, desc.ID.Hex(), "user1")
	requireCode(t, err, model.ErrCodeNotFound)

	got, err := svc.GetFile(ctx, desc.ID.Hex(), "user2")
	require.NoError(t, err)
	require.Equal(t, desc.ID, got.ID)
}

func TestDeleteFileBlobFailureStillDeletesMetadata(t *testing.T) {
	ctx := context.Background()
	svc, blobs, meta := newTestService(t)

	desc, err := svc.Ingest(ctx, xmlUpload("user1", "a.xml", validXML))
	require.NoError(t, err)
	blobs.deleteErr = errors.New("blob store down")

	require.NoError(t, svc.DeleteFile(ctx, desc.ID.Hex(), "user1"))

	got, err := meta.FindByID(ctx, desc.ID.Hex())
	require.NoError(t, err)
	require.Nil(t, got)
	require.Equal(t, 1, blobs.Len(), "blob is left orphaned")
}

func TestDeleteFileMetadataFailure(t *testing.T) {
	ctx := context.Background()
	svc, blobs, meta := newTestService(t)

	desc, err := svc.Ingest(ctx, xmlUpload("user1", "a.xml", validXML))
	require.NoError(t, err)
	meta.deleteErr = errors.New("no primary")

	err = svc.DeleteFile(ctx, desc.ID.Hex(), "user1")
	requireCode(t, err, model.ErrCodeMetadata)
	require.Zero(t, blobs.Len(), "blob is deleted first")
}

func TestDownloadContent(t *testing.T) {
	ctx := context.Background()
	svc, blobs, _ := newTestService(t)

	desc, err := svc.Ingest(ctx, xmlUpload("user1", "a.xml", validXML))
	require.NoError(t, err)

	got, rc, err := svc.DownloadContent(ctx, desc.ID.Hex(), "user1")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, validXML, string(data))
	require.Equal(t, desc.ID, got.ID)

	_, _, err = svc.DownloadContent(ctx, desc.ID.Hex(), "user2")
	requireCode(t, err, model.ErrCodeNotFound)

	require.NoError(t, blobs.Memory.Delete(ctx, desc.BlobRef))
	_, _, err = svc.DownloadContent(ctx, desc.ID.Hex(), "user1")
	requireCode(t, err, model.ErrCodeStorage)
	typed, _ := model.AsError(err)
	require.False(t, typed.Retryable)
	require.True(t, errors.Is(err, blobstore.ErrBlobNotFound))
}

func TestDownloadContentStoreFailure(t *testing.T) {
	ctx := context.Background()
	svc, blobs, _ := newTestService(t)

	desc, err := svc.Ingest(ctx, xmlUpload("user1", "a.xml", validXML))
	require.NoError(t, err)
	blobs.getErr = errors.New("connection reset")

	_, _, err = svc.DownloadContent(ctx, desc.ID.Hex(), "user1")
	requireCode(t, err, model.ErrCodeStorage)
	typed, _ := model.AsError(err)
	require.True(t, typed.Retryable)
}

func TestParseContent(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	desc, err := svc.Ingest(ctx, xmlUpload("user1", "a.xml", validXML))
	require.NoError(t, err)

	ds, err := svc.ParseContent(ctx, desc.ID.Hex(), "user1")
	require.NoError(t, err)
	require.Len(t, ds.Records, 2)
	require.Equal(t, []string{"x", "y"}, ds.Fields)

	broken, err := svc.Ingest(ctx, xmlUpload("user1", "b.xml", "<rows><row>"))
	require.NoError(t, err)
	_, err = svc.ParseContent(ctx, broken.ID.Hex(), "user1")
	requireCode(t, err, model.ErrCodeValidation)
}

func TestParseContentLegacyWorkbook(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	payload := string([]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}) + "legacy body"
	desc, err := svc.Ingest(ctx, Upload{
		Payload:     stringsReader(payload),
		Size:        int64(len(payload)),
		Filename:    "old.xls",
		ContentType: "application/vnd.ms-excel",
		OwnerID:     "user1",
	})
	require.NoError(t, err)

	_, err = svc.ParseContent(ctx, desc.ID.Hex(), "user1")
	requireCode(t, err, model.ErrCodeValidation)
	require.ErrorContains(t, err, "save the file as .xlsx")
}
