package service

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/Laisky/errors/v2"
	"github.com/stretchr/testify/require"

	"github.com/Laisky/laisky-chart-files/internal/files/model"
)

func TestIngestStoresBlobAndDescriptor(t *testing.T) {
	ctx := context.Background()
	svc, blobs, meta := newTestService(t)

	desc, err := svc.Ingest(ctx, xmlUpload("user1", "a.xml", validXML))
	require.NoError(t, err)
	require.False(t, desc.ID.IsZero())
	require.False(t, desc.CreatedAt.IsZero())
	require.Equal(t, "user1", desc.OwnerID)
	require.Equal(t, "a.xml", desc.Filename)
	require.EqualValues(t, len(validXML), desc.Size)

	ok, err := blobs.Exists(ctx, desc.BlobRef)
	require.NoError(t, err)
	require.True(t, ok)

	stored, err := meta.FindByID(ctx, desc.ID.Hex())
	require.NoError(t, err)
	require.Equal(t, desc.BlobRef, stored.BlobRef)
}

func TestIngestCountsUndeclaredSize(t *testing.T) {
	svc, _, _ := newTestService(t)

	up := xmlUpload("user1", "a.xml", validXML)
	up.Size = 0
	desc, err := svc.Ingest(context.Background(), up)
	require.NoError(t, err)
	require.EqualValues(t, len(validXML), desc.Size)
}

func TestIngestVerificationFailureRemovesBlob(t *testing.T) {
	svc, blobs, meta := newTestService(t)
	blobs.existsFalse = true

	_, err := svc.Ingest(context.Background(), xmlUpload("user1", "a.xml", validXML))
	requireCode(t, err, model.ErrCodeStorage)

	require.Len(t, blobs.deletedRefs(), 1)
	require.Zero(t, blobs.Len())
	n, err := meta.Count(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestIngestVerificationErrorRemovesBlob(t *testing.T) {
	svc, blobs, _ := newTestService(t)
	blobs.existsErr = errors.New("gridfs timeout")

	_, err := svc.Ingest(context.Background(), xmlUpload("user1", "a.xml", validXML))
	requireCode(t, err, model.ErrCodeStorage)
	require.ErrorContains(t, err, "gridfs timeout")
	require.Len(t, blobs.deletedRefs(), 1)
	require.Zero(t, blobs.Len())
}

func TestIngestMetadataFailureRemovesBlob(t *testing.T) {
	svc, blobs, meta := newTestService(t)
	meta.insertErr = errors.New("write concern failed")

	_, err := svc.Ingest(context.Background(), xmlUpload("user1", "a.xml", validXML))
	requireCode(t, err, model.ErrCodeMetadata)

	deleted := blobs.deletedRefs()
	require.Len(t, deleted, 1)
	ok, err := blobs.Exists(context.Background(), deleted[0])
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIngestCleanupFailureKeepsOriginalError(t *testing.T) {
	svc, blobs, meta := newTestService(t)
	meta.insertErr = errors.New("write concern failed")
	blobs.deleteErr = errors.New("blob store down")

	_, err := svc.Ingest(context.Background(), xmlUpload("user1", "a.xml", validXML))
	requireCode(t, err, model.ErrCodeMetadata)
	require.ErrorContains(t, err, "write concern failed")
	require.NotContains(t, err.Error(), "blob store down")
	require.Len(t, blobs.deletedRefs(), 1)
}

func TestIngestPutFailure(t *testing.T) {
	svc, blobs, meta := newTestService(t)
	blobs.putErr = errors.New("disk full")

	_, err := svc.Ingest(context.Background(), xmlUpload("user1", "a.xml", validXML))
	requireCode(t, err, model.ErrCodeStorage)
	require.Empty(t, blobs.deletedRefs())

	n, err := meta.Count(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestIngestValidation(t *testing.T) {
	big := strings.Repeat("x", 2048)
	cases := map[string]func(*Upload){
		"missing owner":    func(u *Upload) { u.OwnerID = "" },
		"missing filename": func(u *Upload) { u.Filename = "" },
		"missing payload":  func(u *Upload) { u.Payload = nil },
		"negative size":    func(u *Upload) { u.Size = -1 },
		"declared too big": func(u *Upload) { u.Size = 4096 },
		"wrong type": func(u *Upload) {
			u.Filename = "a.png"
			u.ContentType = "image/png"
		},
		"streamed too big": func(u *Upload) {
			u.Payload = stringsReader(big)
			u.Size = 0
		},
		"longer than declared": func(u *Upload) {
			u.Payload = stringsReader(validXML + "<!-- trailing -->")
		},
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			svc, blobs, meta := newTestService(t)
			up := xmlUpload("user1", "a.xml", validXML)
			mutate(&up)

			_, err := svc.Ingest(context.Background(), up)
			requireCode(t, err, model.ErrCodeValidation)
			require.Zero(t, blobs.Len())

			n, err := meta.Count(context.Background())
			require.NoError(t, err)
			require.Zero(t, n)
		})
	}
}

func TestIngestValidationTouchesNoStore(t *testing.T) {
	svc, blobs, _ := newTestService(t)

	_, err := svc.Ingest(context.Background(), xmlUpload("", "a.xml", validXML))
	requireCode(t, err, model.ErrCodeValidation)
	require.Equal(t, "ownerid is required", err.Error())
	require.Zero(t, blobs.puts)
}

func TestIngestAcceptsByExtension(t *testing.T) {
	svc, _, _ := newTestService(t)

	up := xmlUpload("user1", "data.XML", validXML)
	up.ContentType = "application/octet-stream"
	_, err := svc.Ingest(context.Background(), up)
	require.NoError(t, err)
}

func TestIngestDuplicateFilenames(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	first, err := svc.Ingest(ctx, xmlUpload("user1", "a.xml", validXML))
	require.NoError(t, err)
	second, err := svc.Ingest(ctx, xmlUpload("user1", "a.xml", validXML))
	require.NoError(t, err)
	require.NotEqual(t, first.BlobRef, second.BlobRef)

	files, err := svc.ListFiles(ctx, "user1")
	require.NoError(t, err)
	require.Len(t, files, 2)
	require.Equal(t, "a.xml", files[0].Filename)
	require.Equal(t, "a.xml", files[1].Filename)
}

func TestLimitedReader(t *testing.T) {
	r := &limitedReader{r: strings.NewReader("12345"), remain: 5}
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "12345", string(data))

	r = &limitedReader{r: strings.NewReader("123456"), remain: 5}
	_, err = io.ReadAll(r)
	require.True(t, errors.Is(err, errPayloadTooLarge))
}
