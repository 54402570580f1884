package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Laisky/laisky-chart-files/internal/files/blobstore"
	"github.com/Laisky/laisky-chart-files/internal/files/dao"
	"github.com/Laisky/laisky-chart-files/internal/files/model"
)

const validXML = `<rows><row><x>1</x><y>2</y></row><row><x>2</x><y>4</y></row></rows>`

// faultyBlobs wraps the memory blob store with injectable failures and
// records every call the service makes.
type faultyBlobs struct {
	*blobstore.Memory

	mu          sync.Mutex
	putErr      error
	existsErr   error
	existsFalse bool
	getErr      error
	deleteErr   error
	puts        int
	deleted     []string
}

func (f *faultyBlobs) Put(ctx context.Context, r io.Reader, opt blobstore.PutOption) (string, error) {
	f.mu.Lock()
	f.puts++
	err := f.putErr
	f.mu.Unlock()
	if err != nil {
		return "", err
	}
	return f.Memory.Put(ctx, r, opt)
}

func (f *faultyBlobs) Exists(ctx context.Context, ref string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	if f.existsFalse {
		return false, nil
	}
	return f.Memory.Exists(ctx, ref)
}

func (f *faultyBlobs) Get(ctx context.Context, ref string) (io.ReadCloser, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.Memory.Get(ctx, ref)
}

func (f *faultyBlobs) Delete(ctx context.Context, ref string) error {
	f.mu.Lock()
	f.deleted = append(f.deleted, ref)
	err := f.deleteErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Memory.Delete(ctx, ref)
}

func (f *faultyBlobs) deletedRefs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

// faultyMeta wraps the memory metadata store with injectable failures.
type faultyMeta struct {
	*dao.Memory

	insertErr error
	findErr   error
	deleteErr error
	countErr  error
}

func (f *faultyMeta) Insert(ctx context.Context, desc *model.FileDescriptor) (*model.FileDescriptor, error) {
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	return f.Memory.Insert(ctx, desc)
}

func (f *faultyMeta) FindByID(ctx context.Context, id string) (*model.FileDescriptor, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.Memory.FindByID(ctx, id)
}

func (f *faultyMeta) FindByOwner(ctx context.Context, ownerID string) ([]*model.FileDescriptor, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.Memory.FindByOwner(ctx, ownerID)
}

func (f *faultyMeta) DeleteByID(ctx context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.Memory.DeleteByID(ctx, id)
}

func (f *faultyMeta) Count(ctx context.Context) (int64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.Memory.Count(ctx)
}

// newTestService returns a service over fresh memory stores.
func newTestService(t *testing.T) (*Service, *faultyBlobs, *faultyMeta) {
	t.Helper()

	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		ts = ts.Add(time.Second)
		return ts
	}

	blobs := &faultyBlobs{Memory: blobstore.NewMemory()}
	meta := &faultyMeta{Memory: dao.NewMemory(clock)}
	svc, err := NewService(blobs, meta, Settings{MaxUploadBytes: 1024}, nil)
	require.NoError(t, err)

	return svc, blobs, meta
}

// xmlUpload builds a valid upload for owner.
func xmlUpload(owner, filename, body string) Upload {
	return Upload{
		Payload:     stringsReader(body),
		Size:        int64(len(body)),
		Filename:    filename,
		ContentType: "text/xml",
		OwnerID:     owner,
	}
}

func stringsReader(s string) io.Reader {
	return &onlyReader{data: []byte(s)}
}

// onlyReader hides any io.WriterTo or Seeker so stores see a plain stream.
type onlyReader struct {
	data []byte
	off  int
}

func (r *onlyReader) Read(p []byte) (int, error) {
	if r.off >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.off:])
	r.off += n
	return n, nil
}

// requireCode asserts the typed error code.
func requireCode(t *testing.T, err error, code model.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	typed, ok := model.AsError(err)
	require.True(t, ok, "expected typed error, got %v", err)
	require.Equal(t, code, typed.Code)
}
