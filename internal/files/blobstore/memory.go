package blobstore

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/Laisky/errors/v2"
	"github.com/google/uuid"
)

// Memory keeps blobs in process memory. It backs dry runs and tests.
type Memory struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{blobs: make(map[string][]byte)}
}

// Put copies r into memory. Nothing is stored if reading r fails.
func (s *Memory) Put(_ context.Context, r io.Reader, _ PutOption) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", errors.Wrap(err, "read payload")
	}

	ref := uuid.NewString()
	s.mu.Lock()
	s.blobs[ref] = data
	s.mu.Unlock()

	return ref, nil
}

// Exists reports whether ref is stored.
func (s *Memory) Exists(_ context.Context, ref string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.blobs[ref]
	return ok, nil
}

// Get returns a reader over a snapshot of the blob.
func (s *Memory) Get(_ context.Context, ref string) (io.ReadCloser, error) {
	s.mu.RLock()
	data, ok := s.blobs[ref]
	s.mu.RUnlock()
	if !ok {
		return nil, errors.WithStack(ErrBlobNotFound)
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete drops ref.
func (s *Memory) Delete(_ context.Context, ref string) error {
	s.mu.Lock()
	delete(s.blobs, ref)
	s.mu.Unlock()

	return nil
}

// ValidRef accepts canonical UUID strings.
func (s *Memory) ValidRef(ref string) bool {
	return validUUID(ref)
}

// Len returns the number of stored blobs.
func (s *Memory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.blobs)
}

// Close discards every blob.
func (s *Memory) Close(context.Context) error {
	s.mu.Lock()
	s.blobs = make(map[string][]byte)
	s.mu.Unlock()

	return nil
}
