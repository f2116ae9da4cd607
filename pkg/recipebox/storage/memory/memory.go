// Package memory provides an in-memory recipebox.BlobStore for testing and
// development.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/platefork/recipebox/pkg/recipebox"
)

// Store implements recipebox.BlobStore with an in-memory map.
type Store struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// New creates a new in-memory blob store
func New() *Store {
	return &Store{blobs: make(map[string][]byte)}
}

func (s *Store) Upload(ctx context.Context, folder string, file recipebox.UploadFile) (string, error) {
	ref := folder + "/" + uuid.NewString()

	data := make([]byte, len(file.Data))
	copy(data, file.Data)

	s.mu.Lock()
	s.blobs[ref] = data
	s.mu.Unlock()

	return ref, nil
}

// Delete removes the given refs. Refs that do not exist are ignored.
func (s *Store) Delete(ctx context.Context, refs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ref := range refs {
		delete(s.blobs, ref)
	}
	return nil
}

func (s *Store) List(ctx context.Context, folder string) ([]string, error) {
	prefix := folder + "/"

	s.mu.RLock()
	defer s.mu.RUnlock()

	var refs []string
	for ref := range s.blobs {
		if strings.HasPrefix(ref, prefix) {
			refs = append(refs, ref)
		}
	}
	return refs, nil
}

// Get returns the stored bytes for a ref. Used by tests.
func (s *Store) Get(ref string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[ref]
	return data, ok
}

// Len returns the number of stored blobs. Used by tests.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
