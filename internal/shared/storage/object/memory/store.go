package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"resumind-backend/internal/shared/storage/object"
	"resumind-backend/internal/shared/util"
)

// Store keeps objects in process memory. Used for tests and local runs.
type Store struct {
	mu      sync.RWMutex
	objects map[string]entry
}

type entry struct {
	data        []byte
	contentType string
}

// New returns an empty in-memory object store.
func New() *Store {
	return &Store{objects: make(map[string]entry)}
}

func (s *Store) Upload(ctx context.Context, name, contentType string, r io.Reader) (object.Object, error) {
	if err := ctx.Err(); err != nil {
		return object.Object{}, err
	}
	key, err := util.CleanObjectKey(name)
	if err != nil {
		return object.Object{}, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return object.Object{}, fmt.Errorf("read body: %w", err)
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	s.mu.Lock()
	s.objects[key] = entry{data: data, contentType: contentType}
	s.mu.Unlock()
	return object.Object{Path: key, Size: int64(len(data)), ContentType: contentType}, nil
}

func (s *Store) Read(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	e, ok := s.objects[path]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", object.ErrNotFound, path)
	}
	return io.NopCloser(bytes.NewReader(e.data)), nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	delete(s.objects, path)
	s.mu.Unlock()
	return nil
}

// Paths lists stored object paths.
func (s *Store) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.objects))
	for k := range s.objects {
		out = append(out, k)
	}
	return out
}

var _ object.Store = (*Store)(nil)
