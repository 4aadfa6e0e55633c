package object

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Read when no object exists at the path.
var ErrNotFound = errors.New("object not found")

// Object describes a stored blob.
type Object struct {
	Path        string
	Size        int64
	ContentType string
}

// Store defines the contract for saving and retrieving binary objects.
type Store interface {
	Upload(ctx context.Context, name, contentType string, r io.Reader) (Object, error)
	Read(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
}

// ReadAll reads the whole object at path.
func ReadAll(ctx context.Context, s Store, path string) ([]byte, error) {
	rc, err := s.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
