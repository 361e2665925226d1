package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// BlobStore durably keeps document bytes. Get after a successful Put must
// return byte-identical content.
type BlobStore interface {
	// Put stores the content under name and returns the handle to retrieve it.
	Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error)
	Get(ctx context.Context, handle string) ([]byte, error)
	Delete(ctx context.Context, handle string) error
}

// URLResolver is implemented by blob stores that can hand out a download URL.
type URLResolver interface {
	URL(ctx context.Context, handle string) (string, error)
}

// ErrBlobNotFound is returned when a handle points at nothing.
var ErrBlobNotFound = errors.New("blob not found")

// DirBlobStore keeps blobs as files under a root directory
type DirBlobStore struct {
	root string
}

func NewDirBlobStore(root string) (*DirBlobStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &DirBlobStore{root: root}, nil
}

func (s *DirBlobStore) path(handle string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(handle))
	if handle == "" || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid blob name %q", handle)
	}
	return filepath.Join(s.root, clean), nil
}

func (s *DirBlobStore) Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error) {
	p, err := s.path(name)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}

	// Write to a temp file and rename so a reader never sees a partial blob.
	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}
	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil && size >= 0 && n != size {
		err = fmt.Errorf("short write: got %d of %d bytes", n, size)
	}
	if err == nil {
		err = os.Rename(tmp.Name(), p)
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to upload file: %w", err)
	}
	return filepath.ToSlash(name), nil
}

func (s *DirBlobStore) Get(ctx context.Context, handle string) ([]byte, error) {
	p, err := s.path(handle)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, handle)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

func (s *DirBlobStore) Delete(ctx context.Context, handle string) error {
	p, err := s.path(handle)
	if err != nil {
		return err
	}
	err = os.Remove(p)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrBlobNotFound, handle)
	}
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
