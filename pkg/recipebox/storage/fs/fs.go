// Package fs provides a filesystem-backed recipebox.BlobStore.
package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/platefork/recipebox/pkg/recipebox"
)

// Backend is a filesystem implementation of the recipebox.BlobStore interface.
// Refs map to files under BaseDir, one subdirectory per folder.
type Backend struct {
	baseDir string
}

// Config options for the filesystem backend
type Config struct {
	BaseDir string // Base directory for storing files
}

// New creates a new filesystem storage backend
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Backend{baseDir: config.BaseDir}, nil
}

func (b *Backend) Upload(ctx context.Context, folder string, file recipebox.UploadFile) (string, error) {
	ref := folder + "/" + uuid.NewString()
	path := filepath.Join(b.baseDir, filepath.FromSlash(ref))

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create folder: %w", err)
	}
	if err := os.WriteFile(path, file.Data, 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return ref, nil
}

// Delete removes the files for the given refs. Missing files are ignored.
func (b *Backend) Delete(ctx context.Context, refs []string) error {
	var errs []error
	for _, ref := range refs {
		path := filepath.Join(b.baseDir, filepath.FromSlash(ref))
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("failed to delete %s: %w", ref, err))
		}
	}
	return errors.Join(errs...)
}

func (b *Backend) List(ctx context.Context, folder string) ([]string, error) {
	dir := filepath.Join(b.baseDir, folder)

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read folder: %w", err)
	}

	var refs []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		refs = append(refs, folder+"/"+entry.Name())
	}
	return refs, nil
}
