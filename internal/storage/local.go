package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrS3NotConfigured is returned by UploadToS3 when no bucket is set up.
	ErrS3NotConfigured = errors.New("S3 storage is not configured")
	// ErrInvalidName is returned when a temp file name would escape the temp directory.
	ErrInvalidName = errors.New("invalid temp file name")
)

// LocalStorage keeps uploads and rendered thumbnails in one directory.
type LocalStorage struct {
	tempDir string
}

// NewLocalStorage creates tempDir if needed. An empty tempDir means
// $TMPDIR/framecodec.
func NewLocalStorage(tempDir string) (*LocalStorage, error) {
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "framecodec")
	}
	if err := os.MkdirAll(tempDir, 0o750); err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}
	return &LocalStorage{tempDir: tempDir}, nil
}

// TempDir returns the directory files are written to.
func (s *LocalStorage) TempDir() string {
	return s.tempDir
}

// SaveTemp writes data to a new file named after name and returns its path.
// A random part is inserted before the extension, so "job_64x48.jpg"
// becomes "job_64x48_123456.jpg".
func (s *LocalStorage) SaveTemp(ctx context.Context, name string, data io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context cancelled: %w", err)
	}
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	ext := filepath.Ext(name)
	f, err := os.CreateTemp(s.tempDir, strings.TrimSuffix(name, ext)+"_*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()

	_, err = io.Copy(f, data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("write temp file: %w", err)
	}
	return path, nil
}

// LoadTemp opens a file written by SaveTemp. The caller closes it.
func (s *LocalStorage) LoadTemp(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}
	f, err := os.Open(path) // #nosec G304 - paths come from SaveTemp
	if err != nil {
		return nil, fmt.Errorf("open temp file: %w", err)
	}
	return f, nil
}

// CleanupTemp removes every path, skipping empty and already missing ones.
// All removal failures are returned together.
func (s *LocalStorage) CleanupTemp(ctx context.Context, paths []string) error {
	var errs []error
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Errorf("context cancelled: %w", err))
			break
		}
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove temp file %s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}

// UploadToS3 always fails with ErrS3NotConfigured.
func (s *LocalStorage) UploadToS3(_ context.Context, _, _ string, _ io.Reader) (string, error) {
	return "", ErrS3NotConfigured
}
