// Package storage holds thumbnail job files on local disk and publishes
// finished thumbnails to S3.
package storage

import (
	"context"
	"io"
)

// Storage is where a thumbnail job keeps its upload and rendered JPEGs.
type Storage interface {
	// SaveTemp writes data to a new file whose name starts with name, keeping
	// name's extension. Names containing path separators are rejected.
	SaveTemp(ctx context.Context, name string, data io.Reader) (path string, err error)

	// LoadTemp opens a file written by SaveTemp. The caller closes it.
	LoadTemp(ctx context.Context, path string) (io.ReadCloser, error)

	// CleanupTemp removes files, ignoring ones already gone, and reports
	// every failure rather than stopping at the first.
	CleanupTemp(ctx context.Context, paths []string) error

	// UploadToS3 stores data under key and returns its URL, or
	// ErrS3NotConfigured when there is no bucket.
	UploadToS3(ctx context.Context, key, contentType string, data io.Reader) (url string, err error)
}
