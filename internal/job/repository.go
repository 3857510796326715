package job

import (
	"context"
	"errors"
	"time"
)

// ErrJobNotFound is returned when a job cannot be found by ID.
var ErrJobNotFound = errors.New("job not found")

// Repository stores thumbnail jobs.
type Repository interface {
	// Save inserts or replaces a job.
	Save(ctx context.Context, job *Job) error

	// FindByID returns ErrJobNotFound for unknown IDs.
	FindByID(ctx context.Context, id string) (*Job, error)

	// List returns jobs oldest first. With statuses given, only jobs in one
	// of them are returned.
	List(ctx context.Context, statuses ...Status) ([]*Job, error)

	// Delete returns ErrJobNotFound for unknown IDs.
	Delete(ctx context.Context, id string) error

	// DeleteFinishedBefore removes terminal jobs that completed before cutoff
	// and returns them so their rendition files can be removed.
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) ([]*Job, error)
}
