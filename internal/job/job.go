// Package job provides the Job aggregate for thumbnail rendering jobs.
// A job takes one uploaded image and renders it into one JPEG per requested
// size, tracking each size as a Rendition.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/maauso/framecodec/internal/job/id"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusInQueue indicates the job is waiting to be processed.
	StatusInQueue Status = "IN_QUEUE"
	// StatusRunning indicates the renditions are being encoded.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates every rendition was produced.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the job encountered an error during execution.
	StatusFailed Status = "FAILED"
	// StatusCancelled indicates the job was manually cancelled.
	StatusCancelled Status = "CANCELLED"
	// StatusTimedOut indicates the job ran past its deadline.
	StatusTimedOut Status = "TIMED_OUT"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusInQueue:   {StatusRunning, StatusCancelled, StatusTimedOut},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
	StatusTimedOut:  {},
}

// KnownStatus reports whether s is one of the job statuses.
func KnownStatus(s Status) bool {
	_, ok := validTransitions[s]
	return ok
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// RenditionStatus represents the status of a single output size.
type RenditionStatus string

const (
	// RenditionPending indicates the rendition is waiting to be encoded.
	RenditionPending RenditionStatus = "PENDING"
	// RenditionEncoding indicates the rendition is being scaled and encoded.
	RenditionEncoding RenditionStatus = "ENCODING"
	// RenditionCompleted indicates the JPEG was written.
	RenditionCompleted RenditionStatus = "COMPLETED"
	// RenditionFailed indicates the rendition could not be produced.
	RenditionFailed RenditionStatus = "FAILED"
)

// Size is a requested output box in pixels.
type Size struct {
	Width  int
	Height int
}

// Rendition is one output JPEG of a job.
type Rendition struct {
	// Index is the position of this rendition in the request.
	Index int
	// Width and Height are the exact output dimensions.
	Width  int
	Height int
	// Status is the current processing status.
	Status RenditionStatus
	// OutputPath is the local JPEG file.
	OutputPath string
	// URL is the S3 URL if the job pushes to S3.
	URL string
	// Bytes is the encoded JPEG size.
	Bytes int
	// Error contains any error message if encoding failed.
	Error string
	// StartedAt is when encoding started.
	StartedAt time.Time
	// CompletedAt is when encoding finished.
	CompletedAt time.Time
}

// Job represents a thumbnail job aggregate.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// Status is the current job state.
	Status Status
	// Renditions holds one entry per requested size, in request order.
	Renditions []Rendition
	// Progress is the percentage of completed renditions (0-100).
	Progress int
	// Error contains any error message if the job failed.
	Error string
	// InputImagePath is the path to the uploaded image.
	InputImagePath string
	// SourceMIME is the sniffed type of the uploaded image.
	SourceMIME string
	// SourceWidth and SourceHeight are the decoded picture dimensions.
	SourceWidth  int
	SourceHeight int
	// PushToS3 indicates whether to upload the renditions to S3.
	PushToS3 bool
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when processing started.
	StartedAt time.Time
	// CompletedAt is when processing finished.
	CompletedAt time.Time
}

// New creates a new Job with a generated ID and initial IN_QUEUE status.
func New() *Job {
	return NewWithID(id.Generate())
}

// NewWithID creates a new Job with the specified ID and initial IN_QUEUE status.
// Useful for testing or when ID needs to be externally generated.
func NewWithID(jobID string) *Job {
	now := time.Now()
	return &Job{
		ID:         jobID,
		Status:     StatusInQueue,
		Renditions: make([]Rendition, 0),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	// Set timestamps based on state
	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Start transitions the job from IN_QUEUE to RUNNING.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Complete transitions the job to COMPLETED state and sets progress to 100.
func (j *Job) Complete() error {
	if err := j.TransitionTo(StatusCompleted); err != nil {
		return err
	}
	j.UpdateProgress(100)
	return nil
}

// Fail transitions the job to FAILED state with an error message.
func (j *Job) Fail(errMsg string) error {
	j.mu.Lock()
	j.Error = errMsg
	j.mu.Unlock()
	return j.TransitionTo(StatusFailed)
}

// Cancel transitions the job to CANCELLED state.
func (j *Job) Cancel() error {
	return j.TransitionTo(StatusCancelled)
}

// Timeout transitions the job to TIMED_OUT state.
func (j *Job) Timeout() error {
	return j.TransitionTo(StatusTimedOut)
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// SetSizes replaces the renditions with one pending entry per size.
func (j *Job) SetSizes(sizes []Size) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Renditions = make([]Rendition, len(sizes))
	for i, s := range sizes {
		j.Renditions[i] = Rendition{Index: i, Width: s.Width, Height: s.Height, Status: RenditionPending}
	}
	j.UpdatedAt = time.Now()
}

// UpdateRendition replaces a rendition by index and recomputes progress.
func (j *Job) UpdateRendition(index int, r Rendition) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if index < 0 || index >= len(j.Renditions) {
		return
	}
	j.Renditions[index] = r
	done := 0
	for _, r := range j.Renditions {
		if r.Status == RenditionCompleted {
			done++
		}
	}
	j.Progress = done * 100 / len(j.Renditions)
	j.UpdatedAt = time.Now()
}

// Rendition returns a copy of the rendition at index.
func (j *Job) Rendition(index int) (Rendition, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if index < 0 || index >= len(j.Renditions) {
		return Rendition{}, false
	}
	return j.Renditions[index], true
}

// SetSource records what was decoded from the upload.
func (j *Job) SetSource(path, mime string, width, height int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.InputImagePath = path
	j.SourceMIME = mime
	j.SourceWidth = width
	j.SourceHeight = height
	j.UpdatedAt = time.Now()
}

// UpdateProgress sets the progress percentage (0-100).
func (j *Job) UpdateProgress(progress int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	j.Progress = progress
	j.UpdatedAt = time.Now()
}

// OutputPaths lists the local files written for this job.
func (j *Job) OutputPaths() []string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	var paths []string
	for _, r := range j.Renditions {
		if r.OutputPath != "" {
			paths = append(paths, r.OutputPath)
		}
	}
	return paths
}

// ClearOutput forgets the rendition files and URLs.
// This is used when deleting the job's outputs.
func (j *Job) ClearOutput() {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i := range j.Renditions {
		j.Renditions[i].OutputPath = ""
		j.Renditions[i].URL = ""
	}
	j.UpdatedAt = time.Now()
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusCompleted ||
		j.Status == StatusFailed ||
		j.Status == StatusCancelled ||
		j.Status == StatusTimedOut
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	renditions := make([]Rendition, len(j.Renditions))
	copy(renditions, j.Renditions)

	return &Job{
		ID:             j.ID,
		Status:         j.Status,
		Renditions:     renditions,
		Progress:       j.Progress,
		Error:          j.Error,
		InputImagePath: j.InputImagePath,
		SourceMIME:     j.SourceMIME,
		SourceWidth:    j.SourceWidth,
		SourceHeight:   j.SourceHeight,
		PushToS3:       j.PushToS3,
		CreatedAt:      j.CreatedAt,
		UpdatedAt:      j.UpdatedAt,
		StartedAt:      j.StartedAt,
		CompletedAt:    j.CompletedAt,
	}
}
