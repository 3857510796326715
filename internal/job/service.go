package job

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/maauso/framecodec/internal/codec"
	"github.com/maauso/framecodec/internal/media"
	"github.com/maauso/framecodec/internal/storage"
)

// Static errors for thumbnail jobs.
var (
	// ErrNoSizes is returned when a job requests no output sizes.
	ErrNoSizes = errors.New("at least one output size is required")
	// ErrInvalidBase64 is returned when the uploaded image is not valid base64.
	ErrInvalidBase64 = errors.New("image is not valid base64")
	// ErrJobInProgress is returned when deleting a job that is still running.
	ErrJobInProgress = errors.New("job is still running")
	// ErrNoOutput is returned when a rendition has no file to read back.
	ErrNoOutput = errors.New("rendition has no output")
)

// ThumbnailInput contains the input parameters for a thumbnail job.
type ThumbnailInput struct {
	// ImageBase64 is the base64-encoded source image.
	ImageBase64 string
	// Sizes lists the output boxes, one JPEG each.
	Sizes []Size
	// PushToS3 indicates whether to upload the renditions to S3.
	PushToS3 bool
}

// ThumbnailOutput contains the result of a thumbnail job.
type ThumbnailOutput struct {
	// JobID is the unique identifier for the job.
	JobID string
	// Status is the final job status.
	Status Status
	// Renditions are the produced outputs, in request order.
	Renditions []Rendition
	// Error contains any error message if processing failed.
	Error string
}

// ThumbnailService orchestrates the thumbnail workflow: decode the upload,
// then fit, pad and JPEG-encode it once per requested size.
type ThumbnailService struct {
	repo      Repository
	processor media.Processor
	store     storage.Storage
	logger    *slog.Logger
	// maxConcurrentEncodes limits renditions encoded in parallel.
	maxConcurrentEncodes int
	// timeout bounds a whole job; zero means no limit.
	timeout time.Duration
}

// ServiceOption configures a ThumbnailService.
type ServiceOption func(*ThumbnailService)

// WithMaxConcurrentEncodes sets how many renditions are encoded at once.
// Non-positive values are ignored.
func WithMaxConcurrentEncodes(n int) ServiceOption {
	return func(s *ThumbnailService) {
		if n > 0 {
			s.maxConcurrentEncodes = n
		}
	}
}

// WithJobTimeout bounds the processing time of a single job.
func WithJobTimeout(d time.Duration) ServiceOption {
	return func(s *ThumbnailService) { s.timeout = d }
}

// NewThumbnailService creates a new ThumbnailService.
func NewThumbnailService(
	repo Repository,
	processor media.Processor,
	store storage.Storage,
	logger *slog.Logger,
	opts ...ServiceOption,
) *ThumbnailService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &ThumbnailService{
		repo:                 repo,
		processor:            processor,
		store:                store,
		logger:               logger,
		maxConcurrentEncodes: 3, // Default concurrency
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateJob creates a new job and persists it to the repository.
// The job is created in IN_QUEUE status with one pending rendition per size.
func (s *ThumbnailService) CreateJob(ctx context.Context, input ThumbnailInput) (*Job, error) {
	if len(input.Sizes) == 0 {
		return nil, ErrNoSizes
	}

	job := New()
	job.SetSizes(input.Sizes)
	job.PushToS3 = input.PushToS3

	s.logger.Info("creating new job",
		slog.String("job_id", job.ID),
		slog.Int("sizes", len(input.Sizes)),
		slog.Bool("push_to_s3", input.PushToS3),
	)

	if err := s.repo.Save(ctx, job); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	return job, nil
}

// GetJob retrieves a job by ID.
func (s *ThumbnailService) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// DeleteJob removes a finished job and its rendition files.
func (s *ThumbnailService) DeleteJob(ctx context.Context, id string) error {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !job.IsTerminal() && job.GetStatus() != StatusInQueue {
		return ErrJobInProgress
	}

	if err := s.store.CleanupTemp(ctx, job.OutputPaths()); err != nil {
		s.logger.Warn("failed to remove rendition files",
			slog.String("job_id", id),
			slog.String("error", err.Error()),
		)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("job deleted", slog.String("job_id", id))
	return nil
}

// RenditionContent reads back the JPEG written for rendition index of j.
func (s *ThumbnailService) RenditionContent(ctx context.Context, j *Job, index int) ([]byte, error) {
	r, ok := j.Rendition(index)
	if !ok || r.OutputPath == "" {
		return nil, fmt.Errorf("job %s rendition %d: %w", j.ID, index, ErrNoOutput)
	}
	rc, err := s.store.LoadTemp(ctx, r.OutputPath)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// ListJobs returns jobs oldest first, optionally only those in statuses.
func (s *ThumbnailService) ListJobs(ctx context.Context, statuses ...Status) ([]*Job, error) {
	return s.repo.List(ctx, statuses...)
}

// PruneFinished deletes jobs that finished more than retention ago along
// with their rendition files. It returns how many jobs were removed.
func (s *ThumbnailService) PruneFinished(ctx context.Context, retention time.Duration) (int, error) {
	removed, err := s.repo.DeleteFinishedBefore(ctx, time.Now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("prune jobs: %w", err)
	}

	var paths []string
	for _, j := range removed {
		paths = append(paths, j.OutputPaths()...)
	}
	if len(paths) > 0 {
		if err := s.store.CleanupTemp(ctx, paths); err != nil {
			s.logger.Warn("failed to remove pruned rendition files",
				slog.Int("files", len(paths)),
				slog.String("error", err.Error()),
			)
		}
	}

	if len(removed) > 0 {
		s.logger.Info("pruned finished jobs",
			slog.Int("jobs", len(removed)),
			slog.Duration("retention", retention),
		)
	}
	return len(removed), nil
}

// RunJanitor prunes finished jobs every interval until ctx is done.
func (s *ThumbnailService) RunJanitor(ctx context.Context, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.PruneFinished(ctx, retention); err != nil {
				s.logger.Error("job janitor failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Process creates a job and runs it to completion.
func (s *ThumbnailService) Process(ctx context.Context, input ThumbnailInput) (*ThumbnailOutput, error) {
	job, err := s.CreateJob(ctx, input)
	if err != nil {
		return nil, err
	}
	return s.ProcessExistingJob(ctx, job.ID, input)
}

// ProcessExistingJob runs the workflow for a job created by CreateJob.
//
// The workflow:
//  1. Decode the base64 upload and keep a copy in temp storage
//  2. Decode the image into a picture
//  3. For each size in parallel (bounded): fit, pad, encode, store
//  4. Update the job to COMPLETED or FAILED
//
// A failed job is reported in the output, not as an error; the error return
// is for failures to load or persist the job itself.
func (s *ThumbnailService) ProcessExistingJob(ctx context.Context, jobID string, input ThumbnailInput) (*ThumbnailOutput, error) {
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := job.Start(); err != nil {
		return nil, fmt.Errorf("start job %s: %w", jobID, err)
	}
	if err := s.repo.Save(ctx, job); err != nil {
		return nil, err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	logger := s.logger.With(slog.String("job_id", jobID))
	start := time.Now()

	if err := s.run(ctx, job, input, logger); err != nil {
		return s.finishFailed(ctx, job, err, logger)
	}

	if err := job.Complete(); err != nil {
		return nil, fmt.Errorf("complete job %s: %w", jobID, err)
	}
	if err := s.repo.Save(ctx, job); err != nil {
		return nil, err
	}
	logger.Info("job completed",
		slog.Int("renditions", len(job.Renditions)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return output(job), nil
}

func (s *ThumbnailService) run(ctx context.Context, job *Job, input ThumbnailInput, logger *slog.Logger) error {
	data, err := base64.StdEncoding.DecodeString(input.ImageBase64)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBase64, err)
	}

	inputPath, err := s.store.SaveTemp(ctx, job.ID+"_input", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("save input: %w", err)
	}
	defer func() {
		if err := s.store.CleanupTemp(context.WithoutCancel(ctx), []string{inputPath}); err != nil {
			logger.Warn("failed to remove input file", slog.String("error", err.Error()))
		}
	}()

	src, err := s.processor.DecodeImage(ctx, data)
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	_, mime, _ := media.DetectDecoder(data)
	job.SetSource(inputPath, mime, src.Width, src.Height)
	logger.Info("source decoded",
		slog.String("mime", mime),
		slog.Int("width", src.Width),
		slog.Int("height", src.Height),
	)

	var done atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrentEncodes)
	for i := range job.Renditions {
		r, _ := job.Rendition(i)
		g.Go(func() error {
			r.Status = RenditionEncoding
			r.StartedAt = time.Now()
			job.UpdateRendition(r.Index, r)

			if err := s.render(gctx, job, &r, src); err != nil {
				r.Status = RenditionFailed
				r.Error = err.Error()
				r.CompletedAt = time.Now()
				job.UpdateRendition(r.Index, r)
				return fmt.Errorf("rendition %dx%d: %w", r.Width, r.Height, err)
			}

			r.Status = RenditionCompleted
			r.CompletedAt = time.Now()
			job.UpdateRendition(r.Index, r)
			logger.Debug("rendition completed",
				slog.Int("index", r.Index),
				slog.Int("width", r.Width),
				slog.Int("height", r.Height),
				slog.Int("bytes", r.Bytes),
				slog.Int("done", int(done.Add(1))),
			)
			if err := s.repo.Save(gctx, job); err != nil {
				logger.Warn("failed to save progress", slog.String("error", err.Error()))
			}
			return nil
		})
	}
	return g.Wait()
}

// render produces one rendition and fills in its output fields.
func (s *ThumbnailService) render(ctx context.Context, job *Job, r *Rendition, src *codec.Frame) error {
	canvas, err := s.processor.ResizeWithPadding(ctx, src, r.Width, r.Height)
	if err != nil {
		return fmt.Errorf("resize: %w", err)
	}
	jpg, err := s.processor.EncodeJPEG(ctx, canvas)
	if err != nil {
		return err
	}

	name := fmt.Sprintf("%s_%dx%d.jpg", job.ID, r.Width, r.Height)
	path, err := s.store.SaveTemp(ctx, name, bytes.NewReader(jpg))
	if err != nil {
		return fmt.Errorf("save output: %w", err)
	}
	r.OutputPath = path
	r.Bytes = len(jpg)

	if job.PushToS3 {
		key := fmt.Sprintf("thumbnails/%s/%dx%d.jpg", job.ID, r.Width, r.Height)
		url, err := s.store.UploadToS3(ctx, key, "image/jpeg", bytes.NewReader(jpg))
		if err != nil {
			return err
		}
		r.URL = url
	}
	return nil
}

func (s *ThumbnailService) finishFailed(ctx context.Context, job *Job, cause error, logger *slog.Logger) (*ThumbnailOutput, error) {
	saveCtx := context.WithoutCancel(ctx)
	var transErr error
	if errors.Is(cause, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		transErr = job.Timeout()
	} else {
		transErr = job.Fail(cause.Error())
	}
	if transErr != nil {
		return nil, fmt.Errorf("fail job %s: %w", job.ID, transErr)
	}

	if paths := job.OutputPaths(); len(paths) > 0 {
		if err := s.store.CleanupTemp(saveCtx, paths); err != nil {
			logger.Warn("failed to remove partial outputs", slog.String("error", err.Error()))
		}
		job.ClearOutput()
	}
	if err := s.repo.Save(saveCtx, job); err != nil {
		return nil, err
	}

	logger.Error("job failed",
		slog.String("status", string(job.GetStatus())),
		slog.String("error", cause.Error()),
	)
	out := output(job)
	out.Error = strings.TrimSpace(cause.Error())
	return out, nil
}

func output(job *Job) *ThumbnailOutput {
	c := job.Clone()
	return &ThumbnailOutput{
		JobID:      c.ID,
		Status:     c.Status,
		Renditions: c.Renditions,
		Error:      c.Error,
	}
}
