package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/framecodec/internal/codec"
	"github.com/maauso/framecodec/internal/job"
)

// defaultMaxImageBytes bounds request bodies when no limit is configured.
const defaultMaxImageBytes = 20 << 20

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service            *job.ThumbnailService
	validator          *validator.Validate
	logger             *slog.Logger
	enableAsyncProcess bool
	maxBodyBytes       int64
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncProcessing enables or disables background processing.
// When disabled, CreateThumbnailJob only creates the job and returns immediately
// without starting background processing.
func WithAsyncProcessing(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncProcess = enabled
	}
}

// WithMaxImageBytes limits the size of the uploaded image. The request body
// may be up to a third larger to account for base64.
func WithMaxImageBytes(n int64) HandlerOption {
	return func(h *Handlers) {
		if n > 0 {
			h.maxBodyBytes = n*4/3 + 4096
		}
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *job.ThumbnailService, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:            service,
		validator:          validator.New(),
		logger:             logger,
		enableAsyncProcess: true, // Default to enabled
		maxBodyBytes:       defaultMaxImageBytes*4/3 + 4096,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// ListCodecs handles GET /codecs requests.
func (h *Handlers) ListCodecs(w http.ResponseWriter, r *http.Request) {
	descs := codec.Descriptors()
	resp := CodecsResponse{Codecs: make([]CodecResponse, 0, len(descs))}
	for _, d := range descs {
		c := CodecResponse{
			Name:      d.Name,
			MediaType: d.MediaType.String(),
			Encoder:   codec.HasEncoder(d.ID),
			Decoder:   codec.HasDecoder(d.ID),
		}
		for _, p := range d.Profiles {
			c.Profiles = append(c.Profiles, p.Name)
		}
		resp.Codecs = append(resp.Codecs, c)
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateThumbnailJob handles POST /thumbnails requests.
func (h *Handlers) CreateThumbnailJob(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	var req CreateThumbnailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "image is too large", "PAYLOAD_TOO_LARGE")
			return
		}
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	// Validate request
	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	input := job.ThumbnailInput{
		ImageBase64: req.ImageBase64,
		Sizes:       make([]job.Size, len(req.Sizes)),
		PushToS3:    req.PushToS3,
	}
	for i, s := range req.Sizes {
		input.Sizes[i] = job.Size{Width: s.Width, Height: s.Height}
	}

	// Create job first (synchronously)
	createdJob, err := h.service.CreateJob(r.Context(), input)
	if err != nil {
		h.logger.Error("failed to create job",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create job", "JOB_CREATION_FAILED")
		return
	}

	// Use context.WithoutCancel so processing outlives the request
	if h.enableAsyncProcess {
		go func(ctx context.Context, jobID string, inp job.ThumbnailInput) {
			_, processErr := h.service.ProcessExistingJob(ctx, jobID, inp)
			if processErr != nil {
				h.logger.Error("background processing failed",
					slog.String("job_id", jobID),
					slog.String("error", processErr.Error()),
				)
			}
		}(context.WithoutCancel(r.Context()), createdJob.ID, input)
	}

	h.logger.Info("job created",
		slog.String("job_id", createdJob.ID),
		slog.Int("sizes", len(req.Sizes)),
	)

	writeJSON(w, http.StatusAccepted, CreateJobResponse{
		ID:     createdJob.ID,
		Status: string(createdJob.Status),
	})
}

// GetThumbnailJob handles GET /thumbnails/{id} requests.
func (h *Handlers) GetThumbnailJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	foundJob, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get job", "JOB_FETCH_FAILED")
		return
	}

	resp := JobResponse{
		ID:           foundJob.ID,
		Status:       string(foundJob.Status),
		Progress:     foundJob.Progress,
		Error:        foundJob.Error,
		SourceMIME:   foundJob.SourceMIME,
		SourceWidth:  foundJob.SourceWidth,
		SourceHeight: foundJob.SourceHeight,
		Renditions:   make([]RenditionResponse, len(foundJob.Renditions)),
	}

	for i, rd := range foundJob.Renditions {
		rr := RenditionResponse{
			Width:  rd.Width,
			Height: rd.Height,
			Status: string(rd.Status),
			Bytes:  rd.Bytes,
			Error:  rd.Error,
		}
		// Content is only returned once the whole job has completed
		if foundJob.Status == job.StatusCompleted {
			if foundJob.PushToS3 && rd.URL != "" {
				rr.URL = rd.URL
			} else if rd.OutputPath != "" {
				data, err := h.service.RenditionContent(r.Context(), foundJob, i)
				if err != nil {
					h.logger.Error("failed to read thumbnail",
						slog.String("job_id", jobID),
						slog.String("path", rd.OutputPath),
						slog.String("error", err.Error()),
					)
				} else {
					rr.JPEGBase64 = base64.StdEncoding.EncodeToString(data)
				}
			}
		}
		resp.Renditions[i] = rr
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListThumbnailJobs handles GET /thumbnails requests. The optional status
// query parameter takes one or more comma-separated job statuses.
func (h *Handlers) ListThumbnailJobs(w http.ResponseWriter, r *http.Request) {
	var statuses []job.Status
	for _, v := range r.URL.Query()["status"] {
		for _, name := range strings.Split(v, ",") {
			st := job.Status(strings.ToUpper(strings.TrimSpace(name)))
			if !job.KnownStatus(st) {
				writeError(w, http.StatusBadRequest, "unknown job status: "+name, "INVALID_STATUS")
				return
			}
			statuses = append(statuses, st)
		}
	}

	jobs, err := h.service.ListJobs(r.Context(), statuses...)
	if err != nil {
		h.logger.Error("failed to list jobs", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list jobs", "JOB_LIST_FAILED")
		return
	}

	resp := JobListResponse{Jobs: make([]JobSummary, len(jobs))}
	for i, j := range jobs {
		resp.Jobs[i] = JobSummary{
			ID:         j.ID,
			Status:     string(j.Status),
			Progress:   j.Progress,
			Renditions: len(j.Renditions),
			CreatedAt:  j.CreatedAt,
		}
		if !j.CompletedAt.IsZero() {
			t := j.CompletedAt
			resp.Jobs[i].CompletedAt = &t
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// DeleteThumbnailJob handles DELETE /thumbnails/{id} requests.
func (h *Handlers) DeleteThumbnailJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	err := h.service.DeleteJob(r.Context(), jobID)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, job.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
	case errors.Is(err, job.ErrJobInProgress):
		writeError(w, http.StatusConflict, "job is still running", "JOB_IN_PROGRESS")
	default:
		h.logger.Error("failed to delete job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to delete job", "JOB_DELETE_FAILED")
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
