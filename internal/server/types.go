// Package server provides the HTTP server for the thumbnail API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import "time"

// SizeRequest is one requested output box.
type SizeRequest struct {
	// Width is the output width in pixels.
	Width int `json:"width" validate:"required,min=1,max=8192"`
	// Height is the output height in pixels.
	Height int `json:"height" validate:"required,min=1,max=8192"`
}

// CreateThumbnailRequest is the HTTP request body for creating a thumbnail job.
type CreateThumbnailRequest struct {
	// ImageBase64 is the base64-encoded source image.
	ImageBase64 string `json:"image_base64" validate:"required,base64"`
	// Sizes lists the output boxes; one JPEG is produced per size.
	Sizes []SizeRequest `json:"sizes" validate:"required,min=1,max=16,dive"`
	// PushToS3 indicates whether to upload the thumbnails to S3.
	PushToS3 bool `json:"push_to_s3"`
}

// CreateJobResponse is the HTTP response after creating a job.
type CreateJobResponse struct {
	// ID is the unique identifier for the created job.
	ID string `json:"id"`
	// Status is the initial job status.
	Status string `json:"status"`
}

// RenditionResponse describes one output of a job.
type RenditionResponse struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Status string `json:"status"`
	Bytes  int    `json:"bytes,omitempty"`
	Error  string `json:"error,omitempty"`
	// JPEGBase64 is the thumbnail content (if push_to_s3=false and completed).
	JPEGBase64 string `json:"jpeg_base64,omitempty"`
	// URL is the S3 URL of the thumbnail (if push_to_s3=true and completed).
	URL string `json:"url,omitempty"`
}

// JobResponse is the HTTP response for getting job details.
type JobResponse struct {
	// ID is the unique identifier for the job.
	ID string `json:"id"`
	// Status is the current job status.
	Status string `json:"status"`
	// Progress is the percentage of completion (0-100).
	Progress int `json:"progress"`
	// Error contains any error message if the job failed.
	Error string `json:"error,omitempty"`
	// SourceMIME is the detected type of the uploaded image.
	SourceMIME string `json:"source_mime,omitempty"`
	// SourceWidth and SourceHeight are the decoded image dimensions.
	SourceWidth  int `json:"source_width,omitempty"`
	SourceHeight int `json:"source_height,omitempty"`
	// Renditions lists the outputs in request order.
	Renditions []RenditionResponse `json:"renditions"`
}

// JobSummary is one entry of the job listing.
type JobSummary struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	Progress    int        `json:"progress"`
	Renditions  int        `json:"renditions"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// JobListResponse is the HTTP response for GET /thumbnails.
type JobListResponse struct {
	Jobs []JobSummary `json:"jobs"`
}

// CodecResponse describes one codec known to the registry.
type CodecResponse struct {
	Name      string   `json:"name"`
	MediaType string   `json:"media_type"`
	Encoder   bool     `json:"encoder"`
	Decoder   bool     `json:"decoder"`
	Profiles  []string `json:"profiles,omitempty"`
}

// CodecsResponse is the HTTP response for the codec listing.
type CodecsResponse struct {
	Codecs []CodecResponse `json:"codecs"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
