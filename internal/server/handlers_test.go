package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maauso/framecodec/internal/codec"
	"github.com/maauso/framecodec/internal/job"
	"github.com/maauso/framecodec/internal/storage"
)

// mockProcessor implements media.Processor for testing.
type mockProcessor struct {
	mock.Mock
}

func (m *mockProcessor) DecodeImage(ctx context.Context, data []byte) (*codec.Frame, error) {
	args := m.Called(ctx, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*codec.Frame), args.Error(1)
}

func (m *mockProcessor) ResizeWithPadding(ctx context.Context, src *codec.Frame, w, h int) (*codec.Frame, error) {
	args := m.Called(ctx, src, w, h)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*codec.Frame), args.Error(1)
}

func (m *mockProcessor) EncodeJPEG(ctx context.Context, f *codec.Frame) ([]byte, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func newTestHandlers(t *testing.T, opts ...HandlerOption) (*Handlers, *mockProcessor, job.Repository) {
	t.Helper()
	repo := job.NewMemoryRepository()
	processor := &mockProcessor{}
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	svc := job.NewThumbnailService(repo, processor, store, testLogger)

	// Disable async processing by default to keep tests deterministic
	opts = append([]HandlerOption{WithAsyncProcessing(false)}, opts...)
	return NewHandlers(svc, testLogger, opts...), processor, repo
}

func thumbnailBody(t *testing.T, req CreateThumbnailRequest) *bytes.Reader {
	t.Helper()
	b, err := json.Marshal(req)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

var validRequest = CreateThumbnailRequest{
	ImageBase64: base64.StdEncoding.EncodeToString([]byte("test-image")),
	Sizes:       []SizeRequest{{Width: 64, Height: 64}, {Width: 320, Height: 180}},
}

func TestHealth(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	h.Health(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
}

func TestListCodecs(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/codecs", nil)
	rec := httptest.NewRecorder()

	h.ListCodecs(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp CodecsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Codecs, len(codec.Descriptors()))

	byName := make(map[string]CodecResponse)
	for _, c := range resp.Codecs {
		byName[c.Name] = c
	}
	h264, ok := byName["h264"]
	require.True(t, ok, "expected h264 in listing")
	assert.Equal(t, "video", h264.MediaType)
	assert.Contains(t, h264.Profiles, "High")
	assert.Equal(t, codec.HasDecoder(codec.H264), h264.Decoder)
}

func TestCreateThumbnailJob_Success(t *testing.T) {
	h, _, repo := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodPost, "/thumbnails", thumbnailBody(t, validRequest))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.CreateThumbnailJob(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)

	var resp CreateJobResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "IN_QUEUE", resp.Status)

	saved, err := repo.FindByID(context.Background(), resp.ID)
	require.NoError(t, err)
	require.Len(t, saved.Renditions, 2)
	assert.Equal(t, 320, saved.Renditions[1].Width)
}

func TestCreateThumbnailJob_InvalidJSON(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodPost, "/thumbnails", strings.NewReader("invalid json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.CreateThumbnailJob(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "INVALID_JSON", resp.Code)
}

func TestCreateThumbnailJob_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		req  CreateThumbnailRequest
	}{
		{"missing image", CreateThumbnailRequest{Sizes: []SizeRequest{{Width: 64, Height: 64}}}},
		{"image not base64", CreateThumbnailRequest{ImageBase64: "not base64!", Sizes: []SizeRequest{{Width: 64, Height: 64}}}},
		{"no sizes", CreateThumbnailRequest{ImageBase64: validRequest.ImageBase64}},
		{"zero width", CreateThumbnailRequest{ImageBase64: validRequest.ImageBase64, Sizes: []SizeRequest{{Width: 0, Height: 64}}}},
		{"too tall", CreateThumbnailRequest{ImageBase64: validRequest.ImageBase64, Sizes: []SizeRequest{{Width: 64, Height: 10000}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _, _ := newTestHandlers(t)

			req := httptest.NewRequest(http.MethodPost, "/thumbnails", thumbnailBody(t, tt.req))
			rec := httptest.NewRecorder()

			h.CreateThumbnailJob(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, "VALIDATION_ERROR", resp.Code)
		})
	}
}

func TestCreateThumbnailJob_TooLarge(t *testing.T) {
	h, _, _ := newTestHandlers(t, WithMaxImageBytes(16))

	big := CreateThumbnailRequest{
		ImageBase64: base64.StdEncoding.EncodeToString(bytes.Repeat([]byte("x"), 8192)),
		Sizes:       []SizeRequest{{Width: 64, Height: 64}},
	}
	req := httptest.NewRequest(http.MethodPost, "/thumbnails", thumbnailBody(t, big))
	rec := httptest.NewRecorder()

	h.CreateThumbnailJob(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "PAYLOAD_TOO_LARGE", resp.Code)
}

func TestGetThumbnailJob_InQueue(t *testing.T) {
	h, _, repo := newTestHandlers(t)

	testJob := job.New()
	testJob.SetSizes([]job.Size{{Width: 64, Height: 64}})
	require.NoError(t, repo.Save(context.Background(), testJob))

	req := httptest.NewRequest(http.MethodGet, "/thumbnails/"+testJob.ID, nil)
	req.SetPathValue("id", testJob.ID)
	rec := httptest.NewRecorder()

	h.GetThumbnailJob(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp JobResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, testJob.ID, resp.ID)
	assert.Equal(t, "IN_QUEUE", resp.Status)
	require.Len(t, resp.Renditions, 1)
	assert.Equal(t, "PENDING", resp.Renditions[0].Status)
	assert.Empty(t, resp.Renditions[0].JPEGBase64)
}

func TestGetThumbnailJob_NotFound(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/thumbnails/nonexistent", nil)
	req.SetPathValue("id", "nonexistent")
	rec := httptest.NewRecorder()

	h.GetThumbnailJob(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "JOB_NOT_FOUND", resp.Code)
}

func TestGetThumbnailJob_MissingID(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/thumbnails/", nil)
	rec := httptest.NewRecorder()

	h.GetThumbnailJob(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func completedJob(t *testing.T, repo job.Repository, pushToS3 bool) (*job.Job, []byte) {
	t.Helper()
	jpg := []byte{0xff, 0xd8, 0xff, 0xd9}
	path := filepath.Join(t.TempDir(), "thumb.jpg")
	require.NoError(t, os.WriteFile(path, jpg, 0o644))

	j := job.New()
	j.PushToS3 = pushToS3
	j.SetSizes([]job.Size{{Width: 64, Height: 64}})
	r, _ := j.Rendition(0)
	r.Status = job.RenditionCompleted
	r.OutputPath = path
	r.Bytes = len(jpg)
	if pushToS3 {
		r.URL = "https://bucket.s3.amazonaws.com/thumbnails/x/64x64.jpg"
	}
	j.UpdateRendition(0, r)
	require.NoError(t, j.Start())
	require.NoError(t, j.Complete())
	require.NoError(t, repo.Save(context.Background(), j))
	return j, jpg
}

func TestGetThumbnailJob_WithJPEGBase64(t *testing.T) {
	h, _, repo := newTestHandlers(t)
	j, jpg := completedJob(t, repo, false)

	req := httptest.NewRequest(http.MethodGet, "/thumbnails/"+j.ID, nil)
	req.SetPathValue("id", j.ID)
	rec := httptest.NewRecorder()

	h.GetThumbnailJob(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp JobResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "COMPLETED", resp.Status)
	assert.Equal(t, 100, resp.Progress)
	require.Len(t, resp.Renditions, 1)

	decoded, err := base64.StdEncoding.DecodeString(resp.Renditions[0].JPEGBase64)
	require.NoError(t, err)
	assert.Equal(t, jpg, decoded)
	assert.Empty(t, resp.Renditions[0].URL)
}

func TestGetThumbnailJob_WithS3URL(t *testing.T) {
	h, _, repo := newTestHandlers(t)
	j, _ := completedJob(t, repo, true)

	req := httptest.NewRequest(http.MethodGet, "/thumbnails/"+j.ID, nil)
	req.SetPathValue("id", j.ID)
	rec := httptest.NewRecorder()

	h.GetThumbnailJob(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp JobResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Renditions, 1)
	assert.Equal(t, "https://bucket.s3.amazonaws.com/thumbnails/x/64x64.jpg", resp.Renditions[0].URL)
	assert.Empty(t, resp.Renditions[0].JPEGBase64)
}

func TestDeleteThumbnailJob(t *testing.T) {
	h, _, repo := newTestHandlers(t)
	j, _ := completedJob(t, repo, false)
	path := j.Renditions[0].OutputPath

	req := httptest.NewRequest(http.MethodDelete, "/thumbnails/"+j.ID, nil)
	req.SetPathValue("id", j.ID)
	rec := httptest.NewRecorder()

	h.DeleteThumbnailJob(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))

	_, err := repo.FindByID(context.Background(), j.ID)
	assert.ErrorIs(t, err, job.ErrJobNotFound)
}

func TestDeleteThumbnailJob_Errors(t *testing.T) {
	h, _, repo := newTestHandlers(t)

	running := job.New()
	running.SetSizes([]job.Size{{Width: 64, Height: 64}})
	require.NoError(t, running.Start())
	require.NoError(t, repo.Save(context.Background(), running))

	tests := []struct {
		name       string
		id         string
		wantStatus int
		wantCode   string
	}{
		{"not found", "nonexistent", http.StatusNotFound, "JOB_NOT_FOUND"},
		{"running", running.ID, http.StatusConflict, "JOB_IN_PROGRESS"},
		{"missing id", "", http.StatusBadRequest, "MISSING_JOB_ID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodDelete, "/thumbnails/"+tt.id, nil)
			if tt.id != "" {
				req.SetPathValue("id", tt.id)
			}
			rec := httptest.NewRecorder()

			h.DeleteThumbnailJob(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.wantCode, resp.Code)
		})
	}
}

func TestListThumbnailJobs(t *testing.T) {
	h, _, repo := newTestHandlers(t)
	done, _ := completedJob(t, repo, false)
	queued := job.New()
	queued.SetSizes([]job.Size{{Width: 8, Height: 8}, {Width: 16, Height: 16}})
	require.NoError(t, repo.Save(context.Background(), queued))

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"all", "", []string{done.ID, queued.ID}},
		{"completed only", "?status=completed", []string{done.ID}},
		{"comma separated", "?status=IN_QUEUE,FAILED", []string{queued.ID}},
		{"repeated", "?status=FAILED&status=TIMED_OUT", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/thumbnails"+tt.query, nil)
			rec := httptest.NewRecorder()

			h.ListThumbnailJobs(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			var resp JobListResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			ids := make([]string, 0, len(resp.Jobs))
			for _, j := range resp.Jobs {
				ids = append(ids, j.ID)
			}
			assert.ElementsMatch(t, tt.want, ids)
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/thumbnails?status=COMPLETED", nil)
	rec := httptest.NewRecorder()
	h.ListThumbnailJobs(rec, req)
	var resp JobListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Jobs, 1)
	assert.Equal(t, 100, resp.Jobs[0].Progress)
	assert.Equal(t, 1, resp.Jobs[0].Renditions)
	assert.NotNil(t, resp.Jobs[0].CompletedAt)
}

func TestListThumbnailJobs_InvalidStatus(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/thumbnails?status=DONE", nil)
	rec := httptest.NewRecorder()

	h.ListThumbnailJobs(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "INVALID_STATUS", resp.Code)
}

func TestRouter_Integration(t *testing.T) {
	h, processor, _ := newTestHandlers(t, WithAsyncProcessing(true))

	src := &codec.Frame{Width: 640, Height: 480, PixelFormat: codec.PixelFormatRGBA}
	canvas := &codec.Frame{Width: 64, Height: 64, PixelFormat: codec.PixelFormatYUVJ420P}
	processor.On("DecodeImage", mock.Anything, []byte("test-image")).Return(src, nil)
	processor.On("ResizeWithPadding", mock.Anything, src, mock.Anything, mock.Anything).Return(canvas, nil)
	processor.On("EncodeJPEG", mock.Anything, canvas).Return([]byte("jpeg"), nil)

	router := NewRouter(h, testLogger, DefaultConfig())

	// Health
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	// Create
	req = httptest.NewRequest(http.MethodPost, "/thumbnails", thumbnailBody(t, validRequest))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var createResp CreateJobResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&createResp))

	// Poll until the background job finishes
	var jobResp JobResponse
	require.Eventually(t, func() bool {
		req := httptest.NewRequest(http.MethodGet, "/thumbnails/"+createResp.ID, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			return false
		}
		if err := json.NewDecoder(rec.Body).Decode(&jobResp); err != nil {
			return false
		}
		return jobResp.Status == "COMPLETED"
	}, 5*time.Second, 10*time.Millisecond)

	require.Len(t, jobResp.Renditions, 2)
	for _, r := range jobResp.Renditions {
		decoded, err := base64.StdEncoding.DecodeString(r.JPEGBase64)
		require.NoError(t, err)
		assert.Equal(t, []byte("jpeg"), decoded)
	}
	processor.AssertNumberOfCalls(t, "EncodeJPEG", 2)

	// Delete
	req = httptest.NewRequest(http.MethodDelete, "/thumbnails/"+createResp.ID, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Unknown method on a known path
	req = httptest.NewRequest(http.MethodPut, "/thumbnails/"+createResp.ID, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRequestIDMiddleware_EchoesHeader(t *testing.T) {
	handler := RequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "abc-123", r.Header.Get(RequestIDHeader))
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestCORSMiddleware(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	cfg := Config{AllowedOrigins: []string{"https://example.com"}}
	router := NewRouter(h, testLogger, cfg)

	// Allowed origin
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "https://example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	// Other origin gets no CORS headers
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	// OPTIONS preflight
	req = httptest.NewRequest(http.MethodOptions, "/thumbnails", nil)
	req.Header.Set("Origin", "https://example.com")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	panicHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	})

	handler := RecoveryMiddleware(testLogger)(panicHandler)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()

	// Should not panic
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp ErrorResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "INTERNAL_ERROR", resp.Code)
}
