package server

import (
	"log/slog"
	"net/http"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates a new HTTP router with all routes configured.
// It uses Go 1.22+ ServeMux with method-based routing.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()

	// Register routes with method-based patterns (Go 1.22+)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /codecs", h.ListCodecs)
	mux.HandleFunc("POST /thumbnails", h.CreateThumbnailJob)
	mux.HandleFunc("GET /thumbnails", h.ListThumbnailJobs)
	mux.HandleFunc("GET /thumbnails/{id}", h.GetThumbnailJob)
	mux.HandleFunc("DELETE /thumbnails/{id}", h.DeleteThumbnailJob)

	// Apply middleware chain
	chain := ChainMiddleware(
		RecoveryMiddleware(logger),
		RequestIDMiddleware(),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)

	return chain(mux)
}
