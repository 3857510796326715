// Package bootstrap provides dependency initialization for the framecodec server.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/maauso/framecodec/internal/codec"
	"github.com/maauso/framecodec/internal/config"
	"github.com/maauso/framecodec/internal/job"
	"github.com/maauso/framecodec/internal/media"
	"github.com/maauso/framecodec/internal/storage"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	ThumbnailService *job.ThumbnailService
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	// Init sets FFmpeg's default verbosity, so the configured level goes after it
	codec.Init()
	if err := codec.SetLogLevel(cfg.FFmpegLogLevel); err != nil {
		return nil, fmt.Errorf("set ffmpeg log level: %w", err)
	}

	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	processor := media.NewFFmpegProcessor(cfg.JPEGQuality, logger)
	repo := job.NewMemoryRepository()

	svc := job.NewThumbnailService(
		repo,
		processor,
		store,
		logger,
		job.WithMaxConcurrentEncodes(cfg.MaxConcurrentEncodes),
		job.WithJobTimeout(cfg.JobTimeout),
	)

	logger.Info("codec support",
		slog.Bool("mjpeg_encoder", codec.HasEncoder(codec.MJPEG)),
		slog.Bool("png_decoder", codec.HasDecoder(codec.PNG)),
		slog.Bool("mjpeg_decoder", codec.HasDecoder(codec.MJPEG)),
	)

	return &Dependencies{
		ThumbnailService: svc,
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
			slog.String("endpoint", cfg.S3Endpoint),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil
}
