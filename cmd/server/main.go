// Package main provides the entry point for the framecodec thumbnail server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maauso/framecodec/internal/bootstrap"
	"github.com/maauso/framecodec/internal/config"
	"github.com/maauso/framecodec/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting framecodec server",
		slog.Int("port", cfg.Port),
		slog.String("log_format", cfg.LogFormat),
		slog.String("log_level", cfg.LogLevel),
		slog.String("ffmpeg_log_level", cfg.FFmpegLogLevel),
		slog.String("temp_dir", cfg.TempDir),
		slog.Int("max_concurrent_encodes", cfg.MaxConcurrentEncodes),
		slog.Int64("max_image_bytes", cfg.MaxImageBytes),
		slog.Duration("job_timeout", cfg.JobTimeout),
		slog.Duration("job_retention", cfg.JobRetention),
		slog.Bool("s3_enabled", cfg.S3Enabled()),
	)

	deps, err := bootstrap.NewDependencies(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}

	handlers := server.NewHandlers(deps.ThumbnailService, logger,
		server.WithMaxImageBytes(cfg.MaxImageBytes),
	)
	router := server.NewRouter(handlers, logger, server.DefaultConfig())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second, // Large base64 uploads
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	if cfg.JobRetention > 0 {
		go deps.ThumbnailService.RunJanitor(janitorCtx, janitorInterval(cfg.JobRetention), cfg.JobRetention)
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening",
			slog.String("addr", srv.Addr),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
	}()

	select {
	case sig := <-shutdownCh:
		logger.Info("received shutdown signal",
			slog.String("signal", sig.String()),
		)
	case err := <-errCh:
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stopJanitor()
	logger.Info("shutting down server...")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}

// janitorInterval sweeps a few times per retention period, at most once a
// minute.
func janitorInterval(retention time.Duration) time.Duration {
	return max(retention/4, time.Minute)
}
