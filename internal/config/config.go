// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
)

// ErrInvalidConfig is returned when a loaded value is out of range.
var ErrInvalidConfig = errors.New("config: invalid value")

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port" validate:"min=1,max=65535"`

	// Storage settings
	TempDir string `env:"TEMP_DIR, default=/tmp/framecodec" json:"temp_dir" validate:"required"`

	// Processing settings
	MaxConcurrentEncodes int           `env:"MAX_CONCURRENT_ENCODES, default=3" json:"max_concurrent_encodes" validate:"min=1,max=64"`
	MaxImageBytes        int64         `env:"MAX_IMAGE_BYTES, default=20971520" json:"max_image_bytes" validate:"min=1"`
	JPEGQuality          int           `env:"JPEG_QUALITY, default=0" json:"jpeg_quality" validate:"eq=0|min=2,max=31"`
	JobTimeout           time.Duration `env:"JOB_TIMEOUT, default=2m" json:"job_timeout" validate:"min=0"`
	// JobRetention is how long finished jobs and their files are kept; 0 keeps them forever.
	JobRetention time.Duration `env:"JOB_RETENTION, default=1h" json:"job_retention" validate:"min=0"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty" validate:"omitempty,url"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat      string `env:"LOG_FORMAT, default=text" json:"log_format" validate:"oneof=text json"`
	LogLevel       string `env:"LOG_LEVEL, default=info" json:"log_level"`
	FFmpegLogLevel string `env:"FFMPEG_LOG_LEVEL, default=error" json:"ffmpeg_log_level" validate:"oneof=quiet error warning info debug"`
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Load reads configuration from environment variables using go-envconfig
// and validates the result.
func Load() (*Config, error) {
	return load(context.Background(), envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks every field against its range.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed %q", ErrInvalidConfig, verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, TempDir: %s, MaxConcurrentEncodes: %d, MaxImageBytes: %d, JPEGQuality: %d, JobTimeout: %s, JobRetention: %s, S3Bucket: %s, S3Region: %s, S3Endpoint: %s, LogFormat: %s, LogLevel: %s, FFmpegLogLevel: %s}",
		c.Port,
		c.TempDir,
		c.MaxConcurrentEncodes,
		c.MaxImageBytes,
		c.JPEGQuality,
		c.JobTimeout,
		c.JobRetention,
		c.S3Bucket,
		c.S3Region,
		c.S3Endpoint,
		c.LogFormat,
		c.LogLevel,
		c.FFmpegLogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
