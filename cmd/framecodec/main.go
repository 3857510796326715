// Package main provides the framecodec command line tool: codec listing,
// profile lookup, one-shot thumbnails and WAV resampling.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/maauso/framecodec/internal/codec"
)

// RootOptions holds flags shared by every command.
type RootOptions struct {
	Verbose        bool
	FFmpegLogLevel string

	logger *slog.Logger
}

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// NewRootCommand creates the framecodec command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:          "framecodec",
		Short:        "Encode, decode and convert media with FFmpeg codecs",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelWarn
			if opts.Verbose {
				level = slog.LevelDebug
			}
			opts.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

			codec.Init()
			if err := codec.SetLogLevel(opts.FFmpegLogLevel); err != nil {
				return fmt.Errorf("invalid --ffmpeg-log-level: %w", err)
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "Enable debug logging")
	flags.StringVar(&opts.FFmpegLogLevel, "ffmpeg-log-level", "error", "FFmpeg log level (quiet, error, warning, info, debug)")

	cmd.RegisterFlagCompletionFunc("ffmpeg-log-level", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"quiet", "error", "warning", "info", "debug"}, cobra.ShellCompDirectiveNoFileComp
	})

	cmd.AddCommand(
		NewCodecsCommand(),
		NewProfileCommand(),
		NewThumbnailCommand(opts),
		NewResampleCommand(opts),
	)
	return cmd
}
